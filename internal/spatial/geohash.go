package spatial

const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// Geohash encodes a point as a geohash of the given length (1-12)
func Geohash(lat, lon float64, precision int) string {
	if precision < 1 {
		precision = 1
	}
	if precision > 12 {
		precision = 12
	}

	latLo, latHi := -90.0, 90.0
	lonLo, lonHi := -180.0, 180.0
	out := make([]byte, precision)

	even := true
	for i := range out {
		idx := 0
		for b := 0; b < 5; b++ {
			idx <<= 1
			if even {
				mid := (lonLo + lonHi) / 2
				if lon > mid {
					idx |= 1
					lonLo = mid
				} else {
					lonHi = mid
				}
			} else {
				mid := (latLo + latHi) / 2
				if lat > mid {
					idx |= 1
					latLo = mid
				} else {
					latHi = mid
				}
			}
			even = !even
		}
		out[i] = geohashAlphabet[idx]
	}
	return string(out)
}
