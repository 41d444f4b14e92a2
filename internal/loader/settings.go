package loader

import (
	"errors"
	"fmt"
	"time"
)

// ModeLimits holds one row cap for normal mode and one for safe mode
type ModeLimits struct {
	Normal int `yaml:"normal"`
	Safe   int `yaml:"safe"`
}

// For returns the limit for the given mode
func (m ModeLimits) For(safeMode bool) int {
	if safeMode {
		return m.Safe
	}
	return m.Normal
}

// LimitBounds is the legal range of the adaptive limit for one mode
type LimitBounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Clamp forces v into [Min, Max]
func (b LimitBounds) Clamp(v int) int {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Settings holds the loader tunables. All values are supplied from outside;
// nothing here is derived at runtime except the limit bounds.
type Settings struct {
	BootstrapLimit ModeLimits `yaml:"bootstrap_limit"`
	ViewportLimit  ModeLimits `yaml:"viewport_limit"`
	FallbackLimit  ModeLimits `yaml:"fallback_limit"`

	Debounce           time.Duration `yaml:"debounce"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`

	SlowEscalationThreshold    int `yaml:"slow_escalation_threshold"`
	FailureEscalationThreshold int `yaml:"failure_escalation_threshold"`

	GrowthIncrement int     `yaml:"growth_increment"`
	ShrinkFactor    float64 `yaml:"shrink_factor"`

	// WarmupDelay postpones the full fetch so it does not race the first viewport query
	WarmupDelay time.Duration `yaml:"warmup_delay"`
	// PrefetchLimit caps how many image URLs are handed to the prefetcher per batch
	PrefetchLimit int `yaml:"prefetch_limit"`
}

// DefaultSettings returns the production tuning
func DefaultSettings() Settings {
	return Settings{
		BootstrapLimit:             ModeLimits{Normal: 8000, Safe: 2500},
		ViewportLimit:              ModeLimits{Normal: 4000, Safe: 1200},
		FallbackLimit:              ModeLimits{Normal: 600, Safe: 200},
		Debounce:                   150 * time.Millisecond,
		SlowQueryThreshold:         350 * time.Millisecond,
		SlowEscalationThreshold:    4,
		FailureEscalationThreshold: 3,
		GrowthIncrement:            300,
		ShrinkFactor:               0.75,
		WarmupDelay:                2 * time.Second,
		PrefetchLimit:              48,
	}
}

// LimitBoundsFor derives the adaptive limit range for a mode.
// The floor is a third of the mode's viewport limit.
func (s Settings) LimitBoundsFor(safeMode bool) LimitBounds {
	hi := s.ViewportLimit.For(safeMode)
	lo := hi / 3
	if lo < 1 {
		lo = 1
	}
	return LimitBounds{Min: lo, Max: hi}
}

// Validate checks the settings for values the controller cannot work with
func (s Settings) Validate() error {
	var errs []error
	for name, l := range map[string]ModeLimits{
		"bootstrap_limit": s.BootstrapLimit,
		"viewport_limit":  s.ViewportLimit,
		"fallback_limit":  s.FallbackLimit,
	} {
		if l.Normal <= 0 || l.Safe <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got normal=%d safe=%d", name, l.Normal, l.Safe))
			continue
		}
		if l.Safe > l.Normal {
			errs = append(errs, fmt.Errorf("%s: safe limit %d exceeds normal limit %d", name, l.Safe, l.Normal))
		}
	}
	if s.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce must not be negative"))
	}
	if s.SlowQueryThreshold <= 0 {
		errs = append(errs, fmt.Errorf("slow_query_threshold must be positive"))
	}
	if s.SlowEscalationThreshold <= 0 || s.FailureEscalationThreshold <= 0 {
		errs = append(errs, fmt.Errorf("escalation thresholds must be positive"))
	}
	if s.GrowthIncrement <= 0 {
		errs = append(errs, fmt.Errorf("growth_increment must be positive"))
	}
	if s.ShrinkFactor <= 0 || s.ShrinkFactor >= 1 {
		errs = append(errs, fmt.Errorf("shrink_factor must be in (0, 1), got %v", s.ShrinkFactor))
	}
	if s.WarmupDelay < 0 {
		errs = append(errs, fmt.Errorf("warmup_delay must not be negative"))
	}
	if s.PrefetchLimit < 0 {
		errs = append(errs, fmt.Errorf("prefetch_limit must not be negative"))
	}
	return errors.Join(errs...)
}
