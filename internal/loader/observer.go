package loader

import "time"

// Observer receives measurements from the controller. Implementations must
// not block; they are called with the controller lock held.
type Observer interface {
	ObserveQuery(duration time.Duration, fetched int, succeeded bool)
	ObserveLimit(limit int)
	ObserveSafeMode(enabled bool)
	ObserveEscalation(reason EscalationReason)
	ObserveFallback()
	ObserveWarmup(succeeded bool)
	ObserveColdStart(succeeded bool)
}

type nopObserver struct{}

func (nopObserver) ObserveQuery(time.Duration, int, bool) {}
func (nopObserver) ObserveLimit(int)                      {}
func (nopObserver) ObserveSafeMode(bool)                  {}
func (nopObserver) ObserveEscalation(EscalationReason)    {}
func (nopObserver) ObserveFallback()                      {}
func (nopObserver) ObserveWarmup(bool)                    {}
func (nopObserver) ObserveColdStart(bool)                 {}
