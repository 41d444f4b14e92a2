package loader

import (
	"math"
	"time"
)

// EscalationReason names why the controller asks for safe mode
type EscalationReason string

const (
	ReasonQueryFailures EscalationReason = "viewport_query_failures"
	ReasonQuerySlow     EscalationReason = "viewport_query_slow"
)

// AdaptiveState is the mutable part of the adaptive limit
type AdaptiveState struct {
	CurrentLimit        int `json:"currentLimit"`
	ConsecutiveSlow     int `json:"consecutiveSlow"`
	ConsecutiveFailures int `json:"consecutiveFailures"`
}

// AdaptiveLimit tunes the per-query row cap from latency and utilization.
// It is not safe for concurrent use; the Controller serializes all calls.
type AdaptiveLimit struct {
	slowThreshold     time.Duration
	slowEscalation    int
	failureEscalation int
	growth            int
	shrink            float64

	bounds LimitBounds
	state  AdaptiveState
}

// NewAdaptiveLimit starts at the top of bounds
func NewAdaptiveLimit(s Settings, bounds LimitBounds) *AdaptiveLimit {
	return &AdaptiveLimit{
		slowThreshold:     s.SlowQueryThreshold,
		slowEscalation:    s.SlowEscalationThreshold,
		failureEscalation: s.FailureEscalationThreshold,
		growth:            s.GrowthIncrement,
		shrink:            s.ShrinkFactor,
		bounds:            bounds,
		state:             AdaptiveState{CurrentLimit: bounds.Max},
	}
}

// Current returns the row cap for the next query
func (a *AdaptiveLimit) Current() int { return a.state.CurrentLimit }

// Bounds returns the active range
func (a *AdaptiveLimit) Bounds() LimitBounds { return a.bounds }

// State returns a copy of the counters
func (a *AdaptiveLimit) State() AdaptiveState { return a.state }

// SetBounds installs the range of a new mode, clamps the limit into it and
// clears both streak counters.
func (a *AdaptiveLimit) SetBounds(b LimitBounds) {
	a.bounds = b
	a.state.CurrentLimit = b.Clamp(a.state.CurrentLimit)
	a.state.ConsecutiveSlow = 0
	a.state.ConsecutiveFailures = 0
}

// RecordOutcome feeds one completed query back into the limit. It returns a
// non-empty reason when the outcome crosses an escalation threshold.
func (a *AdaptiveLimit) RecordOutcome(duration time.Duration, fetched int, succeeded bool) EscalationReason {
	if !succeeded {
		a.state.ConsecutiveFailures++
		if a.state.ConsecutiveFailures >= a.failureEscalation {
			return ReasonQueryFailures
		}
		return ""
	}

	a.state.ConsecutiveFailures = 0

	if duration > a.slowThreshold {
		a.state.ConsecutiveSlow++
		shrunk := int(math.Floor(float64(a.state.CurrentLimit) * a.shrink))
		if shrunk < a.bounds.Min {
			shrunk = a.bounds.Min
		}
		a.state.CurrentLimit = shrunk
		if a.state.ConsecutiveSlow >= a.slowEscalation {
			return ReasonQuerySlow
		}
		return ""
	}

	a.state.ConsecutiveSlow = 0
	// A nearly full page means the viewport holds more than we asked for
	if float64(fetched) >= 0.9*float64(a.state.CurrentLimit) && a.state.CurrentLimit < a.bounds.Max {
		grown := a.state.CurrentLimit + a.growth
		if grown > a.bounds.Max {
			grown = a.bounds.Max
		}
		a.state.CurrentLimit = grown
	}
	return ""
}
