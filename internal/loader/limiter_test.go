package loader

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fast = 100 * time.Millisecond
	slow = 500 * time.Millisecond
)

func TestLimitBoundsFor(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, LimitBounds{Min: 1333, Max: 4000}, s.LimitBoundsFor(false))
	assert.Equal(t, LimitBounds{Min: 400, Max: 1200}, s.LimitBoundsFor(true))

	s.ViewportLimit = ModeLimits{Normal: 2, Safe: 1}
	assert.Equal(t, LimitBounds{Min: 1, Max: 1}, s.LimitBoundsFor(true))
}

func TestAdaptiveLimit_SlowQueriesShrinkAndEscalateOnce(t *testing.T) {
	s := DefaultSettings()
	a := NewAdaptiveLimit(s, s.LimitBoundsFor(false))
	require.Equal(t, 4000, a.Current())

	want := []int{3000, 2250, 1687, 1333}
	var reasons []EscalationReason
	for i, limit := range want {
		if r := a.RecordOutcome(slow, 100, true); r != "" {
			reasons = append(reasons, r)
		}
		assert.Equal(t, limit, a.Current(), "after slow query %d", i+1)
	}

	assert.Equal(t, []EscalationReason{ReasonQuerySlow}, reasons)
	assert.Equal(t, 4, a.State().ConsecutiveSlow)
}

func TestAdaptiveLimit_FailuresEscalate(t *testing.T) {
	s := DefaultSettings()
	a := NewAdaptiveLimit(s, s.LimitBoundsFor(false))

	assert.Empty(t, a.RecordOutcome(fast, 0, false))
	assert.Empty(t, a.RecordOutcome(fast, 0, false))
	assert.Equal(t, ReasonQueryFailures, a.RecordOutcome(fast, 0, false))
	assert.Equal(t, 3, a.State().ConsecutiveFailures)
	assert.Equal(t, 4000, a.Current(), "failures do not move the limit")

	assert.Empty(t, a.RecordOutcome(fast, 10, true))
	assert.Equal(t, 0, a.State().ConsecutiveFailures)
}

func TestAdaptiveLimit_FailureKeepsSlowStreak(t *testing.T) {
	s := DefaultSettings()
	a := NewAdaptiveLimit(s, s.LimitBoundsFor(false))

	a.RecordOutcome(slow, 10, true)
	a.RecordOutcome(slow, 10, true)
	a.RecordOutcome(fast, 0, false)
	assert.Equal(t, 2, a.State().ConsecutiveSlow)

	a.RecordOutcome(slow, 10, true)
	assert.Equal(t, 3, a.State().ConsecutiveSlow)
	assert.Equal(t, 0, a.State().ConsecutiveFailures)
}

func TestAdaptiveLimit_GrowsOnFullPages(t *testing.T) {
	s := DefaultSettings()
	a := NewAdaptiveLimit(s, s.LimitBoundsFor(false))
	a.RecordOutcome(slow, 10, true)
	a.RecordOutcome(slow, 10, true)
	require.Equal(t, 2250, a.Current())

	// Under 90% utilization: no growth, slow streak cleared
	a.RecordOutcome(fast, 2000, true)
	assert.Equal(t, 2250, a.Current())
	assert.Equal(t, 0, a.State().ConsecutiveSlow)

	a.RecordOutcome(fast, 2025, true)
	assert.Equal(t, 2550, a.Current())

	for i := 0; i < 10; i++ {
		a.RecordOutcome(fast, a.Current(), true)
	}
	assert.Equal(t, 4000, a.Current())
}

func TestAdaptiveLimit_SetBoundsClampsAndResets(t *testing.T) {
	s := DefaultSettings()
	a := NewAdaptiveLimit(s, s.LimitBoundsFor(false))
	a.RecordOutcome(slow, 10, true)
	a.RecordOutcome(fast, 0, false)

	a.SetBounds(s.LimitBoundsFor(true))
	assert.Equal(t, AdaptiveState{CurrentLimit: 1200}, a.State())

	a.SetBounds(s.LimitBoundsFor(false))
	assert.Equal(t, AdaptiveState{CurrentLimit: 1333}, a.State())
}

func TestAdaptiveLimit_StaysWithinBounds(t *testing.T) {
	s := DefaultSettings()
	rng := rand.New(rand.NewSource(42))
	safe := false
	a := NewAdaptiveLimit(s, s.LimitBoundsFor(safe))

	for i := 0; i < 5000; i++ {
		switch rng.Intn(10) {
		case 0:
			safe = !safe
			a.SetBounds(s.LimitBoundsFor(safe))
		case 1, 2:
			a.RecordOutcome(fast, 0, false)
		case 3, 4, 5:
			a.RecordOutcome(slow, rng.Intn(5000), true)
		default:
			a.RecordOutcome(fast, rng.Intn(5000), true)
		}
		b := s.LimitBoundsFor(safe)
		require.GreaterOrEqual(t, a.Current(), b.Min, "step %d", i)
		require.LessOrEqual(t, a.Current(), b.Max, "step %d", i)
	}
}

func TestSettingsValidate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.ShrinkFactor = 1
	s.FallbackLimit = ModeLimits{Normal: 100, Safe: 200}
	s.GrowthIncrement = 0
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shrink_factor")
	assert.Contains(t, err.Error(), "fallback_limit")
	assert.Contains(t, err.Error(), "growth_increment")
}
