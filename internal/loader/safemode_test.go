package loader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnSafeModeChanged_EnableTruncatesVisible(t *testing.T) {
	store := &fakeStore{sites: makeSites(5000)}
	c := bootstrapped(t, store)
	require.Len(t, c.State().Visible, 5000)

	c.OnSafeModeChanged(true)

	st := c.State()
	assert.True(t, st.SafeMode)
	assert.Equal(t, LimitBounds{Min: 400, Max: 1200}, st.Bounds)
	assert.Equal(t, 1200, st.Adaptive.CurrentLimit)
	assert.Len(t, st.Visible, 1200)
	assert.Equal(t, store.sites[:1200], st.Visible)
	assert.Len(t, st.Fallback, 200)
}

func TestOnSafeModeChanged_EnableIsIdempotent(t *testing.T) {
	store := &fakeStore{sites: makeSites(5000), boundsResults: []boundsResult{{err: errStore}}}
	c := bootstrapped(t, store)
	require.NoError(t, c.OnViewportChanged(testViewport))
	waitIdle(t, c, 1, store)

	c.OnSafeModeChanged(true)
	once := c.State()
	c.OnSafeModeChanged(true)
	twice := c.State()

	assert.Equal(t, once, twice)
	assert.Equal(t, 0, twice.Adaptive.ConsecutiveFailures)
}

func TestOnSafeModeChanged_DisableRestoresNormalBounds(t *testing.T) {
	store := &fakeStore{sites: makeSites(900)}
	c := newTestController(t, store, testSettings(), true)
	_, err := c.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Len(t, c.State().Fallback, 200)

	c.OnSafeModeChanged(false)

	st := c.State()
	assert.False(t, st.SafeMode)
	assert.Equal(t, LimitBounds{Min: 1333, Max: 4000}, st.Bounds)
	assert.Equal(t, 1333, st.Adaptive.CurrentLimit)
	assert.Len(t, st.Fallback, 600)
	assert.False(t, c.WarmupGuard().HasRequested(), "complete dataset needs no warmup")
}

func TestOnSafeModeChanged_DisableStartsWarmupWhenSampled(t *testing.T) {
	store := &fakeStore{sites: makeSites(4000)}
	c := newTestController(t, store, testSettings(), true)
	snap, err := c.Bootstrap(context.Background())
	require.NoError(t, err)
	require.True(t, snap.IsSampled)
	require.Equal(t, 0, store.fullFetches())

	c.OnSafeModeChanged(false)

	require.Eventually(t, func() bool { return !c.State().IsSampled }, 2*time.Second, 5*time.Millisecond)
	st := c.State()
	assert.Equal(t, int64(4000), st.TotalCount)
	assert.Len(t, st.Fallback, 600)

	// Further transitions do not warm up again
	c.OnSafeModeChanged(true)
	c.OnSafeModeChanged(false)
	assert.Equal(t, 1, store.fullFetches())
}

func TestOnSafeModeChanged_ResetsStreaksWithoutEscalating(t *testing.T) {
	store := &fakeStore{
		sites:         makeSites(100),
		boundsResults: []boundsResult{{err: errStore}, {err: errStore}, {err: errStore}},
	}
	c := bootstrapped(t, store)
	esc, cancel := c.SubscribeEscalations()
	defer cancel()

	for i := 1; i <= 2; i++ {
		require.NoError(t, c.OnViewportChanged(testViewport))
		waitIdle(t, c, i, store)
	}
	c.OnSafeModeChanged(false)
	require.NoError(t, c.OnViewportChanged(testViewport))
	waitIdle(t, c, 3, store)

	assert.Equal(t, 1, c.State().Adaptive.ConsecutiveFailures)
	assert.Len(t, esc, 0)
}

func TestOnSafeModeChanged_PublishesStateChange(t *testing.T) {
	c := newTestController(t, &fakeStore{}, testSettings(), false)
	changes, cancel := c.SubscribeState()
	defer cancel()

	c.OnSafeModeChanged(true)

	select {
	case ch := <-changes:
		assert.Equal(t, CauseSafeMode, ch.Cause)
		assert.True(t, ch.SafeMode)
		assert.Equal(t, 1200, ch.CurrentLimit)
	case <-time.After(time.Second):
		t.Fatal("no state change")
	}
}

func TestOnSafeModeChanged_EnableDropsQueryInFlight(t *testing.T) {
	store := &fakeStore{
		sites:         makeSites(5000),
		boundsDefault: makeSites(4000),
		boundsDelay:   100 * time.Millisecond,
	}
	c := bootstrapped(t, store)

	require.NoError(t, c.OnViewportChanged(testViewport))
	require.Eventually(t, func() bool { return len(store.calls()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 4000, store.calls()[0].limit)

	c.OnSafeModeChanged(true)
	time.Sleep(2 * store.boundsDelay)

	st := c.State()
	assert.True(t, st.SafeMode)
	assert.Equal(t, 1200, st.Adaptive.CurrentLimit)
	assert.Len(t, st.Visible, 1200)
	assert.Equal(t, 0, st.Adaptive.ConsecutiveSlow)
	assert.Len(t, store.calls(), 1)
}

func TestOnSafeModeChanged_StaleResultIgnoredEvenIfStoreFinishes(t *testing.T) {
	store := &fakeStore{
		sites:         makeSites(5000),
		boundsDefault: makeSites(4000),
		boundsDelay:   100 * time.Millisecond,
		ignoreCancel:  true,
	}
	c := bootstrapped(t, store)

	require.NoError(t, c.OnViewportChanged(testViewport))
	require.Eventually(t, func() bool { return len(store.calls()) == 1 }, time.Second, time.Millisecond)

	c.OnSafeModeChanged(true)
	time.Sleep(2 * store.boundsDelay)

	st := c.State()
	assert.Len(t, st.Visible, 1200)
	assert.Equal(t, 1200, st.Adaptive.CurrentLimit)
}
