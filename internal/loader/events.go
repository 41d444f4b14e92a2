package loader

import (
	"sync"
	"time"
)

// EscalationRequest asks the safe-mode owner to switch safe mode on
type EscalationRequest struct {
	Reason EscalationReason `json:"reason"`
	At     time.Time        `json:"at"`
}

// ChangeCause says which path mutated the loader state
type ChangeCause string

const (
	CauseBootstrap ChangeCause = "bootstrap"
	CauseViewport  ChangeCause = "viewport"
	CauseFallback  ChangeCause = "fallback"
	CauseSafeMode  ChangeCause = "safe_mode"
	CauseWarmup    ChangeCause = "warmup"
)

// StateChange is published after every committed mutation of the state
type StateChange struct {
	Cause         ChangeCause `json:"cause"`
	TotalCount    int64       `json:"totalCount"`
	IsSampled     bool        `json:"isSampled"`
	SafeMode      bool        `json:"safeMode"`
	CurrentLimit  int         `json:"currentLimit"`
	VisibleCount  int         `json:"visibleCount"`
	FallbackCount int         `json:"fallbackCount"`
}

const subscriberBuffer = 16

// broadcaster fans values out to subscribers without ever blocking the
// publisher. A subscriber whose buffer is full misses the value.
type broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	closed bool
}

func (b *broadcaster[T]) subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	if b.subs == nil {
		b.subs = make(map[int]chan T)
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// publish returns the number of subscribers that dropped the value
func (b *broadcaster[T]) publish(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			dropped++
		}
	}
	return dropped
}

func (b *broadcaster[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
