package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jengzang/sites-backend-go/internal/loader"
)

// SafeModeListener reacts to safe-mode transitions
type SafeModeListener interface {
	OnSafeModeChanged(enabled bool)
}

// ModeService owns the process-wide safe-mode flag. It turns escalation
// requests into transitions and broadcasts every transition to the
// registered listeners.
type ModeService struct {
	mu        sync.Mutex
	enabled   bool
	listeners []SafeModeListener

	// serializes broadcasts so listeners see transitions in order
	transition sync.Mutex
	logger     *slog.Logger
}

// NewModeService creates a mode service starting with the given flag
func NewModeService(initial bool, logger *slog.Logger) *ModeService {
	return &ModeService{enabled: initial, logger: logger}
}

// Register adds a listener for future transitions
func (s *ModeService) Register(l SafeModeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Enabled reports the current flag
func (s *ModeService) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetSafeMode stores the flag and broadcasts it. Redundant values are
// broadcast too; listeners treat them as no-ops.
func (s *ModeService) SetSafeMode(enabled bool, reason string) {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	previous := s.enabled
	s.enabled = enabled
	listeners := append([]SafeModeListener(nil), s.listeners...)
	s.mu.Unlock()

	if previous != enabled {
		s.logger.Info("safe mode transition", "enabled", enabled, "reason", reason, "listeners", len(listeners))
	}
	for _, l := range listeners {
		l.OnSafeModeChanged(enabled)
	}
}

// Run consumes escalation requests until ctx is done or the channel closes.
// A request while safe mode is already on is ignored.
func (s *ModeService) Run(ctx context.Context, requests <-chan loader.EscalationRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if s.Enabled() {
				s.logger.Debug("escalation ignored, safe mode already on", "reason", req.Reason)
				continue
			}
			s.SetSafeMode(true, string(req.Reason))
		}
	}
}
