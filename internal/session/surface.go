package session

import (
	"context"
	"sync"

	"github.com/woozymasta/drawmap/internal/geo"
	"github.com/woozymasta/drawmap/internal/pipeline"
)

// RemoteSurface mirrors the drawing engine running in the browser. The page
// pushes its snapshot on every finished shape; mode and clear requests are
// recorded and reported back to the page.
type RemoteSurface struct {
	snapshot geo.Snapshot
	handlers []pipeline.FinishHandler
	mode     pipeline.Mode
	mu       sync.Mutex
	started  bool
}

// NewRemoteSurface returns a stopped surface in the inert mode.
func NewRemoteSurface() *RemoteSurface {
	return &RemoteSurface{mode: pipeline.ModeStatic}
}

// Start marks the surface as accepting shapes.
func (s *RemoteSurface) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
}

// SetMode records the mode the page should draw with.
func (s *RemoteSurface) SetMode(m pipeline.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// Mode returns the current drawing mode.
func (s *RemoteSurface) Mode() pipeline.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Clear drops every captured shape.
func (s *RemoteSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
}

// Snapshot returns the shapes last pushed by the page.
func (s *RemoteSurface) Snapshot() geo.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// OnFinish subscribes h to finished shapes.
func (s *RemoteSurface) OnFinish(h pipeline.FinishHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Finish stores the snapshot sent by the page and notifies subscribers. It
// returns after every subscriber has handled the notification.
func (s *RemoteSurface) Finish(ctx context.Context, snapshot geo.Snapshot, ev pipeline.FinishEvent) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.snapshot = snapshot
	handlers := append([]pipeline.FinishHandler(nil), s.handlers...)
	s.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			return err
		}
	}

	return nil
}
