// Package session keeps one drawing pipeline per open page.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/woozymasta/drawmap/internal/pipeline"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound is returned for unknown or expired session ids.
	ErrNotFound = errors.New("session not found")
	// ErrNotStarted is returned when shapes arrive before the surface started.
	ErrNotStarted = errors.New("surface not started")
)

// Session is the server side of one open page.
type Session struct {
	Surface  *RemoteSurface
	Preview  *Panel
	Buttons  map[string]*Button
	Pipeline *pipeline.Pipeline

	cancel   context.CancelFunc
	lastSeen time.Time
	ID       string
}

// State returns a copy of the session state for the page.
func (s *Session) State() State {
	buttons := make(map[string]string, len(s.Buttons))
	for name, b := range s.Buttons {
		buttons[name] = b.Color()
	}

	return State{
		ID:      s.ID,
		Mode:    s.Surface.Mode(),
		Buttons: buttons,
		Preview: s.Preview.Text(),
	}
}

// Options configures new sessions.
type Options struct {
	// Modes are the drawing modes that get a selectable button.
	Modes    []string
	Filename string
	TTL      time.Duration
}

// Store holds the open sessions.
type Store struct {
	sessions map[string]*Session
	now      func() time.Time
	opts     Options
	mu       sync.Mutex
}

// NewStore returns an empty store.
func NewStore(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}

	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
		opts:     opts,
	}
}

// Create opens a session with a started surface and a running pipeline.
func (s *Store) Create() (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}

	logger := log.With().Str("session", id).Logger()

	surface := NewRemoteSurface()
	preview := &Panel{}
	selector := pipeline.NewModeSelector()
	buttons := make(map[string]*Button, len(s.opts.Modes))
	for _, name := range s.opts.Modes {
		b := &Button{color: pipeline.InactiveColor}
		buttons[name] = b
		selector.Register(pipeline.Mode(name), b)
	}

	p := pipeline.New(surface, selector, preview, pipeline.Options{
		Filename: s.opts.Filename,
		Logger:   &logger,
	})
	p.Start()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Pipeline stopped")
		}
	}()

	sess := &Session{
		ID:       id,
		Surface:  surface,
		Preview:  preview,
		Buttons:  buttons,
		Pipeline: p,
		cancel:   cancel,
	}

	s.mu.Lock()
	sess.lastSeen = s.now()
	s.sessions[id] = sess
	total := len(s.sessions)
	s.mu.Unlock()

	logger.Debug().Int("sessions", total).Msg("Session created")

	return sess, nil
}

// Get returns the session and marks it as used.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	sess.lastSeen = s.now()

	return sess, nil
}

// Close stops the session's pipeline and forgets it.
func (s *Store) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	sess.cancel()

	log.Debug().Str("session", id).Msg("Session closed")
	return nil
}

// Len returns the number of open sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Expire closes sessions idle for longer than the TTL and returns how many
// were closed.
func (s *Store) Expire() int {
	deadline := s.now().Add(-s.opts.TTL)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(deadline) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.cancel()
	}
	if len(expired) > 0 {
		log.Debug().Int("expired", len(expired)).Msg("Idle sessions closed")
	}

	return len(expired)
}

// Run expires idle sessions periodically until ctx is done, then closes
// every remaining session.
func (s *Store) Run(ctx context.Context) {
	interval := s.opts.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-ticker.C:
			s.Expire()
		}
	}
}

func (s *Store) closeAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.cancel()
	}
}

func newID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
