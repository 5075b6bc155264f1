// Package sessions maps opaque session identifiers to conversation engines
// and evicts idle ones on a timer.
package sessions

import (
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/parley/internal/agent"
	"github.com/haasonsaas/parley/internal/observability"
)

const (
	// DefaultIdleTimeout is how long a session may sit untouched before
	// the sweep removes it.
	DefaultIdleTimeout = 300 * time.Second

	// DefaultSweepInterval is how often the sweep runs.
	DefaultSweepInterval = 60 * time.Second
)

// Factory constructs a fresh engine for a new or replaced session.
type Factory func() *agent.Engine

// StoreConfig configures a Store.
type StoreConfig struct {
	Factory       Factory
	Logger        *slog.Logger
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	Metrics       *observability.Metrics
}

type entry struct {
	engine     *agent.Engine
	lastActive time.Time
}

// Store is the session table. A single coarse mutex guards every mutation,
// including the sweep's check-and-delete, so a sweep can never race a
// concurrent GetOrCreate on the same identifier.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	factory       Factory
	logger        *slog.Logger
	idleTimeout   time.Duration
	sweepInterval time.Duration
	metrics       *observability.Metrics

	nowFunc func() time.Time // for tests

	done     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a session store. Call Start to launch the idle sweep.
func NewStore(cfg StoreConfig) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Store{
		entries:       make(map[string]*entry),
		factory:       cfg.Factory,
		logger:        logger.With("component", "sessions"),
		idleTimeout:   idle,
		sweepInterval: interval,
		metrics:       cfg.Metrics,
		nowFunc:       time.Now,
		done:          make(chan struct{}),
	}
}

// SetNowFunc sets a custom time source for testing.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = fn
}

// GetOrCreate returns the engine for id, refreshing its activity timestamp,
// or constructs and registers a fresh one on first contact.
func (s *Store) GetOrCreate(id string) *agent.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if ent, ok := s.entries[id]; ok {
		ent.lastActive = now
		return ent.engine
	}
	engine := s.factory()
	s.entries[id] = &entry{engine: engine, lastActive: now}
	s.logger.Info("session created", "session", id, "live", len(s.entries))
	s.updateGauge()
	return engine
}

// Replace discards the engine for id and registers a fresh one, keeping the
// session usable after an unrecoverable engine error.
func (s *Store) Replace(id string) *agent.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[id]; ok {
		usage := ent.engine.Usage()
		s.logger.Info("session engine replaced", "session", id,
			"prompt_tokens", usage.PromptTokens, "total_tokens", usage.TotalTokens)
	}
	engine := s.factory()
	s.entries[id] = &entry{engine: engine, lastActive: s.nowFunc()}
	s.updateGauge()
	return engine
}

// Remove evicts a session, typically on disconnect. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id, "disconnect")
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start launches the background idle sweep. It runs until Close.
func (s *Store) Start() {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.done:
				return
			}
		}
	}()
}

// Close stops the background sweep.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Sweep removes every session whose idle age exceeds the timeout. It is
// called by the background loop and exposed for tests.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	for id, ent := range s.entries {
		if now.Sub(ent.lastActive) > s.idleTimeout {
			s.removeLocked(id, "idle")
		}
	}
}

func (s *Store) removeLocked(id, reason string) {
	ent, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entries, id)
	usage := ent.engine.Usage()
	s.logger.Info("session removed", "session", id, "reason", reason,
		"prompt_tokens", usage.PromptTokens, "total_tokens", usage.TotalTokens,
		"live", len(s.entries))
	s.updateGauge()
}

func (s *Store) updateGauge() {
	if s.metrics != nil {
		s.metrics.SetActiveSessions(len(s.entries))
	}
}
