// Package session keeps one canvas per open model so that follow-up edits
// can be synced incrementally and streamed to viewers.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/scene"
	"github.com/dimgraph/dimgraph/internal/translate"
)

// Session is the canvas and working configuration of one model
type Session struct {
	ModelID string
	Canvas  *scene.MemoryCanvas

	mu       sync.Mutex
	working  translate.Working
	loaded   bool
	touched  time.Time
	registry *Registry
}

// Do runs fn with the session locked. Render passes on one model are
// serialised through it.
func (s *Session) Do(fn func(s *Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = s.registry.now()
	return fn(s)
}

// Working returns the last configuration rendered in this session. Only
// call it inside Do.
func (s *Session) Working() (translate.Working, bool) {
	return s.working, s.loaded
}

// SetWorking records the configuration rendered in this session. Only call
// it inside Do.
func (s *Session) SetWorking(w translate.Working) {
	s.working = w
	s.loaded = true
}

// ChangeFunc receives every committed change of every session
type ChangeFunc func(modelID string, ch scene.Change)

// Registry holds open sessions
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	listeners []ChangeFunc
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
		now:      time.Now,
	}
}

// OnChange subscribes fn to the changes of all sessions, current and future
func (r *Registry) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Get returns the session of a model, creating it on first use
func (r *Registry) Get(modelID string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[modelID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[modelID]; ok {
		return s
	}

	s = &Session{
		ModelID:  modelID,
		Canvas:   scene.NewMemoryCanvas(),
		touched:  r.now(),
		registry: r,
	}
	s.Canvas.Observe(func(ch scene.Change) {
		r.mu.RLock()
		listeners := append([]ChangeFunc(nil), r.listeners...)
		r.mu.RUnlock()
		for _, fn := range listeners {
			fn(modelID, ch)
		}
	})
	r.sessions[modelID] = s
	r.logger.Debug("opened session", zap.String("model_id", modelID))
	return s
}

// Lookup returns an existing session
func (r *Registry) Lookup(modelID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[modelID]
	return s, ok
}

// Drop closes the session of a model
func (r *Registry) Drop(modelID string) {
	r.mu.Lock()
	delete(r.sessions, modelID)
	r.mu.Unlock()
	r.logger.Debug("closed session", zap.String("model_id", modelID))
}

// IDs lists open sessions in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Evict closes sessions untouched for longer than idle and returns their ids
func (r *Registry) Evict(idle time.Duration) []string {
	cutoff := r.now().Add(-idle)

	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.RUnlock()

	var evicted []string
	for _, s := range candidates {
		s.mu.Lock()
		stale := s.touched.Before(cutoff)
		s.mu.Unlock()
		if !stale {
			continue
		}
		r.mu.Lock()
		if r.sessions[s.ModelID] == s {
			delete(r.sessions, s.ModelID)
			evicted = append(evicted, s.ModelID)
		}
		r.mu.Unlock()
	}
	sort.Strings(evicted)
	if len(evicted) > 0 {
		r.logger.Info("evicted idle sessions", zap.Strings("model_ids", evicted))
	}
	return evicted
}

// RunEvictor evicts idle sessions every interval until ctx is done
func (r *Registry) RunEvictor(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict(idle)
		}
	}
}
