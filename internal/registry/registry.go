// Package registry tracks experiments through their lifecycle so concurrent
// suite runs and the metrics endpoint can observe what is in flight.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reliancelab/mazesim/internal/metrics"
)

// Status is the lifecycle state of an experiment.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// ErrNotFound is returned for unknown experiment IDs.
var ErrNotFound = errors.New("experiment not found")

// Entry is one tracked experiment.
type Entry struct {
	ID         string
	Name       string
	Status     Status
	Error      string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Registry is an in-memory experiment tracker.
type Registry struct {
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*Entry
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		logger:  logger,
		entries: make(map[string]*Entry),
	}
}

// Register adds a pending experiment and returns its ID.
func (r *Registry) Register(name string) string {
	id := uuid.New().String()

	r.mu.Lock()
	r.entries[id] = &Entry{
		ID:        id,
		Name:      name,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	r.mu.Unlock()

	r.logger.Info("Experiment registered", zap.String("experiment_id", id), zap.String("name", name))
	return id
}

// Start moves an experiment to running.
func (r *Registry) Start(id string) error {
	return r.update(id, func(e *Entry) {
		e.Status = StatusRunning
		e.StartedAt = time.Now()
		metrics.ExperimentsActive.Inc()
	})
}

// Complete moves a running experiment to complete.
func (r *Registry) Complete(id string) error {
	return r.update(id, func(e *Entry) {
		e.Status = StatusComplete
		e.FinishedAt = time.Now()
		metrics.ExperimentsActive.Dec()
	})
}

// Fail moves a running experiment to failed with the cause.
func (r *Registry) Fail(id string, cause error) error {
	return r.update(id, func(e *Entry) {
		e.Status = StatusFailed
		e.FinishedAt = time.Now()
		if cause != nil {
			e.Error = cause.Error()
		}
		metrics.ExperimentsActive.Dec()
	})
}

// Get returns a copy of an entry.
func (r *Registry) Get(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return *e, nil
}

// List returns all entries ordered by creation time.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Registry) update(id string, apply func(*Entry)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	apply(e)
	return nil
}
