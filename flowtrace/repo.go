package flowtrace

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	TraceNotFoundErr = errors.New("auth flow trace not found")
	EmptyStateErr    = errors.New("state cannot be empty")
)

// Repo stores in-flight auth flow traces keyed by the opaque state value that
// accompanies the browser through the redirect dance.
type Repo interface {
	Upsert(state string, trace *Trace) error
	Get(state string) (*Trace, error)
	Delete(state string) error
}

// InMemoryRepo is a thread-safe in-memory implementation of Repo.
type InMemoryRepo struct {
	mu     sync.RWMutex
	traces map[string]*Trace
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{traces: make(map[string]*Trace)}
}

func (r *InMemoryRepo) Upsert(state string, trace *Trace) error {
	if state == "" {
		return EmptyStateErr
	}
	if trace == nil {
		return errors.New("trace cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces[state] = trace
	return nil
}

func (r *InMemoryRepo) Get(state string) (*Trace, error) {
	if state == "" {
		return nil, EmptyStateErr
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	trace, ok := r.traces[state]
	if !ok {
		return nil, TraceNotFoundErr
	}
	return trace, nil
}

func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return EmptyStateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.traces, state)
	return nil
}
