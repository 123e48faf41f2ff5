// Package localid hands out temporary ids for optimistically created records
// and lets concurrent callers wait until the server-assigned id is known.
package localid

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
)

// DefaultMaxAttempts bounds the collision-retry loop in GenerateUniqueID.
// With 62-bit draws a retry is already astronomically unlikely; the cap exists
// so a broken random source cannot spin forever.
const DefaultMaxAttempts = 100

type mapping struct {
	newID int64
	done  chan struct{}
}

// Registry tracks placeholder ids per entity-kind key. It is process-local;
// a multi-process deployment would need this behind shared storage.
type Registry struct {
	mu          sync.Mutex
	mappings    map[string]map[int64]*mapping
	randInt63   func() int64
	maxAttempts int
}

func NewRegistry() *Registry {
	return &Registry{
		mappings:    make(map[string]map[int64]*mapping),
		randInt63:   rand.Int63,
		maxAttempts: DefaultMaxAttempts,
	}
}

// GenerateUniqueID returns a positive random id not already registered as an
// old id under key. Callers negate it to form a placeholder disjoint from real
// server ids.
func (r *Registry) GenerateUniqueID(key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	used := r.mappings[key]
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		id := r.randInt63()
		if id == 0 {
			continue
		}
		_, taken := used[id]
		if _, negTaken := used[-id]; !taken && !negTaken {
			return id, nil
		}
	}
	return 0, fmt.Errorf("no unique local id for key %q after %d attempts", key, r.maxAttempts)
}

// Add registers a placeholder id under key. Adding the same pair twice is a
// no-op.
func (r *Registry) Add(key string, oldID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mappings[key] == nil {
		r.mappings[key] = make(map[int64]*mapping)
	}
	if _, ok := r.mappings[key][oldID]; ok {
		return
	}
	r.mappings[key][oldID] = &mapping{done: make(chan struct{})}
}

// Update records the server-assigned id for a placeholder and releases every
// waiter. Updating an unknown or already-updated mapping is a no-op.
func (r *Registry) Update(key string, oldID, newID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mappings[key][oldID]
	if !ok {
		return
	}
	select {
	case <-m.done:
		return
	default:
	}
	m.newID = newID
	close(m.done)
}

// Lookup returns the server-assigned id for a placeholder, if known.
func (r *Registry) Lookup(key string, oldID int64) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mappings[key][oldID]
	if !ok {
		return 0, false
	}
	select {
	case <-m.done:
		return m.newID, true
	default:
		return 0, false
	}
}

// WaitForNewID blocks until Update supplies the real id for (key, oldID) or
// the context is cancelled. The mapping is created on demand so waiting may
// begin before Add.
func (r *Registry) WaitForNewID(ctx context.Context, key string, oldID int64) (int64, error) {
	r.mu.Lock()
	if r.mappings[key] == nil {
		r.mappings[key] = make(map[int64]*mapping)
	}
	m, ok := r.mappings[key][oldID]
	if !ok {
		m = &mapping{done: make(chan struct{})}
		r.mappings[key][oldID] = m
	}
	r.mu.Unlock()

	select {
	case <-m.done:
		return m.newID, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
