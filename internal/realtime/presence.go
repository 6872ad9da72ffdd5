package realtime

import (
	"context"
	"sort"
	"sync"
)

// Presence maps a user id to the id of the connection that currently
// receives their pushes. The latest bound connection wins.
type Presence interface {
	Bind(ctx context.Context, userID int64, connID string) error
	Lookup(ctx context.Context, userID int64) (string, bool, error)
	// Release drops the binding only if it still points at connID.
	Release(ctx context.Context, userID int64, connID string) error
	Online(ctx context.Context) ([]int64, error)
}

type memoryPresence struct {
	mu    sync.RWMutex
	conns map[int64]string
}

func NewMemoryPresence() Presence {
	return &memoryPresence{conns: make(map[int64]string)}
}

func (p *memoryPresence) Bind(_ context.Context, userID int64, connID string) error {
	p.mu.Lock()
	p.conns[userID] = connID
	p.mu.Unlock()
	return nil
}

func (p *memoryPresence) Lookup(_ context.Context, userID int64) (string, bool, error) {
	p.mu.RLock()
	connID, ok := p.conns[userID]
	p.mu.RUnlock()
	return connID, ok, nil
}

func (p *memoryPresence) Release(_ context.Context, userID int64, connID string) error {
	p.mu.Lock()
	if p.conns[userID] == connID {
		delete(p.conns, userID)
	}
	p.mu.Unlock()
	return nil
}

func (p *memoryPresence) Online(_ context.Context) ([]int64, error) {
	p.mu.RLock()
	ids := make([]int64, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}
	p.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
