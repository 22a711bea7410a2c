package auditlog

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// Memory is an in-process audit trail. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[uuid.UUID][]subscription.AuditEntry
}

// NewMemory creates an empty in-process audit store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[uuid.UUID][]subscription.AuditEntry)}
}

// RecordAudit appends e to the user's history.
func (m *Memory) RecordAudit(_ context.Context, userID uuid.UUID, e subscription.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = append(m.entries[userID], e)
	return nil
}

// FetchAuditHistory returns up to limit entries, newest first.
// A non-positive limit returns the whole history.
func (m *Memory) FetchAuditHistory(_ context.Context, userID uuid.UUID, limit int) ([]subscription.AuditEntry, error) {
	m.mu.RLock()
	out := slices.Clone(m.entries[userID])
	m.mu.RUnlock()

	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
