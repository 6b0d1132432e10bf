// Package idempotency remembers which submission an Idempotency-Key produced
// so a retried public submit returns the original admission.
package idempotency

import (
	"context"
	"sync"
	"time"

	id "podium/pkg/domain"
	"podium/pkg/platform/sentinel"
)

type entry struct {
	submissionID id.SubmissionID
	done         bool
	expiresAt    time.Time
}

// Memory is a process-local key store. Expired keys are dropped lazily.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry), now: time.Now}
}

// Reserve claims key. It returns reserved=true when the caller owns the key,
// the earlier submission id when the key already completed, or
// sentinel.ErrConflict while another request holds it.
func (m *Memory) Reserve(_ context.Context, key string, ttl time.Duration) (id.SubmissionID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expiresAt) {
		if e.done {
			return e.submissionID, false, nil
		}
		return id.SubmissionID{}, false, sentinel.ErrConflict
	}
	m.entries[key] = entry{expiresAt: now.Add(ttl)}
	return id.SubmissionID{}, true, nil
}

func (m *Memory) Complete(_ context.Context, key string, subID id.SubmissionID, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{submissionID: subID, done: true, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !e.done {
		delete(m.entries, key)
	}
	return nil
}
