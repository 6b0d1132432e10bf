// Package store persists events, submissions, rosters and moderation
// history. Memory backs tests and single-node runs; Postgres backs deployments.
//
// Both return sentinel errors:
//   - sentinel.ErrNotFound when a row is absent or erased
//   - sentinel.ErrConflict when a guarded write finds an unexpected state
//   - sentinel.ErrAlreadyUsed on a roster uniqueness violation
package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"podium/internal/registration/models"
	"podium/internal/registration/query"
	id "podium/pkg/domain"
	"podium/pkg/platform/sentinel"
)

// Memory is a mutex-guarded store. Guarded writes check their expected state
// under the write lock, which gives them the same atomicity as the SQL
// conditions in Postgres.
type Memory struct {
	mu      sync.RWMutex
	events  map[id.EventID]*models.ParentEvent
	subs    map[id.SubmissionID]*models.Submission
	members map[id.SubmissionID][]models.TeamMember
	history map[id.SubmissionID][]models.StatusChange
}

func NewMemory() *Memory {
	return &Memory{
		events:  make(map[id.EventID]*models.ParentEvent),
		subs:    make(map[id.SubmissionID]*models.Submission),
		members: make(map[id.SubmissionID][]models.TeamMember),
		history: make(map[id.SubmissionID][]models.StatusChange),
	}
}

func cloneEvent(e *models.ParentEvent) *models.ParentEvent {
	out := *e
	if e.Deadline != nil {
		d := *e.Deadline
		out.Deadline = &d
	}
	if e.DeletedAt != nil {
		d := *e.DeletedAt
		out.DeletedAt = &d
	}
	return &out
}

func cloneSubmission(s *models.Submission, members []models.TeamMember) *models.Submission {
	out := *s
	if s.ReviewerNotes != nil {
		n := *s.ReviewerNotes
		out.ReviewerNotes = &n
	}
	if s.VerifiedAt != nil {
		v := *s.VerifiedAt
		out.VerifiedAt = &v
	}
	if s.ReviewedBy != nil {
		r := *s.ReviewedBy
		out.ReviewedBy = &r
	}
	if s.DeletedAt != nil {
		d := *s.DeletedAt
		out.DeletedAt = &d
	}
	out.Members = slices.Clone(members)
	return &out
}

// Events

func (m *Memory) CreateEvent(_ context.Context, e *models.ParentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[e.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	m.events[e.ID] = cloneEvent(e)
	return nil
}

func (m *Memory) FindEvent(_ context.Context, eventID id.EventID) (*models.ParentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneEvent(e), nil
}

// LockEvent reads the event for an admission or lifecycle decision. The
// per-event serialisation comes from the caller's transaction.
func (m *Memory) LockEvent(ctx context.Context, eventID id.EventID) (*models.ParentEvent, error) {
	return m.FindEvent(ctx, eventID)
}

func (m *Memory) ListEvents(_ context.Context, includeDeleted bool) ([]*models.ParentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.ParentEvent, 0, len(m.events))
	for _, e := range m.events {
		if e.IsDeleted && !includeDeleted {
			continue
		}
		out = append(out, cloneEvent(e))
	}
	slices.SortFunc(out, func(a, b *models.ParentEvent) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (m *Memory) UpdateEvent(_ context.Context, eventID id.EventID, patch models.EventPatch, now time.Time) (*models.ParentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	patch.Apply(e, now)
	return cloneEvent(e), nil
}

func (m *Memory) SetEventDeleted(_ context.Context, eventID id.EventID, deleted bool, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.IsDeleted == deleted {
		return sentinel.ErrConflict
	}
	if deleted {
		e.ApplyTombstone(now)
	} else {
		e.ApplyRestore()
	}
	e.UpdatedAt = now
	return nil
}

// EraseEvent removes a tombstoned event with all of its submissions.
func (m *Memory) EraseEvent(_ context.Context, eventID id.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !e.IsDeleted {
		return sentinel.ErrConflict
	}
	for sid, s := range m.subs {
		if s.EventID == eventID {
			m.eraseSubmissionLocked(sid)
		}
	}
	delete(m.events, eventID)
	return nil
}

func (m *Memory) CountActive(_ context.Context, eventID id.EventID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.subs {
		if s.EventID == eventID && s.CountsTowardCapacity() {
			n++
		}
	}
	return n, nil
}

// Submissions

func (m *Memory) InsertSubmission(_ context.Context, s *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[s.EventID]; !ok {
		return sentinel.ErrNotFound
	}
	if _, exists := m.subs[s.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	m.subs[s.ID] = cloneSubmission(s, nil)
	return nil
}

func (m *Memory) InsertMembers(_ context.Context, members []models.TeamMember) error {
	if len(members) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	subID := members[0].SubmissionID
	if _, ok := m.subs[subID]; !ok {
		return sentinel.ErrNotFound
	}
	existing := m.members[subID]
	idents := make(map[string]struct{}, len(existing)+len(members))
	leaders := 0
	for _, tm := range existing {
		idents[strings.ToLower(tm.Identifier)] = struct{}{}
		if tm.Role == models.RoleLeader {
			leaders++
		}
	}
	for _, tm := range members {
		if tm.SubmissionID != subID {
			return sentinel.ErrInvalidState
		}
		key := strings.ToLower(tm.Identifier)
		if _, dup := idents[key]; dup {
			return sentinel.ErrAlreadyUsed
		}
		idents[key] = struct{}{}
		if tm.Role == models.RoleLeader {
			leaders++
		}
	}
	if leaders > 1 {
		return sentinel.ErrAlreadyUsed
	}
	m.members[subID] = append(slices.Clone(existing), members...)
	return nil
}

func (m *Memory) FindSubmission(_ context.Context, subID id.SubmissionID) (*models.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[subID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSubmission(s, m.members[subID]), nil
}

// Transition applies a moderation outcome only while the submission is
// pending and live.
func (m *Memory) Transition(_ context.Context, subID id.SubmissionID, target models.Status, notes *string, reviewer *id.AdminID, now time.Time) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if s.IsDeleted || s.Status != models.StatusPending {
		return nil, sentinel.ErrConflict
	}
	s.ApplyTransition(target, notes, reviewer, now)
	return cloneSubmission(s, m.members[subID]), nil
}

func (m *Memory) AppendStatusChange(_ context.Context, c models.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[c.SubmissionID]; !ok {
		return sentinel.ErrNotFound
	}
	if c.Notes != nil {
		n := *c.Notes
		c.Notes = &n
	}
	m.history[c.SubmissionID] = append(m.history[c.SubmissionID], c)
	return nil
}

func (m *Memory) History(_ context.Context, subID id.SubmissionID) ([]models.StatusChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.subs[subID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return slices.Clone(m.history[subID]), nil
}

func (m *Memory) PatchSubmission(_ context.Context, subID id.SubmissionID, patch models.SubmissionPatch, now time.Time) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if s.IsDeleted {
		return nil, sentinel.ErrConflict
	}
	patch.Apply(s, now)
	return cloneSubmission(s, m.members[subID]), nil
}

func (m *Memory) SetSubmissionDeleted(_ context.Context, subID id.SubmissionID, deleted bool, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if s.IsDeleted == deleted {
		return sentinel.ErrConflict
	}
	if deleted {
		s.ApplyTombstone(now)
	} else {
		s.ApplyRestore()
	}
	s.DateUpdated = now
	return nil
}

func (m *Memory) EraseSubmission(_ context.Context, subID id.SubmissionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !s.IsDeleted {
		return sentinel.ErrConflict
	}
	m.eraseSubmissionLocked(subID)
	return nil
}

func (m *Memory) eraseSubmissionLocked(subID id.SubmissionID) {
	delete(m.subs, subID)
	delete(m.members, subID)
	delete(m.history, subID)
}

// ListSubmissions returns one page matching f plus the total match count.
// f must be normalized.
func (m *Memory) ListSubmissions(_ context.Context, f query.Filters) ([]*models.Submission, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.Submission
	for sid, s := range m.subs {
		view := cloneSubmission(s, m.members[sid])
		if query.Match(f, view, m.events[s.EventID]) {
			matched = append(matched, view)
		}
	}
	slices.SortFunc(matched, func(a, b *models.Submission) int { return query.Compare(f, a, b) })

	total := len(matched)
	start := min(f.Offset(), total)
	end := min(start+f.Limit, total)
	return matched[start:end], total, nil
}
