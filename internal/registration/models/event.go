package models

import (
	"strings"
	"time"

	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
)

// EventKind is the flavour of a ParentEvent.
type EventKind string

const (
	EventKindCompetition EventKind = "competition"
	EventKindExhibition  EventKind = "exhibition"
)

func (k EventKind) IsValid() bool {
	return k == EventKindCompetition || k == EventKindExhibition
}

// ParentEvent is a competition or exhibition that accepts submissions.
//
// Invariants:
//   - MaxParticipants >= 0, where 0 means unlimited
//   - Name is non-empty and at most 200 characters
//   - Tombstoning never cascades to child submissions
type ParentEvent struct {
	ID               id.EventID `json:"id"`
	Name             string     `json:"name"`
	Kind             EventKind  `json:"kind"`
	MaxParticipants  int        `json:"maxParticipants"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	RegistrationOpen bool       `json:"registrationOpen"`
	Tombstone
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewParentEvent(eventID id.EventID, name string, kind EventKind, maxParticipants int, deadline *time.Time, open bool, now time.Time) (*ParentEvent, error) {
	name = strings.TrimSpace(name)
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "is required"
	} else if len(name) > 200 {
		fields["name"] = "must be 200 characters or less"
	}
	if !kind.IsValid() {
		fields["kind"] = "must be competition or exhibition"
	}
	if maxParticipants < 0 {
		fields["maxParticipants"] = "must be zero (unlimited) or positive"
	}
	if len(fields) > 0 {
		return nil, dErrors.Validation(fields)
	}
	return &ParentEvent{
		ID:               eventID,
		Name:             name,
		Kind:             kind,
		MaxParticipants:  maxParticipants,
		Deadline:         deadline,
		RegistrationOpen: open,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// AdmissionError reports why the event does not accept a submission at now,
// or nil if the admission window is open.
func (e *ParentEvent) AdmissionError(now time.Time) error {
	switch {
	case e.IsDeleted:
		return dErrors.New(dErrors.CodeClosed, "event is no longer available")
	case !e.RegistrationOpen:
		return dErrors.New(dErrors.CodeClosed, "registration is closed")
	case e.Deadline != nil && now.After(*e.Deadline):
		return dErrors.New(dErrors.CodeClosed, "registration deadline has passed")
	}
	return nil
}

func (e *ParentEvent) IsUnlimited() bool {
	return e.MaxParticipants == 0
}

// HasCapacityFor reports whether one more submission fits next to active
// submissions that already count toward capacity.
func (e *ParentEvent) HasCapacityFor(active int) bool {
	return e.IsUnlimited() || active < e.MaxParticipants
}

// RemainingSlots returns -1 for unlimited events.
func (e *ParentEvent) RemainingSlots(active int) int {
	if e.IsUnlimited() {
		return -1
	}
	if left := e.MaxParticipants - active; left > 0 {
		return left
	}
	return 0
}

// CanResizeTo rejects a ceiling below the number of active submissions.
func (e *ParentEvent) CanResizeTo(maxParticipants, active int) error {
	if maxParticipants < 0 {
		return dErrors.New(dErrors.CodeValidation, "invalid capacity").
			WithField("maxParticipants", "must be zero (unlimited) or positive")
	}
	if maxParticipants > 0 && maxParticipants < active {
		return dErrors.Newf(dErrors.CodeConflict, "event already has %d active submissions", active)
	}
	return nil
}
