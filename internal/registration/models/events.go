package models

import (
	"time"

	id "podium/pkg/domain"
)

// TransitionEvent is published after a moderation decision commits.
type TransitionEvent struct {
	SubmissionID  id.SubmissionID `json:"submissionId"`
	EventID       id.EventID      `json:"eventId"`
	OldStatus     Status          `json:"oldStatus"`
	NewStatus     Status          `json:"newStatus"`
	ReviewerNotes *string         `json:"reviewerNotes,omitempty"`
	Actor         *id.AdminID     `json:"actor,omitempty"`
	At            time.Time       `json:"at"`
}

// StatusChange is one row of a submission's moderation history.
type StatusChange struct {
	SubmissionID id.SubmissionID `json:"submissionId"`
	From         Status          `json:"from"`
	To           Status          `json:"to"`
	ChangedBy    *id.AdminID     `json:"changedBy,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
	At           time.Time       `json:"at"`
}

func NewStatusChange(s *Submission, from Status, now time.Time) StatusChange {
	return StatusChange{
		SubmissionID: s.ID,
		From:         from,
		To:           s.Status,
		ChangedBy:    s.ReviewedBy,
		Notes:        s.ReviewerNotes,
		At:           now,
	}
}

func (c StatusChange) Event(eventID id.EventID) TransitionEvent {
	return TransitionEvent{
		SubmissionID:  c.SubmissionID,
		EventID:       eventID,
		OldStatus:     c.From,
		NewStatus:     c.To,
		ReviewerNotes: c.Notes,
		Actor:         c.ChangedBy,
		At:            c.At,
	}
}

// Audit payloads.

type SubmissionAdmitted struct {
	SubmissionID id.SubmissionID
	EventID      id.EventID
	Kind         Kind
	RosterSize   int
}

type SubmissionTransitioned struct {
	SubmissionID id.SubmissionID
	From         Status
	To           Status
}

type EntityDeleted struct {
	Entity    string
	ID        string
	Lifecycle Lifecycle
}
