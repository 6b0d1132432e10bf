package models

import (
	"time"

	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
)

// Submission is a team registration or an achievement claim against a
// ParentEvent.
//
// Invariants:
//   - Status starts pending and only moves to verified or rejected once
//   - VerifiedAt is set exactly when Status becomes terminal
//   - IsDeleted is independent of the parent's deletion state
//   - Members, when loaded, contain exactly one leader
type Submission struct {
	ID            id.SubmissionID `json:"id"`
	EventID       id.EventID      `json:"eventId"`
	Kind          Kind            `json:"kind"`
	Status        Status          `json:"status"`
	Title         string          `json:"title"`
	Institution   string          `json:"institution,omitempty"`
	ContactName   string          `json:"contactName"`
	ContactEmail  string          `json:"contactEmail"`
	ContactPhone  string          `json:"contactPhone,omitempty"`
	ReviewerNotes *string         `json:"reviewerNotes,omitempty"`
	ReviewedBy    *id.AdminID     `json:"reviewedBy,omitempty"`
	VerifiedAt    *time.Time      `json:"verifiedAt,omitempty"`
	DateCreated   time.Time       `json:"dateCreated"`
	DateUpdated   time.Time       `json:"dateUpdated"`
	Tombstone
	Members []TeamMember `json:"members,omitempty"`
}

// Contact is the submitter contact block supplied at admission.
type Contact struct {
	Name  string
	Email string
	Phone string
}

func NewSubmission(submissionID id.SubmissionID, eventID id.EventID, kind Kind, title, institution string, contact Contact, now time.Time) *Submission {
	return &Submission{
		ID:           submissionID,
		EventID:      eventID,
		Kind:         kind,
		Status:       StatusPending,
		Title:        title,
		Institution:  institution,
		ContactName:  contact.Name,
		ContactEmail: contact.Email,
		ContactPhone: contact.Phone,
		DateCreated:  now,
		DateUpdated:  now,
	}
}

// CountsTowardCapacity reports whether the submission occupies a slot on its
// parent right now.
func (s *Submission) CountsTowardCapacity() bool {
	return !s.IsDeleted && s.Status.CountsTowardCapacity()
}

// CanTransition validates a moderation request against the current state.
func (s *Submission) CanTransition(target Status) error {
	if !target.IsModerationTarget() {
		return dErrors.New(dErrors.CodeValidation, "invalid moderation target").
			WithField("status", "must be verified or rejected")
	}
	if s.IsDeleted {
		return dErrors.New(dErrors.CodeConflict, "submission is deleted")
	}
	if !s.Status.CanTransitionTo(target) {
		return dErrors.Newf(dErrors.CodeConflict, "submission already %s", s.Status)
	}
	return nil
}

// ApplyTransition records a moderation outcome. Call CanTransition first.
func (s *Submission) ApplyTransition(target Status, notes *string, reviewer *id.AdminID, now time.Time) {
	s.Status = target
	s.ReviewerNotes = nil
	if notes != nil {
		n := *notes
		s.ReviewerNotes = &n
	}
	s.ReviewedBy = nil
	if reviewer != nil {
		r := *reviewer
		s.ReviewedBy = &r
	}
	s.VerifiedAt = &now
	s.DateUpdated = now
}

// Leader returns the roster leader when members are loaded.
func (s *Submission) Leader() (TeamMember, bool) {
	for _, m := range s.Members {
		if m.Role == RoleLeader {
			return m, true
		}
	}
	return TeamMember{}, false
}

// TeamMember belongs to exactly one Submission and is created with it.
type TeamMember struct {
	ID           id.MemberID     `json:"id"`
	SubmissionID id.SubmissionID `json:"submissionId"`
	Name         string          `json:"name"`
	Identifier   string          `json:"identifier"`
	Email        string          `json:"email,omitempty"`
	Phone        string          `json:"phone,omitempty"`
	Role         Role            `json:"role"`
}

// Roster is the validated member set of a Submission.
type Roster struct {
	SubmissionID id.SubmissionID `json:"submissionId"`
	Members      []TeamMember    `json:"members"`
}

func (r Roster) Leader() TeamMember {
	for _, m := range r.Members {
		if m.Role == RoleLeader {
			return m
		}
	}
	return TeamMember{}
}

// Size counts the leader together with members.
func (r Roster) Size() int {
	return len(r.Members)
}
