package models

import (
	"strings"

	dErrors "podium/pkg/domain-errors"
)

// Status is the moderation state of a Submission.
//
// pending is initial; verified and rejected are terminal. No edge leaves a
// terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// ParseStatus accepts any case and surrounding whitespace.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown status").
			WithField("status", "must be one of pending, verified, rejected")
	}
	return st, nil
}

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// IsModerationTarget reports whether s may be requested by a moderator.
func (s Status) IsModerationTarget() bool {
	return s.IsTerminal()
}

// CountsTowardCapacity reports whether a live submission in this state
// occupies a capacity slot.
func (s Status) CountsTowardCapacity() bool {
	return s != StatusRejected
}

// CanTransitionTo allows only pending -> verified and pending -> rejected.
func (s Status) CanTransitionTo(target Status) bool {
	return s == StatusPending && target.IsModerationTarget()
}

// Kind distinguishes team registrations from solo achievement claims.
type Kind string

const (
	KindRegistration Kind = "registration"
	KindAchievement  Kind = "achievement"
)

func (k Kind) IsValid() bool {
	return k == KindRegistration || k == KindAchievement
}

// IsSolo reports whether the roster is restricted to the leader alone.
func (k Kind) IsSolo() bool {
	return k == KindAchievement
}

// Role is a TeamMember's position in a roster.
type Role string

const (
	RoleLeader Role = "leader"
	RoleMember Role = "member"
)

func (r Role) IsValid() bool {
	return r == RoleLeader || r == RoleMember
}
