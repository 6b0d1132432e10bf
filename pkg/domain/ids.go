// Package domain holds typed identifiers shared across packages.
//
// Each identifier is a distinct named uuid.UUID so an EventID cannot be passed
// where a SubmissionID is expected.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "podium/pkg/domain-errors"
)

type (
	EventID      uuid.UUID
	SubmissionID uuid.UUID
	MemberID     uuid.UUID
	AdminID      uuid.UUID
)

func NewEventID() EventID           { return EventID(uuid.New()) }
func NewSubmissionID() SubmissionID { return SubmissionID(uuid.New()) }
func NewMemberID() MemberID         { return MemberID(uuid.New()) }
func NewAdminID() AdminID           { return AdminID(uuid.New()) }

func (id EventID) String() string      { return uuid.UUID(id).String() }
func (id SubmissionID) String() string { return uuid.UUID(id).String() }
func (id MemberID) String() string     { return uuid.UUID(id).String() }
func (id AdminID) String() string      { return uuid.UUID(id).String() }

func (id EventID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AdminID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func (id EventID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id SubmissionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id MemberID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id AdminID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

func (id *EventID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SubmissionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *MemberID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AdminID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseEventID parses a non-nil event UUID.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event id")
	return EventID(u), err
}

// ParseSubmissionID parses a non-nil submission UUID.
func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parseUUID(s, "submission id")
	return SubmissionID(u), err
}

// ParseAdminID parses a non-nil admin UUID.
func ParseAdminID(s string) (AdminID, error) {
	u, err := parseUUID(s, "admin id")
	return AdminID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be nil")
	}
	return u, nil
}
