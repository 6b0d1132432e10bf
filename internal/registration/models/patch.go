package models

import (
	"strings"
	"time"

	dErrors "podium/pkg/domain-errors"
)

// Column is a writable column name. Only the constants below exist, so a
// patch can never address a column chosen by the caller.
type Column string

const (
	ColumnTitle            Column = "title"
	ColumnInstitution      Column = "institution"
	ColumnContactName      Column = "contact_name"
	ColumnContactEmail     Column = "contact_email"
	ColumnContactPhone     Column = "contact_phone"
	ColumnEventName        Column = "name"
	ColumnRegistrationOpen Column = "registration_open"
	ColumnDeadline         Column = "deadline"
	ColumnMaxParticipants  Column = "max_participants"
)

// Assignment is one "column = value" pair produced by a patch.
type Assignment struct {
	Column Column
	Value  any
}

// SubmissionPatch edits the descriptive fields of a submission. Status and
// deletion state are never part of it.
type SubmissionPatch struct {
	Title        *string
	Institution  *string
	ContactName  *string
	ContactEmail *string
	ContactPhone *string
}

func (p SubmissionPatch) IsEmpty() bool {
	return len(p.Assignments()) == 0
}

// Assignments lists the set fields in a fixed column order.
func (p SubmissionPatch) Assignments() []Assignment {
	var out []Assignment
	add := func(c Column, v *string) {
		if v != nil {
			out = append(out, Assignment{Column: c, Value: strings.TrimSpace(*v)})
		}
	}
	add(ColumnTitle, p.Title)
	add(ColumnInstitution, p.Institution)
	add(ColumnContactName, p.ContactName)
	add(ColumnContactEmail, p.ContactEmail)
	add(ColumnContactPhone, p.ContactPhone)
	return out
}

func (p SubmissionPatch) Validate() error {
	fields := map[string]string{}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		fields["title"] = "cannot be empty"
	}
	if p.ContactName != nil && strings.TrimSpace(*p.ContactName) == "" {
		fields["contactName"] = "cannot be empty"
	}
	if p.ContactEmail != nil && strings.TrimSpace(*p.ContactEmail) == "" {
		fields["contactEmail"] = "cannot be empty"
	}
	if len(fields) > 0 {
		return dErrors.Validation(fields)
	}
	return nil
}

func (p SubmissionPatch) Apply(s *Submission, now time.Time) {
	for _, a := range p.Assignments() {
		v := a.Value.(string)
		switch a.Column {
		case ColumnTitle:
			s.Title = v
		case ColumnInstitution:
			s.Institution = v
		case ColumnContactName:
			s.ContactName = v
		case ColumnContactEmail:
			s.ContactEmail = v
		case ColumnContactPhone:
			s.ContactPhone = v
		}
	}
	s.DateUpdated = now
}

// EventPatch edits the admission rules of a parent event.
type EventPatch struct {
	Name             *string
	RegistrationOpen *bool
	Deadline         *time.Time
	// ClearDeadline removes the deadline; it wins over Deadline.
	ClearDeadline   bool
	MaxParticipants *int
}

func (p EventPatch) IsEmpty() bool {
	return len(p.Assignments()) == 0
}

func (p EventPatch) Assignments() []Assignment {
	var out []Assignment
	if p.Name != nil {
		out = append(out, Assignment{Column: ColumnEventName, Value: strings.TrimSpace(*p.Name)})
	}
	if p.RegistrationOpen != nil {
		out = append(out, Assignment{Column: ColumnRegistrationOpen, Value: *p.RegistrationOpen})
	}
	switch {
	case p.ClearDeadline:
		out = append(out, Assignment{Column: ColumnDeadline, Value: nil})
	case p.Deadline != nil:
		out = append(out, Assignment{Column: ColumnDeadline, Value: *p.Deadline})
	}
	if p.MaxParticipants != nil {
		out = append(out, Assignment{Column: ColumnMaxParticipants, Value: *p.MaxParticipants})
	}
	return out
}

func (p EventPatch) Validate() error {
	fields := map[string]string{}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		fields["name"] = "cannot be empty"
	}
	if p.MaxParticipants != nil && *p.MaxParticipants < 0 {
		fields["maxParticipants"] = "must be zero (unlimited) or positive"
	}
	if len(fields) > 0 {
		return dErrors.Validation(fields)
	}
	return nil
}

func (p EventPatch) Apply(e *ParentEvent, now time.Time) {
	if p.Name != nil {
		e.Name = strings.TrimSpace(*p.Name)
	}
	if p.RegistrationOpen != nil {
		e.RegistrationOpen = *p.RegistrationOpen
	}
	switch {
	case p.ClearDeadline:
		e.Deadline = nil
	case p.Deadline != nil:
		d := *p.Deadline
		e.Deadline = &d
	}
	if p.MaxParticipants != nil {
		e.MaxParticipants = *p.MaxParticipants
	}
	e.UpdatedAt = now
}
