package handler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"podium/internal/registration/models"
	"podium/internal/registration/query"
	"podium/internal/registration/roster"
	"podium/internal/registration/service"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
)

const (
	maxRosterEntries = 100
	maxBatchIDs      = 1000
	maxIdemKeyLength = 200
)

// SubmitRequest is the body of POST /events/{eventID}/submissions.
type SubmitRequest struct {
	Kind        string          `json:"kind"`
	Title       string          `json:"title"`
	Institution string          `json:"institution"`
	Contact     ContactRequest  `json:"contact"`
	Members     []MemberRequest `json:"members"`
}

type ContactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type MemberRequest struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
}

// Validate enforces transport limits. Domain rules live in the gateway.
func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Members) > maxRosterEntries {
		return dErrors.Validation(map[string]string{
			"members": fmt.Sprintf("must contain at most %d entries", maxRosterEntries),
		})
	}
	return nil
}

func (r *SubmitRequest) Command(eventID id.EventID, idempotencyKey string) service.SubmitCommand {
	members := make([]roster.MemberInput, 0, len(r.Members))
	for _, m := range r.Members {
		members = append(members, roster.MemberInput{
			Name:       m.Name,
			Identifier: m.Identifier,
			Email:      m.Email,
			Phone:      m.Phone,
			Role:       models.Role(strings.TrimSpace(m.Role)),
		})
	}
	return service.SubmitCommand{
		EventID:     eventID,
		Kind:        models.Kind(strings.TrimSpace(r.Kind)),
		Title:       r.Title,
		Institution: r.Institution,
		Contact: models.Contact{
			Name:  r.Contact.Name,
			Email: r.Contact.Email,
			Phone: r.Contact.Phone,
		},
		Members:        members,
		IdempotencyKey: idempotencyKey,
	}
}

func parseIdempotencyKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if len(key) > maxIdemKeyLength {
		return "", dErrors.Validation(map[string]string{
			"Idempotency-Key": fmt.Sprintf("must be at most %d characters", maxIdemKeyLength),
		})
	}
	return key, nil
}

// CreateEventRequest is the body of POST /admin/events.
type CreateEventRequest struct {
	Name             string     `json:"name"`
	Kind             string     `json:"kind"`
	MaxParticipants  int        `json:"maxParticipants"`
	Deadline         *time.Time `json:"deadline"`
	RegistrationOpen *bool      `json:"registrationOpen"`
}

func (r *CreateEventRequest) Command() service.CreateEventCommand {
	open := true
	if r.RegistrationOpen != nil {
		open = *r.RegistrationOpen
	}
	return service.CreateEventCommand{
		Name:             r.Name,
		Kind:             models.EventKind(strings.TrimSpace(r.Kind)),
		MaxParticipants:  r.MaxParticipants,
		Deadline:         r.Deadline,
		RegistrationOpen: open,
	}
}

// UpdateEventRequest is the body of PATCH /admin/events/{eventID}.
type UpdateEventRequest struct {
	Name             *string    `json:"name"`
	RegistrationOpen *bool      `json:"registrationOpen"`
	Deadline         *time.Time `json:"deadline"`
	ClearDeadline    bool       `json:"clearDeadline"`
	MaxParticipants  *int       `json:"maxParticipants"`
}

func (r *UpdateEventRequest) Patch() models.EventPatch {
	return models.EventPatch{
		Name:             r.Name,
		RegistrationOpen: r.RegistrationOpen,
		Deadline:         r.Deadline,
		ClearDeadline:    r.ClearDeadline,
		MaxParticipants:  r.MaxParticipants,
	}
}

// PatchSubmissionRequest is the body of PATCH /admin/submissions/{id}. It
// carries exactly one kind of change: a moderation decision, a lifecycle
// toggle or a contact edit.
type PatchSubmissionRequest struct {
	Status        *string `json:"status"`
	ReviewerNotes *string `json:"reviewerNotes"`
	IsDeleted     *bool   `json:"isDeleted"`
	Title         *string `json:"title"`
	Institution   *string `json:"institution"`
	ContactName   *string `json:"contactName"`
	ContactEmail  *string `json:"contactEmail"`
	ContactPhone  *string `json:"contactPhone"`

	// Parsed values (populated by Validate)
	parsedStatus models.Status
}

type patchKind int

const (
	patchModeration patchKind = iota + 1
	patchLifecycle
	patchContact
)

func (r *PatchSubmissionRequest) contactPatch() models.SubmissionPatch {
	return models.SubmissionPatch{
		Title:        r.Title,
		Institution:  r.Institution,
		ContactName:  r.ContactName,
		ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone,
	}
}

// Validate classifies the request and rejects mixed changes.
func (r *PatchSubmissionRequest) Validate() (patchKind, error) {
	if r == nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	moderation := r.Status != nil || r.ReviewerNotes != nil
	lifecycle := r.IsDeleted != nil
	contact := !r.contactPatch().IsEmpty()

	switch {
	case lifecycle && (moderation || contact):
		return 0, dErrors.New(dErrors.CodeValidation, "isDeleted must be sent on its own").
			WithField("isDeleted", "cannot be combined with other changes")
	case moderation && contact:
		return 0, dErrors.New(dErrors.CodeValidation, "status must be sent without contact changes").
			WithField("status", "cannot be combined with contact changes")
	case moderation:
		if r.Status == nil {
			return 0, dErrors.Validation(map[string]string{"status": "is required with reviewerNotes"})
		}
		status, err := models.ParseStatus(strings.TrimSpace(*r.Status))
		if err != nil {
			return 0, dErrors.Validation(map[string]string{"status": "must be verified or rejected"})
		}
		r.parsedStatus = status
		return patchModeration, nil
	case lifecycle:
		return patchLifecycle, nil
	case contact:
		return patchContact, nil
	default:
		return 0, dErrors.New(dErrors.CodeValidation, "nothing to update")
	}
}

// ParsedStatus returns the validated moderation target.
func (r *PatchSubmissionRequest) ParsedStatus() models.Status {
	return r.parsedStatus
}

// BatchTransitionRequest is the body of POST /admin/submissions/batch.
type BatchTransitionRequest struct {
	IDs           []string `json:"ids"`
	Status        string   `json:"status"`
	ReviewerNotes *string  `json:"reviewerNotes"`

	// Parsed values (populated by Validate)
	parsedIDs    []id.SubmissionID
	parsedStatus models.Status
}

func (r *BatchTransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	// Size validation (fail fast)
	if len(r.IDs) > maxBatchIDs {
		return dErrors.Validation(map[string]string{"ids": fmt.Sprintf("must contain at most %d ids", maxBatchIDs)})
	}

	fields := map[string]string{}
	status, err := models.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		fields["status"] = "must be verified or rejected"
	}
	r.parsedStatus = status

	r.parsedIDs = make([]id.SubmissionID, 0, len(r.IDs))
	for i, raw := range r.IDs {
		subID, err := id.ParseSubmissionID(raw)
		if err != nil {
			fields["ids["+strconv.Itoa(i)+"]"] = "must be a valid submission id"
			continue
		}
		r.parsedIDs = append(r.parsedIDs, subID)
	}
	if len(fields) > 0 {
		return dErrors.Validation(fields)
	}
	return nil
}

func (r *BatchTransitionRequest) ParsedIDs() []id.SubmissionID { return r.parsedIDs }

func (r *BatchTransitionRequest) ParsedStatus() models.Status { return r.parsedStatus }

// parseListFilters reads the query string of GET /admin/submissions.
func parseListFilters(values url.Values) (query.Filters, error) {
	fields := map[string]string{}
	f := query.Filters{
		Status: models.Status(strings.TrimSpace(values.Get("status"))),
		Search: strings.TrimSpace(values.Get("search")),
		Kind:   models.Kind(strings.TrimSpace(values.Get("kind"))),
		Sort:   strings.TrimSpace(values.Get("sort")),
		Order:  strings.TrimSpace(values.Get("order")),
	}

	if raw := values.Get("event_id"); raw != "" {
		eventID, err := id.ParseEventID(raw)
		if err != nil {
			fields["event_id"] = "must be a valid event id"
		} else {
			f.EventID = &eventID
		}
	}
	if raw := values.Get("include_deleted"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fields["include_deleted"] = "must be true or false"
		}
		f.IncludeDeleted = v
	}
	f.Page = intParam(values, "page", fields)
	f.Limit = intParam(values, "limit", fields)

	if len(fields) > 0 {
		return query.Filters{}, dErrors.Validation(fields)
	}
	return f, nil
}

func intParam(values url.Values, name string, fields map[string]string) int {
	raw := values.Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		fields[name] = "must be a non-negative integer"
		return 0
	}
	return v
}
