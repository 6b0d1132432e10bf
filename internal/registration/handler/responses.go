package handler

import (
	"time"

	"podium/internal/registration/models"
	"podium/internal/registration/query"
	"podium/internal/registration/service"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
)

// SubmitResponse is returned by POST /events/{eventID}/submissions.
type SubmitResponse struct {
	ID     id.SubmissionID `json:"id"`
	Status models.Status   `json:"status"`
}

// WindowResponse is the public admission window of one event.
type WindowResponse struct {
	ID               id.EventID       `json:"id"`
	Name             string           `json:"name"`
	Kind             models.EventKind `json:"kind"`
	MaxParticipants  int              `json:"maxParticipants"`
	Deadline         *time.Time       `json:"deadline,omitempty"`
	RegistrationOpen bool             `json:"registrationOpen"`
	Open             bool             `json:"open"`
	ClosedReason     string           `json:"closedReason,omitempty"`
	// RemainingSlots is omitted for unlimited events.
	RemainingSlots *int `json:"remainingSlots,omitempty"`
}

func toWindowResponse(w *service.Window) WindowResponse {
	resp := WindowResponse{
		ID:               w.Event.ID,
		Name:             w.Event.Name,
		Kind:             w.Event.Kind,
		MaxParticipants:  w.Event.MaxParticipants,
		Deadline:         w.Event.Deadline,
		RegistrationOpen: w.Event.RegistrationOpen,
		Open:             w.Open,
		ClosedReason:     w.ClosedReason,
	}
	if !w.Event.IsUnlimited() {
		remaining := w.RemainingSlots
		resp.RemainingSlots = &remaining
	}
	return resp
}

// ParticipantResponse is the public view of a verified submission. Contact
// details and member identifiers stay private.
type ParticipantResponse struct {
	ID          id.SubmissionID `json:"id"`
	Kind        models.Kind     `json:"kind"`
	Title       string          `json:"title"`
	Institution string          `json:"institution,omitempty"`
	Leader      string          `json:"leader,omitempty"`
	Members     []string        `json:"members,omitempty"`
	VerifiedAt  *time.Time      `json:"verifiedAt,omitempty"`
}

func toParticipantResponse(s *models.Submission) ParticipantResponse {
	resp := ParticipantResponse{
		ID:          s.ID,
		Kind:        s.Kind,
		Title:       s.Title,
		Institution: s.Institution,
		VerifiedAt:  s.VerifiedAt,
	}
	for _, m := range s.Members {
		if m.Role == models.RoleLeader {
			resp.Leader = m.Name
			continue
		}
		resp.Members = append(resp.Members, m.Name)
	}
	return resp
}

// ListResponse is the paginated list envelope.
type ListResponse[T any] struct {
	Data []T       `json:"data"`
	Meta query.Page `json:"meta"`
}

func newListResponse[S, T any](items []S, page query.Page, convert func(S) T) ListResponse[T] {
	data := make([]T, 0, len(items))
	for _, item := range items {
		data = append(data, convert(item))
	}
	return ListResponse[T]{Data: data, Meta: page}
}

// EventResponse is an admin event view with occupancy.
type EventResponse struct {
	*models.ParentEvent
	Active         *int `json:"active,omitempty"`
	RemainingSlots *int `json:"remainingSlots,omitempty"`
}

func toEventDetailResponse(d *service.EventDetail) EventResponse {
	resp := EventResponse{ParentEvent: d.Event, Active: &d.Active}
	if !d.Event.IsUnlimited() {
		remaining := d.RemainingSlots
		resp.RemainingSlots = &remaining
	}
	return resp
}

func toEventResponse(e *models.ParentEvent) EventResponse {
	return EventResponse{ParentEvent: e}
}

// SubmissionDetailResponse is the admin view of one submission.
type SubmissionDetailResponse struct {
	*models.Submission
	Event   *models.ParentEvent   `json:"event,omitempty"`
	History []models.StatusChange `json:"history"`
}

func toSubmissionDetailResponse(d *service.SubmissionDetail) SubmissionDetailResponse {
	history := d.History
	if history == nil {
		history = []models.StatusChange{}
	}
	return SubmissionDetailResponse{Submission: d.Submission, Event: d.Event, History: history}
}

// BatchItemResponse is one entry of a batch report.
type BatchItemResponse struct {
	ID     id.SubmissionID `json:"id"`
	OK     bool            `json:"ok"`
	Status models.Status   `json:"status,omitempty"`
	Error  *ItemError      `json:"error,omitempty"`
}

type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchResponse is returned by POST /admin/submissions/batch.
type BatchResponse struct {
	Target    models.Status       `json:"target"`
	Items     []BatchItemResponse `json:"items"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

func toBatchResponse(r *service.BatchReport) BatchResponse {
	resp := BatchResponse{
		Target:    r.Target,
		Items:     make([]BatchItemResponse, 0, len(r.Items)),
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
	}
	for _, item := range r.Items {
		out := BatchItemResponse{ID: item.ID, OK: item.OK, Status: item.Status}
		if item.Error != nil {
			out.Error = itemError(item.Error)
		}
		resp.Items = append(resp.Items, out)
	}
	return resp
}

// itemError keeps internal causes out of the report.
func itemError(err error) *ItemError {
	de, ok := dErrors.As(err)
	if !ok || de.Code == dErrors.CodeInternal {
		return &ItemError{Code: string(dErrors.CodeInternal), Message: "internal error"}
	}
	return &ItemError{Code: string(de.Code), Message: de.Message}
}
