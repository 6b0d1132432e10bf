package service

import (
	"context"
	"strings"
	"time"

	"podium/internal/registration/models"
	"podium/internal/registration/query"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
	"podium/pkg/requestcontext"
)

// CreateEventCommand describes a new parent event.
type CreateEventCommand struct {
	Name             string
	Kind             models.EventKind
	MaxParticipants  int
	Deadline         *time.Time
	RegistrationOpen bool
}

// EventDetail is a parent event with its current occupancy.
type EventDetail struct {
	Event          *models.ParentEvent
	Active         int
	RemainingSlots int
}

// SubmissionDetail is the full admin view of one submission.
type SubmissionDetail struct {
	Submission *models.Submission
	Event      *models.ParentEvent
	History    []models.StatusChange
}

// Admin serves the moderator-facing reads and writes that are not part of
// the moderation decision itself: event management, listing, contact edits
// and the tombstone lifecycle.
type Admin struct {
	deps
}

func NewAdmin(store Store, opts ...Option) *Admin {
	return &Admin{deps: newDeps(store, opts...)}
}

func (a *Admin) CreateEvent(ctx context.Context, cmd CreateEventCommand) (*models.ParentEvent, error) {
	if cmd.Kind == "" {
		cmd.Kind = models.EventKindCompetition
	}
	event, err := models.NewParentEvent(id.NewEventID(), cmd.Name, cmd.Kind, cmd.MaxParticipants,
		cmd.Deadline, cmd.RegistrationOpen, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := a.store.CreateEvent(ctx, event); err != nil {
		return nil, translate(err, "event")
	}
	a.logAudit(ctx, "event_created",
		"event_id", event.ID.String(),
		"max_participants", event.MaxParticipants)
	return event, nil
}

// GetEvent returns the event whether or not it is tombstoned.
func (a *Admin) GetEvent(ctx context.Context, eventID id.EventID) (*EventDetail, error) {
	event, err := a.store.FindEvent(ctx, eventID)
	if err != nil {
		return nil, translate(err, "event")
	}
	active, err := a.store.CountActive(ctx, eventID)
	if err != nil {
		return nil, translate(err, "submissions")
	}
	return &EventDetail{Event: event, Active: active, RemainingSlots: event.RemainingSlots(active)}, nil
}

func (a *Admin) ListEvents(ctx context.Context, includeDeleted bool) ([]*models.ParentEvent, error) {
	events, err := a.store.ListEvents(ctx, includeDeleted)
	if err != nil {
		return nil, translate(err, "events")
	}
	return events, nil
}

// UpdateEvent applies patch under the event lock. Lowering the ceiling below
// the number of active submissions is refused.
func (a *Admin) UpdateEvent(ctx context.Context, eventID id.EventID, patch models.EventPatch) (*models.ParentEvent, error) {
	if patch.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "nothing to update")
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var updated *models.ParentEvent
	err := a.inEventTx(ctx, eventID, func(ctx context.Context) error {
		event, err := a.store.LockEvent(ctx, eventID)
		if err != nil {
			return translate(err, "event")
		}
		if event.IsDeleted {
			return dErrors.New(dErrors.CodeConflict, "event is deleted")
		}
		if patch.MaxParticipants != nil {
			active, err := a.store.CountActive(ctx, eventID)
			if err != nil {
				return translate(err, "submissions")
			}
			if err := event.CanResizeTo(*patch.MaxParticipants, active); err != nil {
				return err
			}
		}
		updated, err = a.store.UpdateEvent(ctx, eventID, patch, now)
		return translate(err, "event")
	})
	if err != nil {
		return nil, err
	}
	a.logAudit(ctx, "event_updated", "event_id", eventID.String())
	return updated, nil
}

// GetSubmission returns a submission with roster, parent and history,
// tombstoned or not.
func (a *Admin) GetSubmission(ctx context.Context, subID id.SubmissionID) (*SubmissionDetail, error) {
	sub, err := a.store.FindSubmission(ctx, subID)
	if err != nil {
		return nil, translate(err, "submission")
	}
	event, err := a.store.FindEvent(ctx, sub.EventID)
	if err != nil {
		return nil, translate(err, "event")
	}
	history, err := a.store.History(ctx, subID)
	if err != nil {
		return nil, translate(err, "status history")
	}
	return &SubmissionDetail{Submission: sub, Event: event, History: history}, nil
}

// ListSubmissions returns one page of submissions matching f.
func (a *Admin) ListSubmissions(ctx context.Context, f query.Filters) ([]*models.Submission, query.Page, error) {
	f, err := f.Normalize(a.listDefault, a.listMax)
	if err != nil {
		return nil, query.Page{}, err
	}
	subs, total, err := a.store.ListSubmissions(ctx, f)
	if err != nil {
		return nil, query.Page{}, translate(err, "submissions")
	}
	return subs, query.NewPage(f, total), nil
}

// PatchSubmission edits contact and descriptive fields of a live submission.
func (a *Admin) PatchSubmission(ctx context.Context, subID id.SubmissionID, patch models.SubmissionPatch) (*models.Submission, error) {
	if patch.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "nothing to update")
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.ContactEmail != nil {
		if err := fieldValidator.Var(strings.TrimSpace(*patch.ContactEmail), "email"); err != nil {
			return nil, dErrors.Validation(map[string]string{"contactEmail": "must be a valid email"})
		}
	}

	updated, err := a.store.PatchSubmission(ctx, subID, patch, requestcontext.Now(ctx))
	if err != nil {
		dErr := translate(err, "submission")
		if dErrors.HasCode(dErr, dErrors.CodeConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "submission is deleted")
		}
		return nil, dErr
	}
	a.logAudit(ctx, "submission_updated", "submission_id", subID.String())
	return updated, nil
}
