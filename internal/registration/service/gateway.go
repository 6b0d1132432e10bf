package service

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"

	"podium/internal/registration/models"
	"podium/internal/registration/query"
	"podium/internal/registration/roster"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
	"podium/pkg/platform/sentinel"
	"podium/pkg/requestcontext"
)

const (
	maxTitleLen       = 200
	maxInstitutionLen = 200
	maxContactLen     = 120
	maxPhoneLen       = 32
)

var fieldValidator = validator.New()

// SubmitCommand is a public registration request for one parent event.
type SubmitCommand struct {
	EventID        id.EventID
	Kind           models.Kind
	Title          string
	Institution    string
	Contact        models.Contact
	Members        []roster.MemberInput
	IdempotencyKey string
}

type SubmitResult struct {
	Submission *models.Submission
	// Replayed is true when the idempotency key matched an earlier admission.
	Replayed bool
}

// Window is the public view of a parent event's admission window.
type Window struct {
	Event          *models.ParentEvent
	Active         int
	RemainingSlots int
	Open           bool
	ClosedReason   string
}

// Gateway admits public submissions against a parent event's admission
// window and capacity ceiling.
type Gateway struct {
	deps
}

func NewGateway(store Store, opts ...Option) *Gateway {
	return &Gateway{deps: newDeps(store, opts...)}
}

// Submit admits a new pending submission with its roster.
//
// The parent row is locked, the window and capacity are checked, and the
// submission plus its members are inserted inside one transaction, so two
// concurrent requests cannot both take the last slot.
func (g *Gateway) Submit(ctx context.Context, cmd SubmitCommand) (result *SubmitResult, err error) {
	start := time.Now()
	ctx, span := g.startSpan(ctx, "registration.Submit",
		attribute.String("event.id", cmd.EventID.String()),
		attribute.String("submission.kind", string(cmd.Kind)))
	defer func() { endSpan(span, err) }()
	defer g.metrics.ObserveSubmit(start)

	if cmd.Kind == "" {
		cmd.Kind = models.KindRegistration
	}
	if err := g.validateSubmit(cmd); err != nil {
		g.metrics.IncRefused("validation")
		return nil, err
	}

	idemKey := ""
	if cmd.IdempotencyKey != "" {
		idemKey = cmd.EventID.String() + ":" + cmd.IdempotencyKey
		existing, reserved, err := g.idempotency.Reserve(ctx, idemKey, g.pendingTTL)
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "a request with this idempotency key is in progress")
		case err != nil:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve idempotency key")
		case !reserved:
			sub, err := g.store.FindSubmission(ctx, existing)
			if err != nil {
				return nil, translate(err, "submission")
			}
			g.metrics.IncReplayed()
			return &SubmitResult{Submission: sub, Replayed: true}, nil
		}
	}

	now := requestcontext.Now(ctx)
	sub := models.NewSubmission(id.NewSubmissionID(), cmd.EventID, cmd.Kind, cmd.Title, cmd.Institution, cmd.Contact, now)

	// The key outcome is recorded even if the client goes away once the
	// admission has been decided.
	keyCtx := context.WithoutCancel(ctx)

	txErr := g.inEventTx(ctx, cmd.EventID, func(ctx context.Context) error {
		event, err := g.store.LockEvent(ctx, cmd.EventID)
		if err != nil {
			return translate(err, "event")
		}
		if err := event.AdmissionError(now); err != nil {
			return err
		}
		active, err := g.store.CountActive(ctx, cmd.EventID)
		if err != nil {
			return translate(err, "submissions")
		}
		if !event.HasCapacityFor(active) {
			return dErrors.Newf(dErrors.CodeCapacityExceeded, "event is full (%d of %d)", active, event.MaxParticipants)
		}
		if err := g.store.InsertSubmission(ctx, sub); err != nil {
			return translate(err, "submission")
		}
		r, err := g.roster.Attach(ctx, g.store, cmd.Kind, sub.ID, cmd.Members)
		if err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeValidation, "roster rejected").
					WithField("members", "identifiers must be unique")
			}
			return translate(err, "roster")
		}
		sub.Members = r.Members
		return nil
	})

	if txErr != nil {
		if idemKey != "" {
			if relErr := g.idempotency.Release(keyCtx, idemKey); relErr != nil {
				g.logger.WarnContext(ctx, "failed to release idempotency key",
					"error", relErr, "request_id", requestcontext.RequestID(ctx))
			}
		}
		g.metrics.IncRefused(string(dErrors.CodeOf(txErr)))
		if dErrors.CodeOf(txErr) == dErrors.CodeInternal {
			g.logger.ErrorContext(ctx, "submission admission failed",
				"error", txErr, "event_id", cmd.EventID.String(), "request_id", requestcontext.RequestID(ctx))
		}
		return nil, txErr
	}

	if idemKey != "" {
		if err := g.idempotency.Complete(keyCtx, idemKey, sub.ID, g.idemTTL); err != nil {
			g.logger.WarnContext(ctx, "failed to record idempotency key",
				"error", err, "submission_id", sub.ID.String())
		}
	}

	g.metrics.IncAdmitted(string(cmd.Kind))
	g.logAudit(ctx, "submission_admitted",
		"submission_id", sub.ID.String(),
		"event_id", cmd.EventID.String(),
		"kind", string(cmd.Kind),
		"roster_size", len(sub.Members))
	span.SetAttributes(attribute.String("submission.id", sub.ID.String()))

	return &SubmitResult{Submission: sub}, nil
}

func (g *Gateway) validateSubmit(cmd SubmitCommand) error {
	fields := map[string]string{}

	if cmd.EventID.IsNil() {
		fields["eventId"] = "is required"
	}
	if !cmd.Kind.IsValid() {
		fields["kind"] = "must be registration or achievement"
	}
	if len(strings.TrimSpace(cmd.Title)) > maxTitleLen {
		fields["title"] = "is too long"
	}
	if len(strings.TrimSpace(cmd.Institution)) > maxInstitutionLen {
		fields["institution"] = "is too long"
	}

	name := strings.TrimSpace(cmd.Contact.Name)
	switch {
	case name == "":
		fields["contact.name"] = "is required"
	case len(name) > maxContactLen:
		fields["contact.name"] = "is too long"
	}
	email := strings.TrimSpace(cmd.Contact.Email)
	switch {
	case email == "":
		fields["contact.email"] = "is required"
	case fieldValidator.Var(email, "email,max=254") != nil:
		fields["contact.email"] = "must be a valid email"
	}
	if len(strings.TrimSpace(cmd.Contact.Phone)) > maxPhoneLen {
		fields["contact.phone"] = "is too long"
	}

	if cmd.Kind.IsValid() {
		if err := g.roster.Validate(cmd.Kind, cmd.Members); err != nil {
			maps.Copy(fields, dErrors.FieldsOf(err))
		}
	}

	if len(fields) > 0 {
		return dErrors.Validation(fields)
	}
	return nil
}

// Window reports whether the event accepts submissions right now. Tombstoned
// events are not visible publicly.
func (g *Gateway) Window(ctx context.Context, eventID id.EventID) (*Window, error) {
	event, err := g.store.FindEvent(ctx, eventID)
	if err != nil {
		return nil, translate(err, "event")
	}
	if event.IsDeleted {
		return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
	}
	active, err := g.store.CountActive(ctx, eventID)
	if err != nil {
		return nil, translate(err, "submissions")
	}

	w := &Window{
		Event:          event,
		Active:         active,
		RemainingSlots: event.RemainingSlots(active),
		Open:           true,
	}
	if err := event.AdmissionError(requestcontext.Now(ctx)); err != nil {
		w.Open = false
		if de, ok := dErrors.As(err); ok {
			w.ClosedReason = de.Message
		}
	} else if !event.HasCapacityFor(active) {
		w.Open = false
		w.ClosedReason = "event is full"
	}
	return w, nil
}

// Participants lists verified, non-deleted submissions of a public event.
func (g *Gateway) Participants(ctx context.Context, eventID id.EventID, page, limit int) ([]*models.Submission, query.Page, error) {
	event, err := g.store.FindEvent(ctx, eventID)
	if err != nil {
		return nil, query.Page{}, translate(err, "event")
	}
	if event.IsDeleted {
		return nil, query.Page{}, dErrors.New(dErrors.CodeNotFound, "event not found")
	}

	f, err := query.Filters{
		Status:  models.StatusVerified,
		EventID: &eventID,
		Page:    page,
		Limit:   limit,
		Sort:    "verifiedAt",
		Order:   "asc",
	}.Normalize(g.listDefault, g.listMax)
	if err != nil {
		return nil, query.Page{}, err
	}
	subs, total, err := g.store.ListSubmissions(ctx, f)
	if err != nil {
		return nil, query.Page{}, translate(err, "submissions")
	}
	return subs, query.NewPage(f, total), nil
}
