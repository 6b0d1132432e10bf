package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"podium/internal/registration/models"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
	"podium/pkg/platform/sentinel"
	pstrings "podium/pkg/platform/strings"
	"podium/pkg/requestcontext"
)

// BatchItem is the outcome for one id of a batch transition.
type BatchItem struct {
	ID     id.SubmissionID
	OK     bool
	Status models.Status
	Error  error
}

type BatchReport struct {
	Target    models.Status
	Items     []BatchItem
	Succeeded int
	Failed    int
}

// Engine moves pending submissions to a terminal moderation outcome.
type Engine struct {
	deps
}

func NewEngine(store Store, opts ...Option) *Engine {
	return &Engine{deps: newDeps(store, opts...)}
}

// Transition applies target to a pending submission. The update is guarded on
// the pending status, so of two concurrent decisions exactly one wins and the
// other gets a conflict naming the status it lost to.
func (e *Engine) Transition(ctx context.Context, subID id.SubmissionID, target models.Status, notes *string) (sub *models.Submission, err error) {
	start := time.Now()
	ctx, span := e.startSpan(ctx, "registration.Transition",
		attribute.String("submission.id", subID.String()),
		attribute.String("submission.target", string(target)))
	defer func() { endSpan(span, err) }()
	defer e.metrics.ObserveTransition(start)

	if !target.IsModerationTarget() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid moderation target").
			WithField("status", "must be verified or rejected")
	}

	now := requestcontext.Now(ctx)
	actor := reviewer(ctx)
	var change models.StatusChange

	txErr := e.tx.RunInTx(WithLockKey(ctx, subID.String()), func(ctx context.Context) error {
		updated, err := e.store.Transition(ctx, subID, target, notes, actor, now)
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return e.conflictFor(ctx, subID, target)
			}
			return translate(err, "submission")
		}
		change = models.NewStatusChange(updated, models.StatusPending, now)
		if err := e.store.AppendStatusChange(ctx, change); err != nil {
			return translate(err, "status history")
		}
		sub = updated
		return nil
	})
	if txErr != nil {
		if dErrors.HasCode(txErr, dErrors.CodeConflict) {
			e.metrics.IncTransitionConflict()
		}
		if dErrors.CodeOf(txErr) == dErrors.CodeInternal {
			e.logger.ErrorContext(ctx, "transition failed",
				"error", txErr, "submission_id", subID.String(), "request_id", requestcontext.RequestID(ctx))
		}
		return nil, txErr
	}

	e.metrics.IncTransition(string(target))
	e.logAudit(ctx, "submission_transitioned",
		"submission_id", subID.String(),
		"event_id", sub.EventID.String(),
		"from", string(models.StatusPending),
		"to", string(target))
	e.notify(ctx, change.Event(sub.EventID))

	return sub, nil
}

// conflictFor reads the row that beat us to explain the conflict.
func (e *Engine) conflictFor(ctx context.Context, subID id.SubmissionID, target models.Status) error {
	current, err := e.store.FindSubmission(ctx, subID)
	if err != nil {
		return translate(err, "submission")
	}
	if err := current.CanTransition(target); err != nil {
		return err
	}
	return dErrors.New(dErrors.CodeConflict, "submission was modified concurrently")
}

func (e *Engine) notify(ctx context.Context, event models.TransitionEvent) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event); err != nil {
		e.metrics.IncNotifyFailure()
		e.logger.WarnContext(ctx, "transition notification failed",
			"error", err,
			"submission_id", event.SubmissionID.String(),
			"request_id", requestcontext.RequestID(ctx))
	}
}

// BatchTransition applies target to each id independently. One item failing
// does not affect the others; the report keeps the order of the input after
// duplicates are removed.
func (e *Engine) BatchTransition(ctx context.Context, ids []id.SubmissionID, target models.Status, notes *string) (*BatchReport, error) {
	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "no submissions given").
			WithField("ids", "must not be empty")
	}
	if !target.IsModerationTarget() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid moderation target").
			WithField("status", "must be verified or rejected")
	}
	ids = pstrings.Dedupe(ids)
	if len(ids) > e.batchMax {
		return nil, dErrors.New(dErrors.CodeValidation, "batch too large").
			WithField("ids", "must contain at most "+strconv.Itoa(e.batchMax)+" ids")
	}
	e.metrics.ObserveBatchSize(len(ids))

	items := make([]BatchItem, len(ids))
	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, subID := range ids {
		g.Go(func() error {
			items[i] = e.batchItem(ctx, subID, target, notes)
			return nil
		})
	}
	_ = g.Wait()

	report := &BatchReport{Target: target, Items: items}
	for _, it := range items {
		if it.OK {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	e.logAudit(ctx, "submissions_batch_transitioned",
		"to", string(target),
		"requested", len(ids),
		"succeeded", report.Succeeded,
		"failed", report.Failed)
	return report, nil
}

func (e *Engine) batchItem(ctx context.Context, subID id.SubmissionID, target models.Status, notes *string) BatchItem {
	if err := ctx.Err(); err != nil {
		return BatchItem{ID: subID, Error: dErrors.Wrap(err, dErrors.CodeTimeout, "batch aborted")}
	}
	sub, err := e.Transition(ctx, subID, target, notes)
	if err != nil {
		return BatchItem{ID: subID, Error: err}
	}
	return BatchItem{ID: subID, OK: true, Status: sub.Status}
}

// History returns the moderation log of a submission, oldest first.
func (e *Engine) History(ctx context.Context, subID id.SubmissionID) ([]models.StatusChange, error) {
	if _, err := e.store.FindSubmission(ctx, subID); err != nil {
		return nil, translate(err, "submission")
	}
	changes, err := e.store.History(ctx, subID)
	if err != nil {
		return nil, translate(err, "status history")
	}
	return changes, nil
}
