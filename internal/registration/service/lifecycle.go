package service

import (
	"context"

	"podium/internal/registration/models"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
	"podium/pkg/requestcontext"
)

const (
	entityEvent      = "event"
	entitySubmission = "submission"

	actionTombstone = "tombstone"
	actionRestore   = "restore"
	actionErase     = "erase"
)

// SoftDeleteEvent tombstones an event. Its submissions are left untouched
// but drop out of default listings while the parent is tombstoned.
func (a *Admin) SoftDeleteEvent(ctx context.Context, eventID id.EventID) error {
	now := requestcontext.Now(ctx)
	err := a.inEventTx(ctx, eventID, func(ctx context.Context) error {
		event, err := a.store.LockEvent(ctx, eventID)
		if err != nil {
			return translate(err, "event")
		}
		if err := event.CanTombstone(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConflict, "event is already deleted")
		}
		return translate(a.store.SetEventDeleted(ctx, eventID, true, now), "event")
	})
	if err != nil {
		return err
	}
	a.auditLifecycle(ctx, entityEvent, actionTombstone, eventID.String())
	return nil
}

func (a *Admin) RestoreEvent(ctx context.Context, eventID id.EventID) error {
	now := requestcontext.Now(ctx)
	err := a.inEventTx(ctx, eventID, func(ctx context.Context) error {
		event, err := a.store.LockEvent(ctx, eventID)
		if err != nil {
			return translate(err, "event")
		}
		if err := event.CanRestore(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConflict, "event is not deleted")
		}
		return translate(a.store.SetEventDeleted(ctx, eventID, false, now), "event")
	})
	if err != nil {
		return err
	}
	a.auditLifecycle(ctx, entityEvent, actionRestore, eventID.String())
	return nil
}

// PermanentDeleteEvent erases a tombstoned event together with every
// submission, member and history row under it. confirm must be true.
func (a *Admin) PermanentDeleteEvent(ctx context.Context, eventID id.EventID, confirm bool) error {
	err := a.inEventTx(ctx, eventID, func(ctx context.Context) error {
		event, err := a.store.LockEvent(ctx, eventID)
		if err != nil {
			return translate(err, "event")
		}
		if err := event.CanErase(confirm); err != nil {
			return err
		}
		return translate(a.store.EraseEvent(ctx, eventID), "event")
	})
	if err != nil {
		return err
	}
	a.auditLifecycle(ctx, entityEvent, actionErase, eventID.String())
	return nil
}

func (a *Admin) SoftDeleteSubmission(ctx context.Context, subID id.SubmissionID) error {
	return a.submissionLifecycle(ctx, subID, actionTombstone, func(ctx context.Context, _ *models.ParentEvent, sub *models.Submission) error {
		if err := sub.CanTombstone(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConflict, "submission is already deleted")
		}
		return translate(a.store.SetSubmissionDeleted(ctx, subID, true, requestcontext.Now(ctx)), "submission")
	})
}

// RestoreSubmission brings a tombstoned submission back. A non-rejected
// submission takes a slot again, so a full parent refuses the restore.
func (a *Admin) RestoreSubmission(ctx context.Context, subID id.SubmissionID) error {
	return a.submissionLifecycle(ctx, subID, actionRestore, func(ctx context.Context, event *models.ParentEvent, sub *models.Submission) error {
		if err := sub.CanRestore(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConflict, "submission is not deleted")
		}
		if event.IsDeleted {
			return dErrors.New(dErrors.CodeConflict, "parent event is deleted; restore the event first")
		}
		if sub.Status.CountsTowardCapacity() {
			active, err := a.store.CountActive(ctx, event.ID)
			if err != nil {
				return translate(err, "submissions")
			}
			if !event.HasCapacityFor(active) {
				return dErrors.Newf(dErrors.CodeCapacityExceeded, "event is full (%d of %d)", active, event.MaxParticipants)
			}
		}
		return translate(a.store.SetSubmissionDeleted(ctx, subID, false, requestcontext.Now(ctx)), "submission")
	})
}

func (a *Admin) PermanentDeleteSubmission(ctx context.Context, subID id.SubmissionID, confirm bool) error {
	return a.submissionLifecycle(ctx, subID, actionErase, func(ctx context.Context, _ *models.ParentEvent, sub *models.Submission) error {
		if err := sub.CanErase(confirm); err != nil {
			return err
		}
		return translate(a.store.EraseSubmission(ctx, subID), "submission")
	})
}

// submissionLifecycle runs fn with the parent locked and the submission
// re-read inside the transaction.
func (a *Admin) submissionLifecycle(ctx context.Context, subID id.SubmissionID, action string,
	fn func(ctx context.Context, event *models.ParentEvent, sub *models.Submission) error) error {
	current, err := a.store.FindSubmission(ctx, subID)
	if err != nil {
		return translate(err, "submission")
	}

	err = a.inEventTx(ctx, current.EventID, func(ctx context.Context) error {
		event, err := a.store.LockEvent(ctx, current.EventID)
		if err != nil {
			return translate(err, "event")
		}
		sub, err := a.store.FindSubmission(ctx, subID)
		if err != nil {
			return translate(err, "submission")
		}
		return fn(ctx, event, sub)
	})
	if err != nil {
		return err
	}
	a.auditLifecycle(ctx, entitySubmission, action, subID.String())
	return nil
}

func (a *Admin) auditLifecycle(ctx context.Context, entity, action, entityID string) {
	a.metrics.IncLifecycle(entity, action)
	a.logAudit(ctx, entity+"_"+action,
		"entity", entity,
		"entity_id", entityID,
		"action", action)
}
