package models

import (
	"time"

	dErrors "podium/pkg/domain-errors"
)

// Lifecycle is the deletion state of an event or submission.
//
//	active --softDelete--> tombstoned --permanentDelete--> erased
//	   ^                        |
//	   +--------restore---------+
//
// Erased rows no longer exist; the value is only observed in reports.
type Lifecycle string

const (
	LifecycleActive     Lifecycle = "active"
	LifecycleTombstoned Lifecycle = "tombstoned"
	LifecycleErased     Lifecycle = "erased"
)

// Tombstone is the shared deletion state embedded in deletable entities.
type Tombstone struct {
	IsDeleted bool       `json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func (t Tombstone) Lifecycle() Lifecycle {
	if t.IsDeleted {
		return LifecycleTombstoned
	}
	return LifecycleActive
}

func (t Tombstone) CanTombstone() error {
	if t.IsDeleted {
		return dErrors.New(dErrors.CodeConflict, "already deleted")
	}
	return nil
}

func (t Tombstone) CanRestore() error {
	if !t.IsDeleted {
		return dErrors.New(dErrors.CodeConflict, "not deleted")
	}
	return nil
}

// CanErase allows permanent deletion only from the tombstoned state and only
// with explicit confirmation.
func (t Tombstone) CanErase(confirm bool) error {
	if !t.IsDeleted {
		return dErrors.New(dErrors.CodeConflict, "permanent delete requires a prior soft delete")
	}
	if !confirm {
		return dErrors.New(dErrors.CodeValidation, "permanent delete requires confirmation").
			WithField("permanent", "must be true to erase")
	}
	return nil
}

func (t *Tombstone) ApplyTombstone(now time.Time) {
	t.IsDeleted = true
	t.DeletedAt = &now
}

func (t *Tombstone) ApplyRestore() {
	t.IsDeleted = false
	t.DeletedAt = nil
}
