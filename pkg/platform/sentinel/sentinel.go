package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// so services can translate them into domain errors:
//   - ErrNotFound: row does not exist (or was permanently erased)
//   - ErrConflict: a guarded write lost its race (expected status or lifecycle no longer holds)
//   - ErrAlreadyUsed: a unique key (idempotency key, roster identifier) is taken
//   - ErrInvalidState: row exists but is tombstoned or otherwise ineligible
//   - ErrUnavailable: backing service temporarily unavailable
//   - ErrCapacity: parent event has no free slot
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrCapacity     = errors.New("capacity exceeded")
)
