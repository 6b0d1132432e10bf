package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"podium/internal/registration/service"
	dErrors "podium/pkg/domain-errors"
	txcontext "podium/pkg/platform/tx"
)

// submissionPostgresTx runs service work in one SQL transaction carried in
// the context. Stores pick it up through txcontext.QuerierFrom.
type submissionPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

var _ service.StoreTx = (*submissionPostgresTx)(nil)

func newSubmissionPostgresTx(db *sql.DB, timeout time.Duration) *submissionPostgresTx {
	return &submissionPostgresTx{db: db, timeout: timeout}
}

func (t *submissionPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = service.DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return translateTxErr(err, "begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return translateTxErr(err, "commit transaction")
	}
	return nil
}

func translateTxErr(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
