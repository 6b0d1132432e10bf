package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"podium/internal/registration/idempotency"
	"podium/internal/registration/metrics"
	"podium/internal/registration/models"
	"podium/internal/registration/query"
	"podium/internal/registration/roster"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
	"podium/pkg/platform/sentinel"
	"podium/pkg/requestcontext"
)

// Store is the persistence surface shared by the registration services. Both
// store.Memory and store.Postgres satisfy it. Calls made inside RunInTx
// participate in the transaction carried by ctx.
type Store interface {
	CreateEvent(ctx context.Context, e *models.ParentEvent) error
	FindEvent(ctx context.Context, eventID id.EventID) (*models.ParentEvent, error)
	LockEvent(ctx context.Context, eventID id.EventID) (*models.ParentEvent, error)
	ListEvents(ctx context.Context, includeDeleted bool) ([]*models.ParentEvent, error)
	UpdateEvent(ctx context.Context, eventID id.EventID, patch models.EventPatch, now time.Time) (*models.ParentEvent, error)
	SetEventDeleted(ctx context.Context, eventID id.EventID, deleted bool, now time.Time) error
	EraseEvent(ctx context.Context, eventID id.EventID) error

	CountActive(ctx context.Context, eventID id.EventID) (int, error)
	InsertSubmission(ctx context.Context, s *models.Submission) error
	InsertMembers(ctx context.Context, members []models.TeamMember) error
	FindSubmission(ctx context.Context, subID id.SubmissionID) (*models.Submission, error)
	Transition(ctx context.Context, subID id.SubmissionID, target models.Status, notes *string, reviewer *id.AdminID, now time.Time) (*models.Submission, error)
	AppendStatusChange(ctx context.Context, c models.StatusChange) error
	History(ctx context.Context, subID id.SubmissionID) ([]models.StatusChange, error)
	PatchSubmission(ctx context.Context, subID id.SubmissionID, patch models.SubmissionPatch, now time.Time) (*models.Submission, error)
	SetSubmissionDeleted(ctx context.Context, subID id.SubmissionID, deleted bool, now time.Time) error
	EraseSubmission(ctx context.Context, subID id.SubmissionID) error
	ListSubmissions(ctx context.Context, f query.Filters) ([]*models.Submission, int, error)
}

// Notifier receives transition events after the transition commits.
type Notifier interface {
	Notify(ctx context.Context, event models.TransitionEvent) error
}

// IdempotencyStore remembers which submission a client key produced.
// Reserve returns (existing, false, nil) when the key already completed and
// (zero, false, sentinel.ErrConflict) when another request holds it.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (id.SubmissionID, bool, error)
	Complete(ctx context.Context, key string, subID id.SubmissionID, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

const (
	DefaultBatchMax         = 100
	DefaultBatchParallelism = 4
	DefaultIdempotencyTTL   = 24 * time.Hour

	tracerName = "podium/registration"
)

// DefaultIdempotencyPendingTTL bounds how long an unfinished admission holds
// its key. A request that dies mid-admission blocks retries only this long.
const DefaultIdempotencyPendingTTL = 30 * time.Second

// deps is embedded by every service so they share one option set.
type deps struct {
	store       Store
	tx          StoreTx
	roster      *roster.Manager
	logger      *slog.Logger
	metrics     *metrics.Metrics
	notifier    Notifier
	idempotency IdempotencyStore
	idemTTL     time.Duration
	pendingTTL  time.Duration
	tracer      trace.Tracer
	batchMax    int
	parallelism int
	listDefault int
	listMax     int
}

type Option func(*deps)

func WithLogger(logger *slog.Logger) Option {
	return func(d *deps) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *deps) {
		d.metrics = m
	}
}

// WithStoreTx replaces the in-memory transaction with a SQL one.
func WithStoreTx(tx StoreTx) Option {
	return func(d *deps) {
		d.tx = tx
	}
}

func WithRoster(m *roster.Manager) Option {
	return func(d *deps) {
		d.roster = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(d *deps) {
		d.notifier = n
	}
}

func WithIdempotency(store IdempotencyStore, ttl time.Duration) Option {
	return func(d *deps) {
		d.idempotency = store
		if ttl > 0 {
			d.idemTTL = ttl
		}
	}
}

// WithIdempotencyPendingTTL sets how long a reserved key stays "in progress"
// before another request may claim it.
func WithIdempotencyPendingTTL(ttl time.Duration) Option {
	return func(d *deps) {
		if ttl > 0 {
			d.pendingTTL = ttl
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(d *deps) {
		d.tracer = tracer
	}
}

// WithBatchLimits bounds batch size and the number of items processed at once.
func WithBatchLimits(maxItems, parallelism int) Option {
	return func(d *deps) {
		if maxItems > 0 {
			d.batchMax = maxItems
		}
		if parallelism > 0 {
			d.parallelism = parallelism
		}
	}
}

// WithListLimits sets the default and maximum admin list page sizes.
func WithListLimits(defaultLimit, maxLimit int) Option {
	return func(d *deps) {
		d.listDefault = defaultLimit
		d.listMax = maxLimit
	}
}

func newDeps(store Store, opts ...Option) deps {
	d := deps{
		store:       store,
		idemTTL:     DefaultIdempotencyTTL,
		pendingTTL:  DefaultIdempotencyPendingTTL,
		batchMax:    DefaultBatchMax,
		parallelism: DefaultBatchParallelism,
		listDefault: query.DefaultLimit,
		listMax:     query.MaxLimit,
	}
	for _, opt := range opts {
		opt(&d)
	}
	if d.tx == nil {
		d.tx = NewInMemoryTx(DefaultTxTimeout)
	}
	if d.idempotency == nil {
		d.idempotency = idempotency.NewMemory()
	}
	if d.roster == nil {
		d.roster = roster.New(roster.DefaultMaxMembers)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d
}

// Services groups the registration services over one store and one StoreTx,
// so admissions, restores and resizes of an event serialise on the same lock.
type Services struct {
	Gateway *Gateway
	Engine  *Engine
	Admin   *Admin
}

func New(store Store, opts ...Option) *Services {
	d := newDeps(store, opts...)
	return &Services{
		Gateway: &Gateway{deps: d},
		Engine:  &Engine{deps: d},
		Admin:   &Admin{deps: d},
	}
}

// inEventTx runs fn in a transaction that serialises with every other write
// against the same parent event.
func (d *deps) inEventTx(ctx context.Context, eventID id.EventID, fn func(ctx context.Context) error) error {
	return d.tx.RunInTx(WithLockKey(ctx, eventID.String()), fn)
}

func (d *deps) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if adminID := requestcontext.AdminID(ctx); !adminID.IsNil() {
		attributes = append(attributes, "admin_id", adminID.String())
	}
	args := append(attributes, "event", event, "log_type", "audit")
	d.logger.InfoContext(ctx, event, args...)
}

func (d *deps) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span. Client errors are not marked as span errors.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("error.code", string(dErrors.CodeOf(err))))
		}
	}
	span.End()
}

func reviewer(ctx context.Context) *id.AdminID {
	adminID := requestcontext.AdminID(ctx)
	if adminID.IsNil() {
		return nil
	}
	return &adminID
}

// translate maps store sentinels onto domain errors. Domain errors pass
// through so model checks raised inside a transaction reach the caller intact.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, what+" was modified concurrently")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, what+" already exists")
	case errors.Is(err, sentinel.ErrCapacity):
		return dErrors.New(dErrors.CodeCapacityExceeded, "event is full")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+what)
}
