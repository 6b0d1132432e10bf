package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"podium/internal/registration/idempotency"
	"podium/internal/registration/metrics"
	"podium/internal/registration/models"
	"podium/internal/registration/roster"
	"podium/internal/registration/service/mocks"
	"podium/internal/registration/store"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
	"podium/pkg/platform/sentinel"
)

// =============================================================================
// Gateway Test Suite
// =============================================================================
// Justification for unit tests: admission is the only write open to the
// public. Tests pin the admission window, the capacity ceiling under
// concurrency, roster validation surfacing per-field and idempotent replay.

type GatewaySuite struct {
	suite.Suite
	store *store.Memory
	svc   *Services
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.store = store.NewMemory()
	s.svc = New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithIdempotency(idempotency.NewMemory(), time.Hour),
	)
}

func (s *GatewaySuite) createEvent(cmd CreateEventCommand) *models.ParentEvent {
	e, err := s.svc.Admin.CreateEvent(adminCtx(), cmd)
	s.Require().NoError(err)
	return e
}

func (s *GatewaySuite) TestSubmitCreatesPendingSubmissionWithRoster() {
	event := s.createEvent(openEvent(0))

	res, err := s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "alpha"))
	s.Require().NoError(err)
	s.False(res.Replayed)

	sub := res.Submission
	s.Equal(models.StatusPending, sub.Status)
	s.Equal(fixedNow, sub.DateCreated)
	s.Nil(sub.VerifiedAt)
	s.Require().Len(sub.Members, 2)
	s.Equal(models.RoleLeader, sub.Members[0].Role)

	stored, err := s.store.FindSubmission(context.Background(), sub.ID)
	s.Require().NoError(err)
	s.Len(stored.Members, 2)
}

func (s *GatewaySuite) TestConcurrentSubmitsStopAtCapacity() {
	event := s.createEvent(openEvent(2))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, fmt.Sprintf("team-%d", i)))
		}()
	}
	wg.Wait()
	s.NoError(errs[0])
	s.NoError(errs[1])

	_, err := s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "late"))
	s.True(dErrors.HasCode(err, dErrors.CodeCapacityExceeded), "got %v", err)

	active, err := s.store.CountActive(context.Background(), event.ID)
	s.Require().NoError(err)
	s.Equal(2, active)
}

func (s *GatewaySuite) TestRejectedSubmissionsFreeCapacity() {
	event := s.createEvent(openEvent(1))
	res, err := s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "alpha"))
	s.Require().NoError(err)

	_, err = s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "beta"))
	s.True(dErrors.HasCode(err, dErrors.CodeCapacityExceeded))

	_, err = s.svc.Engine.Transition(adminCtx(), res.Submission.ID, models.StatusRejected, nil)
	s.Require().NoError(err)

	_, err = s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "beta"))
	s.NoError(err)
}

func (s *GatewaySuite) TestSubmitAfterDeadlineIsClosed() {
	cmd := openEvent(0)
	cmd.Deadline = ptr(fixedNow.Add(-time.Minute))
	event := s.createEvent(cmd)

	_, err := s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "alpha"))
	s.True(dErrors.HasCode(err, dErrors.CodeClosed), "got %v", err)

	active, err := s.store.CountActive(context.Background(), event.ID)
	s.Require().NoError(err)
	s.Zero(active, "no submission persisted")
}

func (s *GatewaySuite) TestAdmissionWindow() {
	s.Run("deadline equal to now is still open", func() {
		cmd := openEvent(0)
		cmd.Deadline = ptr(fixedNow)
		event := s.createEvent(cmd)
		_, err := s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "edge"))
		s.NoError(err)
	})

	s.Run("registration closed", func() {
		cmd := openEvent(0)
		cmd.RegistrationOpen = false
		event := s.createEvent(cmd)
		_, err := s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "alpha"))
		s.True(dErrors.HasCode(err, dErrors.CodeClosed))
	})

	s.Run("deleted parent is closed", func() {
		event := s.createEvent(openEvent(0))
		s.Require().NoError(s.svc.Admin.SoftDeleteEvent(adminCtx(), event.ID))
		_, err := s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "alpha"))
		s.True(dErrors.HasCode(err, dErrors.CodeClosed))
	})

	s.Run("unknown parent", func() {
		_, err := s.svc.Gateway.Submit(publicCtx(), submitFor(id.NewEventID(), "alpha"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *GatewaySuite) TestValidationReportsEveryField() {
	event := s.createEvent(openEvent(0))
	cmd := submitFor(event.ID, "alpha")
	cmd.Contact = models.Contact{Name: "", Email: "not-an-email"}
	cmd.Members = []roster.MemberInput{
		{Name: "Lead", Identifier: "lead-1", Role: models.RoleLeader},
		{Name: "", Identifier: "LEAD-1"},
	}

	_, err := s.svc.Gateway.Submit(publicCtx(), cmd)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
	fields := dErrors.FieldsOf(err)
	s.Contains(fields, "contact.name")
	s.Contains(fields, "contact.email")
	s.Contains(fields, "members[1].name")
	s.Equal("duplicates members[0]", fields["members[1].identifier"])
}

func (s *GatewaySuite) TestRosterLeaderRules() {
	event := s.createEvent(openEvent(0))

	noLeader := submitFor(event.ID, "alpha")
	noLeader.Members[0].Role = models.RoleMember
	_, err := s.svc.Gateway.Submit(publicCtx(), noLeader)
	s.Contains(dErrors.FieldsOf(err), "members")

	twoLeaders := submitFor(event.ID, "alpha")
	twoLeaders.Members[1].Role = models.RoleLeader
	_, err = s.svc.Gateway.Submit(publicCtx(), twoLeaders)
	s.Equal("only one leader is allowed", dErrors.FieldsOf(err)["members[1].role"])

	solo := submitFor(event.ID, "solo")
	solo.Kind = models.KindAchievement
	_, err = s.svc.Gateway.Submit(publicCtx(), solo)
	s.Contains(dErrors.FieldsOf(err), "members", "achievements are leader only")
}

func (s *GatewaySuite) TestIdempotentReplay() {
	event := s.createEvent(openEvent(1))
	cmd := submitFor(event.ID, "alpha")
	cmd.IdempotencyKey = "client-key-1"

	first, err := s.svc.Gateway.Submit(publicCtx(), cmd)
	s.Require().NoError(err)

	again, err := s.svc.Gateway.Submit(publicCtx(), cmd)
	s.Require().NoError(err, "replay does not hit the full event")
	s.True(again.Replayed)
	s.Equal(first.Submission.ID, again.Submission.ID)
}

func (s *GatewaySuite) TestFailedAdmissionReleasesKey() {
	cmd := openEvent(0)
	cmd.RegistrationOpen = false
	event := s.createEvent(cmd)

	sub := submitFor(event.ID, "alpha")
	sub.IdempotencyKey = "k"
	_, err := s.svc.Gateway.Submit(publicCtx(), sub)
	s.True(dErrors.HasCode(err, dErrors.CodeClosed))

	open := true
	_, err = s.svc.Admin.UpdateEvent(adminCtx(), event.ID, models.EventPatch{RegistrationOpen: &open})
	s.Require().NoError(err)

	res, err := s.svc.Gateway.Submit(publicCtx(), sub)
	s.Require().NoError(err)
	s.False(res.Replayed)
}

func (s *GatewaySuite) TestWindow() {
	event := s.createEvent(openEvent(2))
	_, err := s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "alpha"))
	s.Require().NoError(err)

	w, err := s.svc.Gateway.Window(publicCtx(), event.ID)
	s.Require().NoError(err)
	s.True(w.Open)
	s.Equal(1, w.Active)
	s.Equal(1, w.RemainingSlots)

	_, err = s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "beta"))
	s.Require().NoError(err)
	w, err = s.svc.Gateway.Window(publicCtx(), event.ID)
	s.Require().NoError(err)
	s.False(w.Open)
	s.Equal("event is full", w.ClosedReason)

	s.Require().NoError(s.svc.Admin.SoftDeleteEvent(adminCtx(), event.ID))
	_, err = s.svc.Gateway.Window(publicCtx(), event.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *GatewaySuite) TestParticipantsListsVerifiedOnly() {
	event := s.createEvent(openEvent(0))
	a, err := s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "alpha"))
	s.Require().NoError(err)
	_, err = s.svc.Gateway.Submit(publicCtx(), submitFor(event.ID, "beta"))
	s.Require().NoError(err)
	_, err = s.svc.Engine.Transition(adminCtx(), a.Submission.ID, models.StatusVerified, nil)
	s.Require().NoError(err)

	subs, page, err := s.svc.Gateway.Participants(publicCtx(), event.ID, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, page.Total)
	s.Require().Len(subs, 1)
	s.Equal(a.Submission.ID, subs[0].ID)
}

// =============================================================================
// Gateway with mocked idempotency store
// =============================================================================

func TestSubmitIdempotencyStoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	idem := mocks.NewMockIdempotencyStore(ctrl)
	mem := store.NewMemory()
	svc := New(mem, WithIdempotency(idem, time.Minute))

	event, err := svc.Admin.CreateEvent(adminCtx(), openEvent(0))
	require.NoError(t, err)
	cmd := submitFor(event.ID, "alpha")
	cmd.IdempotencyKey = "abc"
	scoped := event.ID.String() + ":abc"

	t.Run("key in progress", func(t *testing.T) {
		idem.EXPECT().Reserve(gomock.Any(), scoped, time.Minute).
			Return(id.SubmissionID{}, false, sentinel.ErrConflict)
		_, err := svc.Gateway.Submit(publicCtx(), cmd)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("store unavailable", func(t *testing.T) {
		idem.EXPECT().Reserve(gomock.Any(), scoped, time.Minute).
			Return(id.SubmissionID{}, false, errors.New("redis down"))
		_, err := svc.Gateway.Submit(publicCtx(), cmd)
		assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(err))
	})

	t.Run("completion failure does not fail admission", func(t *testing.T) {
		idem.EXPECT().Reserve(gomock.Any(), scoped, time.Minute).Return(id.SubmissionID{}, true, nil)
		idem.EXPECT().Complete(gomock.Any(), scoped, gomock.Any(), time.Minute).Return(errors.New("redis down"))
		res, err := svc.Gateway.Submit(publicCtx(), cmd)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, res.Submission.Status)
	})
}

// =============================================================================
// Capacity invariant under contention
// =============================================================================

func TestCapacityInvariantUnderConcurrentSubmit(t *testing.T) {
	defer goleak.VerifyNone(t)

	const (
		ceiling    = 5
		goroutines = 50
	)
	mem := store.NewMemory()
	svc := New(mem)
	event, err := svc.Admin.CreateEvent(adminCtx(), openEvent(ceiling))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var admitted, full atomic.Int32
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Gateway.Submit(publicCtx(), submitFor(event.ID, fmt.Sprintf("team-%d", i)))
			switch {
			case err == nil:
				admitted.Add(1)
			case dErrors.HasCode(err, dErrors.CodeCapacityExceeded):
				full.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(ceiling), admitted.Load())
	assert.Equal(t, int32(goroutines-ceiling), full.Load())

	active, err := mem.CountActive(context.Background(), event.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, active, ceiling)
}

// =============================================================================
// Idempotency key outcome
// =============================================================================

// ctxKeys refuses work on a cancelled context the way a network-backed key
// store does, and records the TTLs it is given.
type ctxKeys struct {
	*idempotency.Memory
	mu          sync.Mutex
	reserveTTL  time.Duration
	completeTTL time.Duration
}

func (k *ctxKeys) Reserve(ctx context.Context, key string, ttl time.Duration) (id.SubmissionID, bool, error) {
	if err := ctx.Err(); err != nil {
		return id.SubmissionID{}, false, err
	}
	k.mu.Lock()
	k.reserveTTL = ttl
	k.mu.Unlock()
	return k.Memory.Reserve(ctx, key, ttl)
}

func (k *ctxKeys) Complete(ctx context.Context, key string, subID id.SubmissionID, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k.mu.Lock()
	k.completeTTL = ttl
	k.mu.Unlock()
	return k.Memory.Complete(ctx, key, subID, ttl)
}

func (k *ctxKeys) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.Memory.Release(ctx, key)
}

// disconnectTx cancels the caller's context as soon as the transaction ends,
// like a client hanging up while the response is being written.
type disconnectTx struct {
	inner  StoreTx
	cancel context.CancelFunc
}

func (t disconnectTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := t.inner.RunInTx(ctx, fn)
	t.cancel()
	return err
}

func TestCommittedAdmissionReplaysAfterClientDisconnect(t *testing.T) {
	keys := &ctxKeys{Memory: idempotency.NewMemory()}
	ctx, cancel := context.WithCancel(publicCtx())
	defer cancel()

	svc := New(store.NewMemory(),
		WithIdempotency(keys, time.Hour),
		WithIdempotencyPendingTTL(10*time.Second),
		WithStoreTx(disconnectTx{inner: NewInMemoryTx(time.Second), cancel: cancel}),
	)
	event, err := svc.Admin.CreateEvent(adminCtx(), openEvent(1))
	require.NoError(t, err)

	cmd := submitFor(event.ID, "alpha")
	cmd.IdempotencyKey = "mobile-retry"
	first, err := svc.Gateway.Submit(ctx, cmd)
	require.NoError(t, err)
	require.Error(t, ctx.Err(), "client is gone once the admission commits")

	again, err := svc.Gateway.Submit(publicCtx(), cmd)
	require.NoError(t, err, "retry must not see the key as in progress")
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Submission.ID, again.Submission.ID)

	assert.Equal(t, 10*time.Second, keys.reserveTTL, "pending marker is short lived")
	assert.Equal(t, time.Hour, keys.completeTTL, "completed key keeps the full ttl")
}

func TestRefusedAdmissionReleasesKeyAfterClientDisconnect(t *testing.T) {
	keys := &ctxKeys{Memory: idempotency.NewMemory()}
	ctx, cancel := context.WithCancel(publicCtx())
	defer cancel()

	svc := New(store.NewMemory(),
		WithIdempotency(keys, time.Hour),
		WithStoreTx(disconnectTx{inner: NewInMemoryTx(time.Second), cancel: cancel}),
	)
	closed := openEvent(0)
	closed.RegistrationOpen = false
	event, err := svc.Admin.CreateEvent(adminCtx(), closed)
	require.NoError(t, err)

	cmd := submitFor(event.ID, "alpha")
	cmd.IdempotencyKey = "mobile-retry"
	_, err = svc.Gateway.Submit(ctx, cmd)
	require.True(t, dErrors.HasCode(err, dErrors.CodeClosed), "got %v", err)

	open := true
	_, err = svc.Admin.UpdateEvent(adminCtx(), event.ID, models.EventPatch{RegistrationOpen: &open})
	require.NoError(t, err)

	res, err := svc.Gateway.Submit(publicCtx(), cmd)
	require.NoError(t, err, "released key can be claimed again")
	assert.False(t, res.Replayed)
}

func TestIdempotencyKeysHonouredWithoutExplicitStore(t *testing.T) {
	svc := New(store.NewMemory())
	event, err := svc.Admin.CreateEvent(adminCtx(), openEvent(1))
	require.NoError(t, err)

	cmd := submitFor(event.ID, "alpha")
	cmd.IdempotencyKey = "k-1"
	first, err := svc.Gateway.Submit(publicCtx(), cmd)
	require.NoError(t, err)

	again, err := svc.Gateway.Submit(publicCtx(), cmd)
	require.NoError(t, err, "replay does not count against the full event")
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Submission.ID, again.Submission.ID)
}
