//go:build integration

package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"podium/internal/registration/idempotency"
	id "podium/pkg/domain"
	"podium/pkg/platform/sentinel"
	"podium/pkg/testutil/containers"
)

type RedisSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *idempotency.Redis
}

func TestRedisSuite(t *testing.T) {
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = idempotency.NewRedis(s.redis.Client)
}

func (s *RedisSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisSuite) TestReserveCompleteReplay() {
	ctx := context.Background()

	_, reserved, err := s.store.Reserve(ctx, "evt:key", time.Minute)
	s.Require().NoError(err)
	s.True(reserved)

	_, _, err = s.store.Reserve(ctx, "evt:key", time.Minute)
	s.ErrorIs(err, sentinel.ErrConflict)

	subID := id.NewSubmissionID()
	s.Require().NoError(s.store.Complete(ctx, "evt:key", subID, time.Minute))

	got, reserved, err := s.store.Reserve(ctx, "evt:key", time.Minute)
	s.Require().NoError(err)
	s.False(reserved)
	s.Equal(subID, got)
}

func (s *RedisSuite) TestReleaseOnlyDropsPending() {
	ctx := context.Background()

	_, _, err := s.store.Reserve(ctx, "pending", time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Release(ctx, "pending"))
	_, reserved, err := s.store.Reserve(ctx, "pending", time.Minute)
	s.Require().NoError(err)
	s.True(reserved, "released key is free again")

	subID := id.NewSubmissionID()
	s.Require().NoError(s.store.Complete(ctx, "done", subID, time.Minute))
	s.Require().NoError(s.store.Release(ctx, "done"))
	got, _, err := s.store.Reserve(ctx, "done", time.Minute)
	s.Require().NoError(err)
	s.Equal(subID, got)
}

func (s *RedisSuite) TestKeysExpire() {
	ctx := context.Background()
	_, _, err := s.store.Reserve(ctx, "short", 50*time.Millisecond)
	s.Require().NoError(err)

	s.Eventually(func() bool {
		_, reserved, err := s.store.Reserve(ctx, "short", time.Minute)
		return err == nil && reserved
	}, 2*time.Second, 25*time.Millisecond)
}
