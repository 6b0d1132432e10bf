package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"podium/internal/registration/models"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
)

type RosterSuite struct {
	suite.Suite
	mgr *Manager
}

func TestRosterSuite(t *testing.T) {
	suite.Run(t, new(RosterSuite))
}

func (s *RosterSuite) SetupTest() {
	s.mgr = New(DefaultMaxMembers)
}

func leader(ident string) MemberInput {
	return MemberInput{Name: "Lead " + ident, Identifier: ident, Email: ident + "@example.com", Role: models.RoleLeader}
}

func member(ident string) MemberInput {
	return MemberInput{Name: "Member " + ident, Identifier: ident, Role: models.RoleMember}
}

func (s *RosterSuite) fields(err error) map[string]string {
	s.Require().Error(err)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation), err.Error())
	return dErrors.FieldsOf(err)
}

func (s *RosterSuite) TestLeaderCount() {
	s.Run("no leader", func() {
		f := s.fields(s.mgr.Validate(models.KindRegistration, []MemberInput{member("abc1"), member("abc2")}))
		s.Equal("exactly one leader is required", f["members"])
	})

	s.Run("empty roster", func() {
		f := s.fields(s.mgr.Validate(models.KindRegistration, nil))
		s.Contains(f, "members")
	})

	s.Run("two leaders flags the second", func() {
		f := s.fields(s.mgr.Validate(models.KindRegistration, []MemberInput{leader("abc1"), leader("abc2")}))
		s.Equal("only one leader is allowed", f["members[1].role"])
		s.NotContains(f, "members[0].role")
	})

	s.Run("one leader passes", func() {
		s.NoError(s.mgr.Validate(models.KindRegistration, []MemberInput{leader("abc1"), member("abc2")}))
	})
}

func (s *RosterSuite) TestSizeBound() {
	full := []MemberInput{leader("s001"), member("s002"), member("s003"), member("s004")}
	s.NoError(s.mgr.Validate(models.KindRegistration, full))

	over := append(full, member("s005"))
	f := s.fields(s.mgr.Validate(models.KindRegistration, over))
	s.Contains(f["members"], "at most 4")

	s.Run("achievement is solo", func() {
		f := s.fields(s.mgr.Validate(models.KindAchievement, []MemberInput{leader("s001"), member("s002")}))
		s.Contains(f["members"], "at most 1")
		s.NoError(s.mgr.Validate(models.KindAchievement, []MemberInput{leader("s001")}))
	})
}

func (s *RosterSuite) TestIdentifiers() {
	f := s.fields(s.mgr.Validate(models.KindRegistration, []MemberInput{
		leader("Stu-01"),
		member("stu-01"),
		member("x"),
		{Name: "No Ident", Role: models.RoleMember},
	}))
	s.Equal("duplicates members[0]", f["members[1].identifier"])
	s.Contains(f, "members[2].identifier")
	s.Equal("is required", f["members[3].identifier"])
}

func (s *RosterSuite) TestFieldErrorsAreIndexed() {
	f := s.fields(s.mgr.Validate(models.KindRegistration, []MemberInput{
		leader("lead1"),
		{Identifier: "mem01", Email: "not-an-email", Role: "captain"},
	}))
	s.Equal("is required", f["members[1].name"])
	s.Equal("must be a valid email", f["members[1].email"])
	s.Equal("must be leader or member", f["members[1].role"])
}

func (s *RosterSuite) TestBuildPutsLeaderFirst() {
	subID := id.NewSubmissionID()
	r, err := s.mgr.Build(models.KindRegistration, subID, []MemberInput{member(" mem01 "), leader("lead1")})
	s.Require().NoError(err)
	s.Require().Len(r.Members, 2)
	s.Equal(models.RoleLeader, r.Members[0].Role)
	s.Equal("lead1", r.Leader().Identifier)
	s.Equal("mem01", r.Members[1].Identifier)
	for _, m := range r.Members {
		s.Equal(subID, m.SubmissionID)
	}
}

type recordingWriter struct {
	got []models.TeamMember
	err error
}

func (w *recordingWriter) InsertMembers(_ context.Context, members []models.TeamMember) error {
	w.got = members
	return w.err
}

func TestAttach(t *testing.T) {
	mgr := New(DefaultMaxMembers)

	t.Run("writes validated roster", func(t *testing.T) {
		w := &recordingWriter{}
		r, err := mgr.Attach(context.Background(), w, models.KindRegistration, id.NewSubmissionID(), []MemberInput{leader("lead1")})
		require.NoError(t, err)
		assert.Equal(t, r.Members, w.got)
	})

	t.Run("invalid roster never reaches the writer", func(t *testing.T) {
		w := &recordingWriter{}
		_, err := mgr.Attach(context.Background(), w, models.KindRegistration, id.NewSubmissionID(), []MemberInput{member("mem01")})
		require.Error(t, err)
		assert.Nil(t, w.got)
	})

	t.Run("writer error is returned", func(t *testing.T) {
		w := &recordingWriter{err: errors.New("boom")}
		_, err := mgr.Attach(context.Background(), w, models.KindRegistration, id.NewSubmissionID(), []MemberInput{leader("lead1")})
		require.Error(t, err)
	})
}
