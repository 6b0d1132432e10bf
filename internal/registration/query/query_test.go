package query

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podium/internal/registration/models"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
)

func normalized(t *testing.T, f Filters) Filters {
	t.Helper()
	out, err := f.Normalize(DefaultLimit, MaxLimit)
	require.NoError(t, err)
	return out
}

func TestNormalize(t *testing.T) {
	f := normalized(t, Filters{Limit: 1000, Order: " ASC "})
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, MaxLimit, f.Limit)
	assert.Equal(t, "asc", f.Order)
	assert.Equal(t, "dateCreated", f.Sort)

	f = normalized(t, Filters{Page: 3})
	assert.Equal(t, DefaultLimit, f.Limit)
	assert.Equal(t, 40, f.Offset())

	_, err := Filters{Sort: "password; DROP TABLE submissions", Order: "sideways", Status: "approved"}.Normalize(0, 0)
	require.Error(t, err)
	fields := dErrors.FieldsOf(err)
	assert.Contains(t, fields, "sort")
	assert.Contains(t, fields, "order")
	assert.Contains(t, fields, "status")
}

func TestBuildListQueryBindsUserInput(t *testing.T) {
	hostile := []string{
		"'; DROP TABLE submissions; --",
		`" OR 1=1 --`,
		"robert') OR ('a'='a",
		"50%_off",
	}
	eventID := id.NewEventID()
	for _, search := range hostile {
		t.Run(search, func(t *testing.T) {
			f := normalized(t, Filters{Search: search, Status: models.StatusPending, EventID: &eventID, Kind: models.KindRegistration})
			list, count := BuildListQuery(f)

			assert.NotContains(t, list.SQL, search)
			assert.NotContains(t, count.SQL, search)
			assert.Contains(t, list.Args, LikePattern(search))
			assert.Contains(t, list.Args, string(models.StatusPending))
			assert.Contains(t, list.Args, eventID.String())
		})
	}
}

func TestBuildListQueryShape(t *testing.T) {
	t.Run("default hides deleted rows and deleted parents", func(t *testing.T) {
		list, count := BuildListQuery(normalized(t, Filters{}))
		assert.Contains(t, list.SQL, "s.is_deleted = false")
		assert.Contains(t, list.SQL, "e.is_deleted = false")
		assert.Contains(t, count.SQL, "s.is_deleted = false")
		assert.True(t, strings.HasPrefix(count.SQL, "SELECT COUNT(*)"))
		assert.Equal(t, []any{DefaultLimit, 0}, list.Args)
		assert.Empty(t, count.Args)
	})

	t.Run("include deleted drops both predicates", func(t *testing.T) {
		list, _ := BuildListQuery(normalized(t, Filters{IncludeDeleted: true}))
		assert.NotContains(t, list.SQL, "is_deleted = false")
	})

	t.Run("placeholders are sequential and count excludes paging", func(t *testing.T) {
		f := normalized(t, Filters{Status: models.StatusVerified, Search: "robot", Page: 2, Limit: 10})
		list, count := BuildListQuery(f)
		assert.Contains(t, list.SQL, "s.status = $1")
		assert.Contains(t, list.SQL, "ILIKE $2")
		assert.Contains(t, list.SQL, "LIMIT $3 OFFSET $4")
		assert.Equal(t, []any{"verified", "%robot%", 10, 10}, list.Args)
		assert.Equal(t, []any{"verified", "%robot%"}, count.Args)
	})

	t.Run("sort comes from whitelist", func(t *testing.T) {
		list, _ := BuildListQuery(normalized(t, Filters{Sort: "title", Order: "asc"}))
		assert.Contains(t, list.SQL, "ORDER BY s.title ASC")
	})
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%100\%\_done\\%`, LikePattern(`100%_done\`))
}

func TestNewPage(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Limit: 20, Total: 41, TotalPages: 3}, NewPage(Filters{Page: 1, Limit: 20}, 41))
	assert.Equal(t, 0, NewPage(Filters{Page: 1, Limit: 20}, 0).TotalPages)
}

func TestMatch(t *testing.T) {
	now := time.Now()
	parent := &models.ParentEvent{ID: id.NewEventID()}
	sub := models.NewSubmission(id.NewSubmissionID(), parent.ID, models.KindRegistration, "Line Followers", "North High",
		models.Contact{Name: "Ada", Email: "ada@example.com"}, now)
	sub.Members = []models.TeamMember{{Name: "Grace Hopper", Identifier: "gh-100", Role: models.RoleLeader}}

	assert.True(t, Match(Filters{}, sub, parent))
	assert.True(t, Match(Filters{Search: "HOPPER"}, sub, parent))
	assert.True(t, Match(Filters{Search: "north"}, sub, parent))
	assert.False(t, Match(Filters{Search: "south"}, sub, parent))
	assert.False(t, Match(Filters{Status: models.StatusVerified}, sub, parent))

	other := id.NewEventID()
	assert.False(t, Match(Filters{EventID: &other}, sub, parent))

	parent.ApplyTombstone(now)
	assert.False(t, Match(Filters{}, sub, parent))
	assert.True(t, Match(Filters{IncludeDeleted: true}, sub, parent))

	parent.ApplyRestore()
	sub.ApplyTombstone(now)
	assert.False(t, Match(Filters{}, sub, parent))
	assert.True(t, Match(Filters{IncludeDeleted: true}, sub, parent))
}

func TestCompare(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(title string, offset time.Duration) *models.Submission {
		return &models.Submission{ID: id.NewSubmissionID(), Title: title, DateCreated: base.Add(offset)}
	}
	subs := []*models.Submission{mk("b", time.Hour), mk("a", 2*time.Hour), mk("c", 0)}

	slices.SortFunc(subs, func(a, b *models.Submission) int { return Compare(Filters{Sort: "dateCreated", Order: "desc"}, a, b) })
	assert.Equal(t, []string{"a", "b", "c"}, []string{subs[0].Title, subs[1].Title, subs[2].Title})

	slices.SortFunc(subs, func(a, b *models.Submission) int { return Compare(Filters{Sort: "title", Order: "asc"}, a, b) })
	assert.Equal(t, []string{"a", "b", "c"}, []string{subs[0].Title, subs[1].Title, subs[2].Title})
}
