package query

import (
	"cmp"
	"strings"

	"podium/internal/registration/models"
)

// Match reports whether sub (with its parent) satisfies f, following the
// same rules as BuildListQuery. A nil parent is treated as deleted.
func Match(f Filters, sub *models.Submission, parent *models.ParentEvent) bool {
	if !f.IncludeDeleted {
		if sub.IsDeleted || parent == nil || parent.IsDeleted {
			return false
		}
	}
	if f.Status != "" && sub.Status != f.Status {
		return false
	}
	if f.Kind != "" && sub.Kind != f.Kind {
		return false
	}
	if f.EventID != nil && sub.EventID != *f.EventID {
		return false
	}
	if f.Search != "" && !matchesSearch(strings.ToLower(f.Search), sub) {
		return false
	}
	return true
}

func matchesSearch(needle string, sub *models.Submission) bool {
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), needle) }
	if contains(sub.Title) || contains(sub.Institution) || contains(sub.ContactName) || contains(sub.ContactEmail) {
		return true
	}
	for _, m := range sub.Members {
		if contains(m.Name) || contains(m.Identifier) || contains(m.Email) {
			return true
		}
	}
	return false
}

// Compare orders submissions the way BuildListQuery's ORDER BY does.
func Compare(f Filters, a, b *models.Submission) int {
	var c int
	switch f.Sort {
	case "dateUpdated":
		c = a.DateUpdated.Compare(b.DateUpdated)
	case "verifiedAt":
		switch {
		case a.VerifiedAt == nil && b.VerifiedAt == nil:
		case a.VerifiedAt == nil:
			return 1
		case b.VerifiedAt == nil:
			return -1
		default:
			c = a.VerifiedAt.Compare(*b.VerifiedAt)
		}
	case "status":
		c = cmp.Compare(a.Status, b.Status)
	case "title":
		c = cmp.Compare(a.Title, b.Title)
	default:
		c = a.DateCreated.Compare(b.DateCreated)
	}
	if f.Order != "asc" {
		c = -c
	}
	if c != 0 {
		return c
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}
