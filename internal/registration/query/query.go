// Package query builds parameterized list queries over submissions.
//
// Every filter value is bound as a positional argument. The only text that
// reaches the SQL string comes from the constants in this file: column names
// from the sort whitelist and fixed predicate fragments.
package query

import (
	"fmt"
	"strings"

	"podium/internal/registration/models"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	maxSearchLen = 100
)

// SelectColumns is the column order every submission scan expects.
const SelectColumns = `s.id, s.event_id, s.kind, s.status, s.title, s.institution,
	s.contact_name, s.contact_email, s.contact_phone, s.reviewer_notes, s.reviewed_by,
	s.verified_at, s.date_created, s.date_updated, s.is_deleted, s.deleted_at`

const fromClause = `FROM submissions s JOIN events e ON e.id = s.event_id`

var sortColumns = map[string]string{
	"dateCreated": "s.date_created",
	"dateUpdated": "s.date_updated",
	"verifiedAt":  "s.verified_at",
	"status":      "s.status",
	"title":       "s.title",
}

// Filters selects a page of submissions. Zero values mean "any".
type Filters struct {
	Status         models.Status
	Search         string
	EventID        *id.EventID
	Kind           models.Kind
	IncludeDeleted bool
	Page           int
	Limit          int
	Sort           string
	Order          string
}

// Query is SQL text with its positional arguments.
type Query struct {
	SQL  string
	Args []any
}

// Normalize applies paging defaults and validates enumerated fields.
func (f Filters) Normalize(defaultLimit, maxLimit int) (Filters, error) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}

	fields := map[string]string{}
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultLimit
	case f.Limit > maxLimit:
		f.Limit = maxLimit
	}
	if f.Status != "" && !f.Status.IsValid() {
		fields["status"] = "must be one of pending, verified, rejected"
	}
	if f.Kind != "" && !f.Kind.IsValid() {
		fields["kind"] = "must be registration or achievement"
	}
	f.Search = strings.TrimSpace(f.Search)
	if len(f.Search) > maxSearchLen {
		fields["search"] = fmt.Sprintf("must be %d characters or less", maxSearchLen)
	}
	if f.Sort == "" {
		f.Sort = "dateCreated"
	}
	if _, ok := sortColumns[f.Sort]; !ok {
		fields["sort"] = "unsupported sort field"
	}
	f.Order = strings.ToLower(strings.TrimSpace(f.Order))
	switch f.Order {
	case "":
		f.Order = "desc"
	case "asc", "desc":
	default:
		fields["order"] = "must be asc or desc"
	}
	if len(fields) > 0 {
		return f, dErrors.Validation(fields)
	}
	return f, nil
}

func (f Filters) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// builder accumulates predicates and their positional arguments.
type builder struct {
	where []string
	args  []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) add(clause string) {
	b.where = append(b.where, clause)
}

func (b *builder) whereSQL() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func conditions(f Filters) *builder {
	b := &builder{}
	if !f.IncludeDeleted {
		b.add("s.is_deleted = false")
		b.add("e.is_deleted = false")
	}
	if f.Status != "" {
		b.add("s.status = " + b.bind(string(f.Status)))
	}
	if f.Kind != "" {
		b.add("s.kind = " + b.bind(string(f.Kind)))
	}
	if f.EventID != nil {
		b.add("s.event_id = " + b.bind(f.EventID.String()))
	}
	if f.Search != "" {
		p := b.bind(LikePattern(f.Search))
		b.add(fmt.Sprintf(`(s.title ILIKE %[1]s ESCAPE '\' OR s.institution ILIKE %[1]s ESCAPE '\'`+
			` OR s.contact_name ILIKE %[1]s ESCAPE '\' OR s.contact_email ILIKE %[1]s ESCAPE '\'`+
			` OR EXISTS (SELECT 1 FROM team_members m WHERE m.submission_id = s.id`+
			` AND (m.name ILIKE %[1]s ESCAPE '\' OR m.identifier ILIKE %[1]s ESCAPE '\' OR m.email ILIKE %[1]s ESCAPE '\')))`, p))
	}
	return b
}

// BuildListQuery returns the page query and its paired total-count query.
// f should already be normalized.
func BuildListQuery(f Filters) (Query, Query) {
	b := conditions(f)
	where := b.whereSQL()

	count := Query{
		SQL:  "SELECT COUNT(*) " + fromClause + where,
		Args: append([]any(nil), b.args...),
	}

	col, ok := sortColumns[f.Sort]
	if !ok {
		col = sortColumns["dateCreated"]
	}
	dir := "DESC"
	if f.Order == "asc" {
		dir = "ASC"
	}
	limit := b.bind(f.Limit)
	offset := b.bind(f.Offset())
	list := Query{
		SQL: "SELECT " + SelectColumns + " " + fromClause + where +
			fmt.Sprintf(" ORDER BY %s %s NULLS LAST, s.id ASC LIMIT %s OFFSET %s", col, dir, limit, offset),
		Args: b.args,
	}
	return list, count
}

// LikePattern wraps s for a substring ILIKE match, escaping wildcards.
func LikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// Page is the pagination block of a list response.
type Page struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPage(f Filters, total int) Page {
	pages := 0
	if f.Limit > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}
	return Page{Page: f.Page, Limit: f.Limit, Total: total, TotalPages: pages}
}
