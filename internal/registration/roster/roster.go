// Package roster validates and persists the team members of a submission.
package roster

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"podium/internal/registration/models"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
)

// DefaultMaxMembers is the number of non-leader members a team may have.
const DefaultMaxMembers = 3

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{2,31}$`)

// MemberInput is one roster entry as supplied by the submitter.
type MemberInput struct {
	Name       string
	Identifier string
	Email      string
	Phone      string
	Role       models.Role
}

// Writer persists roster rows inside the caller's transaction.
type Writer interface {
	InsertMembers(ctx context.Context, members []models.TeamMember) error
}

// Manager enforces roster shape: one leader, bounded size and unique
// identifiers.
type Manager struct {
	maxMembers int
	validate   *validator.Validate
}

func New(maxMembers int) *Manager {
	if maxMembers < 0 {
		maxMembers = DefaultMaxMembers
	}
	return &Manager{maxMembers: maxMembers, validate: validator.New()}
}

// MaxSize is the largest roster, leader included, accepted for kind.
func (m *Manager) MaxSize(kind models.Kind) int {
	if kind.IsSolo() {
		return 1
	}
	return 1 + m.maxMembers
}

// Validate returns a validation error keyed by field path, or nil.
func (m *Manager) Validate(kind models.Kind, members []MemberInput) error {
	fields := map[string]string{}

	if len(members) == 0 {
		fields["members"] = "a leader is required"
		return dErrors.Validation(fields)
	}
	if limit := m.MaxSize(kind); len(members) > limit {
		fields["members"] = fmt.Sprintf("at most %d people allowed including the leader", limit)
	}

	leaders := 0
	seen := make(map[string]int, len(members))
	for i, in := range members {
		path := fmt.Sprintf("members[%d]", i)

		role := normalizeRole(in.Role)
		switch {
		case !role.IsValid():
			fields[path+".role"] = "must be leader or member"
		case role == models.RoleLeader:
			leaders++
			if leaders > 1 {
				fields[path+".role"] = "only one leader is allowed"
			}
		}

		if strings.TrimSpace(in.Name) == "" {
			fields[path+".name"] = "is required"
		}

		ident := strings.TrimSpace(in.Identifier)
		switch {
		case ident == "":
			fields[path+".identifier"] = "is required"
		case !identifierPattern.MatchString(ident):
			fields[path+".identifier"] = "must be 3-32 letters, digits, '.', '_' or '-'"
		default:
			key := strings.ToLower(ident)
			if j, dup := seen[key]; dup {
				fields[path+".identifier"] = fmt.Sprintf("duplicates members[%d]", j)
			} else {
				seen[key] = i
			}
		}

		if email := strings.TrimSpace(in.Email); email != "" {
			if err := m.validate.Var(email, "email"); err != nil {
				fields[path+".email"] = "must be a valid email"
			}
		}
	}
	if leaders == 0 {
		fields["members"] = "exactly one leader is required"
	}

	if len(fields) > 0 {
		return dErrors.Validation(fields)
	}
	return nil
}

// Build validates members and assigns ids. The leader is always first.
func (m *Manager) Build(kind models.Kind, submissionID id.SubmissionID, members []MemberInput) (models.Roster, error) {
	if err := m.Validate(kind, members); err != nil {
		return models.Roster{}, err
	}
	out := make([]models.TeamMember, 0, len(members))
	var rest []models.TeamMember
	for _, in := range members {
		tm := models.TeamMember{
			ID:           id.NewMemberID(),
			SubmissionID: submissionID,
			Name:         strings.TrimSpace(in.Name),
			Identifier:   strings.TrimSpace(in.Identifier),
			Email:        strings.TrimSpace(in.Email),
			Phone:        strings.TrimSpace(in.Phone),
			Role:         normalizeRole(in.Role),
		}
		if tm.Role == models.RoleLeader {
			out = append(out, tm)
			continue
		}
		rest = append(rest, tm)
	}
	return models.Roster{SubmissionID: submissionID, Members: append(out, rest...)}, nil
}

// Attach validates members and writes them through w, which must be bound
// to the same transaction as the submission insert.
func (m *Manager) Attach(ctx context.Context, w Writer, kind models.Kind, submissionID id.SubmissionID, members []MemberInput) (models.Roster, error) {
	r, err := m.Build(kind, submissionID, members)
	if err != nil {
		return models.Roster{}, err
	}
	if err := w.InsertMembers(ctx, r.Members); err != nil {
		return models.Roster{}, err
	}
	return r, nil
}

func normalizeRole(r models.Role) models.Role {
	r = models.Role(strings.ToLower(strings.TrimSpace(string(r))))
	if r == "" {
		return models.RoleMember
	}
	return r
}
