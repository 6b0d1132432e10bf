package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"podium/internal/registration/models"
	"podium/internal/registration/query"
	id "podium/pkg/domain"
	"podium/pkg/platform/sentinel"
	txcontext "podium/pkg/platform/tx"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const eventColumns = `id, name, kind, max_participants, deadline, registration_open, is_deleted, deleted_at, created_at, updated_at`

// Postgres persists registration data. Every method runs on the
// transaction carried in ctx when there is one.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) q(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFrom(ctx, s.db)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.ParentEvent, error) {
	var (
		e         models.ParentEvent
		rawID     uuid.UUID
		deadline  sql.NullTime
		deletedAt sql.NullTime
	)
	if err := row.Scan(&rawID, &e.Name, &e.Kind, &e.MaxParticipants, &deadline, &e.RegistrationOpen,
		&e.IsDeleted, &deletedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.ID = id.EventID(rawID)
	if deadline.Valid {
		e.Deadline = &deadline.Time
	}
	if deletedAt.Valid {
		e.DeletedAt = &deletedAt.Time
	}
	return &e, nil
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		sub        models.Submission
		rawID      uuid.UUID
		rawEvent   uuid.UUID
		notes      sql.NullString
		reviewedBy uuid.NullUUID
		verifiedAt sql.NullTime
		deletedAt  sql.NullTime
	)
	if err := row.Scan(&rawID, &rawEvent, &sub.Kind, &sub.Status, &sub.Title, &sub.Institution,
		&sub.ContactName, &sub.ContactEmail, &sub.ContactPhone, &notes, &reviewedBy,
		&verifiedAt, &sub.DateCreated, &sub.DateUpdated, &sub.IsDeleted, &deletedAt); err != nil {
		return nil, err
	}
	sub.ID = id.SubmissionID(rawID)
	sub.EventID = id.EventID(rawEvent)
	if notes.Valid {
		sub.ReviewerNotes = &notes.String
	}
	if reviewedBy.Valid {
		admin := id.AdminID(reviewedBy.UUID)
		sub.ReviewedBy = &admin
	}
	if verifiedAt.Valid {
		sub.VerifiedAt = &verifiedAt.Time
	}
	if deletedAt.Valid {
		sub.DeletedAt = &deletedAt.Time
	}
	return &sub, nil
}

func translate(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", what, sentinel.ErrAlreadyUsed)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func nullableAdmin(a *id.AdminID) any {
	if a == nil {
		return nil
	}
	return uuid.UUID(*a)
}

// Events

func (s *Postgres) CreateEvent(ctx context.Context, e *models.ParentEvent) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(e.ID), e.Name, string(e.Kind), e.MaxParticipants, e.Deadline, e.RegistrationOpen,
		e.IsDeleted, e.DeletedAt, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return translate(err, "insert event")
	}
	return nil
}

func (s *Postgres) FindEvent(ctx context.Context, eventID id.EventID) (*models.ParentEvent, error) {
	e, err := scanEvent(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, uuid.UUID(eventID)))
	if err != nil {
		return nil, translate(err, "find event")
	}
	return e, nil
}

// LockEvent reads the event with FOR UPDATE. It must run inside a transaction;
// concurrent admissions for the same event queue on this row lock.
func (s *Postgres) LockEvent(ctx context.Context, eventID id.EventID) (*models.ParentEvent, error) {
	if _, ok := txcontext.From(ctx); !ok {
		return nil, fmt.Errorf("lock event: %w", sentinel.ErrInvalidState)
	}
	e, err := scanEvent(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, uuid.UUID(eventID)))
	if err != nil {
		return nil, translate(err, "lock event")
	}
	return e, nil
}

func (s *Postgres) ListEvents(ctx context.Context, includeDeleted bool) ([]*models.ParentEvent, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE ($1::boolean OR is_deleted = false)
		ORDER BY created_at DESC, id ASC`, includeDeleted)
	if err != nil {
		return nil, translate(err, "list events")
	}
	defer rows.Close()

	var out []*models.ParentEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, translate(err, "scan event")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list events")
	}
	return out, nil
}

// setClause renders patch assignments as "col = $n" pairs starting at
// placeholder start. Column names come from models.Column constants only.
func setClause(assignments []models.Assignment, start int) (string, []any) {
	parts := make([]string, 0, len(assignments))
	args := make([]any, 0, len(assignments))
	for i, a := range assignments {
		parts = append(parts, fmt.Sprintf("%s = $%d", a.Column, start+i))
		args = append(args, a.Value)
	}
	return strings.Join(parts, ", "), args
}

func (s *Postgres) UpdateEvent(ctx context.Context, eventID id.EventID, patch models.EventPatch, now time.Time) (*models.ParentEvent, error) {
	set, args := setClause(patch.Assignments(), 1)
	n := len(args)
	if set != "" {
		set += ", "
	}
	args = append(args, now, uuid.UUID(eventID))
	e, err := scanEvent(s.q(ctx).QueryRowContext(ctx,
		fmt.Sprintf(`UPDATE events SET %supdated_at = $%d WHERE id = $%d RETURNING %s`, set, n+1, n+2, eventColumns),
		args...))
	if err != nil {
		return nil, translate(err, "update event")
	}
	return e, nil
}

func (s *Postgres) SetEventDeleted(ctx context.Context, eventID id.EventID, deleted bool, now time.Time) error {
	var deletedAt *time.Time
	if deleted {
		deletedAt = &now
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE events SET is_deleted = $1, deleted_at = $2, updated_at = $3
		WHERE id = $4 AND is_deleted = $5`,
		deleted, deletedAt, now, uuid.UUID(eventID), !deleted)
	if err != nil {
		return translate(err, "set event deleted")
	}
	return s.guarded(ctx, res, `SELECT 1 FROM events WHERE id = $1`, uuid.UUID(eventID))
}

func (s *Postgres) EraseEvent(ctx context.Context, eventID id.EventID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM events WHERE id = $1 AND is_deleted = true`, uuid.UUID(eventID))
	if err != nil {
		return translate(err, "erase event")
	}
	return s.guarded(ctx, res, `SELECT 1 FROM events WHERE id = $1`, uuid.UUID(eventID))
}

// guarded classifies a conditional write that may have matched no rows:
// ErrNotFound when the row is gone, ErrConflict when its state differs.
func (s *Postgres) guarded(ctx context.Context, res sql.Result, existsSQL string, arg any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, "rows affected")
	}
	if n > 0 {
		return nil
	}
	var one int
	if err := s.q(ctx).QueryRowContext(ctx, existsSQL, arg).Scan(&one); err != nil {
		return translate(err, "check existence")
	}
	return sentinel.ErrConflict
}

func (s *Postgres) CountActive(ctx context.Context, eventID id.EventID) (int, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM submissions
		WHERE event_id = $1 AND status <> 'rejected' AND is_deleted = false`,
		uuid.UUID(eventID)).Scan(&n)
	if err != nil {
		return 0, translate(err, "count active submissions")
	}
	return n, nil
}

// Submissions

func (s *Postgres) InsertSubmission(ctx context.Context, sub *models.Submission) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO submissions (id, event_id, kind, status, title, institution,
			contact_name, contact_email, contact_phone, reviewer_notes, reviewed_by,
			verified_at, date_created, date_updated, is_deleted, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		uuid.UUID(sub.ID), uuid.UUID(sub.EventID), string(sub.Kind), string(sub.Status), sub.Title, sub.Institution,
		sub.ContactName, sub.ContactEmail, sub.ContactPhone, sub.ReviewerNotes, nullableAdmin(sub.ReviewedBy),
		sub.VerifiedAt, sub.DateCreated, sub.DateUpdated, sub.IsDeleted, sub.DeletedAt)
	if err != nil {
		return translate(err, "insert submission")
	}
	return nil
}

func (s *Postgres) InsertMembers(ctx context.Context, members []models.TeamMember) error {
	for i, m := range members {
		_, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO team_members (id, submission_id, position, name, identifier, email, phone, role)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.UUID(m.ID), uuid.UUID(m.SubmissionID), i, m.Name, m.Identifier, m.Email, m.Phone, string(m.Role))
		if err != nil {
			return translate(err, "insert team member")
		}
	}
	return nil
}

func (s *Postgres) FindSubmission(ctx context.Context, subID id.SubmissionID) (*models.Submission, error) {
	sub, err := scanSubmission(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+query.SelectColumns+` FROM submissions s WHERE s.id = $1`, uuid.UUID(subID)))
	if err != nil {
		return nil, translate(err, "find submission")
	}
	members, err := s.loadMembers(ctx, []id.SubmissionID{subID})
	if err != nil {
		return nil, err
	}
	sub.Members = members[subID]
	return sub, nil
}

func (s *Postgres) loadMembers(ctx context.Context, ids []id.SubmissionID) (map[id.SubmissionID][]models.TeamMember, error) {
	out := make(map[id.SubmissionID][]models.TeamMember, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]string, len(ids))
	for i, sid := range ids {
		raw[i] = sid.String()
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, submission_id, name, identifier, email, phone, role
		FROM team_members WHERE submission_id = ANY($1::uuid[])
		ORDER BY submission_id, position`, pq.Array(raw))
	if err != nil {
		return nil, translate(err, "load team members")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m            models.TeamMember
			rawID, rawSb uuid.UUID
		)
		if err := rows.Scan(&rawID, &rawSb, &m.Name, &m.Identifier, &m.Email, &m.Phone, &m.Role); err != nil {
			return nil, translate(err, "scan team member")
		}
		m.ID = id.MemberID(rawID)
		m.SubmissionID = id.SubmissionID(rawSb)
		out[m.SubmissionID] = append(out[m.SubmissionID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "load team members")
	}
	return out, nil
}

// Transition is the optimistic moderation write: it only matches a live
// pending row, so of two racing moderators exactly one sees a row back.
func (s *Postgres) Transition(ctx context.Context, subID id.SubmissionID, target models.Status, notes *string, reviewer *id.AdminID, now time.Time) (*models.Submission, error) {
	sub, err := scanSubmission(s.q(ctx).QueryRowContext(ctx, `
		UPDATE submissions s
		SET status = $1, reviewer_notes = $2, reviewed_by = $3, verified_at = $4, date_updated = $4
		WHERE s.id = $5 AND s.status = 'pending' AND s.is_deleted = false
		RETURNING `+query.SelectColumns,
		string(target), notes, nullableAdmin(reviewer), now, uuid.UUID(subID)))
	if errors.Is(err, sql.ErrNoRows) {
		var one int
		if err := s.q(ctx).QueryRowContext(ctx, `SELECT 1 FROM submissions WHERE id = $1`, uuid.UUID(subID)).Scan(&one); err != nil {
			return nil, translate(err, "check submission")
		}
		return nil, sentinel.ErrConflict
	}
	if err != nil {
		return nil, translate(err, "transition submission")
	}
	members, err := s.loadMembers(ctx, []id.SubmissionID{subID})
	if err != nil {
		return nil, err
	}
	sub.Members = members[subID]
	return sub, nil
}

func (s *Postgres) AppendStatusChange(ctx context.Context, c models.StatusChange) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO submission_status_history (submission_id, from_status, to_status, changed_by, notes, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(c.SubmissionID), string(c.From), string(c.To), nullableAdmin(c.ChangedBy), c.Notes, c.At)
	if err != nil {
		return translate(err, "append status change")
	}
	return nil
}

func (s *Postgres) History(ctx context.Context, subID id.SubmissionID) ([]models.StatusChange, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT from_status, to_status, changed_by, notes, changed_at
		FROM submission_status_history WHERE submission_id = $1 ORDER BY id`, uuid.UUID(subID))
	if err != nil {
		return nil, translate(err, "load history")
	}
	defer rows.Close()

	var out []models.StatusChange
	for rows.Next() {
		var (
			c     models.StatusChange
			by    uuid.NullUUID
			notes sql.NullString
		)
		if err := rows.Scan(&c.From, &c.To, &by, &notes, &c.At); err != nil {
			return nil, translate(err, "scan history")
		}
		c.SubmissionID = subID
		if by.Valid {
			admin := id.AdminID(by.UUID)
			c.ChangedBy = &admin
		}
		if notes.Valid {
			c.Notes = &notes.String
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "load history")
	}
	return out, nil
}

func (s *Postgres) PatchSubmission(ctx context.Context, subID id.SubmissionID, patch models.SubmissionPatch, now time.Time) (*models.Submission, error) {
	set, args := setClause(patch.Assignments(), 1)
	n := len(args)
	if set != "" {
		set += ", "
	}
	args = append(args, now, uuid.UUID(subID))
	sub, err := scanSubmission(s.q(ctx).QueryRowContext(ctx,
		fmt.Sprintf(`UPDATE submissions s SET %sdate_updated = $%d WHERE s.id = $%d AND s.is_deleted = false RETURNING %s`,
			set, n+1, n+2, query.SelectColumns),
		args...))
	if errors.Is(err, sql.ErrNoRows) {
		var one int
		if err := s.q(ctx).QueryRowContext(ctx, `SELECT 1 FROM submissions WHERE id = $1`, uuid.UUID(subID)).Scan(&one); err != nil {
			return nil, translate(err, "check submission")
		}
		return nil, sentinel.ErrConflict
	}
	if err != nil {
		return nil, translate(err, "patch submission")
	}
	members, err := s.loadMembers(ctx, []id.SubmissionID{subID})
	if err != nil {
		return nil, err
	}
	sub.Members = members[subID]
	return sub, nil
}

func (s *Postgres) SetSubmissionDeleted(ctx context.Context, subID id.SubmissionID, deleted bool, now time.Time) error {
	var deletedAt *time.Time
	if deleted {
		deletedAt = &now
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE submissions SET is_deleted = $1, deleted_at = $2, date_updated = $3
		WHERE id = $4 AND is_deleted = $5`,
		deleted, deletedAt, now, uuid.UUID(subID), !deleted)
	if err != nil {
		return translate(err, "set submission deleted")
	}
	return s.guarded(ctx, res, `SELECT 1 FROM submissions WHERE id = $1`, uuid.UUID(subID))
}

func (s *Postgres) EraseSubmission(ctx context.Context, subID id.SubmissionID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM submissions WHERE id = $1 AND is_deleted = true`, uuid.UUID(subID))
	if err != nil {
		return translate(err, "erase submission")
	}
	return s.guarded(ctx, res, `SELECT 1 FROM submissions WHERE id = $1`, uuid.UUID(subID))
}

// ListSubmissions runs the paired page and count queries from
// query.BuildListQuery. f must be normalized.
func (s *Postgres) ListSubmissions(ctx context.Context, f query.Filters) ([]*models.Submission, int, error) {
	list, count := query.BuildListQuery(f)

	var total int
	if err := s.q(ctx).QueryRowContext(ctx, count.SQL, count.Args...).Scan(&total); err != nil {
		return nil, 0, translate(err, "count submissions")
	}

	rows, err := s.q(ctx).QueryContext(ctx, list.SQL, list.Args...)
	if err != nil {
		return nil, 0, translate(err, "list submissions")
	}
	defer rows.Close()

	var (
		out []*models.Submission
		ids []id.SubmissionID
	)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, translate(err, "scan submission")
		}
		out = append(out, sub)
		ids = append(ids, sub.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translate(err, "list submissions")
	}

	members, err := s.loadMembers(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, sub := range out {
		sub.Members = members[sub.ID]
	}
	return out, total, nil
}
