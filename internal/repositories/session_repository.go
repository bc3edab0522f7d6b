package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/preetsinghmakkar/groupcall/internal/models"
)

const pqUniqueViolation = "23505"

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	id,
	topic,
	description,
	code,
	status,
	type,
	has_waiting_room,
	time_limit,
	start_time,
	end_time,
	max_participants,
	host_email,
	participants_count,
	participants,
	waiting_list,
	transcript,
	created_at,
	updated_at`

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	const query = `
	INSERT INTO sessions (
		id,
		topic,
		description,
		code,
		status,
		type,
		has_waiting_room,
		time_limit,
		start_time,
		end_time,
		max_participants,
		host_email,
		participants_count,
		participants,
		waiting_list,
		transcript,
		created_at,
		updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
	RETURNING created_at, updated_at
	`

	participants, waiting, transcript, err := encodeMembership(session)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(
		ctx,
		query,
		session.ID,
		session.Topic,
		session.Description,
		session.Code,
		session.Status,
		session.Type,
		session.HasWaitingRoom,
		session.TimeLimit,
		session.StartTime,
		session.EndTime,
		session.MaxParticipants,
		session.HostEmail,
		session.ParticipantsCount,
		participants,
		waiting,
		transcript,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	return mapWriteError(err)
}

// Get loads a session by id
func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 LIMIT 1`
	return r.queryOne(ctx, query, id)
}

// GetByCode loads the most recent session with the given join code
func (r *SessionRepository) GetByCode(ctx context.Context, code string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE code = $1 ORDER BY created_at DESC LIMIT 1`
	return r.queryOne(ctx, query, code)
}

func (r *SessionRepository) GetActiveByCode(ctx context.Context, code string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE code = $1 AND status = ANY($2) LIMIT 1`
	return r.queryOne(ctx, query, code, pq.Array(statusStrings(models.ActiveStatuses)))
}

// Update overwrites the mutable fields of a session
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	const query = `
	UPDATE sessions
	SET
		topic = $2,
		description = $3,
		code = $4,
		status = $5,
		type = $6,
		has_waiting_room = $7,
		time_limit = $8,
		start_time = $9,
		end_time = $10,
		max_participants = $11,
		host_email = $12,
		participants_count = $13,
		participants = $14,
		waiting_list = $15,
		transcript = $16,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	participants, waiting, transcript, err := encodeMembership(session)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(
		ctx,
		query,
		session.ID,
		session.Topic,
		session.Description,
		session.Code,
		session.Status,
		session.Type,
		session.HasWaitingRoom,
		session.TimeLimit,
		session.StartTime,
		session.EndTime,
		session.MaxParticipants,
		session.HostEmail,
		session.ParticipantsCount,
		participants,
		waiting,
		transcript,
	).Scan(&session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return mapWriteError(err)
}

// Delete removes a session
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM sessions WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SessionRepository) List(ctx context.Context) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC`
	return r.queryMany(ctx, query)
}

func (r *SessionRepository) ListByStatus(ctx context.Context, statuses ...models.SessionStatus) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status = ANY($1) ORDER BY created_at DESC`
	return r.queryMany(ctx, query, pq.Array(statusStrings(statuses)))
}

func (r *SessionRepository) CountByStatus(ctx context.Context) (map[models.SessionStatus]int, error) {
	const query = `SELECT status, COUNT(*) FROM sessions GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.SessionStatus]int)
	for rows.Next() {
		var status models.SessionStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// AverageCompletedDuration returns the mean duration of completed sessions in minutes
func (r *SessionRepository) AverageCompletedDuration(ctx context.Context) (float64, error) {
	const query = `
	SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (end_time - start_time)) / 60), 0)
	FROM sessions
	WHERE status = $1 AND start_time IS NOT NULL AND end_time IS NOT NULL
	`

	var avg float64
	err := r.db.QueryRowContext(ctx, query, models.SessionStatusCompleted).Scan(&avg)
	return avg, err
}

// CountPerDay groups sessions by the calendar day they started
func (r *SessionRepository) CountPerDay(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	const query = `
	SELECT DATE(start_time) AS day, COUNT(*)
	FROM sessions
	WHERE start_time >= $1
	GROUP BY day
	ORDER BY day
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DailyCount
	for rows.Next() {
		var day time.Time
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		out = append(out, models.DailyCount{Date: day.Format("2006-01-02"), Count: n})
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SessionRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Session, error) {
	session, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *SessionRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		session      models.Session
		timeLimit    sql.NullInt64
		maxPart      sql.NullInt64
		participants []byte
		waiting      []byte
		transcript   []byte
	)

	err := row.Scan(
		&session.ID,
		&session.Topic,
		&session.Description,
		&session.Code,
		&session.Status,
		&session.Type,
		&session.HasWaitingRoom,
		&timeLimit,
		&session.StartTime,
		&session.EndTime,
		&maxPart,
		&session.HostEmail,
		&session.ParticipantsCount,
		&participants,
		&waiting,
		&transcript,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if timeLimit.Valid {
		v := int(timeLimit.Int64)
		session.TimeLimit = &v
	}
	if maxPart.Valid {
		v := int(maxPart.Int64)
		session.MaxParticipants = &v
	}
	if err := decodeJSONColumn(participants, &session.Participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	if err := decodeJSONColumn(waiting, &session.WaitingList); err != nil {
		return nil, fmt.Errorf("decode waiting list: %w", err)
	}
	if err := decodeJSONColumn(transcript, &session.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return &session, nil
}

func encodeMembership(session *models.Session) (participants, waiting, transcript []byte, err error) {
	if participants, err = json.Marshal(nonNil(session.Participants)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode participants: %w", err)
	}
	if waiting, err = json.Marshal(nonNil(session.WaitingList)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode waiting list: %w", err)
	}
	if transcript, err = json.Marshal(nonNil(session.Transcript)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode transcript: %w", err)
	}
	return participants, waiting, transcript, nil
}

func decodeJSONColumn(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func statusStrings(statuses []models.SessionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrDuplicateCode
	}
	return err
}
