package repositories

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/models"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Insert(ctx context.Context, report *models.Report) error {
	const query = `
	INSERT INTO reports (id, session_id, user_email, content, created_at)
	VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, report.ID, report.SessionID, report.UserEmail, report.Content, report.CreatedAt)
	return err
}

func (r *ReportRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Report, error) {
	const query = `
	SELECT id, session_id, user_email, content, created_at
	FROM reports
	WHERE session_id = $1
	ORDER BY created_at ASC
	`
	return r.query(ctx, query, sessionID)
}

func (r *ReportRepository) ListByUser(ctx context.Context, email string) ([]models.Report, error) {
	const query = `
	SELECT id, session_id, user_email, content, created_at
	FROM reports
	WHERE user_email = $1
	ORDER BY created_at DESC
	`
	return r.query(ctx, query, email)
}

func (r *ReportRepository) query(ctx context.Context, query string, args ...any) ([]models.Report, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		var rep models.Report
		if err := rows.Scan(&rep.ID, &rep.SessionID, &rep.UserEmail, &rep.Content, &rep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
