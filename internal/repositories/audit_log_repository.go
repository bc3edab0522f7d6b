package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/preetsinghmakkar/groupcall/internal/models"
)

const defaultAuditLimit = 100

type AuditLogRepository struct {
	db *sql.DB
}

func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Append writes a new entry and fills in its id; a zero timestamp becomes NOW()
func (r *AuditLogRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	const query = `
	INSERT INTO audit_logs (action, actor_email, target_type, target_id, details, ip_address, timestamp)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
	RETURNING id, timestamp
	`

	var ts *time.Time
	if !entry.Timestamp.IsZero() {
		ts = &entry.Timestamp
	}

	return r.db.QueryRowContext(
		ctx,
		query,
		entry.Action,
		entry.ActorEmail,
		entry.TargetType,
		entry.TargetID,
		entry.Details,
		entry.IPAddress,
		ts,
	).Scan(&entry.ID, &entry.Timestamp)
}

func (r *AuditLogRepository) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	return r.List(ctx, models.AuditLogFilter{Limit: limit})
}

func (r *AuditLogRepository) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.ActorEmail != "" {
		add("actor_email = $%d", filter.ActorEmail)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.From != nil {
		add("timestamp >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("timestamp <= $%d", *filter.To)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	query := `SELECT id, action, actor_email, target_type, target_id, details, ip_address, timestamp FROM audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY timestamp DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorEmail, &e.TargetType, &e.TargetID, &e.Details, &e.IPAddress, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
