package repositories

import (
	"context"
	"database/sql"

	"github.com/preetsinghmakkar/groupcall/internal/models"
)

// UserRepository reads and updates the users table owned by the auth service.
// Counters are upserted so a missing row never fails a session operation.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `
	SELECT email, name, role, sessions_count, total_participations, banned
	FROM users
	WHERE email = $1
	LIMIT 1
	`

	var u models.User
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&u.Email,
		&u.Name,
		&u.Role,
		&u.SessionsCount,
		&u.TotalParticipations,
		&u.Banned,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) IncrementSessionsCount(ctx context.Context, email string) error {
	const query = `
	INSERT INTO users (email, sessions_count)
	VALUES ($1, 1)
	ON CONFLICT (email) DO UPDATE SET sessions_count = users.sessions_count + 1
	`

	_, err := r.db.ExecContext(ctx, query, email)
	return err
}

func (r *UserRepository) IncrementParticipations(ctx context.Context, email string) error {
	const query = `
	INSERT INTO users (email, total_participations)
	VALUES ($1, 1)
	ON CONFLICT (email) DO UPDATE SET total_participations = users.total_participations + 1
	`

	_, err := r.db.ExecContext(ctx, query, email)
	return err
}

func (r *UserRepository) ToggleBan(ctx context.Context, email string) (bool, error) {
	const query = `
	UPDATE users
	SET banned = NOT banned
	WHERE email = $1
	RETURNING banned
	`

	var banned bool
	err := r.db.QueryRowContext(ctx, query, email).Scan(&banned)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	return banned, err
}
