package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateCode = errors.New("join code already in use by an active session")
)

// SessionStore is the durable keyed store of Session aggregates.
// It carries no business rules; the admission service is its only writer.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetByCode(ctx context.Context, code string) (*models.Session, error)
	// GetActiveByCode only matches SCHEDULED or LIVE sessions.
	GetActiveByCode(ctx context.Context, code string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context) ([]*models.Session, error)
	ListByStatus(ctx context.Context, statuses ...models.SessionStatus) ([]*models.Session, error)
	CountByStatus(ctx context.Context) (map[models.SessionStatus]int, error)
	AverageCompletedDuration(ctx context.Context) (float64, error)
	CountPerDay(ctx context.Context, since time.Time) ([]models.DailyCount, error)
}

type TranscriptionStore interface {
	Insert(ctx context.Context, t *models.Transcription) error
	// ListBySession returns records in timestamp order.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Transcription, error)
}

type ReportStore interface {
	Insert(ctx context.Context, r *models.Report) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Report, error)
	ListByUser(ctx context.Context, email string) ([]models.Report, error)
}

// AuditLogStore is append-only: there is deliberately no update or delete.
type AuditLogStore interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	Recent(ctx context.Context, limit int) ([]models.AuditLog, error)
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error)
}

// UserStore is the slice of the external user directory this service touches.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	IncrementSessionsCount(ctx context.Context, email string) error
	IncrementParticipations(ctx context.Context, email string) error
	// ToggleBan flips the banned flag and returns the new value.
	ToggleBan(ctx context.Context, email string) (bool, error)
}

// Stores groups one implementation of every store.
type Stores struct {
	Sessions       SessionStore
	Transcriptions TranscriptionStore
	Reports        ReportStore
	AuditLogs      AuditLogStore
	Users          UserStore
}

func NewPostgresStores(db *sql.DB) *Stores {
	return &Stores{
		Sessions:       NewSessionRepository(db),
		Transcriptions: NewTranscriptionRepository(db),
		Reports:        NewReportRepository(db),
		AuditLogs:      NewAuditLogRepository(db),
		Users:          NewUserRepository(db),
	}
}

// NewMemoryStores backs every store with process memory; nothing survives a restart.
func NewMemoryStores() *Stores {
	return &Stores{
		Sessions:       NewMemorySessionStore(),
		Transcriptions: NewMemoryTranscriptionStore(),
		Reports:        NewMemoryReportStore(),
		AuditLogs:      NewMemoryAuditLogStore(),
		Users:          NewMemoryUserStore(),
	}
}
