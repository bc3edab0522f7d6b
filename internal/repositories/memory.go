package repositories

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/models"
)

// MemorySessionStore implements SessionStore in memory.
// Safe for concurrent use; every read and write copies the aggregate.
type MemorySessionStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID]*models.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{data: make(map[uuid.UUID]*models.Session)}
}

func (s *MemorySessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeCodeTaken(session.Code, session.ID) && isActive(session.Status) {
		return ErrDuplicateCode
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	s.data[session.ID] = session.Clone()
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

func (s *MemorySessionStore) GetByCode(ctx context.Context, code string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Session
	for _, session := range s.data {
		if session.Code != code {
			continue
		}
		if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
			latest = session
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest.Clone(), nil
}

func (s *MemorySessionStore) GetActiveByCode(ctx context.Context, code string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.data {
		if session.Code == code && isActive(session.Status) {
			return session.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemorySessionStore) Update(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[session.ID]; !ok {
		return ErrNotFound
	}
	if isActive(session.Status) && s.activeCodeTaken(session.Code, session.ID) {
		return ErrDuplicateCode
	}
	session.UpdatedAt = time.Now()
	s.data[session.ID] = session.Clone()
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return ErrNotFound
	}
	delete(s.data, id)
	return nil
}

func (s *MemorySessionStore) List(ctx context.Context) ([]*models.Session, error) {
	return s.filter(func(*models.Session) bool { return true }), nil
}

func (s *MemorySessionStore) ListByStatus(ctx context.Context, statuses ...models.SessionStatus) ([]*models.Session, error) {
	return s.filter(func(session *models.Session) bool {
		return slices.Contains(statuses, session.Status)
	}), nil
}

func (s *MemorySessionStore) CountByStatus(ctx context.Context) (map[models.SessionStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.SessionStatus]int)
	for _, session := range s.data {
		counts[session.Status]++
	}
	return counts, nil
}

func (s *MemorySessionStore) AverageCompletedDuration(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	var n int
	for _, session := range s.data {
		if session.Status != models.SessionStatusCompleted || session.StartTime == nil || session.EndTime == nil {
			continue
		}
		total += session.DurationMinutes()
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return total / float64(n), nil
}

func (s *MemorySessionStore) CountPerDay(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[string]int)
	for _, session := range s.data {
		if session.StartTime == nil || session.StartTime.Before(since) {
			continue
		}
		byDay[session.StartTime.Format("2006-01-02")]++
	}

	out := make([]models.DailyCount, 0, len(byDay))
	for day, n := range byDay {
		out = append(out, models.DailyCount{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *MemorySessionStore) filter(keep func(*models.Session) bool) []*models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Session
	for _, session := range s.data {
		if keep(session) {
			out = append(out, session.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// activeCodeTaken must be called with mu held.
func (s *MemorySessionStore) activeCodeTaken(code string, self uuid.UUID) bool {
	for id, other := range s.data {
		if id != self && other.Code == code && isActive(other.Status) {
			return true
		}
	}
	return false
}

func isActive(status models.SessionStatus) bool {
	return slices.Contains(models.ActiveStatuses, status)
}

// MemoryTranscriptionStore implements TranscriptionStore in memory.
type MemoryTranscriptionStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID][]models.Transcription
}

func NewMemoryTranscriptionStore() *MemoryTranscriptionStore {
	return &MemoryTranscriptionStore{data: make(map[uuid.UUID][]models.Transcription)}
}

func (s *MemoryTranscriptionStore) Insert(ctx context.Context, t *models.Transcription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[t.SessionID] = append(s.data[t.SessionID], *t)
	return nil
}

func (s *MemoryTranscriptionStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Transcription, error) {
	s.mu.RLock()
	out := append([]models.Transcription(nil), s.data[sessionID]...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// MemoryReportStore implements ReportStore in memory.
type MemoryReportStore struct {
	mu      sync.RWMutex
	reports []models.Report
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{}
}

func (s *MemoryReportStore) Insert(ctx context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, *r)
	return nil
}

func (s *MemoryReportStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Report
	for _, r := range s.reports {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryReportStore) ListByUser(ctx context.Context, email string) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Report
	for i := len(s.reports) - 1; i >= 0; i-- {
		if s.reports[i].UserEmail == email {
			out = append(out, s.reports[i])
		}
	}
	return out, nil
}

// MemoryAuditLogStore implements AuditLogStore in memory.
type MemoryAuditLogStore struct {
	mu      sync.RWMutex
	entries []models.AuditLog
	nextID  int64
}

func NewMemoryAuditLogStore() *MemoryAuditLogStore {
	return &MemoryAuditLogStore{}
}

func (s *MemoryAuditLogStore) Append(ctx context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry.ID = s.nextID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryAuditLogStore) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	return s.List(ctx, models.AuditLogFilter{Limit: limit})
}

func (s *MemoryAuditLogStore) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	var out []models.AuditLog
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[i]
		if filter.ActorEmail != "" && e.ActorEmail != filter.ActorEmail {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.From != nil && e.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Timestamp.After(*filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// MemoryUserStore implements UserStore in memory.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMemoryUserStore(seed ...models.User) *MemoryUserStore {
	s := &MemoryUserStore{users: make(map[string]*models.User)}
	for _, u := range seed {
		u := u
		s.users[u.Email] = &u
	}
	return s
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryUserStore) IncrementSessionsCount(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(email).SessionsCount++
	return nil
}

func (s *MemoryUserStore) IncrementParticipations(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(email).TotalParticipations++
	return nil
}

func (s *MemoryUserStore) ToggleBan(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return false, ErrNotFound
	}
	u.Banned = !u.Banned
	return u.Banned, nil
}

func (s *MemoryUserStore) get(email string) *models.User {
	u, ok := s.users[email]
	if !ok {
		u = &models.User{Email: email, Role: models.RoleUser}
		s.users[email] = u
	}
	return u
}
