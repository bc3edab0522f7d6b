package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/repositories"
	"github.com/preetsinghmakkar/groupcall/internal/sessionlock"
	"github.com/preetsinghmakkar/groupcall/internal/websocket"
)

const (
	codeAttempts  = 5
	reportTimeout = 2 * time.Minute
)

// SessionSpec is the input for a new session. HostEmail comes from the
// caller's identity, never from the request body.
type SessionSpec struct {
	Topic           string             `validate:"required,max=200"`
	Description     string             `validate:"max=2000"`
	Code            string             `validate:"omitempty,numeric,len=6"`
	Type            models.SessionType `validate:"omitempty,oneof=PUBLIC PRIVATE"`
	HasWaitingRoom  bool
	TimeLimit       *int   `validate:"omitempty,min=1,max=1440"`
	MaxParticipants *int   `validate:"omitempty,min=1"`
	HostEmail       string `validate:"required,email"`
}

// UserDirectory is the slice of the user directory admission reads and writes.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	IncrementSessionsCount(ctx context.Context, email string) error
	IncrementParticipations(ctx context.Context, email string) error
}

// ReportGenerator builds post-session reports.
type ReportGenerator interface {
	GenerateIndividualReports(ctx context.Context, session *models.Session) error
}

// AdmissionService owns every session mutation. All writes for one session
// run under that session's lock; broadcasts and collaborator calls happen
// only after the lock is released.
type AdmissionService struct {
	sessions       repositories.SessionStore
	transcriptions repositories.TranscriptionStore
	users          UserDirectory
	locks          *sessionlock.Manager
	publisher      Publisher
	reports        ReportGenerator
	validate       *validator.Validate
	options
}

func NewAdmissionService(
	sessions repositories.SessionStore,
	transcriptions repositories.TranscriptionStore,
	users UserDirectory,
	locks *sessionlock.Manager,
	publisher Publisher,
	reports ReportGenerator,
	opts ...Option,
) *AdmissionService {
	return &AdmissionService{
		sessions:       sessions,
		transcriptions: transcriptions,
		users:          users,
		locks:          locks,
		publisher:      publisher,
		reports:        reports,
		validate:       validator.New(),
		options:        buildOptions("admission", opts),
	}
}

func sessionKey(id uuid.UUID) string { return "session:" + id.String() }

func codeKey(code string) string { return "code:" + code }

// CreateSession stores a new SCHEDULED session. A missing code is generated.
func (s *AdmissionService) CreateSession(ctx context.Context, spec SessionSpec) (*models.Session, error) {
	session, err := s.createSession(ctx, spec)
	s.metrics.ObserveAdmission("create", err)
	if err != nil {
		return nil, err
	}

	if err := s.users.IncrementSessionsCount(ctx, session.HostEmail); err != nil {
		s.logger.Warn().Err(err).Str("email", session.HostEmail).Msg("failed to record hosted session")
	}

	s.logger.Info().
		Str("session_id", session.ID.String()).
		Str("code", session.Code).
		Msg("session created")
	return session, nil
}

func (s *AdmissionService) createSession(ctx context.Context, spec SessionSpec) (*models.Session, error) {
	if err := s.validate.Struct(spec); err != nil {
		return nil, validationFrom(err)
	}

	sessionType := spec.Type
	if sessionType == "" {
		sessionType = models.SessionTypePublic
	}

	attempts := codeAttempts
	if spec.Code != "" {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		code := spec.Code
		if code == "" {
			code = generateCode()
		}

		session := &models.Session{
			ID:              uuid.New(),
			Topic:           spec.Topic,
			Description:     spec.Description,
			Code:            code,
			Status:          models.SessionStatusScheduled,
			Type:            sessionType,
			HasWaitingRoom:  spec.HasWaitingRoom,
			TimeLimit:       spec.TimeLimit,
			MaxParticipants: spec.MaxParticipants,
			HostEmail:       spec.HostEmail,
			Participants:    []models.Participant{},
			WaitingList:     []models.Participant{},
		}

		err := s.locks.WithLock(ctx, codeKey(code), func(ctx context.Context) error {
			if _, err := s.sessions.GetActiveByCode(ctx, code); err == nil {
				return repositories.ErrDuplicateCode
			} else if !errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("check code: %w", err)
			}
			return s.sessions.Create(ctx, session)
		})
		if errors.Is(err, repositories.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return session, nil
	}

	if spec.Code != "" {
		return nil, &ValidationError{Field: "code", Message: "already in use by an active session"}
	}
	return nil, &ValidationError{Field: "code", Message: "could not allocate a free join code"}
}

func generateCode() string {
	return strconv.Itoa(100000 + rand.IntN(900000))
}

// StartSession moves a session to LIVE. Starting a LIVE session is a no-op.
func (s *AdmissionService) StartSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var (
		result  *models.Session
		changed bool
	)
	err := s.mutate(ctx, id, func(ctx context.Context, session *models.Session) error {
		result = session
		if err := advance(session, models.SessionStatusLive); err != nil {
			return err
		}
		if session.Status == models.SessionStatusLive {
			return nil
		}

		now := s.now()
		session.Status = models.SessionStatusLive
		if session.StartTime == nil {
			session.StartTime = &now
		}
		if session.TimeLimit != nil && session.EndTime == nil {
			end := session.StartTime.Add(time.Duration(*session.TimeLimit) * time.Minute)
			session.EndTime = &end
		}
		changed = true
		return s.sessions.Update(ctx, session)
	})
	s.metrics.ObserveAdmission("start", err)
	if err != nil {
		return nil, err
	}

	if changed {
		s.publish(websocket.SessionTopic(id), result)
	}
	return result, nil
}

// JoinSession admits or queues participant. A repeated join returns the
// session unchanged. The participant id is always assigned here; banned
// users are refused.
func (s *AdmissionService) JoinSession(ctx context.Context, id uuid.UUID, participant models.Participant) (*models.Session, error) {
	if participant.Email == "" {
		return nil, &ValidationError{Field: "email", Message: "required"}
	}
	if err := s.checkNotBanned(ctx, participant.Email); err != nil {
		s.metrics.ObserveAdmission("join", err)
		return nil, err
	}

	var (
		result   *models.Session
		changed  bool
		admitted bool
	)
	err := s.mutate(ctx, id, func(ctx context.Context, session *models.Session) error {
		result = session
		if session.HasMember(participant.Email) {
			return nil
		}

		participant.ID = uuid.NewString()
		participant.IsHost = participant.Email == session.HostEmail
		participant.JoinedAt = s.now()
		participant.SpeakingTime = 0

		switch {
		case session.HasWaitingRoom && !participant.IsHost:
			session.WaitingList = append(session.WaitingList, participant)
		case session.IsFull() && !participant.IsHost:
			session.WaitingList = append(session.WaitingList, participant)
		default:
			session.Participants = append(session.Participants, participant)
			session.ParticipantsCount = len(session.Participants)
			admitted = true
		}
		changed = true
		return s.sessions.Update(ctx, session)
	})
	s.metrics.ObserveAdmission("join", err)
	if err != nil {
		return nil, err
	}
	if !changed {
		return result, nil
	}

	if admitted {
		s.recordParticipation(ctx, participant.Email)
	}
	s.publish(websocket.SessionTopic(id), result)
	s.publish(websocket.GlobalTopic, result)
	return result, nil
}

// AdmitParticipant moves a waiting entry, matched by id then email, into participants.
func (s *AdmissionService) AdmitParticipant(ctx context.Context, id uuid.UUID, idOrEmail string) (*models.Session, error) {
	var (
		result   *models.Session
		admitted models.Participant
	)
	err := s.mutate(ctx, id, func(ctx context.Context, session *models.Session) error {
		idx := session.FindWaiting(idOrEmail)
		if idx < 0 {
			return &NotFoundError{Resource: "waiting participant", Key: idOrEmail}
		}
		if session.IsFull() {
			return &ValidationError{Field: "maxParticipants", Message: "session is full"}
		}

		admitted = session.WaitingList[idx]
		session.WaitingList = append(session.WaitingList[:idx], session.WaitingList[idx+1:]...)
		session.Participants = append(session.Participants, admitted)
		session.ParticipantsCount = len(session.Participants)
		result = session
		return s.sessions.Update(ctx, session)
	})
	s.metrics.ObserveAdmission("admit", err)
	if err != nil {
		return nil, err
	}

	s.recordParticipation(ctx, admitted.Email)
	s.publish(websocket.SessionTopic(id), result)
	s.publish(websocket.GlobalTopic, result)
	return result, nil
}

// EndSession completes a LIVE session. A non-empty override replaces the
// persisted transcript snapshot.
func (s *AdmissionService) EndSession(ctx context.Context, id uuid.UUID, transcriptOverride []string) (*models.Session, error) {
	session, err := s.endSession(ctx, id, transcriptOverride, nil)
	s.metrics.ObserveAdmission("end", err)
	if err != nil {
		return nil, err
	}
	s.afterComplete(ctx, session, false)
	return session, nil
}

// endSession completes id under its lock. beforeCommit runs after the
// lifecycle check and can veto the commit.
func (s *AdmissionService) endSession(
	ctx context.Context,
	id uuid.UUID,
	override []string,
	beforeCommit func(context.Context, *models.Session) error,
) (*models.Session, error) {
	var result *models.Session
	err := s.mutate(ctx, id, func(ctx context.Context, session *models.Session) error {
		if err := advance(session, models.SessionStatusCompleted); err != nil {
			return err
		}
		if beforeCommit != nil {
			if err := beforeCommit(ctx, session); err != nil {
				return err
			}
		}
		result = session
		return s.completeLocked(ctx, session, override)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// completeLocked must run under the session lock.
func (s *AdmissionService) completeLocked(ctx context.Context, session *models.Session, override []string) error {
	if err := advance(session, models.SessionStatusCompleted); err != nil {
		return err
	}
	transcript := override
	if len(transcript) == 0 {
		snapshot, err := s.transcriptSnapshot(ctx, session.ID)
		if err != nil {
			return err
		}
		transcript = snapshot
	}

	now := s.now()
	session.Status = models.SessionStatusCompleted
	session.EndTime = &now
	session.Transcript = transcript
	return s.sessions.Update(ctx, session)
}

func (s *AdmissionService) transcriptSnapshot(ctx context.Context, id uuid.UUID) ([]string, error) {
	records, err := s.transcriptions.ListBySession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load transcriptions: %w", err)
	}
	lines := make([]string, 0, len(records))
	for _, t := range records {
		lines = append(lines, t.Line())
	}
	return lines, nil
}

// afterComplete publishes the completed session and dispatches reports.
func (s *AdmissionService) afterComplete(ctx context.Context, session *models.Session, global bool) {
	s.publish(websocket.SessionTopic(session.ID), session)
	if global {
		s.publish(websocket.GlobalTopic, session)
	}

	if s.reports == nil {
		return
	}
	snapshot := session.Clone()
	base := context.WithoutCancel(ctx)
	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(base, reportTimeout)
		defer cancel()
		if err := s.reports.GenerateIndividualReports(ctx, snapshot); err != nil {
			s.logger.Error().Err(err).Str("session_id", snapshot.ID.String()).Msg("report generation failed")
		}
	})
}

// DeleteSession removes a session in any status.
func (s *AdmissionService) DeleteSession(ctx context.Context, id uuid.UUID) error {
	err := s.locks.WithLock(ctx, sessionKey(id), func(ctx context.Context) error {
		if err := s.sessions.Delete(ctx, id); err != nil {
			return loadErr(id, err)
		}
		return nil
	})
	s.metrics.ObserveAdmission("delete", err)
	if err != nil {
		return err
	}

	s.publish(websocket.SessionTopic(id), websocket.RemovedEvent{ID: id, Status: string(models.SessionStatusDeleted)})
	s.logger.Info().Str("session_id", id.String()).Msg("session deleted")
	return nil
}

// expireOutcome is what the sweeper did with one candidate.
type expireOutcome int

const (
	expireSkipped expireOutcome = iota
	expireDeleted
	expireCompleted
)

// expire re-checks a sweep candidate under its lock and deletes or completes it.
func (s *AdmissionService) expire(ctx context.Context, id uuid.UUID) (expireOutcome, *models.Session, error) {
	outcome := expireSkipped
	var result *models.Session

	err := s.locks.WithLock(ctx, sessionKey(id), func(ctx context.Context) error {
		session, err := s.sessions.Get(ctx, id)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		if err != nil {
			return loadErr(id, err)
		}
		if session.Status != models.SessionStatusLive || session.EndTime == nil || !session.EndTime.Before(s.now()) {
			return nil
		}

		if len(session.Participants) == 0 {
			if err := s.sessions.Delete(ctx, id); err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return err
			}
			outcome = expireDeleted
			return nil
		}

		if err := s.completeLocked(ctx, session, nil); err != nil {
			return err
		}
		result = session
		outcome = expireCompleted
		return nil
	})
	return outcome, result, err
}

// mutate loads id under its lock, rejects completed sessions, and runs fn.
func (s *AdmissionService) mutate(ctx context.Context, id uuid.UUID, fn func(context.Context, *models.Session) error) error {
	return s.locks.WithLock(ctx, sessionKey(id), func(ctx context.Context) error {
		session, err := s.sessions.Get(ctx, id)
		if err != nil {
			return loadErr(id, err)
		}
		if session.Status.IsTerminal() {
			return terminal(session)
		}
		return fn(ctx, session)
	})
}

// AuthorizeWatch lets identity follow a session's live events. PUBLIC
// sessions are open to anyone; PRIVATE ones to the host, admins and members,
// waiting ones included.
func (s *AdmissionService) AuthorizeWatch(ctx context.Context, identity models.Identity, id uuid.UUID) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session.Type == models.SessionTypePrivate && !CanManageSession(identity, session) && !session.HasMember(identity.Email) {
		return &ForbiddenError{Actor: identity.Email, Action: "watch this session"}
	}
	return nil
}

// AuthorizeSpeak lets identity publish signaling and utterances into a
// session: the host, admins and admitted participants.
func (s *AdmissionService) AuthorizeSpeak(ctx context.Context, identity models.Identity, id uuid.UUID) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if !CanManageSession(identity, session) && !session.IsParticipant(identity.Email) {
		return &ForbiddenError{Actor: identity.Email, Action: "speak in this session"}
	}
	return nil
}

func (s *AdmissionService) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, loadErr(id, err)
	}
	return session, nil
}

func (s *AdmissionService) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	session, err := s.sessions.GetByCode(ctx, code)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, &NotFoundError{Resource: "session code", Key: code}
	}
	if err != nil {
		return nil, fmt.Errorf("load session by code: %w", err)
	}
	return session, nil
}

func (s *AdmissionService) ListSessions(ctx context.Context) ([]*models.Session, error) {
	return s.sessions.List(ctx)
}

func (s *AdmissionService) ListActiveSessions(ctx context.Context) ([]*models.Session, error) {
	return s.sessions.ListByStatus(ctx, models.ActiveStatuses...)
}

// checkNotBanned refuses users the directory marks as banned. Emails the
// directory does not know are allowed.
func (s *AdmissionService) checkNotBanned(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user.Banned {
		return &ForbiddenError{Actor: email, Action: "join sessions while banned"}
	}
	return nil
}

func (s *AdmissionService) recordParticipation(ctx context.Context, email string) {
	if err := s.users.IncrementParticipations(ctx, email); err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("failed to record participation")
	}
}

func (s *AdmissionService) publish(topic string, payload any) {
	res, err := s.publisher.Publish(topic, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Msg("publish failed")
		return
	}
	if res.Dropped > 0 {
		s.logger.Warn().Str("topic", topic).Int("dropped", res.Dropped).Msg("publish dropped for slow subscribers")
	}
}

func validationFrom(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Message: "failed on " + fe.Tag()}
	}
	return &ValidationError{Message: err.Error()}
}
