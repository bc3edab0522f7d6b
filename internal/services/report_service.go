package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/repositories"
)

const (
	summaryHeading = "### Overall Session Summary\n\n"
	summaryPrefix  = "Analyze this entire group discussion:\n"
	unknownSpeaker = "Unknown"
)

// ReportWriter produces report text for a transcript. It always returns usable text.
type ReportWriter interface {
	GenerateReport(ctx context.Context, transcript string) string
}

type ReportService struct {
	sessions       repositories.SessionStore
	transcriptions repositories.TranscriptionStore
	reports        repositories.ReportStore
	writer         ReportWriter
	options
}

func NewReportService(
	sessions repositories.SessionStore,
	transcriptions repositories.TranscriptionStore,
	reports repositories.ReportStore,
	writer ReportWriter,
	opts ...Option,
) *ReportService {
	return &ReportService{
		sessions:       sessions,
		transcriptions: transcriptions,
		reports:        reports,
		writer:         writer,
		options:        buildOptions("reports", opts),
	}
}

// utterance is one speaker-attributed line regardless of where it came from.
type utterance struct {
	speaker string
	text    string
}

// GenerateIndividualReports writes one report per speaker plus a session
// summary. Persisted transcriptions win over the session's stored transcript.
func (s *ReportService) GenerateIndividualReports(ctx context.Context, session *models.Session) error {
	lines, err := s.collect(ctx, session)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		s.logger.Info().Str("session_id", session.ID.String()).Msg("no transcript, skipping reports")
		return nil
	}

	var (
		order     []string
		bySpeaker = make(map[string][]string)
		full      strings.Builder
	)
	for _, u := range lines {
		if _, seen := bySpeaker[u.speaker]; !seen {
			order = append(order, u.speaker)
		}
		bySpeaker[u.speaker] = append(bySpeaker[u.speaker], u.text)
		full.WriteString(u.speaker + ": " + u.text + "\n")
	}

	written := 0
	for _, speaker := range order {
		content := s.writer.GenerateReport(ctx, strings.Join(bySpeaker[speaker], " "))
		if err := s.insert(ctx, session.ID, speaker, content); err != nil {
			s.metrics.ObserveReports(written)
			return err
		}
		written++
	}

	summary := s.writer.GenerateReport(ctx, summaryPrefix+full.String())
	if err := s.insert(ctx, session.ID, models.SessionSummaryEmail, summaryHeading+summary); err != nil {
		s.metrics.ObserveReports(written)
		return err
	}
	written++
	s.metrics.ObserveReports(written)

	s.logger.Info().
		Str("session_id", session.ID.String()).
		Int("speakers", len(order)).
		Msg("reports generated")
	return nil
}

func (s *ReportService) collect(ctx context.Context, session *models.Session) ([]utterance, error) {
	records, err := s.transcriptions.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("load transcriptions: %w", err)
	}
	if len(records) > 0 {
		out := make([]utterance, 0, len(records))
		for _, t := range records {
			out = append(out, utterance{speaker: t.SpeakerID, text: t.Text})
		}
		return out, nil
	}
	return parseTranscript(session.Transcript), nil
}

// parseTranscript reads "Speaker: text" lines; lines without a speaker go to Unknown.
func parseTranscript(lines []string) []utterance {
	var out []utterance
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		speaker, text, ok := strings.Cut(line, ":")
		speaker, text = strings.TrimSpace(speaker), strings.TrimSpace(text)
		if !ok || speaker == "" {
			speaker, text = unknownSpeaker, line
		}
		if text == "" {
			continue
		}
		out = append(out, utterance{speaker: speaker, text: text})
	}
	return out
}

func (s *ReportService) insert(ctx context.Context, sessionID uuid.UUID, email, content string) error {
	report := &models.Report{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserEmail: email,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.reports.Insert(ctx, report); err != nil {
		return fmt.Errorf("save report for %s: %w", email, err)
	}
	return nil
}

// RegenerateReports reruns generation synchronously for a completed session.
func (s *ReportService) RegenerateReports(ctx context.Context, id uuid.UUID) ([]models.Report, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, loadErr(id, err)
	}
	if session.Status != models.SessionStatusCompleted {
		return nil, &ValidationError{Field: "status", Message: "reports are only generated for completed sessions"}
	}
	if err := s.GenerateIndividualReports(ctx, session); err != nil {
		return nil, err
	}
	return s.reports.ListBySession(ctx, id)
}

func (s *ReportService) ListReports(ctx context.Context, sessionID uuid.UUID) ([]models.Report, error) {
	return s.reports.ListBySession(ctx, sessionID)
}

func (s *ReportService) ListReportsForUser(ctx context.Context, email string) ([]models.Report, error) {
	return s.reports.ListByUser(ctx, email)
}
