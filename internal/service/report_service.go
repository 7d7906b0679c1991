package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"campusres/internal/domain"
	"campusres/internal/events"
	"campusres/internal/models"

	"github.com/rs/zerolog"
)

type ReportService struct {
	repo     domain.ReportRepository
	notifier domain.Notifier
	eventBus domain.EventPublisher
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewReportService(repo domain.ReportRepository, notifier domain.Notifier, eventBus domain.EventPublisher, logger *zerolog.Logger) *ReportService {
	return &ReportService{repo: repo, notifier: notifier, eventBus: eventBus, now: time.Now, logger: logger}
}

// Create files a new report in status Open.
func (s *ReportService) Create(ctx context.Context, r *models.Report) error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return &domain.FieldError{Field: "title", Reason: "is required"}
	}
	now := s.now()
	r.Status = models.ReportOpen
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := s.repo.CreateReport(ctx, r); err != nil {
		return err
	}
	s.publish(events.EventReportCreated, r, nil)
	return nil
}

// AddMessage appends to the thread and bumps UpdatedAt. The report owner is
// notified only when someone else wrote the message.
func (s *ReportService) AddMessage(ctx context.Context, reportID, authorID int64, text string) (*models.ReportMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &domain.FieldError{Field: "text", Reason: "is required"}
	}
	report, err := s.repo.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg := &models.ReportMessage{ReportID: reportID, AuthorID: authorID, Text: text, SentAt: now}
	if err := s.repo.AddReportMessage(ctx, msg); err != nil {
		return nil, err
	}
	report.UpdatedAt = now
	if err := s.repo.UpdateReport(ctx, report); err != nil {
		return nil, err
	}
	s.publish(events.EventReportMessage, report, msg)

	if authorID != report.RequesterID {
		if err := s.notifier.ReportMessageAdded(ctx, *report, *msg); err != nil {
			s.logger.Warn().Err(err).Int64("report_id", reportID).Msg("notification failed")
		}
	}
	return msg, nil
}

func (s *ReportService) UpdateStatus(ctx context.Context, reportID int64, status models.ReportStatus) (*models.Report, error) {
	if !status.Valid() {
		return nil, &domain.FieldError{Field: "status", Reason: "must be open, in_progress or closed"}
	}
	report, err := s.repo.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	report.Status = status
	report.UpdatedAt = s.now()
	if err := s.repo.UpdateReport(ctx, report); err != nil {
		return nil, err
	}
	s.publish(events.EventReportStatusChanged, report, nil)
	return report, nil
}

func (s *ReportService) Get(ctx context.Context, id int64) (*models.Report, error) {
	return s.repo.GetReport(ctx, id)
}

// List returns every report, most recently updated first.
func (s *ReportService) List(ctx context.Context) ([]models.Report, error) {
	reports, err := s.repo.ListReports(ctx)
	if err != nil {
		return nil, err
	}
	sortByUpdated(reports)
	return reports, nil
}

func (s *ReportService) ListForRequester(ctx context.Context, userID int64) ([]models.Report, error) {
	reports, err := s.repo.ListReports(ctx)
	if err != nil {
		return nil, err
	}
	out := reports[:0]
	for _, r := range reports {
		if r.RequesterID == userID {
			out = append(out, r)
		}
	}
	sortByUpdated(out)
	return out, nil
}

func (s *ReportService) Messages(ctx context.Context, reportID int64) ([]models.ReportMessage, error) {
	if _, err := s.repo.GetReport(ctx, reportID); err != nil {
		return nil, err
	}
	return s.repo.ListReportMessages(ctx, reportID)
}

func (s *ReportService) publish(eventType string, r *models.Report, msg *models.ReportMessage) {
	payload := events.ReportEventPayload{
		ReportID:    r.ID,
		Title:       r.Title,
		RequesterID: r.RequesterID,
		Status:      string(r.Status),
	}
	if msg != nil {
		payload.AuthorID = msg.AuthorID
		payload.Message = msg.Text
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish report event")
	}
}

func sortByUpdated(rs []models.Report) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].UpdatedAt.After(rs[j].UpdatedAt) })
}
