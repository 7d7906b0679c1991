// Package notify delivers reservation and report notifications to requesters.
// Delivery is best effort: a failed channel is logged and never rolls back
// the change that triggered it.
package notify

import (
	"context"

	"campusres/internal/domain"
	"campusres/internal/metrics"
	"campusres/internal/models"

	"github.com/rs/zerolog"
)

// LogNotifier пишет уведомления в лог
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) ReservationStatusChanged(_ context.Context, r models.Reservation, resourceName string) error {
	n.logger.Info().
		Int64("reservation_id", r.ID).
		Int64("requester_id", r.RequesterID).
		Str("resource", resourceName).
		Str("status", string(r.Status)).
		Msg("reservation status changed")
	return nil
}

func (n *LogNotifier) ReportMessageAdded(_ context.Context, report models.Report, msg models.ReportMessage) error {
	n.logger.Info().
		Int64("report_id", report.ID).
		Int64("requester_id", report.RequesterID).
		Int64("author_id", msg.AuthorID).
		Msg("report message added")
	return nil
}

// Channel is a named notifier; the name labels failure metrics.
type Channel struct {
	Name     string
	Notifier domain.Notifier
}

// Multi fans a notification out to every channel.
type Multi struct {
	channels []Channel
	logger   *zerolog.Logger
}

func NewMulti(logger *zerolog.Logger, channels ...Channel) *Multi {
	return &Multi{channels: channels, logger: logger}
}

func (m *Multi) Len() int { return len(m.channels) }

func (m *Multi) ReservationStatusChanged(ctx context.Context, r models.Reservation, resourceName string) error {
	for _, ch := range m.channels {
		if err := ch.Notifier.ReservationStatusChanged(ctx, r, resourceName); err != nil {
			m.failed(ch.Name, err).Int64("reservation_id", r.ID).Msg("reservation notification failed")
		}
	}
	return nil
}

func (m *Multi) ReportMessageAdded(ctx context.Context, report models.Report, msg models.ReportMessage) error {
	for _, ch := range m.channels {
		if err := ch.Notifier.ReportMessageAdded(ctx, report, msg); err != nil {
			m.failed(ch.Name, err).Int64("report_id", report.ID).Msg("report notification failed")
		}
	}
	return nil
}

func (m *Multi) failed(channel string, err error) *zerolog.Event {
	metrics.IncNotificationFailure(channel)
	return m.logger.Warn().Err(err).Str("channel", channel)
}
