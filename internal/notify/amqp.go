package notify

import (
	"context"
	"fmt"
	"time"

	"campusres/internal/events"
	"campusres/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes notifications as persistent JSON messages to a
// durable queue on the default exchange.
type AMQPNotifier struct {
	conn   *amqp.Connection
	ch     amqpChannel
	queue  string
	now    func() time.Time
	logger *zerolog.Logger
}

func DialAMQP(url, queue string, logger *zerolog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	// очередь durable, сообщения переживают рестарт брокера
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	n := newAMQPNotifier(ch, queue, logger)
	n.conn = conn
	return n, nil
}

func newAMQPNotifier(ch amqpChannel, queue string, logger *zerolog.Logger) *AMQPNotifier {
	return &AMQPNotifier{ch: ch, queue: queue, now: time.Now, logger: logger}
}

func (n *AMQPNotifier) ReservationStatusChanged(ctx context.Context, r models.Reservation, resourceName string) error {
	eventType := events.EventReservationApproved
	if r.Status == models.StatusRejected {
		eventType = events.EventReservationRejected
	}
	return n.publish(ctx, eventType, events.ReservationEventPayload{
		ReservationID: r.ID,
		ResourceKind:  string(r.Resource.Kind()),
		ResourceID:    r.Resource.ID(),
		ResourceName:  resourceName,
		RequesterID:   r.RequesterID,
		Status:        string(r.Status),
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
	})
}

func (n *AMQPNotifier) ReportMessageAdded(ctx context.Context, report models.Report, msg models.ReportMessage) error {
	return n.publish(ctx, events.EventReportMessage, events.ReportEventPayload{
		ReportID:    report.ID,
		Title:       report.Title,
		RequesterID: report.RequesterID,
		Status:      string(report.Status),
		AuthorID:    msg.AuthorID,
		Message:     msg.Text,
	})
}

func (n *AMQPNotifier) publish(ctx context.Context, eventType string, payload interface{}) error {
	event, err := events.NewJSONEvent(eventType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         eventType,
		Timestamp:    n.now().UTC(),
		Body:         event.Payload,
	}
	if err := n.ch.PublishWithContext(ctx, "", n.queue, false, false, pub); err != nil {
		return fmt.Errorf("amqp publish %s: %w", eventType, err)
	}
	n.logger.Debug().Str("event_type", eventType).Str("event_id", event.ID).Msg("notification published")
	return nil
}

func (n *AMQPNotifier) Close() error {
	err := n.ch.Close()
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
