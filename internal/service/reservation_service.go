package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"campusres/internal/domain"
	"campusres/internal/events"
	"campusres/internal/export"
	"campusres/internal/ledger"
	"campusres/internal/metrics"
	"campusres/internal/models"

	"github.com/rs/zerolog"
)

// ReservationService validates requests before they reach the ledger and
// fans ledger changes out to the event bus and the notifier.
type ReservationService struct {
	ledger   *ledger.Ledger
	catalog  *CatalogService
	users    *UserService
	notifier domain.Notifier
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewReservationService(
	l *ledger.Ledger,
	catalog *CatalogService,
	users *UserService,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *ReservationService {
	return &ReservationService{
		ledger:   l,
		catalog:  catalog,
		users:    users,
		notifier: notifier,
		eventBus: eventBus,
		logger:   logger,
	}
}

// PublishChanges forwards ledger changes to the event bus until the returned
// func is called.
func (s *ReservationService) PublishChanges() func() {
	return s.ledger.Subscribe(func(ch ledger.Change) {
		eventType := events.EventReservationSubmitted
		if ch.Kind == ledger.ChangeStatusUpdated {
			eventType = events.EventReservationApproved
			if ch.Reservation.Status == models.StatusRejected {
				eventType = events.EventReservationRejected
			}
		}
		ctx := context.Background()
		r := ch.Reservation
		payload := events.ReservationEventPayload{
			ReservationID:  r.ID,
			ResourceKind:   string(r.Resource.Kind()),
			ResourceID:     r.Resource.ID(),
			ResourceName:   s.catalog.ResourceName(ctx, r.Resource),
			RequesterID:    r.RequesterID,
			RequesterName:  s.users.UserName(ctx, r.RequesterID),
			Status:         string(r.Status),
			PreviousStatus: string(ch.PreviousStatus),
			StartTime:      r.StartTime,
			EndTime:        r.EndTime,
		}
		if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
			s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish reservation event")
		}
	})
}

// Validate rejects candidates the ledger would accept but the portal must not:
// missing or unknown resource, empty or inverted range, unknown requester.
func (s *ReservationService) Validate(ctx context.Context, c ledger.Candidate) error {
	if !c.Resource.Valid() {
		return &ledger.ValidationError{Field: "resource", Reason: "exactly one equipment or space is required"}
	}
	if c.StartTime.IsZero() || c.EndTime.IsZero() {
		return &ledger.ValidationError{Field: "time", Reason: "start and end are required"}
	}
	if !c.EndTime.After(c.StartTime) {
		return &ledger.ValidationError{Field: "time", Reason: "end must be after start"}
	}

	exists, err := s.catalog.Exists(ctx, c.Resource)
	if err != nil {
		return err
	}
	if !exists {
		return &ledger.ValidationError{Field: "resource", Reason: fmt.Sprintf("%s does not exist", c.Resource)}
	}

	if _, err := s.users.GetUser(ctx, c.RequesterID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &ledger.ValidationError{Field: "requester", Reason: "unknown requester"}
		}
		return err
	}
	return nil
}

func (s *ReservationService) Submit(ctx context.Context, c ledger.Candidate) (*models.Reservation, error) {
	// TIMESTAMPTZ хранит микросекунды; проверка пересечений должна видеть те же границы
	c.StartTime = c.StartTime.Truncate(time.Microsecond)
	c.EndTime = c.EndTime.Truncate(time.Microsecond)

	kind := string(c.Resource.Kind())
	if err := s.Validate(ctx, c); err != nil {
		metrics.IncSubmitted(kind, "invalid")
		return nil, err
	}

	id, err := s.ledger.Submit(ctx, c)
	if err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			metrics.IncSubmitted(kind, "conflict")
		} else {
			metrics.IncSubmitted(kind, "error")
		}
		return nil, err
	}
	metrics.IncSubmitted(kind, "pending")

	s.logger.Info().
		Int64("reservation_id", id).
		Str("resource", c.Resource.String()).
		Int64("requester_id", c.RequesterID).
		Msg("reservation submitted")
	return s.ledger.Get(ctx, id)
}

func (s *ReservationService) Approve(ctx context.Context, id, actorID int64) (*models.Reservation, error) {
	return s.setStatus(ctx, id, models.StatusApproved, actorID)
}

func (s *ReservationService) Reject(ctx context.Context, id, actorID int64) (*models.Reservation, error) {
	return s.setStatus(ctx, id, models.StatusRejected, actorID)
}

func (s *ReservationService) setStatus(ctx context.Context, id int64, status models.ReservationStatus, actorID int64) (*models.Reservation, error) {
	if err := s.ledger.Decide(ctx, id, status); err != nil {
		return nil, err
	}
	metrics.IncTransition(string(status))

	r, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("reservation_id", id).
		Int64("actor_id", actorID).
		Str("status", string(status)).
		Msg("reservation status changed")

	// уведомление не откатывает смену статуса
	if err := s.notifier.ReservationStatusChanged(ctx, *r, s.catalog.ResourceName(ctx, r.Resource)); err != nil {
		s.logger.Warn().Err(err).Int64("reservation_id", id).Msg("notification failed")
	}
	return r, nil
}

func (s *ReservationService) Get(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.ledger.Get(ctx, id)
}

// ForRequester returns the user's reservations, newest start first.
func (s *ReservationService) ForRequester(ctx context.Context, userID int64) ([]models.Reservation, error) {
	out, err := s.ledger.List(ctx, func(r models.Reservation) bool { return r.RequesterID == userID })
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

// Pending returns reservations awaiting a decision, newest start first.
func (s *ReservationService) Pending(ctx context.Context) ([]models.Reservation, error) {
	out, err := s.ledger.List(ctx, func(r models.Reservation) bool { return r.Status == models.StatusPending })
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *ReservationService) SpaceCalendar(ctx context.Context, spaceID int64, from, to time.Time) ([]models.Reservation, error) {
	if !to.After(from) {
		return nil, &ledger.ValidationError{Field: "range", Reason: "to must be after from"}
	}
	if _, err := s.catalog.GetSpace(ctx, spaceID); err != nil {
		return nil, err
	}
	return s.ledger.Query(ctx, models.SpaceRef(spaceID), from, to)
}

// WeekAvailability buckets the approved reservations of ref into the seven
// days starting at from's midnight.
func (s *ReservationService) WeekAvailability(ctx context.Context, ref models.ResourceRef, from time.Time) ([]models.DayAvailability, error) {
	start := startOfDay(from)
	end := start.AddDate(0, 0, 7)
	approved, err := s.ledger.Query(ctx, ref, start, end)
	if err != nil {
		return nil, err
	}

	days := make([]models.DayAvailability, 7)
	for i := range days {
		dayStart := start.AddDate(0, 0, i)
		dayEnd := dayStart.AddDate(0, 0, 1)
		days[i] = models.DayAvailability{Date: dayStart, Reservations: []models.Reservation{}}
		for _, r := range approved {
			if r.Overlaps(dayStart, dayEnd) {
				days[i].Reservations = append(days[i].Reservations, r)
			}
		}
	}
	return days, nil
}

// ExportRows returns reservations starting in [from, to) with display names.
func (s *ReservationService) ExportRows(ctx context.Context, from, to time.Time) ([]export.Row, error) {
	all, err := s.ledger.List(ctx, func(r models.Reservation) bool {
		return !r.StartTime.Before(from) && r.StartTime.Before(to)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.Before(all[j].StartTime) })

	rows := make([]export.Row, 0, len(all))
	for _, r := range all {
		rows = append(rows, export.Row{
			Reservation:   r,
			ResourceName:  s.catalog.ResourceName(ctx, r.Resource),
			RequesterName: s.users.UserName(ctx, r.RequesterID),
		})
	}
	return rows, nil
}

func (s *ReservationService) ResourceName(ctx context.Context, ref models.ResourceRef) string {
	return s.catalog.ResourceName(ctx, ref)
}

func (s *ReservationService) UserName(ctx context.Context, id int64) string {
	return s.users.UserName(ctx, id)
}

func sortNewestFirst(rs []models.Reservation) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].StartTime.After(rs[j].StartTime) })
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
