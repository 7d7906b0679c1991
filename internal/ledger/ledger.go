package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"campusres/internal/domain"
	"campusres/internal/models"

	"github.com/rs/zerolog"
)

type Candidate struct {
	Resource    models.ResourceRef
	RequesterID int64
	StartTime   time.Time
	EndTime     time.Time
}

type Options struct {
	// RecheckOnApprove makes SetStatus(Approved) fail with ErrConflict when another
	// approved reservation already covers part of the range.
	RecheckOnApprove bool
	Now              func() time.Time
}

type ChangeKind string

const (
	ChangeSubmitted     ChangeKind = "submitted"
	ChangeStatusUpdated ChangeKind = "status_updated"
)

type Change struct {
	Kind           ChangeKind
	Reservation    models.Reservation
	PreviousStatus models.ReservationStatus
}

// Ledger owns the reservation collection. Writers are serialized so the
// overlap check and the append happen as one step.
type Ledger struct {
	store  domain.ReservationStore
	opts   Options
	logger *zerolog.Logger

	mu sync.Mutex

	subMu       sync.RWMutex
	subscribers map[int]func(Change)
	nextSubID   int
}

func New(store domain.ReservationStore, opts Options, logger *zerolog.Logger) *Ledger {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Ledger{
		store:       store,
		opts:        opts,
		logger:      logger,
		subscribers: make(map[int]func(Change)),
	}
}

// Submit records a pending reservation unless it overlaps an approved one for the
// same resource. Time ordering of the candidate is the caller's responsibility.
func (l *Ledger) Submit(ctx context.Context, c Candidate) (int64, error) {
	if !c.Resource.Valid() {
		return 0, &ValidationError{Field: "resource", Reason: "exactly one equipment or space is required"}
	}

	r, err := l.submit(ctx, c)
	if err != nil {
		return 0, err
	}

	l.logger.Debug().
		Int64("reservation_id", r.ID).
		Str("resource", r.Resource.String()).
		Int64("requester_id", r.RequesterID).
		Msg("reservation submitted")

	l.publish(Change{Kind: ChangeSubmitted, Reservation: *r})
	return r.ID, nil
}

func (l *Ledger) submit(ctx context.Context, c Candidate) (*models.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if blocking, err := l.firstApprovedOverlap(ctx, c.Resource, c.StartTime, c.EndTime, 0); err != nil {
		return nil, err
	} else if blocking != nil {
		return nil, &ConflictError{Resource: c.Resource, ReservationID: blocking.ID}
	}

	now := l.opts.Now()
	r := &models.Reservation{
		Resource:    c.Resource,
		RequesterID: c.RequesterID,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.store.AppendReservation(ctx, r); err != nil {
		return nil, fmt.Errorf("append reservation: %w", err)
	}
	return r, nil
}

// SetStatus moves a reservation to Approved or Rejected whatever its current
// status is.
func (l *Ledger) SetStatus(ctx context.Context, id int64, status models.ReservationStatus) error {
	return l.transition(ctx, id, status, false)
}

// Decide is SetStatus for a reservation that must still be pending. A decided
// reservation is left unchanged and ErrAlreadyDecided is returned.
func (l *Ledger) Decide(ctx context.Context, id int64, status models.ReservationStatus) error {
	return l.transition(ctx, id, status, true)
}

func (l *Ledger) transition(ctx context.Context, id int64, status models.ReservationStatus, pendingOnly bool) error {
	if status != models.StatusApproved && status != models.StatusRejected {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("cannot transition to %q", status)}
	}

	updated, previous, err := l.setStatus(ctx, id, status, pendingOnly)
	if err != nil {
		return err
	}

	l.logger.Debug().
		Int64("reservation_id", id).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("reservation status updated")

	l.publish(Change{Kind: ChangeStatusUpdated, Reservation: *updated, PreviousStatus: previous})
	return nil
}

func (l *Ledger) setStatus(ctx context.Context, id int64, status models.ReservationStatus, pendingOnly bool) (*models.Reservation, models.ReservationStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", fmt.Errorf("reservation %d: %w", id, ErrNotFound)
		}
		return nil, "", fmt.Errorf("get reservation: %w", err)
	}

	if pendingOnly && r.Status != models.StatusPending {
		return nil, "", &DecidedError{ReservationID: r.ID, Status: r.Status}
	}

	if l.opts.RecheckOnApprove && status == models.StatusApproved {
		blocking, err := l.firstApprovedOverlap(ctx, r.Resource, r.StartTime, r.EndTime, r.ID)
		if err != nil {
			return nil, "", err
		}
		if blocking != nil {
			return nil, "", &ConflictError{Resource: r.Resource, ReservationID: blocking.ID}
		}
	}

	now := l.opts.Now()
	if err := l.store.UpdateReservationStatus(ctx, id, status, now); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", fmt.Errorf("reservation %d: %w", id, ErrNotFound)
		}
		return nil, "", fmt.Errorf("update reservation status: %w", err)
	}

	previous := r.Status
	r.Status = status
	r.UpdatedAt = now
	return r, previous, nil
}

// Query returns approved reservations of ref intersecting [start, end), earliest first.
func (l *Ledger) Query(ctx context.Context, ref models.ResourceRef, start, end time.Time) ([]models.Reservation, error) {
	if !ref.Valid() {
		return nil, &ValidationError{Field: "resource", Reason: "exactly one equipment or space is required"}
	}
	return l.approvedOverlapping(ctx, ref, start, end)
}

func (l *Ledger) Get(ctx context.Context, id int64) (*models.Reservation, error) {
	r, err := l.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

// List returns every reservation accepted by keep, in store order. A nil keep
// returns everything.
func (l *Ledger) List(ctx context.Context, keep func(models.Reservation) bool) ([]models.Reservation, error) {
	all, err := l.store.ListReservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	if keep == nil {
		return all, nil
	}
	out := make([]models.Reservation, 0, len(all))
	for _, r := range all {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Subscribe registers fn for every successful mutation. Callbacks run on the
// mutating goroutine after the ledger lock is released.
func (l *Ledger) Subscribe(fn func(Change)) (unsubscribe func()) {
	l.subMu.Lock()
	id := l.nextSubID
	l.nextSubID++
	l.subscribers[id] = fn
	l.subMu.Unlock()

	return func() {
		l.subMu.Lock()
		delete(l.subscribers, id)
		l.subMu.Unlock()
	}
}

func (l *Ledger) publish(ch Change) {
	l.subMu.RLock()
	ids := make([]int, 0, len(l.subscribers))
	for id := range l.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, l.subscribers[id])
	}
	l.subMu.RUnlock()

	for _, h := range handlers {
		h(ch)
	}
}

func (l *Ledger) approvedOverlapping(ctx context.Context, ref models.ResourceRef, start, end time.Time) ([]models.Reservation, error) {
	candidates, err := l.store.OverlappingReservations(ctx, ref, models.StatusApproved, start, end)
	if err != nil {
		return nil, fmt.Errorf("query approved reservations: %w", err)
	}

	// the store is only trusted to narrow the search
	out := make([]models.Reservation, 0, len(candidates))
	for _, r := range candidates {
		if r.Resource == ref && r.Status == models.StatusApproved && r.Overlaps(start, end) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (l *Ledger) firstApprovedOverlap(ctx context.Context, ref models.ResourceRef, start, end time.Time, excludeID int64) (*models.Reservation, error) {
	approved, err := l.approvedOverlapping(ctx, ref, start, end)
	if err != nil {
		return nil, err
	}
	for i := range approved {
		if approved[i].ID != excludeID {
			return &approved[i], nil
		}
	}
	return nil, nil
}
