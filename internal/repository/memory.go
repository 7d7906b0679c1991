package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"campusres/internal/domain"
	"campusres/internal/models"
)

// MemoryReservationStore keeps reservations in insertion order.
type MemoryReservationStore struct {
	mu           sync.RWMutex
	reservations []models.Reservation
	index        map[int64]int
	nextID       int64
}

func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{
		index:  make(map[int64]int),
		nextID: 1,
	}
}

// Seed inserts reservations with their ids as given. Used for demo data.
func (s *MemoryReservationStore) Seed(reservations []models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range reservations {
		if r.ID <= 0 {
			return fmt.Errorf("seed reservation has invalid id %d", r.ID)
		}
		if _, exists := s.index[r.ID]; exists {
			return fmt.Errorf("duplicate seed reservation id %d", r.ID)
		}
		s.index[r.ID] = len(s.reservations)
		s.reservations = append(s.reservations, r)
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
	return nil
}

func (s *MemoryReservationStore) AppendReservation(ctx context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextID
	s.nextID++
	s.index[r.ID] = len(s.reservations)
	s.reservations = append(s.reservations, *r)
	return nil
}

func (s *MemoryReservationStore) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r := s.reservations[i]
	return &r, nil
}

func (s *MemoryReservationStore) UpdateReservationStatus(ctx context.Context, id int64, status models.ReservationStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.reservations[i].Status = status
	s.reservations[i].UpdatedAt = at
	return nil
}

func (s *MemoryReservationStore) OverlappingReservations(ctx context.Context, ref models.ResourceRef, status models.ReservationStatus, start, end time.Time) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Reservation
	for _, r := range s.reservations {
		if r.Resource == ref && r.Status == status && r.Overlaps(start, end) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *MemoryReservationStore) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Reservation, len(s.reservations))
	copy(out, s.reservations)
	return out, nil
}

func (s *MemoryReservationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reservations)
}
