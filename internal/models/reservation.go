package models

import "time"

type ReservationStatus string

const (
	StatusPending  ReservationStatus = "pending"
	StatusApproved ReservationStatus = "approved"
	StatusRejected ReservationStatus = "rejected"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Reservation is a request to hold a resource for [StartTime, EndTime).
// Resource and the time range never change after creation; only Status does.
type Reservation struct {
	ID          int64             `json:"id"`
	Resource    ResourceRef       `json:"resource"`
	RequesterID int64             `json:"requester_id"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	Status      ReservationStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Overlaps reports whether [start, end) intersects the reservation's interval.
// Touching endpoints do not overlap.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return start.Before(r.EndTime) && end.After(r.StartTime)
}

// DayAvailability groups the approved reservations that touch a single day.
type DayAvailability struct {
	Date         time.Time     `json:"date"`
	Reservations []Reservation `json:"reservations"`
}
