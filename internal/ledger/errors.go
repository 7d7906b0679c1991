package ledger

import (
	"errors"
	"fmt"

	"campusres/internal/domain"
	"campusres/internal/models"
)

var (
	ErrConflict   = errors.New("time range overlaps an approved reservation")
	ErrNotFound   = domain.ErrNotFound
	ErrValidation = errors.New("invalid reservation request")

	// ErrAlreadyDecided: заявка уже одобрена или отклонена
	ErrAlreadyDecided = errors.New("reservation was already decided")
)

// ConflictError names the approved reservation that blocked a request.
type ConflictError struct {
	Resource      models.ResourceRef
	ReservationID int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s is already booked by reservation %d", e.Resource, e.ReservationID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DecidedError reports the status a reservation was already moved to.
type DecidedError struct {
	ReservationID int64
	Status        models.ReservationStatus
}

func (e *DecidedError) Error() string {
	return fmt.Sprintf("reservation %d is already %s", e.ReservationID, e.Status)
}

func (e *DecidedError) Is(target error) bool { return target == ErrAlreadyDecided }
