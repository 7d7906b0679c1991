package advisory

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned whenever the generative service could not
// produce a usable answer: not configured, failed, or returned garbage.
var ErrUnavailable = errors.New("advisory service unavailable")

type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("advisory %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool {
	return target == ErrUnavailable
}

func unavailable(op string, err error) error {
	return &ServiceError{Op: op, Err: err}
}
