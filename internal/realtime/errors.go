package realtime

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/facenoel/chatter/internal/store"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrValidation  = errors.New("validation failed")
	ErrStorage     = errors.New("storage failure")
	ErrNotJoined   = errors.New("connection has not joined")
	ErrBusy        = errors.New("recipient is busy")
	ErrRateLimited = errors.New("rate limited")
)

// Code returns the stable wire code reported to clients for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrNotJoined):
		return "not_joined"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrStorage):
		return "storage_failure"
	default:
		return "internal"
	}
}

// storeError translates a store failure into the core's taxonomy.
func storeError(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrStorage, what, err)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed on %s", ErrValidation, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
