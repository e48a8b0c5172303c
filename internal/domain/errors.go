package domain

import (
	"errors"
	"fmt"

	"ferrybook/internal/models"
)

var (
	ErrScheduleUnavailable    = errors.New("schedule date is not available for booking")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
	ErrNoRefundPolicy         = errors.New("no active refund policy")
	ErrRefundNotAllowed       = errors.New("booking is not eligible for a refund")
	ErrLockHeld               = errors.New("lock is held by another runner")
	ErrInvalidSignature       = errors.New("invalid notification signature")
	ErrTicketNotActive        = errors.New("ticket is not active")
	ErrAlreadyCheckedIn       = errors.New("ticket is already checked in")
	ErrForbidden              = errors.New("actor is not allowed to perform this action")
	ErrNotPayable             = errors.New("booking is not awaiting payment")
	ErrPaymentUnavailable     = errors.New("payment gateway is not configured")
)

type NotFoundError struct {
	Resource string
	ID       any
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	if e.ID != nil {
		return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// CapacityExceededError names the first capacity class a reservation breached.
type CapacityExceededError struct {
	Class models.CapacityClass
}

func (e CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded for %s", e.Class)
}

type IllegalTransitionError struct {
	From string
	To   string
}

func (e IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsCapacityExceeded(err error) bool {
	var target CapacityExceededError
	return errors.As(err, &target)
}

func IsIllegalTransition(err error) bool {
	var target IllegalTransitionError
	return errors.As(err, &target)
}

// IsConflict groups the errors that reject a request against current state.
func IsConflict(err error) bool {
	return IsCapacityExceeded(err) ||
		IsIllegalTransition(err) ||
		errors.Is(err, ErrScheduleUnavailable) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrRefundNotAllowed) ||
		errors.Is(err, ErrNoRefundPolicy) ||
		errors.Is(err, ErrLockHeld) ||
		errors.Is(err, ErrTicketNotActive) ||
		errors.Is(err, ErrAlreadyCheckedIn) ||
		errors.Is(err, ErrNotPayable)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
