package service

import (
	"errors"
	"fmt"
)

// ConflictReason is the machine readable cause of a ConflictError.
type ConflictReason string

const (
	ReasonSeatHeld          ConflictReason = "seat_held"
	ReasonSeatBooked        ConflictReason = "seat_booked"
	ReasonHoldRequired      ConflictReason = "hold_required"
	ReasonBookingNotPending ConflictReason = "booking_not_pending"
)

// ConflictError reports that the seat or booking is not in a state that
// allows the operation.
type ConflictError struct {
	Reason ConflictReason
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case ReasonSeatHeld:
		return "seat is being held by another passenger"
	case ReasonSeatBooked:
		return MsgSeatUnavailable
	case ReasonHoldRequired:
		return "select the seat before booking it"
	case ReasonBookingNotPending:
		return "booking is no longer awaiting payment"
	}
	return "conflict: " + string(e.Reason)
}

// NotFoundError reports a missing resource, or one the caller does not
// own.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// AlreadyFinalizedError is returned when a booking or payment already
// reached a different terminal state than the one requested.
type AlreadyFinalizedError struct {
	BookingID string
	Status    string
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("booking %s already %s", e.BookingID, e.Status)
}

// ValidationError reports bad input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// UpstreamError wraps a failure of the store or the payment gateway.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

func (*ConflictError) domain()         {}
func (*NotFoundError) domain()         {}
func (*AlreadyFinalizedError) domain() {}
func (*ValidationError) domain()       {}
func (*UpstreamError) domain()         {}

type domainError interface {
	error
	domain()
}

// upstream wraps err as an UpstreamError unless it already is one of the
// errors above.
func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var de domainError
	if errors.As(err, &de) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}
