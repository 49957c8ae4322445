package model

import (
	"errors"
	"fmt"
)

// Error categories. Every error surfaced by the engine wraps exactly one of these.
var (
	ErrPrecondition  = errors.New("precondition failed")
	ErrAuthorization = errors.New("not authorized")
	ErrArithmetic    = errors.New("arithmetic error")
	ErrOracle        = errors.New("oracle error")
	ErrCustody       = errors.New("custody error")
)

// Transition failures.
var (
	ErrAlreadyInitialized = fmt.Errorf("%w: already initialized", ErrPrecondition)
	ErrNotInitialized     = fmt.Errorf("%w: not initialized", ErrPrecondition)
	ErrAlreadyFunded      = fmt.Errorf("%w: already funded", ErrPrecondition)
	ErrNotFunded          = fmt.Errorf("%w: not funded", ErrPrecondition)
	ErrAlreadyActive      = fmt.Errorf("%w: already active", ErrPrecondition)
	ErrAlreadyEntered     = fmt.Errorf("%w: counterparty role already filled", ErrPrecondition)
	ErrNotActive          = fmt.Errorf("%w: not active", ErrPrecondition)
	ErrTooEarly           = fmt.Errorf("%w: expiry not reached", ErrPrecondition)
	ErrAlreadyResolved    = fmt.Errorf("%w: already resolved", ErrPrecondition)
	ErrNotResolved        = fmt.Errorf("%w: not resolved", ErrPrecondition)
	ErrAlreadyExercised   = fmt.Errorf("%w: already exercised", ErrPrecondition)
	ErrAlreadyReclaimed   = fmt.Errorf("%w: already reclaimed", ErrPrecondition)
	ErrAlreadySettled     = fmt.Errorf("%w: already settled", ErrPrecondition)
	ErrOutOfTheMoney      = fmt.Errorf("%w: out of the money", ErrPrecondition)
	ErrLongOwed           = fmt.Errorf("%w: long is owed a payout, exercise instead", ErrPrecondition)
	ErrInvalidTerms       = fmt.Errorf("%w: invalid terms", ErrPrecondition)
	ErrUnknownAgreement   = fmt.Errorf("%w: unknown agreement", ErrPrecondition)
)

// Caller failures.
var (
	ErrNotLong     = fmt.Errorf("%w: caller is not the long party", ErrAuthorization)
	ErrNotShort    = fmt.Errorf("%w: caller is not the short party", ErrAuthorization)
	ErrNotParty    = fmt.Errorf("%w: caller is not a party to the agreement", ErrAuthorization)
	ErrSelfDealing = fmt.Errorf("%w: maker cannot take the opposite side", ErrAuthorization)
)

// Custody failures.
var (
	ErrUnderfunded           = fmt.Errorf("%w: custody balance below required collateral", ErrCustody)
	ErrInsufficientBalance   = fmt.Errorf("%w: insufficient balance", ErrCustody)
	ErrInsufficientAllowance = fmt.Errorf("%w: insufficient allowance", ErrCustody)
)

// KindOf names the category of err, or "internal" when it carries none.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrArithmetic):
		return "arithmetic"
	case errors.Is(err, ErrOracle):
		return "oracle"
	case errors.Is(err, ErrCustody):
		return "custody"
	default:
		return "internal"
	}
}
