package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for every account-state transition outcome. Handlers map
// these onto HTTP statuses and stable machine codes; services wrap storage
// failures so callers can distinguish them from rule violations.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The two cases must stay indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrEmailNotVerified = errors.New("email not verified")
	ErrAccountInactive  = errors.New("account is inactive")
	ErrEmailTaken       = errors.New("email already exists")
	ErrPasswordMismatch = errors.New("password and confirmation do not match")

	ErrNoPendingVerification = errors.New("no verification is pending for this session")
	ErrUserNotFound          = errors.New("user not found")
	ErrOtpExpired            = errors.New("verification code has expired")
	ErrOtpMismatch           = errors.New("invalid verification code")

	ErrInvalidResetToken = errors.New("reset token is invalid or has expired")
)

// DeliveryError wraps a notification transport failure. It is swallowed on
// OTP paths (the code is recoverable from the server log) but surfaced on
// password-reset requests, where no fallback channel exists.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver email: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure so it surfaces generically.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
