package errors

import (
	"errors"
	"fmt"
)

// Common error types for the console API client
var (
	// Authentication errors
	ErrUnauthenticated = errors.New("not authenticated")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidOTP      = errors.New("invalid one-time passcode")

	// Token errors
	ErrNoRefreshToken  = errors.New("no refresh token available")
	ErrRefreshFailed   = errors.New("token refresh failed")
	ErrRefreshRejected = errors.New("refresh token rejected by server")

	// Request errors
	ErrRequestFailed = errors.New("request failed")
	ErrNotFound      = errors.New("not found")

	// General errors
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
