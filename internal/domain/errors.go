package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrResultsUnrecognised marks a results page that showed neither fares nor a
// no-availability indicator.
var ErrResultsUnrecognised = errors.New("results page not recognised")

// ConfigurationError indicates missing or invalid process configuration.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Errorf("configuration: %w", e.Err).Error()
	}
	return fmt.Errorf("configuration %s: %w", e.Field, e.Err).Error()
}

func (e ConfigurationError) Unwrap() error {
	return e.Err
}

// NavigationError indicates a booking-flow step could not find or drive the page.
type NavigationError struct {
	Step string
	Err  error
}

func (e NavigationError) Error() string {
	return fmt.Errorf("navigation %s: %w", e.Step, e.Err).Error()
}

func (e NavigationError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates the page did not reach an expected state in time.
type TimeoutError struct {
	Step string
	Err  error
}

func (e TimeoutError) Error() string {
	return fmt.Errorf("timeout %s: %w", e.Step, e.Err).Error()
}

func (e TimeoutError) Unwrap() error {
	return e.Err
}

// NotificationDeliveryError indicates the messaging backend rejected or never received the alert.
type NotificationDeliveryError struct {
	Backend string
	Err     error
}

func (e NotificationDeliveryError) Error() string {
	return fmt.Errorf("notification via %s: %w", e.Backend, e.Err).Error()
}

func (e NotificationDeliveryError) Unwrap() error {
	return e.Err
}

// ErrorLabel maps err to a short label for logs and metrics.
func ErrorLabel(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	var timeout TimeoutError
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var nav NavigationError
	if errors.As(err, &nav) {
		return "navigation"
	}
	if errors.Is(err, ErrResultsUnrecognised) {
		return "unrecognised"
	}
	var cfg ConfigurationError
	if errors.As(err, &cfg) {
		return "configuration"
	}
	var notify NotificationDeliveryError
	if errors.As(err, &notify) {
		return "notification"
	}
	return "other"
}
