// Package errors provides domain-specific error types for the wlanpi-netctl
// application.
//
// This package defines structured errors with error codes, making it easier to
// handle and test different error conditions consistently across the
// application.
package errors

import "fmt"

// ErrorCode represents a category of error that can occur in the application.
type ErrorCode string

const (
	// ErrCodeConfig indicates a configuration-related error.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"

	// ErrCodeValidation indicates a validation error.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeNetlink indicates a kernel netlink communication error
	// (subscriptions, link/address queries).
	ErrCodeNetlink ErrorCode = "NETLINK_ERROR"

	// ErrCodeRouting indicates a policy-routing error (routes, rules, tables).
	ErrCodeRouting ErrorCode = "ROUTING_ERROR"

	// ErrCodeDHCP indicates a DHCP client or lease handling error.
	ErrCodeDHCP ErrorCode = "DHCP_ERROR"

	// ErrCodeInterface indicates an error related to network interfaces.
	ErrCodeInterface ErrorCode = "INTERFACE_ERROR"

	// ErrCodeResolve indicates a host resolution error.
	ErrCodeResolve ErrorCode = "RESOLVE_ERROR"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error represents a domain-specific error with an error code and optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new domain error with the specified code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, cause error) *Error {
	return Wrap(ErrCodeConfig, message, cause)
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, cause error) *Error {
	return Wrap(ErrCodeValidation, message, cause)
}

// NewNetlinkError creates a new netlink communication error.
func NewNetlinkError(message string, cause error) *Error {
	return Wrap(ErrCodeNetlink, message, cause)
}

// NewRoutingError creates a new policy-routing error.
func NewRoutingError(message string, cause error) *Error {
	return Wrap(ErrCodeRouting, message, cause)
}

// NewDHCPError creates a new DHCP operation error.
func NewDHCPError(message string, cause error) *Error {
	return Wrap(ErrCodeDHCP, message, cause)
}

// NewInterfaceError creates a new interface-related error.
func NewInterfaceError(message string, cause error) *Error {
	return Wrap(ErrCodeInterface, message, cause)
}

// NewResolveError creates a new host resolution error.
func NewResolveError(message string, cause error) *Error {
	return Wrap(ErrCodeResolve, message, cause)
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCodeInternal, message, cause)
}
