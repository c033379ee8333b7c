package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeTransient represents network or DOM timeouts that may succeed on retry
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeAuthentication represents a failed login, fatal for the run
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeScrape represents a stats page that could not be read
	ErrorTypeScrape ErrorType = "scrape"
	// ErrorTypeEngagement represents a topic that could not be browsed
	ErrorTypeEngagement ErrorType = "engagement"
	// ErrorTypeInvalidCredentialFormat represents a malformed push key
	ErrorTypeInvalidCredentialFormat ErrorType = "invalid_credential_format"
	// ErrorTypeConfiguration represents missing or invalid configuration
	ErrorTypeConfiguration ErrorType = "configuration"
)

// TaskError represents a failure of one step of a run
type TaskError struct {
	Type      ErrorType
	Component string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *TaskError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *TaskError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTransient:
		return true
	default:
		return false
	}
}

// New creates a new TaskError
func New(errType ErrorType, component, message string, err error) *TaskError {
	return &TaskError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewTransient creates a new transient error
func NewTransient(component, message string, err error) *TaskError {
	return New(ErrorTypeTransient, component, message, err)
}

// NewAuthentication creates a new authentication error
func NewAuthentication(message string, err error) *TaskError {
	return New(ErrorTypeAuthentication, "auth", message, err)
}

// NewScrape creates a new scrape error
func NewScrape(component, message string, err error) *TaskError {
	return New(ErrorTypeScrape, component, message, err)
}

// NewEngagement creates a new engagement error
func NewEngagement(component, message string, err error) *TaskError {
	return New(ErrorTypeEngagement, component, message, err)
}

// NewInvalidCredentialFormat creates a new invalid credential format error
func NewInvalidCredentialFormat(component, message string) *TaskError {
	return New(ErrorTypeInvalidCredentialFormat, component, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *TaskError {
	return New(ErrorTypeConfiguration, "config", message, err)
}

// Is reports whether any error in err's chain is a TaskError of the given type
func Is(err error, errType ErrorType) bool {
	var taskErr *TaskError
	if stderrors.As(err, &taskErr) {
		return taskErr.Type == errType
	}
	return false
}

// IsRetryable reports whether err is a retryable TaskError
func IsRetryable(err error) bool {
	var taskErr *TaskError
	if stderrors.As(err, &taskErr) {
		return taskErr.IsRetryable()
	}
	return false
}
