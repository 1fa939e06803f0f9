package errors

import (
	"errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig   Category = "config"
	CategoryRouting  Category = "routing"
	CategoryProtocol Category = "protocol"
	CategoryAction   Category = "action"
	CategoryCLI      Category = "cli"
)

// Source points at the input that produced an error, usually a manifest file
// and the index of the offending entry.
type Source struct {
	File  string
	Entry int
}

// String returns the source as "file#entry", or just the file when no entry
// is known.
func (s *Source) String() string {
	if s == nil {
		return ""
	}
	if s.Entry >= 0 {
		return fmt.Sprintf("%s#%d", s.File, s.Entry)
	}
	return s.File
}

// FlightError is a structured error with a registry code, suggestions and a
// documentation link.
type FlightError struct {
	// Code is a unique error identifier (e.g., "E201").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail names the specific thing that went wrong (a route id, a header
	// value). It is part of Error().
	Detail string

	// Help is the registry's longer explanation, shown by Format.
	Help string

	// Source is the input that produced the error, if known.
	Source *Source

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *FlightError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *FlightError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a FlightError with the same code.
func (e *FlightError) Is(target error) bool {
	var fe *FlightError
	if !errors.As(target, &fe) {
		return false
	}
	return fe.Code != "" && fe.Code == e.Code
}

// WithSource records the input that produced the error. Pass a negative
// entry when only the file is known.
func (e *FlightError) WithSource(file string, entry int) *FlightError {
	e.Source = &Source{File: file, Entry: entry}
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *FlightError) WithSuggestion(s string) *FlightError {
	e.Suggestion = s
	return e
}

// WithDetail sets the specific subject of the error.
func (e *FlightError) WithDetail(d string) *FlightError {
	e.Detail = d
	return e
}

// WithDetailf is WithDetail with formatting.
func (e *FlightError) WithDetailf(format string, args ...any) *FlightError {
	return e.WithDetail(fmt.Sprintf(format, args...))
}

// Wrap wraps another error.
func (e *FlightError) Wrap(err error) *FlightError {
	e.Wrapped = err
	return e
}

// New creates a FlightError from a registered error code.
func New(code string) *FlightError {
	template, ok := registry[code]
	if !ok {
		return &FlightError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &FlightError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Help:     template.Help,
		DocURL:   template.DocURL,
	}
}

// HasCode reports whether err is, or wraps, a FlightError with the given code.
func HasCode(err error, code string) bool {
	var fe *FlightError
	for err != nil {
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Code == code {
			return true
		}
		err = fe.Wrapped
	}
	return false
}
