package models

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrEmptyResult   = errors.New("empty result")
	ErrTokenInvalid  = errors.New("confirmation token invalid or expired")
)

// ParseError is returned when the semantic resolver cannot produce a
// well-formed command.
type ParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse command: %s: %v", e.Reason, e.Err)
	}
	return "parse command: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// ServiceError is returned by an evidence source answering non-2xx.
type ServiceError struct {
	Service   string
	Operation string
	Status    int
	Body      string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s/%s: status %d: %s", e.Service, e.Operation, e.Status, e.Body)
}
