package models

import (
	"errors"
)

var ErrInvalidRequest = errors.New("invalid request")
var ErrRejectedScenario = errors.New("rejected scenario")

type ErrorDTO struct {
	Msg string `json:"msg"`
}

type WebError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *WebError) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}

	return e.Message
}

func (e *WebError) Unwrap() error {
	return e.Cause
}

func NewWebError(statusCode int, message string, cause error) *WebError {
	return &WebError{
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
