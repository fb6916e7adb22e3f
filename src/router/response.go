package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/optionprisma/src/models"
	"github.com/jiaming2012/optionprisma/src/pricing"
	"github.com/jiaming2012/optionprisma/src/store"
)

const (
	errTypeValidation = "validation_error"
	errTypeRejected   = "rejected_scenario"
	errTypeNotFound   = "not_found"
	errTypeRateLimit  = "rate_limited"
	errTypeInternal   = "internal_error"
	errTypeCanceled   = "request_canceled"
)

// statusClientClosedRequest is the nginx convention for a client that went away
// before the response was written.
const statusClientClosedRequest = 499

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func NewErrorResponse(errType string, message string) *errorResponse {
	return &errorResponse{
		Type: errType,
		Msg:  message,
	}
}

func setResponse(response interface{}, statusCode int, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("SetResponse: encode: %w", err)
	}

	return nil
}

func setErrorResponse(errType string, statusCode int, err error, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := NewErrorResponse(errType, err.Error())
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		return encodeErr
	}

	return nil
}

// toWebError maps a service error onto its HTTP status.
func toWebError(err error) *models.WebError {
	var webErr *models.WebError
	if errors.As(err, &webErr) {
		return webErr
	}

	var validationErr *pricing.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return models.NewWebError(http.StatusUnprocessableEntity, errTypeValidation, validationErr)
	case errors.Is(err, models.ErrInvalidRequest):
		return models.NewWebError(http.StatusUnprocessableEntity, errTypeValidation, err)
	case errors.Is(err, models.ErrRejectedScenario):
		return models.NewWebError(http.StatusBadRequest, errTypeRejected, err)
	case errors.Is(err, store.ErrNotFound):
		return models.NewWebError(http.StatusNotFound, errTypeNotFound, store.ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewWebError(http.StatusGatewayTimeout, errTypeInternal, err)
	case errors.Is(err, context.Canceled):
		return models.NewWebError(statusClientClosedRequest, errTypeCanceled, err)
	default:
		return models.NewWebError(http.StatusInternalServerError, errTypeInternal, err)
	}
}

func writeError(r *http.Request, w http.ResponseWriter, caller string, err error) {
	webErr := toWebError(err)

	logger := log.WithContext(r.Context()).WithFields(log.Fields{
		"request_id": requestIDFromContext(r.Context()),
		"status":     webErr.StatusCode,
	})

	if webErr.StatusCode >= http.StatusInternalServerError {
		logger.Errorf("%s: %v", caller, err)
	} else {
		logger.Infof("%s: %v", caller, err)
	}

	if writeErr := setErrorResponse(webErr.Message, webErr.StatusCode, webErr, w); writeErr != nil {
		logger.Errorf("%s: failed to write error response: %v", caller, writeErr)
	}
}
