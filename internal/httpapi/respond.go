package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vowsuite/vowsuite/internal/apperr"
)

// envelope is the fixed response shape: {success, data} or
// {success, error, code}.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// writeErr maps the error taxonomy onto statuses. Dependency failures
// surface as a generic 500; the detail stays in the logs.
func writeErr(w http.ResponseWriter, log *zap.Logger, r *http.Request, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Wrap(apperr.Dependency, "INTERNAL_ERROR", "something went wrong", err)
	}
	status := ae.Kind.HTTPStatus()
	message := ae.Message
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("requestId", requestIDFrom(r.Context())),
			zap.Error(err),
		)
		message = "something went wrong"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: message, Code: ae.Code})
}

var validate = validator.New()

const maxBodyBytes = 1 << 20

// decode parses and validates a JSON request body.
func decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperr.Wrap(apperr.Validation, "INVALID_BODY", "could not read request body", err)
	}
	if len(body) == 0 {
		return apperr.Validationf("INVALID_BODY", "request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Wrap(apperr.Validation, "INVALID_BODY", "request body is not valid JSON", err)
	}
	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return apperr.Wrap(apperr.Dependency, "INTERNAL_ERROR", "validation misconfigured", err)
		}
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			f := fields[0]
			return apperr.Validationf("INVALID_FIELD", "field %s failed on %s", f.Field(), f.Tag())
		}
		return apperr.Wrap(apperr.Validation, "INVALID_BODY", "request body failed validation", err)
	}
	return nil
}
