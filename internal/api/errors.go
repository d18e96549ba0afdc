package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Ravindra2377/KPR/internal/apperr"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError(message string) *ApiError {
	if message == "" {
		message = lower(http.StatusText(http.StatusBadRequest))
	}
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    message,
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    apperr.ReasonOf(err),
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    lower(http.StatusText(http.StatusUnauthorized)),
	}
}

// NewErrorFromApp converts a service error into the response sent to the
// caller. Failed errors keep their cause for logging only.
func NewErrorFromApp(err error) *ApiError {
	kind := apperr.KindOf(err)
	if kind == apperr.Failed {
		return NewInternalServerError(err)
	}

	return &ApiError{
		StatusCode: kind.HTTPStatus(),
		Message:    apperr.ReasonOf(err),
		Err:        err,
	}
}
