package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestNewErrorFromApp(t *testing.T) {
	tcases := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"forbidden", apperr.New(apperr.Forbidden, "only the pod owner can do this"), http.StatusForbidden, "only the pod owner can do this"},
		{"not found", apperr.New(apperr.NotFound, "pod not found"), http.StatusNotFound, "pod not found"},
		{"conflict", apperr.New(apperr.Conflict, "role is full"), http.StatusConflict, "role is full"},
		{"rate limited", apperr.New(apperr.RateLimited, "slow down"), http.StatusTooManyRequests, "slow down"},
		{"invalid", apperr.New(apperr.Invalid, "name is required"), http.StatusBadRequest, "name is required"},
		{"unauthorized", apperr.New(apperr.Unauthorized, "sign in"), http.StatusUnauthorized, "sign in"},
		{"failed", apperr.Wrap(apperr.Failed, "load pod", errors.New("dial tcp: refused")), http.StatusInternalServerError, "something went wrong, please retry"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "something went wrong, please retry"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := NewErrorFromApp(tc.err)
			assert.Equal(t, tc.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tc.wantMessage, apiErr.Message)
			assert.ErrorIs(t, apiErr, tc.err, "expected the cause to be kept")
		})
	}
}
