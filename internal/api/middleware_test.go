package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Ravindra2377/KPR/internal/testutil"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
)

func TestErrorHandler_PanicRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	app := &App{
		log: testutil.TestLogger(t),
	}

	app.log.SetOutput(buf)

	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("test panic"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(panicHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Contains(t, buf.String(), "panic: test panic")
	assert.NotContains(t, rr.Body.String(), "test panic", "expected the panic not to leak to the caller")
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &App{}

	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(okHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}

func Test_authMiddleware(t *testing.T) {
	app := &App{
		log:        testutil.TestLogger(t),
		signingKey: testSigningKey,
	}

	valid := tokenFor(t, "alice")

	tcases := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantUserId string
	}{
		{
			name:       "no token",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "cookie token",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: valid})
			},
			wantStatus: http.StatusOK,
			wantUserId: "alice",
		},
		{
			name: "bearer token",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+valid)
			},
			wantStatus: http.StatusOK,
			wantUserId: "alice",
		},
		{
			name: "numeric user id claim",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, testSigningKey, jwt.MapClaims{userIdClaim: 42}))
			},
			wantStatus: http.StatusOK,
			wantUserId: "42",
		},
		{
			name: "garbage token",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "not-a-jwt"})
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong signing key",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, []byte("other-key"), jwt.MapClaims{userIdClaim: "alice"}))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, testSigningKey, jwt.MapClaims{
					userIdClaim: "alice",
					"exp":       time.Now().Add(-time.Minute).Unix(),
				}))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "missing user id claim",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, testSigningKey, jwt.MapClaims{"sub": "alice"}))
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var gotUserId string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserId, _ = UserId(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			rr := httptest.NewRecorder()

			app.authMiddleware(next).ServeHTTP(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code, "unexpected status code")
			assert.Equal(t, tc.wantUserId, gotUserId, "unexpected user id in context")
			if tc.wantStatus == http.StatusOK {
				assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
			}
		})
	}
}
