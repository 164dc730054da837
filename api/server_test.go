package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"ontoforge.dev/ontoerrors"
)

func TestAPIKeyAuth(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	mw := APIKeyAuth("secret-key")(next)

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "wrong", http.StatusUnauthorized},
		{"correct key", "secret-key", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := mw(c)
			if tt.wantCode == http.StatusOK {
				assert.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			assert.True(t, ok)
			assert.Equal(t, tt.wantCode, httpErr.Code)
		})
	}
}

func TestErrToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid structure", ontoerrors.InvalidStructureErr("bad document"), http.StatusBadRequest},
		{"duplicate content", ontoerrors.DuplicateContentErr("onto-1", "abc123"), http.StatusBadRequest},
		{"canceled", ontoerrors.CanceledErr("task-1"), http.StatusConflict},
		{"generic error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.NotNil(t, body["message"])
		})
	}
}
