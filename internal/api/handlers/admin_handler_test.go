package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/welldanyogia/ephemera-backend/internal/errors"
)

type stubSweeper struct {
	n   int
	err error
}

func (s stubSweeper) Sweep(context.Context) (int, error) { return s.n, s.err }

func TestAdminHandler_Sweep(t *testing.T) {
	tests := []struct {
		name       string
		sweeper    stubSweeper
		wantStatus int
		wantBody   string
	}{
		{"reclaimed", stubSweeper{n: 3}, http.StatusOK, `{"success":true,"data":{"reclaimed":3}}`},
		{"nothing", stubSweeper{}, http.StatusOK, `{"success":true,"data":{"reclaimed":0}}`},
		{"failure", stubSweeper{err: errors.New("walk: permission denied")}, http.StatusInternalServerError,
			`{"success":false,"error":"internal server error","code":"` + apperrors.CodeInternalError + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAdminHandler(tt.sweeper, slog.New(slog.NewTextHandler(io.Discard, nil)))
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/admin/sweep", nil), rec)

			require.NoError(t, handler.Sweep(c))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}
