package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupHealthTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// GORM pings during initialization
	mock.ExpectPing()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       db,
		DriverName: "postgres",
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func serveHealth(t *testing.T, handler echo.HandlerFunc, path string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()

	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "healthy",
			wantStatus: http.StatusOK,
			wantBody:   []string{`"status":"healthy"`, `"database":"healthy"`},
		},
		{
			name:       "database down",
			pingErr:    sql.ErrConnDone,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   []string{`"status":"unhealthy"`, `"database":"unhealthy"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock := setupHealthTestDB(t)
			mock.ExpectPing().WillReturnError(tt.pingErr)

			rec := serveHealth(t, NewHealthHandler(gormDB).Health, "/health")

			assert.Equal(t, tt.wantStatus, rec.Code)
			for _, s := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), s)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHealthHandler_Ready_ReturnsOKWhenReady(t *testing.T) {
	gormDB, mock := setupHealthTestDB(t)
	mock.ExpectPing()

	rec := serveHealth(t, NewHealthHandler(gormDB).Ready, "/ready")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)
}

func TestHealthHandler_Ready_ReturnsServiceUnavailableWhenNotReady(t *testing.T) {
	gormDB, mock := setupHealthTestDB(t)
	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	rec := serveHealth(t, NewHealthHandler(gormDB).Ready, "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"not ready"`)
	assert.Contains(t, rec.Body.String(), `"reason":"database ping failed"`)
}
