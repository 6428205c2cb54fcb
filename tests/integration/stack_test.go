//go:build integration

package integration

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/welldanyogia/ephemera-backend/internal/api"
	"github.com/welldanyogia/ephemera-backend/internal/client"
	"github.com/welldanyogia/ephemera-backend/internal/logger"
	"github.com/welldanyogia/ephemera-backend/internal/repository"
	"github.com/welldanyogia/ephemera-backend/internal/services"
	"github.com/welldanyogia/ephemera-backend/internal/storage"
	"github.com/welldanyogia/ephemera-backend/internal/websocket"
	"github.com/welldanyogia/ephemera-backend/tests/fixtures"
)

// serverStack is the full HTTP surface wired the way cmd/server wires it,
// listening on an httptest server
type serverStack struct {
	server  *httptest.Server
	hub     *websocket.Hub
	sweeper *services.OrphanSweeper
	logs    *bytes.Buffer
	cancel  context.CancelFunc
}

func newServerStack(t *testing.T, db *gorm.DB, apiKey string) *serverStack {
	t.Helper()

	dataDir := t.TempDir()
	attachmentStore, err := storage.NewLocalStorage(filepath.Join(dataDir, "attachments"))
	require.NoError(t, err)
	uploads, err := storage.NewLocalStorage(filepath.Join(dataDir, "uploads"))
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	log := logger.New(logs, "debug")
	security := logger.NewSecurityLoggerWithHandler(log.Handler())

	hub := websocket.NewHub(log)
	attachments := services.NewAttachmentService(attachmentStore, repository.NewAttachmentRepository(db), services.AttachmentServiceConfig{}, log)
	posts := services.NewPostService(
		services.PostServiceConfig{Host: fixtures.TestHost, AllowedTimeSkew: time.Minute},
		repository.NewPostRepository(db),
		repository.NewTransactor(db),
		attachments,
		hub,
		log,
	)
	sweeper := services.NewOrphanSweeper(attachments, services.OrphanSweeperConfig{}, log)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := api.NewRouter(&api.RouterConfig{
		DB:          db,
		Posts:       posts,
		Attachments: attachments,
		Sweeper:     sweeper,
		Uploads:     uploads,
		Hub:         hub,
		Upgrader:    websocket.NewSecureUpgrader(nil, security),
		Logger:      log,
		Security:    security,
		APIKey:      apiKey,
		AppEnv:      "test",
	})

	return &serverStack{
		server:  httptest.NewServer(e),
		hub:     hub,
		sweeper: sweeper,
		logs:    logs,
		cancel:  cancel,
	}
}

func (s *serverStack) client(apiKey string) *client.Client {
	return client.New(client.Config{BaseURL: s.server.URL, APIKey: apiKey, Timeout: 10 * time.Second})
}

func (s *serverStack) close() {
	s.server.Close()
	s.cancel()
}
