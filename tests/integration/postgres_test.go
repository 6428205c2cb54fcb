//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/welldanyogia/ephemera-backend/internal/database"
)

// postgresContainer is a throwaway PostgreSQL instance with the schema applied
type postgresContainer struct {
	container testcontainers.Container
	db        *gorm.DB
}

func startPostgres(t *testing.T, dbName string) *postgresContainer {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       dbName,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://test:test@%s:%s/%s?sslmode=disable", host, port.Port(), dbName)
	db, err := database.Connect(url)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	return &postgresContainer{container: container, db: db}
}

func (p *postgresContainer) truncate() {
	p.db.Exec("TRUNCATE TABLE post_attachments, posts, attachments RESTART IDENTITY CASCADE")
}

func (p *postgresContainer) terminate() {
	if p == nil {
		return
	}
	database.Close(p.db)
	p.container.Terminate(context.Background())
}
