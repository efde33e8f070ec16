//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/manorfm/recoveryM/internal/infrastructure/config"
	"github.com/manorfm/recoveryM/internal/infrastructure/database"
	"github.com/manorfm/recoveryM/internal/infrastructure/password"
	"github.com/manorfm/recoveryM/internal/infrastructure/repository"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// setupPostgres starts a PostgreSQL container and applies the migrations
func setupPostgres(t *testing.T) (*config.Config, *database.Postgres) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.DBHost = host
	cfg.DBPort = port.Int()
	cfg.DBUser = "test"
	cfg.DBPassword = "test"
	cfg.DBName = "test"

	var db *database.Postgres
	for i := 0; i < 10; i++ {
		db, err = database.NewPostgres(ctx, cfg, zap.NewNop())
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, database.RunMigrations(cfg, "../../migrations", zap.NewNop()))

	return cfg, db
}

// setupRedis starts a Redis container
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, client.Ping(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })

	return client
}

type seedAccount struct {
	email     string
	phone     string
	disabled  bool
	suspended bool
	questions map[string]string
}

// seed inserts an account with confirmed factors and hashed answers and
// returns the account id and the question ids in position order.
func seed(t *testing.T, db *database.Postgres, acc seedAccount) (string, []string) {
	t.Helper()
	ctx := context.Background()

	id := ulid.Make().String()
	hash, err := password.HashPassword("old-password-1")
	require.NoError(t, err)

	require.NoError(t, db.Exec(ctx, `
		INSERT INTO accounts (id, password_hash, disabled, suspended)
		VALUES ($1, $2, $3, $4)
	`, id, hash, acc.disabled, acc.suspended))

	if acc.email != "" {
		require.NoError(t, db.Exec(ctx, `
			INSERT INTO account_factors (account_id, type, value, confirmed) VALUES ($1, 'email', $2, TRUE)
		`, id, acc.email))
	}
	if acc.phone != "" {
		require.NoError(t, db.Exec(ctx, `
			INSERT INTO account_factors (account_id, type, value, confirmed) VALUES ($1, 'phone', $2, TRUE)
		`, id, acc.phone))
	}

	hasher := password.NewHasher(bcrypt.MinCost)
	var questionIDs []string
	position := 0
	for text, answer := range acc.questions {
		qid := ulid.Make().String()
		answerHash, err := hasher.Hash(repository.NormalizeAnswer(answer))
		require.NoError(t, err)
		require.NoError(t, db.Exec(ctx, `
			INSERT INTO secret_questions (id, account_id, position, text, answer_hash)
			VALUES ($1, $2, $3, $4, $5)
		`, qid, id, position, text, answerHash))
		questionIDs = append(questionIDs, qid)
		position++
	}

	return id, questionIDs
}
