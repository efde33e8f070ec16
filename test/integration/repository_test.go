//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/infrastructure/password"
	"github.com/manorfm/recoveryM/internal/infrastructure/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestPostgresRepositories(t *testing.T) {
	_, db := setupPostgres(t)
	ctx := context.Background()
	logger := zap.NewNop()

	accountID, questionIDs := seed(t, db, seedAccount{
		email:     "Jane@Example.com",
		phone:     "+15550001234",
		questions: map[string]string{"First pet?": "Rex"},
	})

	t.Run("factor resolution", func(t *testing.T) {
		factors := repository.NewFactorRepository(db, logger)

		f, err := factors.Resolve(ctx, " jane@example.COM ", domain.FactorEmail)
		require.NoError(t, err)
		assert.Equal(t, accountID, f.AccountID)

		f, err = factors.Resolve(ctx, "+1 (555) 000-1234", domain.FactorPhone)
		require.NoError(t, err)
		assert.Equal(t, domain.FactorPhone, f.Type)

		_, err = factors.Resolve(ctx, "nobody@example.com", domain.FactorEmail)
		assert.ErrorIs(t, err, domain.ErrFactorNotFound)

		list, err := factors.ListFactors(ctx, accountID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("account status and password", func(t *testing.T) {
		accounts := repository.NewAccountRepository(db, logger)

		status, err := accounts.GetStatus(ctx, accountID)
		require.NoError(t, err)
		assert.False(t, status.IsBlocked(false))

		_, err = accounts.GetStatus(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
		assert.ErrorIs(t, err, domain.ErrAccountMissing)

		require.NoError(t, accounts.SetPassword(ctx, accountID, "new-password-1"))

		var hash string
		require.NoError(t, db.QueryRow(ctx, `SELECT password_hash FROM accounts WHERE id = $1`, accountID).Scan(&hash))
		assert.NoError(t, password.CheckPassword("new-password-1", hash))

		assert.ErrorIs(t, accounts.SetPassword(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", "x"), domain.ErrAccountMissing)
	})

	t.Run("secret questions", func(t *testing.T) {
		questions := repository.NewSecretQuestionRepository(db, password.NewHasher(bcrypt.MinCost), logger)

		list, err := questions.ListQuestions(ctx, accountID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "First pet?", list[0].Text)

		ok, err := questions.CheckAnswer(ctx, accountID, questionIDs[0], "  rex ")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = questions.CheckAnswer(ctx, accountID, questionIDs[0], "fido")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = questions.CheckAnswer(ctx, accountID, "unknown", "rex")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("incidents", func(t *testing.T) {
		incidents := repository.NewIncidentRepository(db, logger)

		old := domain.NewIncident(ctx, domain.CategoryPin, domain.SubtypeAttemptsExceeded, "old")
		old.OccurredAt = time.Now().Add(-48 * time.Hour)
		recent := domain.NewIncident(domain.WithRequestID(ctx, "req-1"), domain.CategoryProcess, domain.SubtypeCompleted, "recent")
		recent.AccountID = accountID

		require.NoError(t, incidents.Save(ctx, old))
		require.NoError(t, incidents.Save(ctx, recent))

		list, err := incidents.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, recent.ID, list[0].ID)
		assert.Equal(t, "req-1", list[0].RequestID)
		assert.Empty(t, list[1].AccountID)

		n, err := incidents.DeleteBefore(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestRedisProcessRepository(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	store := repository.NewRedisProcessRepository(client, "it:process:", nil, zap.NewNop())

	p := domain.NewRecoveryProcess("tok-redis-it", time.Now(), time.Minute)
	require.NoError(t, store.Create(ctx, p))

	got, err := store.Get(ctx, p.Token)
	require.NoError(t, err)
	got.Attempts = 2
	require.NoError(t, store.Update(ctx, got))

	// The earlier copy is stale now.
	p.Attempts = 1
	assert.ErrorIs(t, store.Update(ctx, p), domain.ErrProcessConflict)

	ttl, err := client.TTL(ctx, "it:process:"+p.Token).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}
