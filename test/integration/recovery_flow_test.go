//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/manorfm/recoveryM/internal/application"
	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/infrastructure/database"
	"github.com/manorfm/recoveryM/internal/infrastructure/incident"
	"github.com/manorfm/recoveryM/internal/infrastructure/password"
	"github.com/manorfm/recoveryM/internal/infrastructure/pin"
	"github.com/manorfm/recoveryM/internal/infrastructure/repository"
	"github.com/manorfm/recoveryM/internal/infrastructure/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// capturingChannel records the last pin sent to each contact value
type capturingChannel struct {
	mu   sync.Mutex
	sent map[string]string
}

func (c *capturingChannel) Dispatch(_ context.Context, factor domain.AccountFactor, payload domain.PinPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[factor.Value] = payload.Pin
	return nil
}

func (c *capturingChannel) pin(to string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[to]
}

func newService(t *testing.T, db *database.Postgres, store domain.ProcessStore, policy domain.RecoveryPolicy, channel domain.NotificationChannel, incidents domain.IncidentLog) *application.RecoveryService {
	t.Helper()
	logger := zap.NewNop()
	hasher := password.NewHasher(bcrypt.MinCost)

	svc, err := application.NewRecoveryService(application.RecoveryDeps{
		Store:     store,
		Resolver:  repository.NewFactorRepository(db, logger),
		Accounts:  repository.NewAccountRepository(db, logger),
		Questions: repository.NewSecretQuestionRepository(db, hasher, logger),
		Channel:   channel,
		Tokens:    token.NewGenerator(),
		Pins:      pin.NewGenerator(logger),
		Hasher:    hasher,
		Incidents: incidents,
	}, policy, logger)
	require.NoError(t, err)
	return svc
}

func TestRecoveryFlow(t *testing.T) {
	_, db := setupPostgres(t)
	client := setupRedis(t)
	ctx := context.Background()

	accountID, questionIDs := seed(t, db, seedAccount{
		email:     "jane@example.com",
		phone:     "+15550001234",
		questions: map[string]string{"Birth city?": "Lisbon"},
	})

	policy := domain.DefaultRecoveryPolicy()
	policy.RecoveryFactors = domain.FactorSet{domain.FactorEmail, domain.FactorPhone}
	policy.MinConfirmedFactors = 2
	policy.RequireSecretQuestions = true
	policy.StartMinDuration = 0
	policy.PinMinDuration = 0

	incidentRepo := repository.NewIncidentRepository(db, zap.NewNop())
	dispatcher := incident.NewDispatcher(64, incident.NewRepositorySink(incidentRepo, zap.NewNop()))

	channel := &capturingChannel{sent: map[string]string{}}
	store := repository.NewRedisProcessRepository(client, "", nil, zap.NewNop())
	svc := newService(t, db, store, policy, channel, dispatcher)

	tok, err := svc.Start(ctx, domain.StartRequest{Identity: "JANE@example.com"})
	require.NoError(t, err)

	for _, f := range []struct {
		factor string
		to     string
	}{{"email", "jane@example.com"}, {"phone", "+15550001234"}} {
		require.NoError(t, svc.SendPin(ctx, tok, f.factor))
		ok, err := svc.VerifyPin(ctx, tok, channel.pin(f.to))
		require.NoError(t, err)
		require.True(t, ok, f.factor)
	}

	status, err := svc.GetProcessStatus(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, domain.StateQuestionsPending, status.State)

	ok, err := svc.AnswerAllQuestions(ctx, tok, []domain.SecretQuestionAnswer{{QuestionID: questionIDs[0], Answer: "lisbon "}})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.SetNewPassword(ctx, tok, "brand-new-password")
	require.NoError(t, err)
	require.True(t, ok)

	var hash string
	require.NoError(t, db.QueryRow(ctx, `SELECT password_hash FROM accounts WHERE id = $1`, accountID).Scan(&hash))
	assert.NoError(t, password.CheckPassword("brand-new-password", hash))

	dispatcher.Close()
	incidents, err := incidentRepo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, incidents)
	assert.Equal(t, domain.SubtypeCompleted, incidents[0].Subtype)
}

func TestRecoveryFlow_Concealment(t *testing.T) {
	_, db := setupPostgres(t)
	ctx := context.Background()

	seed(t, db, seedAccount{email: "blocked@example.com", disabled: true})

	policy := domain.DefaultRecoveryPolicy()
	policy.StartMinDuration = 50 * time.Millisecond
	policy.PinMinDuration = 50 * time.Millisecond

	channel := &capturingChannel{sent: map[string]string{}}
	store := repository.NewMemoryProcessRepository(domain.SystemClock{}, zap.NewNop())
	svc := newService(t, db, store, policy, channel, nil)

	for _, identity := range []string{"ghost@example.com", "blocked@example.com"} {
		started := time.Now()
		tok, err := svc.Start(ctx, domain.StartRequest{Identity: identity})
		require.NoError(t, err, identity)
		assert.Len(t, tok, 43)
		assert.GreaterOrEqual(t, time.Since(started), policy.StartMinDuration)

		started = time.Now()
		require.NoError(t, svc.SendPin(ctx, tok, "email"))
		assert.GreaterOrEqual(t, time.Since(started), policy.PinMinDuration)
		assert.Empty(t, channel.pin(identity))

		_, err = svc.GetProcessStatus(ctx, tok)
		assert.Equal(t, domain.ErrProcessNotFound, err)
	}
}
