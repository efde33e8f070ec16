package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultProcessKeyPrefix = "recovery:process:"
	defaultExpiryIndexKey   = "recovery:expiry"

	// minKeyTTL keeps a just-finished process readable by a racing CAS.
	minKeyTTL = time.Second
)

// RedisProcessRepository stores processes as JSON documents with a key TTL
// matching the process validity window. Updates are optimistic: the version
// is checked inside a WATCH transaction.
type RedisProcessRepository struct {
	client    redis.UniversalClient
	prefix    string
	expiryKey string
	clock     domain.Clock
	logger    *zap.Logger
}

// NewRedisProcessRepository creates a new Redis process repository
func NewRedisProcessRepository(client redis.UniversalClient, prefix string, clock domain.Clock, logger *zap.Logger) *RedisProcessRepository {
	if prefix == "" {
		prefix = defaultProcessKeyPrefix
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &RedisProcessRepository{
		client:    client,
		prefix:    prefix,
		expiryKey: defaultExpiryIndexKey,
		clock:     clock,
		logger:    logger,
	}
}

func (r *RedisProcessRepository) key(token string) string {
	return r.prefix + token
}

func (r *RedisProcessRepository) ttl(process *domain.RecoveryProcess) time.Duration {
	ttl := process.ExpiresAt.Sub(r.clock.Now())
	if ttl < minKeyTTL {
		return minKeyTTL
	}
	return ttl
}

// expiryScore is the unix time after which the sweep may drop the process.
// Finished processes become eligible at once.
func (r *RedisProcessRepository) expiryScore(process *domain.RecoveryProcess) float64 {
	if process.State.IsTerminal() {
		return float64(r.clock.Now().Unix())
	}
	return float64(process.ExpiresAt.Unix())
}

// Create stores a new process
func (r *RedisProcessRepository) Create(ctx context.Context, process *domain.RecoveryProcess) error {
	process.Version = 1
	data, err := json.Marshal(process)
	if err != nil {
		r.logger.Error("failed to marshal recovery process", zap.Error(err))
		return domain.ErrInternal
	}

	created, err := r.client.SetNX(ctx, r.key(process.Token), data, r.ttl(process)).Result()
	if err != nil {
		r.logger.Error("failed to create recovery process",
			zap.String("token", domain.TokenPrefix(process.Token)),
			zap.Error(err))
		return fmt.Errorf("create process: %w", err)
	}
	if !created {
		return domain.ErrProcessConflict
	}

	if err := r.client.ZAdd(ctx, r.expiryKey, redis.Z{
		Score:  r.expiryScore(process),
		Member: process.Token,
	}).Err(); err != nil {
		// The key TTL still bounds the process lifetime.
		r.logger.Warn("failed to index recovery process expiry",
			zap.String("token", domain.TokenPrefix(process.Token)),
			zap.Error(err))
	}
	return nil
}

// Get returns an active process. The deadline is the earlier of the stored
// ExpiresAt and the key TTL counted down by the Redis server, so a wall clock
// stepping backwards cannot extend a process.
func (r *RedisProcessRepository) Get(ctx context.Context, token string) (*domain.RecoveryProcess, error) {
	key := r.key(token)

	var getCmd *redis.StringCmd
	var ttlCmd *redis.DurationCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		getCmd = pipe.Get(ctx, key)
		ttlCmd = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Error("failed to get recovery process",
			zap.String("token", domain.TokenPrefix(token)),
			zap.Error(err))
		return nil, fmt.Errorf("get process: %w", err)
	}

	data, err := getCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrProcessNotFound
		}
		return nil, fmt.Errorf("get process: %w", err)
	}

	process, err := decodeProcess(data)
	if err != nil {
		r.logger.Error("failed to decode recovery process", zap.Error(err))
		return nil, domain.ErrInternal
	}

	now := r.clock.Now()
	if remaining := ttlCmd.Val(); remaining > 0 {
		if deadline := now.Add(remaining); deadline.Before(process.ExpiresAt) {
			process.ExpiresAt = deadline
		}
	}
	if !process.IsActive(now) {
		return nil, domain.ErrProcessNotFound
	}
	return process, nil
}

// Update writes process if the stored version still matches
func (r *RedisProcessRepository) Update(ctx context.Context, process *domain.RecoveryProcess) error {
	key := r.key(process.Token)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrProcessNotFound
			}
			return err
		}

		stored, err := decodeProcess(data)
		if err != nil {
			return err
		}
		if stored.Version != process.Version {
			return domain.ErrProcessConflict
		}

		next := process.Clone()
		next.Version++
		updated, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, r.ttl(next))
			pipe.ZAdd(ctx, r.expiryKey, redis.Z{
				Score:  r.expiryScore(next),
				Member: next.Token,
			})
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		process.Version++
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return domain.ErrProcessConflict
	case errors.Is(err, domain.ErrProcessNotFound), errors.Is(err, domain.ErrProcessConflict):
		return err
	default:
		r.logger.Error("failed to update recovery process",
			zap.String("token", domain.TokenPrefix(process.Token)),
			zap.Error(err))
		return fmt.Errorf("update process: %w", err)
	}
}

// Delete removes a process
func (r *RedisProcessRepository) Delete(ctx context.Context, token string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(token))
		pipe.ZRem(ctx, r.expiryKey, token)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to delete recovery process",
			zap.String("token", domain.TokenPrefix(token)),
			zap.Error(err))
		return fmt.Errorf("delete process: %w", err)
	}
	return nil
}

// PurgeExpired removes processes whose expiry score is not after now
func (r *RedisProcessRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tokens, err := r.client.ZRangeByScore(ctx, r.expiryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan expiry index: %w", err)
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	keys := make([]string, len(tokens))
	members := make([]interface{}, len(tokens))
	for i, token := range tokens {
		keys[i] = r.key(token)
		members[i] = token
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, r.expiryKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge processes: %w", err)
	}
	return len(tokens), nil
}

func decodeProcess(data []byte) (*domain.RecoveryProcess, error) {
	var process domain.RecoveryProcess
	if err := json.Unmarshal(data, &process); err != nil {
		return nil, err
	}
	if process.Factors == nil {
		process.Factors = map[domain.FactorType]string{}
	}
	return &process, nil
}
