package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/germed/backend/internal/model"
)

var (
	ErrNotFound       = errors.New("token record not found")
	ErrAlreadyRevoked = errors.New("token record already revoked")
)

const tokenKeyPrefix = "refresh:"

// revokeScript marks a record revoked only if it is not revoked yet, so two
// concurrent refresh calls with the same token id cannot both win.
// Returns 1 on success, 0 when already revoked, -1 when the key is missing.
var revokeScript = redis.NewScript(`
	local revoked = redis.call('HGET', KEYS[1], 'revoked')
	if revoked == false then
		return -1
	end
	if revoked == '1' then
		return 0
	end
	redis.call('HSET', KEYS[1], 'revoked', '1')
	return 1
`)

// TokenStore persists refresh-token state keyed by token id. Entries carry a
// TTL equal to the token's own lifetime so stale state reclaims itself.
type TokenStore struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewTokenStore(rdb *redis.Client, log *zap.Logger) *TokenStore {
	return &TokenStore{rdb: rdb, log: log}
}

func (s *TokenStore) Put(ctx context.Context, tokenID string, record model.TokenRecord, ttl time.Duration) error {
	key := tokenKeyPrefix + tokenID

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"user_id", record.UserID,
		"revoked", boolField(record.Revoked),
		"expires_at", strconv.FormatInt(record.ExpiresAt.Unix(), 10),
	)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error("failed to store token record", zap.Error(err))
		return fmt.Errorf("store token record: %w", err)
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, tokenID string) (*model.TokenRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, tokenKeyPrefix+tokenID).Result()
	if err != nil {
		s.log.Error("failed to read token record", zap.Error(err))
		return nil, fmt.Errorf("read token record: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt token record: %w", err)
	}

	return &model.TokenRecord{
		UserID:    fields["user_id"],
		Revoked:   fields["revoked"] == "1",
		ExpiresAt: time.Unix(expiresAt, 0),
	}, nil
}

// Revoke atomically transitions a record to revoked. Losing the race to
// another caller surfaces as ErrAlreadyRevoked.
func (s *TokenStore) Revoke(ctx context.Context, tokenID string) error {
	result, err := revokeScript.Run(ctx, s.rdb, []string{tokenKeyPrefix + tokenID}).Int()
	if err != nil {
		s.log.Error("failed to revoke token record", zap.Error(err))
		return fmt.Errorf("revoke token record: %w", err)
	}

	switch result {
	case 1:
		return nil
	case 0:
		return ErrAlreadyRevoked
	default:
		return ErrNotFound
	}
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
