package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/redis/go-redis/v9"
)

const loginKeyPrefix = "telegram:login:"

// redisLoginStore хранит сессии в Redis; срок жизни задается TTL ключа, без продления
type redisLoginStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLoginStore(rdb *redis.Client, ttl time.Duration) LoginStore {
	return &redisLoginStore{rdb: rdb, ttl: ttl}
}

func loginKey(code string) string {
	return loginKeyPrefix + code
}

func (s *redisLoginStore) Create(ctx context.Context, session *models.LoginSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode login session: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, loginKey(session.Code), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store login session: %w", err)
	}
	if !ok {
		return ErrLoginExists
	}
	return nil
}

func (s *redisLoginStore) Get(ctx context.Context, code string) (*models.LoginSession, error) {
	data, err := s.rdb.Get(ctx, loginKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrLoginNotFound
		}
		return nil, fmt.Errorf("failed to load login session: %w", err)
	}
	session := &models.LoginSession{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to decode login session: %w", err)
	}
	return session, nil
}

// Transition меняет сессию под WATCH, оставшийся TTL ключа сохраняется
func (s *redisLoginStore) Transition(ctx context.Context, from string, session *models.LoginSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode login session: %w", err)
	}

	key := loginKey(session.Code)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		var current models.LoginSession
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("failed to decode login session: %w", err)
		}
		if current.Status != from {
			return ErrLoginStateChanged
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, redis.SetArgs{Mode: "XX", KeepTTL: true})
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return ErrLoginNotFound
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, ErrLoginStateChanged):
		// ключ изменили между WATCH и EXEC
		return ErrLoginStateChanged
	default:
		return fmt.Errorf("failed to update login session: %w", err)
	}
}

func (s *redisLoginStore) Delete(ctx context.Context, code string) error {
	if err := s.rdb.Del(ctx, loginKey(code)).Err(); err != nil {
		return fmt.Errorf("failed to delete login session: %w", err)
	}
	return nil
}
