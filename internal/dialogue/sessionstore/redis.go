package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"barberline/pkg/model"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "barberline:call:"

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore mirrors sessions into Redis. Every save refreshes the key's
// TTL, so a call that goes quiet expires on its own.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) Get(ctx context.Context, callID string) (*model.CallSession, error) {
	data, err := s.client.Get(ctx, keyPrefix+callID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var session model.CallSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *redisStore) Save(ctx context.Context, session *model.CallSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+session.CallID, data, s.ttl).Err()
}
