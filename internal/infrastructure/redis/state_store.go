package redis

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/grepdeck/authgate/internal/application/authn"
)

// ErrStateNotFound is returned when the state token is unknown, expired or
// already consumed.
var ErrStateNotFound = errors.New("sign-in state not found or expired")

// StateStore holds one-time sign-in state in Redis, shared across replicas
// so the callback may land on a different instance than the redirect.
type StateStore struct {
	client *Client
	ttl    time.Duration
}

func NewStateStore(client *Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{
		client: client,
		ttl:    ttl,
	}
}

func stateKey(token string) string {
	return "authgate:state:" + token
}

// Create mints an opaque token and parks the state under it with a TTL.
func (s *StateStore) Create(ctx context.Context, state authn.StateData) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.client.rdb.Set(ctx, stateKey(token), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	return token, nil
}

// Consume retrieves and deletes the state atomically. A second consume of
// the same token fails, which is what blocks callback replays.
func (s *StateStore) Consume(ctx context.Context, token string) (authn.StateData, error) {
	key := stateKey(token)

	var state authn.StateData
	err := s.client.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return ErrStateNotFound
			}
			return err
		}

		if err := json.Unmarshal(data, &state); err != nil {
			return fmt.Errorf("failed to unmarshal state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	if err != nil {
		return authn.StateData{}, err
	}

	return state, nil
}
