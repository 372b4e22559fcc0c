package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"studyrag/internal/models"
)

const keyPrefix = "studyrag:session:"

// RedisStore keeps session metadata in Redis with a TTL so several API
// replicas sharing one session root agree on which sessions are live.
// Index data stays on disk under the FileStore root.
type RedisStore struct {
	files  *FileStore
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, files *FileStore, ttl time.Duration) *RedisStore {
	return &RedisStore{files: files, client: client, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context) (*models.Session, error) {
	return s.files.Create(ctx)
}

func (s *RedisStore) Touch(ctx context.Context, id string) error {
	return s.files.Touch(ctx, id)
}

// Commit writes the metadata file and registers the session in Redis
func (s *RedisStore) Commit(ctx context.Context, sess *models.Session) error {
	if err := s.files.Commit(ctx, sess); err != nil {
		return err
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var expiration time.Duration
	if s.ttl > 0 {
		expiration = s.ttl - s.files.now().Sub(sess.CreatedAt)
		if expiration <= 0 {
			return fmt.Errorf("session %s expired before commit", sess.ID)
		}
	}
	if err := s.client.Set(ctx, key(sess.ID), data, expiration).Err(); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	if !ValidID(id) {
		return nil, models.ErrSessionNotFound
	}

	data, err := s.client.Get(ctx, key(id)).Bytes()
	if err == redis.Nil {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	sess.ID = id
	sess.Location = s.files.dir(id)

	// registered but the index directory is gone
	if _, err := os.Stat(sess.Location); errors.Is(err, os.ErrNotExist) {
		return nil, models.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if errors.Is(err, models.ErrSessionNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *RedisStore) LocationOf(ctx context.Context, id string) (string, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return sess.Location, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return models.ErrSessionNotFound
	}
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("failed to unregister session: %w", err)
	}
	return s.files.Delete(ctx, id)
}

// Sweep removes committed directories whose Redis key has expired
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	return s.files.sweepDirs(ctx, now, func(id string, _ *models.Session) (bool, error) {
		n, err := s.client.Exists(ctx, key(id)).Result()
		if err != nil {
			return false, fmt.Errorf("failed to check session %s: %w", id, err)
		}
		return n == 0, nil
	})
}
