package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/podiumlabs/podium/internal/types"
)

// RedisBlobStore keeps utterance audio in redis under a TTL. Audio is replay
// material, not a system of record, so expiry is acceptable.
type RedisBlobStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBlobStore(client *redis.Client, ttl time.Duration) types.BlobStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisBlobStore{client: client, ttl: ttl}
}

// Put implements types.BlobStore
func (r *RedisBlobStore) Put(_ context.Context, key string, data []byte) error {
	if err := r.client.Set(key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store blob %s: %w", key, err)
	}
	return nil
}

// Get implements types.BlobStore
func (r *RedisBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(key).Bytes()
	if err == redis.Nil {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %s: %w", key, err)
	}
	return data, nil
}

// Delete implements types.BlobStore
func (r *RedisBlobStore) Delete(_ context.Context, key string) error {
	if err := r.client.Del(key).Err(); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}
