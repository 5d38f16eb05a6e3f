package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

// DirectoryCache stores the staff directory snapshot as JSON under one key per base URL.
type DirectoryCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewDirectoryCache(client *redis.Client, namespace string, ttl time.Duration) *DirectoryCache {
	return &DirectoryCache{
		client: client,
		key:    "directory:" + namespace,
		ttl:    ttl,
	}
}

// Get reports ok=false on a miss.
func (c *DirectoryCache) Get(ctx context.Context) (appointment.StaffDirectory, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read directory cache: %w", err)
	}

	var dir appointment.StaffDirectory
	if err := json.Unmarshal(raw, &dir); err != nil {
		return nil, false, fmt.Errorf("decode directory cache: %w", err)
	}
	return dir, true, nil
}

func (c *DirectoryCache) Set(ctx context.Context, dir appointment.StaffDirectory) error {
	raw, err := json.Marshal(dir)
	if err != nil {
		return fmt.Errorf("encode directory cache: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write directory cache: %w", err)
	}
	return nil
}
