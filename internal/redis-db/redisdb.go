/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package redis_db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// pingTimeout bounds the connectivity check done when a client is built.
const pingTimeout = 500 * time.Millisecond

// Redis wraps the client shared by the artifact lock and the file cache.
type Redis struct {
	address string
	client  redis.UniversalClient
}

// ParseRedisURL turns a configured address into client options. Plain
// host:port addresses are used as is; anything else goes through
// redis.ParseURL, so passwords and database numbers are honored.
//
// Parameters:
// - rawURL string: Either "host:port" or a redis:// / rediss:// URL.
//
// Returns:
// - *redis.Options: The parsed options.
// - error: If the URL cannot be parsed.
func ParseRedisURL(rawURL string) (*redis.Options, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if !strings.Contains(rawURL, "://") {
		return &redis.Options{Addr: rawURL}, nil
	}

	// A bare password after the scheme is accepted for compatibility with
	// older configs ("redis://secret@host:6379").
	if strings.HasPrefix(rawURL, "redis://") {
		rest := strings.TrimPrefix(rawURL, "redis://")
		if at := strings.LastIndex(rest, "@"); at > 0 && !strings.Contains(rest[:at], ":") {
			rawURL = "redis://:" + rest
		}
	}
	return redis.ParseURL(rawURL)
}

// NewRedisClient builds a client for address and checks that it answers.
func NewRedisClient(address string) (*Redis, error) {
	opts, err := ParseRedisURL(address)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{address: opts.Addr, client: client}, nil
}

// Client returns the underlying client.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// Address returns the host:port the client talks to.
func (r *Redis) Address() string {
	return r.address
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
