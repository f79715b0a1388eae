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

// Package redlock serializes artifact writes for one fingerprint across
// replicas that share a reports directory.
package redlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another owner holds the lock.
var ErrHeld = errors.New("lock is already held")

const keyPrefix = "tally:artifact:"

const unlockScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"

// Key returns the redis key guarding the artifact of fingerprint.
func Key(fingerprint string) string {
	return keyPrefix + fingerprint
}

type Locker struct {
	client redis.UniversalClient
	key    string
	owner  string // only the owner can release the lock
}

// NewLocker builds a lock for the artifact of fingerprint, held on behalf of
// owner (a generation id).
func NewLocker(client redis.UniversalClient, fingerprint, owner string) *Locker {
	return &Locker{
		client: client,
		key:    Key(fingerprint),
		owner:  owner,
	}
}

// Lock makes a single attempt to take the lock for ttl.
func (l *Locker) Lock(ctx context.Context, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrHeld, l.key)
	}
	return nil
}

// Unlock releases the lock if it is still held by this owner.
func (l *Locker) Unlock(ctx context.Context) error {
	result, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.owner).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("unlock failed, either lock expired or you're not the lock holder for key %s", l.key)
	}
	return nil
}

// WaitLock retries Lock with exponential backoff until it succeeds, wait
// elapses or ctx is done. Redis errors stop the retries immediately.
func (l *Locker) WaitLock(ctx context.Context, ttl, wait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = wait

	err := backoff.Retry(func() error {
		err := l.Lock(ctx, ttl)
		if err == nil || errors.Is(err, ErrHeld) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
	if errors.Is(err, ErrHeld) {
		return fmt.Errorf("failed to acquire lock for key %s within the wait timeout: %w", l.key, ErrHeld)
	}
	return err
}
