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

package database

import (
	"context"
	"sync"
	"time"

	"github.com/blnkfinance/tally/internal/notification"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultMonitorInterval = 10 * time.Second
	pingTimeout            = 3 * time.Second
	reconnectWindow        = time.Minute
)

// Pinger is anything whose connection can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor pings the database on an interval. A failed ping is retried with
// exponential backoff; when the retry window runs out the failure is reported
// through the notification channel and the loop keeps going.
type Monitor struct {
	target          Pinger
	interval        time.Duration
	reconnectWindow time.Duration
	notify          func(error)
	stopCh          chan struct{}
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	running         bool
	mu              sync.Mutex
}

func NewMonitor(target Pinger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultMonitorInterval
	}
	return &Monitor{
		target:          target,
		interval:        interval,
		reconnectWindow: reconnectWindow,
		notify:          notification.NotifyError,
		stopCh:          make(chan struct{}),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()

	logrus.Info("Database monitor started")
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	logrus.Info("Database monitor stopped")
}

func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			_ = m.Check(ctx)
		}
	}
}

// Check pings once and, on failure, keeps retrying until the reconnect
// window closes.
func (m *Monitor) Check(ctx context.Context) error {
	if err := m.ping(ctx); err == nil {
		return nil
	}
	logrus.Warn("database ping failed, trying to reconnect")

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = m.reconnectWindow

	err := backoff.Retry(func() error { return m.ping(ctx) }, backoff.WithContext(b, ctx))
	if err != nil {
		err = errors.Wrap(err, "database is unreachable")
		m.notify(err)
		return err
	}
	logrus.Info("database connection restored")
	return nil
}

func (m *Monitor) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return m.target.Ping(ctx)
}
