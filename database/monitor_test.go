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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPinger struct {
	failures int32
	calls    int32
}

func (p *flakyPinger) Ping(context.Context) error {
	n := atomic.AddInt32(&p.calls, 1)
	if n <= atomic.LoadInt32(&p.failures) {
		return errors.New("connection refused")
	}
	return nil
}

func TestMonitorCheckRecovers(t *testing.T) {
	target := &flakyPinger{failures: 2}
	m := NewMonitor(target, time.Second)
	m.notify = func(err error) { t.Fatalf("unexpected notification: %v", err) }

	require.NoError(t, m.Check(context.Background()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&target.calls))
}

func TestMonitorCheckNotifiesWhenUnreachable(t *testing.T) {
	target := &flakyPinger{failures: 1 << 30}
	m := NewMonitor(target, time.Second)
	m.reconnectWindow = 300 * time.Millisecond

	var notified error
	m.notify = func(err error) { notified = err }

	err := m.Check(context.Background())
	require.Error(t, err)
	require.Error(t, notified)
	assert.Contains(t, notified.Error(), "database is unreachable")
}

func TestMonitorStartStop(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	m := NewMonitor(Datasource{Conn: db}, 10*time.Millisecond)
	m.reconnectWindow = 50 * time.Millisecond
	m.notify = func(error) {}

	m.Start(context.Background())
	assert.True(t, m.IsRunning())
	m.Start(context.Background())

	assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	m.Stop()
	assert.False(t, m.IsRunning())
}
