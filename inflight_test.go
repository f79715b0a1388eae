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
package tally

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blnkfinance/tally/internal/reportcache"
	"github.com/blnkfinance/tally/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInflightBeginIsExclusive(t *testing.T) {
	s := NewInflight(nil)

	var wins int32
	var winner uint64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if token, ok := s.Begin("a1b2c3d4e5f60718"); ok {
				atomic.AddInt32(&wins, 1)
				atomic.StoreUint64(&winner, token)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.True(t, s.Contains("a1b2c3d4e5f60718"))

	s.Done("a1b2c3d4e5f60718", winner)
	assert.False(t, s.Contains("a1b2c3d4e5f60718"))
	_, ok := s.Begin("a1b2c3d4e5f60718")
	assert.True(t, ok)
}

func TestInflightDoneIgnoresForeignToken(t *testing.T) {
	s := NewInflight(nil)

	first, ok := s.Begin("fp")
	require.True(t, ok)
	s.Done("fp", first)

	second, ok := s.Begin("fp")
	require.True(t, ok)
	assert.NotEqual(t, first, second)

	s.Done("fp", first)
	assert.True(t, s.Contains("fp"))

	s.Done("fp", second)
	assert.False(t, s.Contains("fp"))
}

func TestInflightSnapshotSorted(t *testing.T) {
	s := NewInflight(nil)
	s.Begin("bbbb")
	s.Begin("aaaa")
	s.Begin("cccc")
	assert.Equal(t, []string{"aaaa", "bbbb", "cccc"}, s.Snapshot())
}

func TestInflightSweepDropsStaleUncachedMarks(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := at
	s := NewInflight(func() time.Time { return clock })

	reports := reportcache.New()
	reports.Insert("kept", model.NewReport(model.KindAgent, "77", at))

	s.Begin("kept")
	s.Begin("orphan")
	clock = at.Add(time.Hour)
	s.Begin("rendering")

	assert.Equal(t, 1, s.Sweep(reports, at.Add(time.Minute)))
	assert.Equal(t, []string{"kept", "rendering"}, s.Snapshot())
}
