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

package reportcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/blnkfinance/tally/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertDoesNotOverwrite(t *testing.T) {
	c := New()
	first := model.NewReport(model.KindAgent, "1", time.Now())
	second := model.NewReport(model.KindAgent, "2", time.Now())

	got, inserted := c.Insert("a", first)
	assert.True(t, inserted)
	assert.Same(t, first, got)

	got, inserted = c.Insert("a", second)
	assert.False(t, inserted)
	assert.Same(t, first, got)

	found, ok := c.Lookup("a")
	require.True(t, ok)
	assert.Same(t, first, found)
}

func TestKeysAndRemove(t *testing.T) {
	c := New()
	c.Insert("b", model.NewReport(model.KindAgent, "", time.Now()))
	c.Insert("a", model.NewReport(model.KindAgent, "", time.Now()))

	assert.Equal(t, []string{"a", "b"}, c.Keys())
	assert.True(t, c.Exists("a"))

	held, _ := c.Lookup("a")
	c.Remove("a")
	assert.False(t, c.Exists("a"))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, model.KindAgent, held.Summary().Kind)
}

func TestConcurrentInsertKeepsOneReportPerFingerprint(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	winners := make(chan *model.Report, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _ := c.Insert("shared", model.NewReport(model.KindMerchant, fmt.Sprint(i), time.Now()))
			winners <- got
		}(i)
	}
	wg.Wait()
	close(winners)

	var first *model.Report
	for r := range winners {
		if first == nil {
			first = r
		}
		assert.Same(t, first, r)
	}
	assert.Equal(t, 1, c.Len())
}
