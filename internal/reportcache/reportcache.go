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

// Package reportcache holds in-progress and finished reports in memory,
// keyed by fingerprint.
package reportcache

import (
	"sort"
	"sync"

	"github.com/blnkfinance/tally/model"
)

// Store is the contract the generation pipeline and the janitor rely on.
type Store interface {
	Lookup(fingerprint string) (*model.Report, bool)
	Exists(fingerprint string) bool
	Insert(fingerprint string, report *model.Report) (*model.Report, bool)
	Keys() []string
	Remove(fingerprint string)
	Len() int
}

// Cache is a map guarded by a RWMutex. Critical sections never call into a
// Report, so the cache lock is never held together with a report lock.
type Cache struct {
	mu      sync.RWMutex
	reports map[string]*model.Report
}

func New() *Cache {
	return &Cache{reports: make(map[string]*model.Report)}
}

// Lookup returns the shared report handle for fingerprint.
func (c *Cache) Lookup(fingerprint string) (*model.Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.reports[fingerprint]
	return r, ok
}

func (c *Cache) Exists(fingerprint string) bool {
	_, ok := c.Lookup(fingerprint)
	return ok
}

// Insert stores report unless the fingerprint is already present. It returns
// the report that is visible after the call and whether this call inserted it.
func (c *Cache) Insert(fingerprint string, report *model.Report) (*model.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.reports[fingerprint]; ok {
		return existing, false
	}
	c.reports[fingerprint] = report
	return report, true
}

// Keys returns a sorted snapshot of the cached fingerprints.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.reports))
	for k := range c.reports {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Remove drops fingerprint. Holders of the report keep a valid handle.
func (c *Cache) Remove(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reports, fingerprint)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.reports)
}
