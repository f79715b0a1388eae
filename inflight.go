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
	"sort"
	"sync"
	"time"

	"github.com/blnkfinance/tally/internal/reportcache"
)

type mark struct {
	token uint64
	since time.Time
}

// Inflight is the set of fingerprints whose artifact is being rendered.
// Each mark carries the token of the caller that set it.
type Inflight struct {
	mu     sync.Mutex
	hashes map[string]mark
	next   uint64
	now    func() time.Time
}

func NewInflight(now func() time.Time) *Inflight {
	if now == nil {
		now = time.Now
	}
	return &Inflight{hashes: make(map[string]mark), now: now}
}

// Begin marks fingerprint as generating and returns the token Done expects.
// ok is false when another caller already holds the mark.
func (s *Inflight) Begin(fingerprint string) (token uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.hashes[fingerprint]; held {
		return 0, false
	}
	s.next++
	s.hashes[fingerprint] = mark{token: s.next, since: s.now()}
	return s.next, true
}

// Done clears the mark set by Begin. A mark held under another token is left
// alone.
func (s *Inflight) Done(fingerprint string, token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.hashes[fingerprint]; ok && m.token == token {
		delete(s.hashes, fingerprint)
	}
}

func (s *Inflight) Contains(fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.hashes[fingerprint]
	return ok
}

// Snapshot returns the marked fingerprints, sorted.
func (s *Inflight) Snapshot() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.hashes))
	for h := range s.hashes {
		out = append(out, h)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// Sweep drops marks set before cutoff whose report is no longer cached. It
// returns how many were dropped. Younger marks belong to renders that may still
// be running.
func (s *Inflight) Sweep(reports reportcache.Store, cutoff time.Time) int {
	s.mu.Lock()
	candidates := make(map[string]mark)
	for h, m := range s.hashes {
		if m.since.Before(cutoff) {
			candidates[h] = m
		}
	}
	s.mu.Unlock()

	dropped := 0
	for h, m := range candidates {
		if reports.Exists(h) {
			continue
		}
		s.mu.Lock()
		if cur, ok := s.hashes[h]; ok && cur.token == m.token {
			delete(s.hashes, h)
			dropped++
		}
		s.mu.Unlock()
	}
	return dropped
}
