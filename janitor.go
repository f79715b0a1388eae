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
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultJanitorInterval = 1800 * time.Second

// Janitor evicts cached reports once they outlive the retention period.
type Janitor struct {
	tally     *Tally
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

func NewJanitor(tally *Tally) *Janitor {
	interval := time.Duration(tally.cfg.JanitorIntervalSec) * time.Second
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	return &Janitor{
		tally:     tally,
		interval:  interval,
		retention: tally.Retention(),
		stopCh:    make(chan struct{}),
	}
}

func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.mu.Unlock()

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.run(ctx)
	}()

	logrus.Info("Report janitor started")
}

func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stopCh)
	j.mu.Unlock()

	j.wg.Wait()
	logrus.Info("Report janitor stopped")
}

func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *Janitor) run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Report janitor context cancelled")
			return
		case <-j.stopCh:
			logrus.Info("Report janitor stop signal received")
			return
		case t := <-ticker.C:
			j.Sweep(t)
		}
	}
}

// Sweep removes every report created at least one retention period before
// now and returns the removed fingerprints. Generating marks older than the
// retention period and left without a cached report are cleared afterwards.
func (j *Janitor) Sweep(now time.Time) []string {
	reports := j.tally.reports
	var removed []string

	for _, key := range reports.Keys() {
		report, ok := reports.Lookup(key)
		if !ok {
			continue
		}
		if now.Sub(report.Created()) < j.retention {
			continue
		}
		reports.Remove(key)
		removed = append(removed, key)
	}

	if dropped := j.tally.inflight.Sweep(reports, now.Add(-j.retention)); dropped > 0 {
		logrus.Warnf("janitor cleared %d orphaned generating marks", dropped)
	}
	if len(removed) > 0 {
		logrus.Infof("janitor evicted %d reports", len(removed))
	}
	return removed
}
