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
	"embed"
	"time"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/database"
	"github.com/blnkfinance/tally/internal/admission"
	"github.com/blnkfinance/tally/internal/backup"
	"github.com/blnkfinance/tally/internal/identity"
	"github.com/blnkfinance/tally/internal/reportcache"
	"github.com/blnkfinance/tally/internal/xlsx"
	"github.com/redis/go-redis/v9"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// Tally owns the report cache, the admission gate, the generating-hashes
// registry and the merge scheduler. One instance serves the whole process.
type Tally struct {
	datasource database.IDataSource
	identity   identity.Resolver
	reports    reportcache.Store
	admission  *admission.Controller
	inflight   *Inflight
	scheduler  *Scheduler
	renderer   *xlsx.Renderer
	uploader   *backup.Uploader
	redis      redis.UniversalClient
	cfg        config.GenerationConfig
	author     string
	now        func() time.Time
}

// Option customizes a Tally at construction.
type Option func(*Tally)

// WithRedis enables the cross-replica artifact lock.
func WithRedis(client redis.UniversalClient) Option {
	return func(t *Tally) { t.redis = client }
}

// WithUploader copies every rendered artifact to object storage.
func WithUploader(u *backup.Uploader) Option {
	return func(t *Tally) { t.uploader = u }
}

// WithIdentity replaces the token resolver.
func WithIdentity(r identity.Resolver) Option {
	return func(t *Tally) { t.identity = r }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tally) { t.now = now }
}

// NewTally initializes a new instance of Tally with the provided datasource.
//
// Parameters:
// - db database.IDataSource: The file registry.
// - cnf *config.Configuration: The loaded configuration.
// - opts ...Option: Optional collaborators.
//
// Returns:
// - *Tally: A pointer to the newly created Tally instance.
func NewTally(db database.IDataSource, cnf *config.Configuration, opts ...Option) *Tally {
	gen := cnf.Generation
	t := &Tally{
		datasource: db,
		identity: identity.NewHTTPResolver(cnf.Identity.Url,
			time.Duration(cnf.Identity.TimeoutSec)*time.Second,
			time.Duration(cnf.Identity.CacheTTLSec)*time.Second),
		reports:   reportcache.New(),
		admission: admission.NewController(gen.MaxSimultaneous),
		scheduler: NewScheduler(gen.MergeWorkers),
		renderer:  xlsx.NewRenderer(),
		cfg:       gen,
		author:    cnf.ProjectName,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.inflight = NewInflight(func() time.Time { return t.now() })
	return t
}

func (t *Tally) Reports() reportcache.Store {
	return t.reports
}

func (t *Tally) Admission() *admission.Controller {
	return t.admission
}

func (t *Tally) Inflight() *Inflight {
	return t.inflight
}

func (t *Tally) Identity() identity.Resolver {
	return t.identity
}

func (t *Tally) DataSource() database.IDataSource {
	return t.datasource
}

// Retention is how long a finished report stays cached.
func (t *Tally) Retention() time.Duration {
	return time.Duration(t.cfg.RetentionSeconds) * time.Second
}
