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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT                   = "5002"
	DEFAULT_MAX_GENERATIONS        = 1000
	DEFAULT_RETENTION_SECONDS      = 1800
	DEFAULT_JANITOR_INTERVAL_SEC   = 1800
	DEFAULT_CHUNK_SIZE             = 256
	DEFAULT_MERGE_WORKERS          = 16
	DEFAULT_IDENTITY_CACHE_TTL_SEC = 300
	DEFAULT_IDENTITY_TIMEOUT_SEC   = 10
	DEFAULT_REPORTS_DIR            = "reports"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"TALLY_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"TALLY_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"TALLY_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"TALLY_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"TALLY_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"TALLY_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"TALLY_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"TALLY_REDIS_DNS"`
}

// GenerationConfig bounds report computations. MaxSimultaneous also honors
// the legacy variable name of the report service.
type GenerationConfig struct {
	MaxSimultaneous    int    `json:"max_simultaneous" envconfig:"TALLY_MAX_SIMULTANEOUS_GENERATIONS"`
	LegacyMax          int    `json:"-" envconfig:"MAX_NUM_OF_SIMULTANEOUS_GENERATIONS_CSV_IN_XLSX"`
	RetentionSeconds   int    `json:"retention_seconds" envconfig:"TALLY_REPORT_RETENTION_SECONDS"`
	JanitorIntervalSec int    `json:"janitor_interval_sec" envconfig:"TALLY_JANITOR_INTERVAL_SEC"`
	ChunkSize          int    `json:"chunk_size" envconfig:"TALLY_CHUNK_SIZE"`
	MergeWorkers       int    `json:"merge_workers" envconfig:"TALLY_MERGE_WORKERS"`
	ReportsDir         string `json:"reports_dir" envconfig:"TALLY_REPORTS_DIR"`
	SourceFilesDir     string `json:"source_files_dir" envconfig:"TALLY_SOURCE_FILES_DIR"`
}

type IdentityConfig struct {
	Url         string `json:"url" envconfig:"TALLY_IDENTITY_URL"`
	TimeoutSec  int    `json:"timeout_sec" envconfig:"TALLY_IDENTITY_TIMEOUT_SEC"`
	CacheTTLSec int    `json:"cache_ttl_sec" envconfig:"TALLY_IDENTITY_CACHE_TTL_SEC"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"TALLY_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"TALLY_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"TALLY_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type BackupConfig struct {
	Enabled            bool   `json:"enabled" envconfig:"TALLY_BACKUP_ENABLED"`
	AwsAccessKeyId     string `json:"aws_access_key_id" envconfig:"TALLY_AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `json:"aws_secret_access_key" envconfig:"TALLY_AWS_SECRET_ACCESS_KEY"`
	S3Endpoint         string `json:"s3_endpoint" envconfig:"TALLY_S3_ENDPOINT"`
	S3BucketName       string `json:"s3_bucket_name" envconfig:"TALLY_S3_BUCKET_NAME"`
	S3Region           string `json:"s3_region" envconfig:"TALLY_S3_REGION"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"TALLY_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"TALLY_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"TALLY_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Generation      GenerationConfig `json:"generation"`
	Identity        IdentityConfig   `json:"identity"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
	Backup          BackupConfig     `json:"backup"`
	Notification    Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("tally", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called tally.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Tally Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Identity.Url = strings.TrimSpace(cnf.Identity.Url)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.Generation.applyDefaults()

	if cnf.Identity.TimeoutSec <= 0 {
		cnf.Identity.TimeoutSec = DEFAULT_IDENTITY_TIMEOUT_SEC
	}
	if cnf.Identity.CacheTTLSec <= 0 {
		cnf.Identity.CacheTTLSec = DEFAULT_IDENTITY_CACHE_TTL_SEC
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	if cnf.Backup.Enabled && cnf.Backup.S3BucketName == "" {
		return errors.New("s3 bucket name is required when backup is enabled")
	}

	return nil
}

func (g *GenerationConfig) applyDefaults() {
	if g.MaxSimultaneous <= 0 {
		g.MaxSimultaneous = g.LegacyMax
	}
	if g.MaxSimultaneous <= 0 {
		g.MaxSimultaneous = DEFAULT_MAX_GENERATIONS
	}
	if g.RetentionSeconds <= 0 {
		g.RetentionSeconds = DEFAULT_RETENTION_SECONDS
	}
	if g.JanitorIntervalSec <= 0 {
		g.JanitorIntervalSec = DEFAULT_JANITOR_INTERVAL_SEC
	}
	if g.ChunkSize <= 0 {
		g.ChunkSize = DEFAULT_CHUNK_SIZE
	}
	if g.MergeWorkers <= 0 {
		g.MergeWorkers = DEFAULT_MERGE_WORKERS
	}
	g.ReportsDir = strings.TrimSpace(g.ReportsDir)
	if g.ReportsDir == "" {
		g.ReportsDir = DEFAULT_REPORTS_DIR
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.Generation.applyDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
