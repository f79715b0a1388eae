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
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/blnkfinance/tally"
	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/database"
	"github.com/blnkfinance/tally/internal/backup"
	"github.com/blnkfinance/tally/internal/notification"
	redis_db "github.com/blnkfinance/tally/internal/redis-db"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
)

// Tally represents the CLI application, encapsulating the root Cobra command.
type Tally struct {
	cmd *cobra.Command
}

// tallyInstance holds the runtime engine and the configuration it was built from.
type tallyInstance struct {
	tally *tally.Tally
	db    database.IDataSource
	cnf   *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the engine before any command runs.
func preRun(app *tallyInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		logrus.AddHook(&apmlogrus.Hook{})

		if err := config.InitConfig(*configFile); err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		db, engine, err := setupTally(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.tally = engine
		app.db = db
		app.cnf = cnf
		return nil
	}
}

// setupTally connects the file registry and the optional collaborators named
// in cfg.
func setupTally(cfg *config.Configuration) (database.IDataSource, *tally.Tally, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("error getting datasource: %v", err)
	}

	var opts []tally.Option
	if cfg.Redis.Dns != "" {
		client, err := redis_db.NewRedisClient(cfg.Redis.Dns)
		if err != nil {
			return nil, nil, fmt.Errorf("error connecting to redis: %v", err)
		}
		opts = append(opts, tally.WithRedis(client.Client()))
	}
	if cfg.Backup.Enabled {
		uploader, err := backup.NewUploader(cfg.Backup)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating uploader: %v", err)
		}
		opts = append(opts, tally.WithUploader(uploader))
	}

	return db, tally.NewTally(db, cfg, opts...), nil
}

// NewCLI creates the root command and its subcommands.
func NewCLI() *Tally {
	var configFile string
	t := &tallyInstance{}

	var rootCmd = &cobra.Command{
		Use:   "tally",
		Short: "Report computation cache and aggregation engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./tally.json", "Configuration file for tally")
	rootCmd.PersistentPreRunE = preRun(t, &configFile)

	rootCmd.AddCommand(serverCommands(t))
	rootCmd.AddCommand(migrateCommands(t))
	rootCmd.AddCommand(backupCommands(t))
	rootCmd.AddCommand(configCommands())

	return &Tally{cmd: rootCmd}
}

func (w Tally) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
