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
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/blnkfinance/tally"
	"github.com/blnkfinance/tally/api"
	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/database"
	trace "github.com/blnkfinance/tally/internal/traces"
	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const databaseCheckInterval = 30 * time.Second

/*
serveTLS starts an HTTPS server with certificates managed by CertMagic.
Without a configured domain the certificate is issued for localhost.
*/
func serveTLS(r *gin.Engine, conf config.ServerConfig) error {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: "certmagic"}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		log.Println("No domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}

	if err := cfg.ManageSync(context.Background(), domains); err != nil {
		return err
	}

	server := &http.Server{
		Addr:      ":" + conf.Port,
		Handler:   r,
		TLSConfig: cfg.TLSConfig(),
	}

	log.Printf("Starting HTTPS server on %s\n", conf.Port)
	if err := server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start HTTPS server: %v", err)
	}

	return nil
}

func initializeRouter(t *tallyInstance) *gin.Engine {
	return api.NewAPI(t.tally).Router()
}

func initializeTracing(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return func(context.Context) error { return nil }, nil
	}
	shutdown, err := trace.SetupOTelSDK(ctx, cfg.ProjectName)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	if cfg.SSL {
		return serveTLS(router, cfg)
	}
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// startBackground runs the report janitor and the database monitor until the
// returned stop function is called.
func startBackground(ctx context.Context, t *tallyInstance) func() {
	janitor := tally.NewJanitor(t.tally)
	janitor.Start(ctx)

	monitor := database.NewMonitor(t.db, databaseCheckInterval)
	monitor.Start(ctx)

	return func() {
		janitor.Stop()
		monitor.Stop()
	}
}

/*
serverCommands returns the Cobra command that starts the report server.
It wires tracing, the janitor and the database monitor before listening.
*/
func serverCommands(t *tallyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start tally server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			shutdown, err := initializeTracing(ctx, t.cnf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			router := initializeRouter(t)

			stop := startBackground(ctx, t)
			defer stop()

			if err := startServer(router, t.cnf.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
