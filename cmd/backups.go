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
	"time"

	"github.com/blnkfinance/tally/internal/backup"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func backupCommands(t *tallyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "archive rendered reports to s3",
		Run: func(cmd *cobra.Command, args []string) {
			if !t.cnf.Backup.Enabled {
				logrus.Error("backup is disabled in the configuration")
				return
			}
			uploader, err := backup.NewUploader(t.cnf.Backup)
			if err != nil {
				logrus.Error(err)
				return
			}
			key, err := uploader.ArchiveReports(context.Background(), t.cnf.Generation.ReportsDir, time.Now())
			if err != nil {
				logrus.Error(err)
				return
			}
			logrus.Infof("reports archived to %s", key)
		},
	}

	return cmd
}
