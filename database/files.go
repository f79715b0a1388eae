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

package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/internal/cache"
	"github.com/blnkfinance/tally/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

// fileCacheTTL bounds how long a ready registry row is served from cache.
const fileCacheTTL = 5 * time.Minute

// GetFilesByIDs returns the registry rows of ids ordered by id. Ready rows are
// cached; rows in any other segment are always read from the database.
func (d Datasource) GetFilesByIDs(ctx context.Context, ids []uint32) ([]model.FileInfo, error) {
	ctx, span := otel.Tracer("tally.database").Start(ctx, "Fetching source files by id")
	defer span.End()

	files := make([]model.FileInfo, 0, len(ids))
	missing := make([]uint32, 0, len(ids))
	for _, id := range ids {
		if file, ok := d.cachedFile(ctx, id); ok {
			files = append(files, file)
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		fetched, err := d.queryFiles(ctx, missing)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		for _, file := range fetched {
			if file.Segment == model.SegmentReady && d.Cache != nil {
				if err := d.Cache.Set(ctx, cache.FileKey(file.ID), file, fileCacheTTL); err != nil {
					logrus.Warnf("could not cache file %d: %v", file.ID, err)
				}
			}
		}
		files = append(files, fetched...)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

func (d Datasource) cachedFile(ctx context.Context, id uint32) (model.FileInfo, bool) {
	if d.Cache == nil {
		return model.FileInfo{}, false
	}
	var file model.FileInfo
	found, err := d.Cache.Get(ctx, cache.FileKey(id), &file)
	if err != nil {
		logrus.Warnf("file cache read failed for %d: %v", id, err)
		return model.FileInfo{}, false
	}
	return file, found
}

func (d Datasource) queryFiles(ctx context.Context, ids []uint32) ([]model.FileInfo, error) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, file_path, file_type, segment, date_from, date_to, user_id
		FROM source_files
		WHERE id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, apierror.CodeDatabaseQuery,
			"failed to retrieve source files", err.Error())
	}
	defer rows.Close()

	var files []model.FileInfo
	for rows.Next() {
		var file model.FileInfo
		if err := rows.Scan(&file.ID, &file.Path, &file.FileType, &file.Segment,
			&file.DateFrom, &file.DateTo, &file.OwnerID); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, apierror.CodeDatabaseQuery,
				"failed to scan source file", err.Error())
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, apierror.CodeDatabaseQuery,
			"error occurred while iterating over source files", err.Error())
	}
	return files, nil
}

// GetMaxFileID returns the highest id in the registry, or 0 when it is empty.
func (d Datasource) GetMaxFileID(ctx context.Context) (int64, error) {
	var maxID sql.NullInt64
	err := d.Conn.QueryRowContext(ctx, `SELECT MAX(id) FROM source_files`).Scan(&maxID)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, apierror.CodeDatabaseScan,
			"failed to read the last source file id", err.Error())
	}
	return maxID.Int64, nil
}
