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

	"github.com/blnkfinance/tally/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	fileRegistry // Interface for source file lookups
	health       // Interface for connection checks
}

// fileRegistry defines methods for reading the source file registry.
type fileRegistry interface {
	GetFilesByIDs(ctx context.Context, ids []uint32) ([]model.FileInfo, error) // Retrieves the registry rows of the given ids
	GetMaxFileID(ctx context.Context) (int64, error)                          // Returns the highest registered id
}

// health defines methods for checking the database connection.
type health interface {
	Ping(ctx context.Context) error
}
