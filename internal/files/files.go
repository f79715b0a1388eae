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

package files

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/blnkfinance/tally/internal/aggregate"
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"github.com/sirupsen/logrus"
)

// ChunkSize is the default number of accepted rows per chunk.
const ChunkSize = 256

// Source is one filtered, chunked export ready to merge.
type Source struct {
	Filter *model.Filter
	Index  model.IndexMap
	Chunks []aggregate.Chunk
	// Window is the registry date range of the file, set by the caller.
	Window model.DateRange
}

// ReadChunks opens the source file of a bound filter and splits its accepted rows into chunks.
// Parameters:
// - ctx: The context for controlling execution.
// - filter: The bound filter. Its SourcePath and Category must be set.
// - orgID: The organization id rows must belong to, or empty for any.
// - kind: The report kind, used to pick the organization column.
// - chunkSize: Rows per chunk. Non-positive values fall back to ChunkSize.
// Returns:
// - Source: The index map and chunks of the file.
// - error: If the file cannot be read, a required column is missing, or no row matched.
func ReadChunks(ctx context.Context, filter *model.Filter, orgID string, kind model.ReportKind, chunkSize int) (Source, error) {
	f, err := os.Open(filter.SourcePath)
	if err != nil {
		return Source{}, apierror.NewAPIError(apierror.ErrNotFound, apierror.CodeFileAccess,
			fmt.Sprintf("could not open the source file of id %d", filter.ID), err.Error())
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logrus.Warnf("error closing source file %s: %v", filter.SourcePath, cerr)
		}
	}()

	return BuildChunks(ctx, f, filter, orgID, kind, chunkSize)
}

// BuildChunks reads a CSV export from r. The header row selects the column
// positions; rows rejected by the filter are skipped. The last partial chunk
// is kept.
func BuildChunks(ctx context.Context, r io.Reader, filter *model.Filter, orgID string, kind model.ReportKind, chunkSize int) (Source, error) {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}

	csvReader, err := newReader(r)
	if err != nil {
		return Source{}, err
	}

	header, err := csvReader.Read()
	if err != nil {
		return Source{}, apierror.NewAPIError(apierror.ErrInvalidInput, apierror.CodeFileAccess,
			fmt.Sprintf("could not read the header of file id %d", filter.ID), err.Error())
	}

	idx := model.NewIndexMap(header, filter.Category)
	if err := idx.Require(); err != nil {
		return Source{}, err
	}

	src := Source{Filter: filter, Index: idx}
	chunk := make([][]string, 0, chunkSize)
	rowNum := 1

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return Source{}, apierror.NewAPIError(apierror.ErrInvalidInput, apierror.CodeFileAccess,
				fmt.Sprintf("error reading row %d of file id %d", rowNum, filter.ID), err.Error())
		}

		ok, err := filter.Accept(record, idx, orgID, kind)
		if err != nil {
			return Source{}, err
		}
		if ok {
			chunk = append(chunk, record)
			if len(chunk) == chunkSize {
				src.Chunks = append(src.Chunks, aggregate.Chunk{ID: uint32(len(src.Chunks)), Rows: chunk})
				chunk = make([][]string, 0, chunkSize)
			}
		}

		// Check for context cancellation every 1000 rows.
		if rowNum%1000 == 0 {
			select {
			case <-ctx.Done():
				return Source{}, ctx.Err()
			default:
			}
		}
	}

	if len(chunk) > 0 {
		src.Chunks = append(src.Chunks, aggregate.Chunk{ID: uint32(len(src.Chunks)), Rows: chunk})
	}

	if len(src.Chunks) == 0 {
		return Source{}, apierror.NewAPIError(apierror.ErrChunkEmpty, apierror.CodeChunkEmpty,
			fmt.Sprintf("file id %d contains no matching data", filter.ID), nil)
	}

	return src, nil
}

// newReader sniffs the delimiter from the first line. Exports come either
// comma or semicolon separated.
func newReader(r io.Reader) (*csv.Reader, error) {
	buffered := bufio.NewReader(r)
	peek, err := buffered.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, apierror.CodeFileAccess, "could not read the source file", err.Error())
	}

	csvReader := csv.NewReader(buffered)
	csvReader.Comma = DetectDelimiter(peek)
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true
	csvReader.ReuseRecord = false
	return csvReader, nil
}

// DetectDelimiter picks ';' when the first line has more semicolons than
// commas.
func DetectDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}
