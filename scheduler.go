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

	"github.com/blnkfinance/tally/internal/aggregate"
	"github.com/blnkfinance/tally/internal/files"
	"github.com/blnkfinance/tally/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const defaultMergeWorkers = 16

// Scheduler fans chunk merges out over a bounded set of goroutines.
type Scheduler struct {
	workers int
}

func NewScheduler(workers int) *Scheduler {
	if workers <= 0 {
		workers = defaultMergeWorkers
	}
	return &Scheduler{workers: workers}
}

// Remaining returns the chunks of src whose ids are not merged into the
// report item of category yet. A missing item means nothing was merged.
func Remaining(report *model.Report, category model.Category, src files.Source) []aggregate.Chunk {
	report.RLock()
	item := report.Items[category]
	var merged map[uint32]struct{}
	if item != nil {
		merged = make(map[uint32]struct{}, len(item.MergedChunkIDs))
		for id := range item.MergedChunkIDs {
			merged[id] = struct{}{}
		}
	}
	report.RUnlock()

	remaining := make([]aggregate.Chunk, 0, len(src.Chunks))
	for _, chunk := range src.Chunks {
		if _, ok := merged[chunk.ID]; !ok {
			remaining = append(remaining, chunk)
		}
	}
	return remaining
}

// Run merges every chunk of src that the report does not hold yet. total is
// the number of chunks the category will hold once complete; zero means
// len(src.Chunks). It waits for all tasks and returns the first error. A
// failing task leaves its siblings running, and tasks keep going when ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context, report *model.Report, category model.Category, src files.Source, total int) error {
	if total <= 0 {
		total = len(src.Chunks)
	}

	ctx = context.WithoutCancel(ctx)
	ctx, span := otel.Tracer("tally.scheduler").Start(ctx, "Merging chunks",
		trace.WithAttributes(
			attribute.String("tally.category", category.String()),
			attribute.Int("tally.chunks", len(src.Chunks)),
			attribute.Int("tally.total_chunks", total),
		))
	defer span.End()

	report.EnsureItem(category, src.Filter)

	req := aggregate.Request{
		Report:     report,
		Category:   category,
		Index:      src.Index,
		Aggregator: aggregate.For(report.Kind, category),
		Total:      total,
		Window:     src.Window,
	}

	remaining := Remaining(report, category, src)
	logrus.Debugf("scheduling %d of %d chunks for %s", len(remaining), len(src.Chunks), category)

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, chunk := range remaining {
		chunk := chunk
		g.Go(func() error {
			_, taskSpan := otel.Tracer("tally.scheduler").Start(ctx, "Merge chunk",
				trace.WithAttributes(attribute.Int("tally.chunk_id", int(chunk.ID))))
			defer taskSpan.End()

			if _, err := aggregate.Merge(req, chunk); err != nil {
				taskSpan.RecordError(err)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
