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

import "github.com/blnkfinance/tally/model"

// Share is a point-in-time view of the generation state.
type Share struct {
	Reports          map[string]model.ReportSummary `json:"reports"`
	GeneratedNow     int                            `json:"generated_now"`
	MaxGenerations   int                            `json:"max_count_record_in_reports"`
	GeneratingHashes []string                       `json:"generating_hashes"`
}

// Snapshot copies the cached report summaries and the admission counters.
// Each report is read under its own lock, one at a time.
func (t *Tally) Snapshot() Share {
	s := Share{
		Reports:          make(map[string]model.ReportSummary),
		GeneratedNow:     t.admission.Current(),
		MaxGenerations:   t.admission.Max(),
		GeneratingHashes: t.inflight.Snapshot(),
	}
	for _, key := range t.reports.Keys() {
		if report, ok := t.reports.Lookup(key); ok {
			s.Reports[key] = report.Summary()
		}
	}
	return s
}
