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

package model

import (
	"sort"
	"sync"
	"time"
)

// Report bundles the per-category aggregates of one fingerprint. It is shared
// by pointer between the report cache and every task merging into it; the
// embedded RWMutex guards all fields.
type Report struct {
	sync.RWMutex

	Kind             ReportKind
	OrganizationName string
	OrganizationID   string
	Items            map[Category]*ReportItem
	FullyRead        bool
	CreatedAt        time.Time
}

// NewReport creates an empty report stamped with createdAt.
func NewReport(kind ReportKind, organizationID string, createdAt time.Time) *Report {
	return &Report{
		Kind:           kind,
		OrganizationID: organizationID,
		Items:          make(map[Category]*ReportItem),
		CreatedAt:      createdAt,
	}
}

// EnsureItem returns the item for category, creating it on first use.
func (r *Report) EnsureItem(category Category, filter *Filter) *ReportItem {
	r.Lock()
	defer r.Unlock()
	return r.EnsureItemLocked(category, filter)
}

// EnsureItemLocked is EnsureItem for callers already holding the write lock.
func (r *Report) EnsureItemLocked(category Category, filter *Filter) *ReportItem {
	item, ok := r.Items[category]
	if !ok {
		item = NewReportItem(filter)
		r.Items[category] = item
	}
	return item
}

// Item returns the item for category, or nil.
func (r *Report) Item(category Category) *ReportItem {
	r.RLock()
	defer r.RUnlock()
	return r.Items[category]
}

// SetOrganizationID keeps the first non-empty id.
func (r *Report) SetOrganizationID(id string) {
	r.Lock()
	defer r.Unlock()
	if id != "" && r.OrganizationID == "" {
		r.OrganizationID = id
	}
}

// SetOrganizationName keeps the first non-empty name.
func (r *Report) SetOrganizationName(name string) {
	r.Lock()
	defer r.Unlock()
	r.SetOrganizationNameLocked(name)
}

// SetOrganizationNameLocked is SetOrganizationName for callers already
// holding the write lock.
func (r *Report) SetOrganizationNameLocked(name string) {
	if name != "" && r.OrganizationName == "" {
		r.OrganizationName = name
	}
}

// MarkFullyRead flips FullyRead once. It returns true only for the call that
// performed the transition.
func (r *Report) MarkFullyRead() bool {
	r.Lock()
	defer r.Unlock()
	if r.FullyRead {
		return false
	}
	r.FullyRead = true
	return true
}

// Created returns the creation timestamp.
func (r *Report) Created() time.Time {
	r.RLock()
	defer r.RUnlock()
	return r.CreatedAt
}

// LoadPercent returns the progress of category, or 0 when it is absent.
func (r *Report) LoadPercent(category Category) float64 {
	r.RLock()
	defer r.RUnlock()
	if item, ok := r.Items[category]; ok {
		return item.LoadPercent
	}
	return 0
}

// Categories returns the categories present, in a stable order.
func (r *Report) Categories() []Category {
	r.RLock()
	defer r.RUnlock()
	out := make([]Category, 0, len(r.Items))
	for c := range r.Items {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// ReportSummary is a lock-free copy of the report metadata.
type ReportSummary struct {
	Kind             ReportKind           `json:"report_type"`
	OrganizationName string               `json:"organization_name"`
	OrganizationID   string               `json:"organization_id"`
	FullyRead        bool                 `json:"fully_read"`
	CreatedAt        time.Time            `json:"created_at"`
	LoadPercent      map[Category]float64 `json:"load_percent"`
	Transactions     map[Category]uint64  `json:"transaction_count"`
}

// Summary copies the report metadata under the read lock.
func (r *Report) Summary() ReportSummary {
	r.RLock()
	defer r.RUnlock()
	s := ReportSummary{
		Kind:             r.Kind,
		OrganizationName: r.OrganizationName,
		OrganizationID:   r.OrganizationID,
		FullyRead:        r.FullyRead,
		CreatedAt:        r.CreatedAt,
		LoadPercent:      make(map[Category]float64, len(r.Items)),
		Transactions:     make(map[Category]uint64, len(r.Items)),
	}
	for c, item := range r.Items {
		s.LoadPercent[c] = item.LoadPercent
		s.Transactions[c] = item.TransactionCount
	}
	return s
}
