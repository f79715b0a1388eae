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
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// VendorSummary is one row of the summary-by-provider rollup.
type VendorSummary struct {
	Vendor      string          `json:"vendor"`
	Count       uint64          `json:"count"`
	Amount      decimal.Decimal `json:"amount"`
	Commission  decimal.Decimal `json:"commission"`
	BankFee     decimal.Decimal `json:"bank_fee"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
}

// ProviderRollup aggregates taxi and agent payments per provider.
type ProviderRollup struct {
	Provider   string          `json:"provider"`
	Count      uint64          `json:"count"`
	Amount     decimal.Decimal `json:"amount"`
	Commission decimal.Decimal `json:"commission"`
}

// RemittanceRollup aggregates agent remittances per provider.
type RemittanceRollup struct {
	Provider    string          `json:"provider"`
	Count       uint64          `json:"count"`
	Amount      decimal.Decimal `json:"amount"`
	Commission  decimal.Decimal `json:"commission"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	AgentFee    decimal.Decimal `json:"agent_fee"`
}

// VendorPaymentRollup aggregates merchant payments per vendor and payment system.
type VendorPaymentRollup struct {
	Vendor        string          `json:"vendor"`
	PaymentSystem string          `json:"payment_system"`
	Count         uint64          `json:"count"`
	Amount        decimal.Decimal `json:"amount"`
	Commission    decimal.Decimal `json:"commission"`
}

// Commissions holds the named commission subtotals.
type Commissions struct {
	Commission decimal.Decimal `json:"commission"`
	Sys        decimal.Decimal `json:"commission_sys"`
	Bank       decimal.Decimal `json:"commission_bank"`
	Payment    decimal.Decimal `json:"commission_payment"`
	Eops       decimal.Decimal `json:"commission_eops"`
	Partner    decimal.Decimal `json:"commission_partner"`
}

// ReportItem is the aggregate of one category. It is only mutated while the
// owning Report's write lock is held.
type ReportItem struct {
	Filter *Filter `json:"-"`

	Amount           decimal.Decimal `json:"amount"`
	TransactionCount uint64          `json:"transaction_count"`
	Commission       decimal.Decimal `json:"commission_total"`
	Commissions      Commissions     `json:"commissions"`

	AmountByDay     map[string]decimal.Decimal `json:"amount_by_day"`
	CountByDay      map[string]uint64          `json:"count_by_day"`
	CommissionByDay map[string]decimal.Decimal `json:"commission_by_day"`
	DaysSeen        map[string]struct{}        `json:"-"`

	VendorSummary            []VendorSummary       `json:"vendor_summary"`
	ByProvider               []ProviderRollup      `json:"by_provider,omitempty"`
	ByProviderRemittance     []RemittanceRollup    `json:"by_provider_remittance,omitempty"`
	ByVendorAndPaymentSystem []VendorPaymentRollup `json:"by_vendor_and_payment_system,omitempty"`

	MergedChunkIDs map[uint32]struct{} `json:"-"`
	LoadPercent    float64             `json:"load_percent"`
	RefillAmount   decimal.Decimal     `json:"refill_amount"`
}

func NewReportItem(filter *Filter) *ReportItem {
	return &ReportItem{
		Filter:          filter,
		AmountByDay:     make(map[string]decimal.Decimal),
		CountByDay:      make(map[string]uint64),
		CommissionByDay: make(map[string]decimal.Decimal),
		DaysSeen:        make(map[string]struct{}),
		MergedChunkIDs:  make(map[uint32]struct{}),
	}
}

// HasChunk reports whether chunk id was already merged.
func (i *ReportItem) HasChunk(id uint32) bool {
	_, ok := i.MergedChunkIDs[id]
	return ok
}

// RecordChunk marks id merged and recomputes the load percentage against
// total. The percentage never decreases.
func (i *ReportItem) RecordChunk(id uint32, total int) {
	i.MergedChunkIDs[id] = struct{}{}
	if total <= 0 {
		return
	}
	percent := math.Round(float64(len(i.MergedChunkIDs)) / float64(total) * 100)
	if percent > 100 {
		percent = 100
	}
	if percent > i.LoadPercent {
		i.LoadPercent = percent
	}
}

// MergedChunks returns merged chunk ids in ascending order.
func (i *ReportItem) MergedChunks() []uint32 {
	ids := make([]uint32, 0, len(i.MergedChunkIDs))
	for id := range i.MergedChunkIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids
}

// Days returns every day on the item's day axis in chronological order.
func (i *ReportItem) Days() []string {
	days := make([]string, 0, len(i.AmountByDay))
	for d := range i.AmountByDay {
		days = append(days, d)
	}
	for d := range i.CountByDay {
		if _, ok := i.AmountByDay[d]; !ok {
			days = append(days, d)
		}
	}
	sort.Strings(days)
	return days
}

// SortedVendorSummary returns a copy of the vendor rollup ordered by vendor.
func (i *ReportItem) SortedVendorSummary() []VendorSummary {
	out := append([]VendorSummary(nil), i.VendorSummary...)
	sort.Slice(out, func(a, b int) bool { return out[a].Vendor < out[b].Vendor })
	return out
}

func (i *ReportItem) SortedByProvider() []ProviderRollup {
	out := append([]ProviderRollup(nil), i.ByProvider...)
	sort.Slice(out, func(a, b int) bool { return out[a].Provider < out[b].Provider })
	return out
}

func (i *ReportItem) SortedByProviderRemittance() []RemittanceRollup {
	out := append([]RemittanceRollup(nil), i.ByProviderRemittance...)
	sort.Slice(out, func(a, b int) bool { return out[a].Provider < out[b].Provider })
	return out
}

func (i *ReportItem) SortedByVendorAndPaymentSystem() []VendorPaymentRollup {
	out := append([]VendorPaymentRollup(nil), i.ByVendorAndPaymentSystem...)
	sort.Slice(out, func(a, b int) bool {
		if out[a].Vendor != out[b].Vendor {
			return out[a].Vendor < out[b].Vendor
		}
		return out[a].PaymentSystem < out[b].PaymentSystem
	})
	return out
}

// MinMonth returns the smallest month number seen on the day axis, or 0.
func (i *ReportItem) MinMonth() int {
	min := 0
	for d := range i.DaysSeen {
		if len(d) < 7 {
			continue
		}
		m := int(d[5]-'0')*10 + int(d[6]-'0')
		if m < 1 || m > 12 {
			continue
		}
		if min == 0 || m < min {
			min = m
		}
	}
	return min
}
