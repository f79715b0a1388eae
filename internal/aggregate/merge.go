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

// Package aggregate merges chunks of transaction rows into a shared report.
package aggregate

import (
	"fmt"
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"github.com/shopspring/decimal"
)

// CodeRollupColumn is returned when a column needed by a rollup is missing.
const CodeRollupColumn = 423149

// CodeItemMissing is returned when a chunk targets a category that was never
// registered on the report.
const CodeItemMissing = 4132425

// CodeSpanTooLong is returned when the day axis of a chunk exceeds MaxSpanDays.
const CodeSpanTooLong = 4132426

// MaxSpanDays bounds the dense day axis of one chunk.
const MaxSpanDays = 3660

// Chunk is a bounded batch of rows with its sequence number.
type Chunk struct {
	ID   uint32
	Rows [][]string
}

// Request groups what a merge needs besides the chunk.
type Request struct {
	Report     *model.Report
	Category   model.Category
	Index      model.IndexMap
	Aggregator Aggregator
	Total      int
	// Window is the date range the file registry declares for the source.
	// The dense day axis never extends past it. A zero Window leaves the
	// axis unclamped.
	Window model.DateRange
}

// Merge folds chunk into the report item of req.Category.
//
// The chunk is parsed into a scratch item before the report is locked, so a
// bad row leaves the report untouched. A chunk id that is already merged is a
// no-op. The returned value is the load percentage after the call.
func Merge(req Request, chunk Chunk) (float64, error) {
	if err := checkColumns(req); err != nil {
		return 0, err
	}

	scratch, firstProvider, err := fold(req, chunk)
	if err != nil {
		return 0, err
	}

	req.Report.Lock()
	defer req.Report.Unlock()

	item, ok := req.Report.Items[req.Category]
	if !ok {
		return 0, apierror.NewAPIError(apierror.ErrReportNotFound, CodeItemMissing,
			fmt.Sprintf("report has no %s section", req.Category), nil)
	}
	if item.HasChunk(chunk.ID) {
		return item.LoadPercent, nil
	}

	if chunk.ID == 0 {
		req.Report.SetOrganizationNameLocked(firstProvider)
	}
	combine(item, scratch, req.Aggregator)
	item.RecordChunk(chunk.ID, req.Total)

	return item.LoadPercent, nil
}

func checkColumns(req Request) error {
	if err := req.Index.Require(); err != nil {
		return err
	}
	for _, f := range req.Aggregator.Required() {
		if _, ok := req.Index.Position(f); !ok {
			return apierror.NewAPIError(apierror.ErrMissingRequiredColumn, CodeRollupColumn,
				fmt.Sprintf("column %s is required for the %s rollup", f, req.Aggregator.Name()), nil)
		}
	}
	return nil
}

// fold builds the chunk delta. The day axis covers every calendar day between
// the first and last row of the chunk, with zero entries for quiet days.
func fold(req Request, chunk Chunk) (*model.ReportItem, string, error) {
	scratch := model.NewReportItem(nil)
	if len(chunk.Rows) == 0 {
		return scratch, "", nil
	}

	rows := make([]row, len(chunk.Rows))
	for i, cells := range chunk.Rows {
		r, err := parseRow(cells, req.Index, i)
		if err != nil {
			return nil, "", err
		}
		rows[i] = r
	}

	first, last := rows[0].day, rows[len(rows)-1].day
	if last.Before(first) {
		first, last = last, first
	}
	first, last = clamp(first, last, req.Window)
	if !last.Before(first) {
		if days := int(last.Sub(first).Hours()/24) + 1; days > MaxSpanDays {
			return nil, "", apierror.NewAPIError(apierror.ErrUnparseableField, CodeSpanTooLong,
				fmt.Sprintf("chunk %d spans %d days, more than %d", chunk.ID, days, MaxSpanDays), nil)
		}
		for _, key := range Span(first, last) {
			scratch.AmountByDay[key] = decimal.Zero
			scratch.CommissionByDay[key] = decimal.Zero
			scratch.DaysSeen[key] = struct{}{}
		}
	}

	for _, r := range rows {
		day := r.dayKey()
		scratch.AmountByDay[day] = scratch.AmountByDay[day].Add(r.amount)
		scratch.CommissionByDay[day] = scratch.CommissionByDay[day].Add(r.commission)
		scratch.DaysSeen[day] = struct{}{}
		scratch.CountByDay[day]++

		scratch.VendorSummary = addVendor(scratch.VendorSummary, model.VendorSummary{
			Vendor:      r.vendorKey,
			Count:       1,
			Amount:      r.amount,
			Commission:  r.commission,
			BankFee:     r.bank,
			PlatformFee: r.sys,
		})
		req.Aggregator.Fold(scratch, r)

		scratch.Amount = scratch.Amount.Add(r.amount)
		scratch.Commission = scratch.Commission.Add(r.commission)
		c := &scratch.Commissions
		c.Commission = c.Commission.Add(r.commission)
		c.Sys = c.Sys.Add(r.sys)
		c.Bank = c.Bank.Add(r.bank)
		c.Eops = c.Eops.Add(r.eops)
		c.Partner = c.Partner.Add(r.partner)
		c.Payment = c.Payment.Add(r.payment)
	}
	scratch.TransactionCount = uint64(len(rows))

	return scratch, rows[0].provider, nil
}

// combine adds a chunk delta into the shared item. Callers hold the report
// write lock.
func combine(dst, src *model.ReportItem, agg Aggregator) {
	for day, v := range src.AmountByDay {
		dst.AmountByDay[day] = dst.AmountByDay[day].Add(v)
	}
	for day, v := range src.CommissionByDay {
		dst.CommissionByDay[day] = dst.CommissionByDay[day].Add(v)
	}
	for day := range src.DaysSeen {
		dst.DaysSeen[day] = struct{}{}
	}
	for day := range dst.DaysSeen {
		if _, ok := dst.CountByDay[day]; !ok {
			dst.CountByDay[day] = 0
		}
	}
	for day, n := range src.CountByDay {
		dst.CountByDay[day] += n
	}

	for _, v := range src.VendorSummary {
		dst.VendorSummary = addVendor(dst.VendorSummary, v)
	}
	agg.Combine(dst, src)

	dst.Amount = dst.Amount.Add(src.Amount)
	dst.Commission = dst.Commission.Add(src.Commission)
	dst.Commissions.Commission = dst.Commissions.Commission.Add(src.Commissions.Commission)
	dst.Commissions.Sys = dst.Commissions.Sys.Add(src.Commissions.Sys)
	dst.Commissions.Bank = dst.Commissions.Bank.Add(src.Commissions.Bank)
	dst.Commissions.Eops = dst.Commissions.Eops.Add(src.Commissions.Eops)
	dst.Commissions.Partner = dst.Commissions.Partner.Add(src.Commissions.Partner)
	dst.Commissions.Payment = dst.Commissions.Payment.Add(src.Commissions.Payment)
	dst.TransactionCount += src.TransactionCount
}

// clamp narrows [first, last] to window. Bounds that do not parse are ignored.
// The result is empty (last before first) when the rows lie outside window.
func clamp(first, last time.Time, window model.DateRange) (time.Time, time.Time) {
	if from, err := time.Parse("2006-01-02", window.From); err == nil && first.Before(from) {
		first = from
	}
	if to, err := time.Parse("2006-01-02", window.To); err == nil && last.After(to) {
		last = to
	}
	return first, last
}

// Span returns the dense day axis between from and to, inclusive.
func Span(from, to time.Time) []string {
	if to.Before(from) {
		from, to = to, from
	}
	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, model.FormatDay(d))
	}
	return days
}
