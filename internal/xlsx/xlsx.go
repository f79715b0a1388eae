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

// Package xlsx renders finished reports into spreadsheets.
package xlsx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet name prefixes. Each category gets its own set of sheets.
const (
	SheetSummaryByDay      = "Summary by day"
	SheetSummaryByProvider = "Summary by provider"
	SheetGeneralReport     = "General report"
)

// Options carries the request details printed on the general report sheet.
type Options struct {
	Author                 string
	MonthlySubscriptionFee float64
	Periods                []model.DateRange
}

// Renderer builds workbooks from reports.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// SheetName returns the sheet name of base for category.
func SheetName(base string, category model.Category) string {
	switch category {
	case model.CategoryPayments:
		return base + " pay"
	case model.CategoryRemittance:
		return base + " c2c"
	default:
		return base
	}
}

// Render writes every category of report into a new workbook. The report is
// read under its read lock.
func (r *Renderer) Render(report *model.Report, opts Options) (*excelize.File, error) {
	report.RLock()
	defer report.RUnlock()

	if len(report.Items) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrChunkEmpty, apierror.CodeChunkEmpty,
			"report has no data to render", nil)
	}

	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}

	first := true
	for _, category := range []model.Category{model.CategoryPayments, model.CategoryRemittance} {
		item, ok := report.Items[category]
		if !ok {
			continue
		}

		w := &sheetWriter{f: f, style: headerStyle}
		general := SheetName(SheetGeneralReport, category)
		if first {
			w.rename("Sheet1", general)
			first = false
		} else {
			w.add(general)
		}
		writeGeneral(w, general, report, category, item, opts)

		byDay := SheetName(SheetSummaryByDay, category)
		w.add(byDay)
		writeSummaryByDay(w, byDay, item)

		byProvider := SheetName(SheetSummaryByProvider, category)
		w.add(byProvider)
		writeSummaryByProvider(w, byProvider, item)

		if w.err != nil {
			return nil, errors.Wrapf(w.err, "rendering %s sheets", category)
		}
	}

	return f, nil
}

// Save writes f to path, creating the parent directory.
func Save(f *excelize.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, apierror.CodeArtifactSave,
			"could not create the reports directory", err.Error())
	}
	if err := f.SaveAs(path); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, apierror.CodeArtifactSave,
			"failed to create xlsx file", err.Error())
	}
	return nil
}

func writeSummaryByDay(w *sheetWriter, sheet string, item *model.ReportItem) {
	w.header(sheet, 1, "Day", "Count", "Amount", "Commission")

	row := 2
	for _, day := range item.Days() {
		w.row(sheet, row, day, item.CountByDay[day], money(item.AmountByDay[day]), money(item.CommissionByDay[day]))
		row++
	}
	w.header(sheet, row, "Total", item.TransactionCount, money(item.Amount), money(item.Commission))

	w.width(sheet, "A", "A", 14)
	w.width(sheet, "B", "D", 18)
}

func writeSummaryByProvider(w *sheetWriter, sheet string, item *model.ReportItem) {
	w.header(sheet, 1, "Provider", "Count", "Amount", "Commission", "Bank fee", "Platform fee")

	row := 2
	var count uint64
	bank, platform := decimal.Zero, decimal.Zero
	for _, v := range item.SortedVendorSummary() {
		w.row(sheet, row, v.Vendor, v.Count, money(v.Amount), money(v.Commission), money(v.BankFee), money(v.PlatformFee))
		count += v.Count
		bank = bank.Add(v.BankFee)
		platform = platform.Add(v.PlatformFee)
		row++
	}
	w.header(sheet, row, "Total", count, money(item.Amount), money(item.Commission), money(bank), money(platform))

	w.width(sheet, "A", "A", 30)
	w.width(sheet, "B", "F", 18)
}

func writeGeneral(w *sheetWriter, sheet string, report *model.Report, category model.Category, item *model.ReportItem, opts Options) {
	title := fmt.Sprintf("%s report: %s", report.Kind, category)
	w.row(sheet, 1, title)
	w.row(sheet, 2, "Organization", report.OrganizationName, report.OrganizationID)
	w.row(sheet, 3, "Period", periods(opts.Periods))
	status, mode := "None", "None"
	if item.Filter != nil {
		if item.Filter.Status != nil {
			status = item.Filter.Status.Label()
		}
		if m := item.Filter.ModeValue(); m != "" {
			mode = m
		}
	}
	w.row(sheet, 4, "Status", status, "Mode", mode)
	w.row(sheet, 5, "Responsible", opts.Author)

	row := 7
	switch {
	case report.Kind == model.KindMerchant:
		w.header(sheet, row, "Merchant", "Payment system", "Count", "Amount", "Commission")
		for _, v := range item.SortedByVendorAndPaymentSystem() {
			row++
			w.row(sheet, row, v.Vendor, v.PaymentSystem, v.Count, money(v.Amount), money(v.Commission))
		}
		row++
		w.header(sheet, row, "Total", "", item.TransactionCount, money(item.Amount), money(item.Commission))

	case report.Kind == model.KindAgent && category == model.CategoryRemittance:
		w.header(sheet, row, "Provider", "Count", "Amount", "Commission", "Platform fee", "Agent fee")
		platform, agent := decimal.Zero, decimal.Zero
		for _, v := range item.SortedByProviderRemittance() {
			row++
			w.row(sheet, row, v.Provider, v.Count, money(v.Amount), money(v.Commission), money(v.PlatformFee), money(v.AgentFee))
			platform = platform.Add(v.PlatformFee)
			agent = agent.Add(v.AgentFee)
		}
		row++
		w.header(sheet, row, "Total", item.TransactionCount, money(item.Amount), money(item.Commission), money(platform), money(agent))

	default:
		w.header(sheet, row, "Provider", "Count", "Amount", "Commission")
		for _, v := range item.SortedByProvider() {
			row++
			w.row(sheet, row, v.Provider, v.Count, money(v.Amount), money(v.Commission))
		}
		row++
		w.header(sheet, row, "Total", item.TransactionCount, money(item.Amount), money(item.Commission))
	}

	if report.Kind == model.KindTaxiCompany {
		row += 2
		w.row(sheet, row, "Monthly subscription fee", opts.MonthlySubscriptionFee)
		row++
		reward := item.Commissions.Sys.Add(decimal.NewFromFloat(opts.MonthlySubscriptionFee))
		w.header(sheet, row, "Total platform reward", money(reward))
	}

	w.width(sheet, "A", "A", 30)
	w.width(sheet, "B", "F", 18)
}

func periods(ranges []model.DateRange) string {
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		parts = append(parts, r.From+" - "+r.To)
	}
	return strings.Join(parts, ", ")
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// sheetWriter keeps the first excelize error so the sheet builders can stay
// linear.
type sheetWriter struct {
	f     *excelize.File
	style int
	err   error
}

func (w *sheetWriter) rename(from, to string) {
	if w.err == nil {
		w.err = w.f.SetSheetName(from, to)
	}
}

func (w *sheetWriter) add(sheet string) {
	if w.err == nil {
		_, w.err = w.f.NewSheet(sheet)
	}
}

func (w *sheetWriter) row(sheet string, row int, values ...interface{}) {
	for i, v := range values {
		if w.err != nil {
			return
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			w.err = err
			return
		}
		w.err = w.f.SetCellValue(sheet, cell, v)
	}
}

func (w *sheetWriter) header(sheet string, row int, values ...interface{}) {
	w.row(sheet, row, values...)
	if w.err == nil {
		w.err = w.f.SetRowStyle(sheet, row, row, w.style)
	}
}

func (w *sheetWriter) width(sheet, from, to string, width float64) {
	if w.err == nil {
		w.err = w.f.SetColWidth(sheet, from, to, width)
	}
}
