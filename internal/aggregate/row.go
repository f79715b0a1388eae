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

package aggregate

import (
	"fmt"
	"strings"
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"github.com/shopspring/decimal"
)

// row is a validated transaction line.
type row struct {
	day           time.Time
	amount        decimal.Decimal
	commission    decimal.Decimal
	sys           decimal.Decimal
	bank          decimal.Decimal
	payment       decimal.Decimal
	eops          decimal.Decimal
	partner       decimal.Decimal
	provider      string
	vendorKey     string
	vendor        string
	paymentSystem string
}

func (r row) dayKey() string {
	return model.FormatDay(r.day)
}

func unparseable(field model.Field, line int, value string) error {
	return apierror.NewAPIError(apierror.ErrUnparseableField, apierror.CodeUnparseableField,
		fmt.Sprintf("field %s of row %d holds %q, which is not a valid value", field, line, value),
		map[string]interface{}{"field": field.String(), "row": line})
}

func parseNumber(cells []string, idx model.IndexMap, field model.Field, line int) (decimal.Decimal, error) {
	raw, ok := idx.Cell(cells, field)
	if !ok {
		return decimal.Zero, unparseable(field, line, "")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, unparseable(field, line, raw)
	}
	return v, nil
}

func parseDay(cells []string, idx model.IndexMap, line int) (time.Time, error) {
	raw, ok := idx.Cell(cells, model.FieldDate)
	if !ok {
		return time.Time{}, unparseable(model.FieldDate, line, "")
	}
	day := strings.TrimSpace(raw)
	if i := strings.IndexByte(day, ' '); i >= 0 {
		day = day[:i]
	}
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}, unparseable(model.FieldDate, line, raw)
	}
	return t, nil
}

// parseRow validates every field the merge reads from cells.
func parseRow(cells []string, idx model.IndexMap, line int) (row, error) {
	var (
		r   row
		err error
	)

	if r.day, err = parseDay(cells, idx, line); err != nil {
		return r, err
	}

	numbers := []struct {
		field model.Field
		dst   *decimal.Decimal
	}{
		{model.FieldAmount, &r.amount},
		{model.FieldCommission, &r.commission},
		{model.FieldCommissionSys, &r.sys},
		{model.FieldCommissionBank, &r.bank},
		{model.FieldCommissionEops, &r.eops},
		{model.FieldCommissionPartner, &r.partner},
	}
	if idx.Category == model.CategoryPayments {
		numbers = append(numbers, struct {
			field model.Field
			dst   *decimal.Decimal
		}{model.FieldCommissionPayment, &r.payment})
	}
	for _, n := range numbers {
		if *n.dst, err = parseNumber(cells, idx, n.field, line); err != nil {
			return r, err
		}
	}

	r.provider, _ = idx.Cell(cells, model.FieldProvider)
	r.vendor, _ = idx.Cell(cells, model.FieldVendor)
	r.paymentSystem, _ = idx.Cell(cells, model.FieldPaymentSystem)

	keyField := model.FieldVendor
	if idx.Category == model.CategoryRemittance {
		keyField = model.FieldTranType
	}
	r.vendorKey, _ = idx.Cell(cells, keyField)

	return r, nil
}
