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
	"fmt"
	"strings"

	"github.com/blnkfinance/tally/internal/apierror"
)

// Field is a semantic column of a transaction export.
type Field int

const (
	FieldAmount Field = iota
	FieldDate
	FieldCommission
	FieldCommissionSys
	FieldCommissionBank
	FieldCommissionPayment
	FieldCommissionEops
	FieldCommissionPartner
	FieldCommissionSecondBank
	FieldProvider
	FieldProviderID
	FieldVendor
	FieldVendorID
	FieldPaymentSystem
	FieldMode
	FieldStatus
	FieldTranType
	fieldCount
)

var fieldNames = [fieldCount]string{
	"amount", "date", "commission", "commission_sys", "commission_bank",
	"commission_payment", "commission_eops", "commission_partner",
	"commission_secondbank", "provider", "provider_id", "vendor", "vendor_id",
	"payment_system", "mode", "status", "tran_type",
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "unknown"
	}
	return fieldNames[f]
}

// Header aliases shared by payments and remittance exports.
var commonHeaders = map[string]Field{
	"провайдер":             FieldProvider,
	"provider_id":           FieldProviderID,
	"статус":                FieldStatus,
	"режим":                 FieldMode,
	"сумма":                 FieldAmount,
	"комиссия":              FieldCommission,
	"комиссия eops":         FieldCommissionEops,
	"commission_eops":       FieldCommissionEops,
	"комиссия comanyname":   FieldCommissionSys,
	"commission_comanyname": FieldCommissionSys,
	"комиссия bank":         FieldCommissionBank,
	"commission_bank":       FieldCommissionBank,
	"комиссия partner":      FieldCommissionPartner,
	"commission_partner":    FieldCommissionPartner,
	"дата транзакции":       FieldDate,
}

var remittanceHeaders = map[string]Field{
	"tran_type": FieldTranType,
}

var paymentsHeaders = map[string]Field{
	"комиссия payment":      FieldCommissionPayment,
	"commission_secondbank": FieldCommissionSecondBank,
	"вендор":                FieldVendor,
	"вендор id":             FieldVendorID,
	"платёжная система":     FieldPaymentSystem,
}

type requirement struct {
	field Field
	code  int
}

var commonRequired = []requirement{
	{FieldCommission, 423134},
	{FieldDate, 8423141},
	{FieldProvider, 423142},
	{FieldProviderID, 423143},
	{FieldMode, 423144},
	{FieldStatus, 423145},
	{FieldAmount, 423146},
	{FieldCommissionSys, 423135},
	{FieldCommissionBank, 423136},
	{FieldCommissionEops, 423138},
	{FieldCommissionPartner, 423139},
}

var categoryRequired = map[Category][]requirement{
	CategoryRemittance: {{FieldTranType, 423147}},
	CategoryPayments:   {{FieldCommissionPayment, 423137}, {FieldVendor, 423147}},
}

// IndexMap maps semantic fields to column positions of one source file.
type IndexMap struct {
	Category  Category
	positions [fieldCount]int
}

// NewIndexMap scans a header row case-insensitively. The first matching
// column wins for every field.
func NewIndexMap(header []string, category Category) IndexMap {
	m := IndexMap{Category: category}
	for i := range m.positions {
		m.positions[i] = -1
	}

	var extra map[string]Field
	switch category {
	case CategoryPayments:
		extra = paymentsHeaders
	case CategoryRemittance:
		extra = remittanceHeaders
	}

	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		if f, ok := commonHeaders[name]; ok && m.positions[f] < 0 {
			m.positions[f] = i
		}
		if f, ok := extra[name]; ok && m.positions[f] < 0 {
			m.positions[f] = i
		}
	}
	return m
}

// Position returns the column of f, if the header resolved it.
func (m IndexMap) Position(f Field) (int, bool) {
	if f < 0 || f >= fieldCount {
		return -1, false
	}
	p := m.positions[f]
	return p, p >= 0
}

// Cell returns the value of f in row. A field that is unresolved or beyond
// the row width reports false.
func (m IndexMap) Cell(row []string, f Field) (string, bool) {
	p, ok := m.Position(f)
	if !ok || p >= len(row) {
		return "", false
	}
	return row[p], true
}

// Require checks the common and category specific fields in a fixed order and
// fails on the first one that is missing.
func (m IndexMap) Require() error {
	reqs := append(append([]requirement{}, commonRequired...), categoryRequired[m.Category]...)
	for _, r := range reqs {
		if _, ok := m.Position(r.field); !ok {
			return apierror.NewAPIError(
				apierror.ErrMissingRequiredColumn,
				r.code,
				fmt.Sprintf("required column %s was not found in the header", r.field),
				nil,
			)
		}
	}
	return nil
}
