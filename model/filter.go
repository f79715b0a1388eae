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

// Filter is one sub-filter of a generation request. It is bound to a source
// file exactly once and treated as read-only afterwards.
type Filter struct {
	ID             uint32   `json:"id"`
	Status         *Status  `json:"status,omitempty"`
	Mode           *string  `json:"mode,omitempty"`
	PaymentSystems []string `json:"payments_system,omitempty"`
	Category       Category `json:"-"`
	DependsOnKind  string   `json:"-"`
	SourcePath     string   `json:"-"`
}

// NormalizePaymentSystems lowercases the payment-system allow-list.
func (f *Filter) NormalizePaymentSystems() {
	for i, p := range f.PaymentSystems {
		f.PaymentSystems[i] = strings.ToLower(p)
	}
}

// Bind attaches the source file kind and path and resolves the category.
func (f *Filter) Bind(kind, path string) error {
	f.DependsOnKind = kind
	f.SourcePath = path
	return f.ResolveCategory()
}

// ResolveCategory maps the file kind onto a Category.
func (f *Filter) ResolveCategory() error {
	if f.DependsOnKind == "" {
		return apierror.NewAPIError(apierror.ErrUnknownCategory, apierror.CodeMissingKind,
			fmt.Sprintf("could not determine the file kind for id %d", f.ID), nil)
	}

	switch f.DependsOnKind {
	case "pay", "pay_f":
		f.Category = CategoryPayments
	case "c2card", "c2ccomanyname", "c2cCOMANYNAME":
		f.Category = CategoryRemittance
	default:
		f.Category = CategoryUnknown
		return apierror.NewAPIError(apierror.ErrUnknownCategory, apierror.CodeUnknownCategory,
			fmt.Sprintf("unknown file kind %q", f.DependsOnKind), nil)
	}
	return nil
}

// StatusValue returns the status used for fingerprints. A missing status is
// treated as StatusUnknown.
func (f *Filter) StatusValue() Status {
	if f.Status == nil {
		return StatusUnknown
	}
	return *f.Status
}

// ModeValue returns the mode or an empty string.
func (f *Filter) ModeValue() string {
	if f.Mode == nil {
		return ""
	}
	return *f.Mode
}

// OrganizationField is the column holding the organization id for a kind.
func OrganizationField(kind ReportKind) (Field, error) {
	switch kind {
	case KindAgent, KindTaxiCompany:
		return FieldProviderID, nil
	case KindMerchant:
		return FieldVendorID, nil
	default:
		return 0, apierror.NewAPIError(apierror.ErrInvalidInput, apierror.CodeOrgColumnUnknownKind,
			"cannot resolve the organization column for an unknown report type", nil)
	}
}

var orgColumnCodes = map[ReportKind]int{
	KindAgent:       3443242,
	KindTaxiCompany: 3443243,
	KindMerchant:    3443244,
}

// Accept reports whether row passes the filter for the given organization.
func (f *Filter) Accept(row []string, idx IndexMap, orgID string, kind ReportKind) (bool, error) {
	accepted := true

	if f.Status != nil {
		if *f.Status == StatusUnknown {
			accepted = false
		} else if cell, _ := idx.Cell(row, FieldStatus); cell != f.Status.Label() {
			accepted = false
		}
	}

	if mode := f.ModeValue(); mode != "" {
		if cell, _ := idx.Cell(row, FieldMode); cell != mode {
			accepted = false
		}
	}

	orgField, err := OrganizationField(kind)
	if err != nil {
		return false, err
	}
	if _, ok := idx.Position(orgField); !ok {
		return false, apierror.NewAPIError(apierror.ErrMissingRequiredColumn, orgColumnCodes[kind],
			fmt.Sprintf("column %s was not found", orgField), nil)
	}
	if orgID != "" {
		if cell, _ := idx.Cell(row, orgField); cell != orgID {
			accepted = false
		}
	}

	if len(f.PaymentSystems) > 0 && f.Category == CategoryPayments {
		cell, _ := idx.Cell(row, FieldPaymentSystem)
		cell = strings.ToLower(cell)
		matched := false
		for _, p := range f.PaymentSystems {
			if strings.ToLower(p) == cell {
				matched = true
				break
			}
		}
		if !matched {
			accepted = false
		}
	}

	return accepted, nil
}
