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
	"strconv"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// CodeFiltersRequired is returned when a request names no source file.
const CodeFiltersRequired = 6453452

var (
	errReportTypeMissing  = validation.NewError(strconv.Itoa(apierror.CodeReportTypeMissing), "report_type is required")
	errFiltersMissing     = validation.NewError(strconv.Itoa(CodeFiltersRequired), "at least one filter is required")
	errDuplicateFilterID  = validation.NewError(strconv.Itoa(apierror.CodeDuplicateFilterID), "filter ids must be unique")
	errMerchantNotAllowed = validation.NewError(strconv.Itoa(apierror.CodeMerchantIDNotAllowed), "merchant_id is only allowed for Merchant reports")
	errProviderNotAllowed = validation.NewError(strconv.Itoa(apierror.CodeProviderIDNotAllowed), "provider_id is only allowed for Agent and TaxiCompany reports")
	validationFieldOrder  = []string{"report_type", "filters", "merchant_id", "provider_id"}
)

// GenerateFile is the body of POST /generate_file.
type GenerateFile struct {
	model.GenerateRequest
}

func uniqueFilterIDs(value interface{}) error {
	filters, _ := value.([]model.Filter)
	seen := make(map[uint32]struct{}, len(filters))
	for _, f := range filters {
		if _, ok := seen[f.ID]; ok {
			return errDuplicateFilterID
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

// ValidateGenerateFile checks the request shape. The returned error is an
// apierror.APIError carrying the code of the first failing field.
func (g *GenerateFile) ValidateGenerateFile() error {
	r := &g.GenerateRequest
	kind := r.Kind()

	err := validation.ValidateStruct(r,
		validation.Field(&r.ReportType, validation.Required.ErrorObject(errReportTypeMissing)),
		validation.Field(&r.Filters, validation.Required.ErrorObject(errFiltersMissing), validation.By(uniqueFilterIDs)),
		validation.Field(&r.MerchantID, validation.When(kind != model.KindMerchant, validation.Nil.ErrorObject(errMerchantNotAllowed))),
		validation.Field(&r.ProviderID, validation.When(kind == model.KindMerchant, validation.Nil.ErrorObject(errProviderNotAllowed))),
	)
	return toAPIError(err)
}

func toAPIError(err error) error {
	if err == nil {
		return nil
	}
	errs, ok := err.(validation.Errors)
	if !ok {
		return apierror.NewAPIError(apierror.ErrInvalidInput, 0, err.Error(), nil)
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool { return fieldRank(fields[i]) < fieldRank(fields[j]) })

	first := errs[fields[0]]
	code := 0
	if vErr, ok := first.(validation.Error); ok {
		code, _ = strconv.Atoi(vErr.Code())
	}
	return apierror.NewAPIError(apierror.ErrInvalidInput, code, first.Error(), errs)
}

func fieldRank(field string) int {
	for i, f := range validationFieldOrder {
		if f == field {
			return i
		}
	}
	return len(validationFieldOrder)
}
