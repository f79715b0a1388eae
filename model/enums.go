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
	"encoding/json"
	"strings"
)

// ReportKind identifies who a report is generated for.
type ReportKind int

const (
	KindUnknown ReportKind = iota
	KindAgent
	KindTaxiCompany
	KindMerchant
)

// ParseReportKind resolves a kind case-insensitively. Unrecognized values
// resolve to KindUnknown.
func ParseReportKind(s string) ReportKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "agent":
		return KindAgent
	case "taxicompany", "taxi_company":
		return KindTaxiCompany
	case "merchant":
		return KindMerchant
	default:
		return KindUnknown
	}
}

func (k ReportKind) String() string {
	switch k {
	case KindAgent:
		return "Agent"
	case KindTaxiCompany:
		return "TaxiCompany"
	case KindMerchant:
		return "Merchant"
	default:
		return "Unknown"
	}
}

// FingerprintName is the spelling used when deriving cache keys. It must stay
// stable because it determines artifact file names already on disk.
func (k ReportKind) FingerprintName() string {
	switch k {
	case KindAgent:
		return "agent"
	case KindTaxiCompany:
		return "taxi_compony"
	case KindMerchant:
		return "merchant"
	default:
		return "unknown"
	}
}

func (k ReportKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *ReportKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*k = ParseReportKind(s)
	return nil
}

// Category is the data family a source file belongs to.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryPayments
	CategoryRemittance
)

func (c Category) String() string {
	switch c {
	case CategoryPayments:
		return "Payments"
	case CategoryRemittance:
		return "Remittance"
	default:
		return "Unknown"
	}
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Status is a transaction status filter. The declaration order is the sort
// order used for fingerprints.
type Status int

const (
	StatusCompleted Status = iota
	StatusMistake
	StatusCreated
	StatusCancel
	StatusNull
	StatusUnknown
)

func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed":
		return StatusCompleted
	case "mistake":
		return StatusMistake
	case "created":
		return StatusCreated
	case "cancel":
		return StatusCancel
	case "null":
		return StatusNull
	default:
		return StatusUnknown
	}
}

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "Completed"
	case StatusMistake:
		return "Mistake"
	case StatusCreated:
		return "Created"
	case StatusCancel:
		return "Cancel"
	case StatusNull:
		return "Null"
	default:
		return "Unknown"
	}
}

// Label is the value the status column carries in source exports.
func (s Status) Label() string {
	switch s {
	case StatusCompleted:
		return "Завершена"
	case StatusMistake:
		return "Ошибка"
	case StatusCreated:
		return "Создана"
	case StatusCancel:
		return "Отмена"
	case StatusNull:
		return "Null"
	default:
		return "Unknown"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}
