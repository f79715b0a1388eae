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
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMonthlySubscriptionFee applies when a request omits the fee.
const DefaultMonthlySubscriptionFee = 1_000_000.0

// FlexibleID accepts both JSON strings and numbers.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

// GenerateRequest is the body of a report generation call.
type GenerateRequest struct {
	ProviderID             *FlexibleID `json:"provider_id,omitempty"`
	MerchantID             *FlexibleID `json:"merchant_id,omitempty"`
	Filters                []Filter    `json:"filters"`
	ReportType             *ReportKind `json:"report_type,omitempty"`
	MonthlySubscriptionFee *float64    `json:"monthly_subscription_fee,omitempty"`
}

// Kind returns the requested kind or KindUnknown.
func (r *GenerateRequest) Kind() ReportKind {
	if r.ReportType == nil {
		return KindUnknown
	}
	return *r.ReportType
}

// OrganizationID returns the trimmed provider or merchant id.
func (r *GenerateRequest) OrganizationID() string {
	switch {
	case r.ProviderID != nil && *r.ProviderID != "":
		return strings.TrimSpace(string(*r.ProviderID))
	case r.MerchantID != nil && *r.MerchantID != "":
		return strings.TrimSpace(string(*r.MerchantID))
	default:
		return ""
	}
}

// Fee returns the monthly subscription fee, applying the default.
func (r *GenerateRequest) Fee() float64 {
	if r.MonthlySubscriptionFee == nil {
		return DefaultMonthlySubscriptionFee
	}
	return *r.MonthlySubscriptionFee
}

// DateRange is the period covered by one source file.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// File segments as recorded in the file registry.
const (
	SegmentCorrupted  = -1
	SegmentPreparing  = 0
	SegmentGenerating = 1
	SegmentReady      = 2
)

// FileInfo is one row of the source file registry.
type FileInfo struct {
	ID       uint32 `json:"id"`
	Path     string `json:"path"`
	FileType int    `json:"file_type"`
	Segment  int    `json:"segment"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
	OwnerID  int64  `json:"owner_id"`
}

var fileKinds = map[int]string{
	1: "pay",
	2: "c2card",
	3: "terminal",
	4: "pay_f",
	5: "c2ccomanyname",
	6: "c2cplum",
	7: "c2ckapitalbank",
	8: "c2cpayme",
	9: "c2cuzcard",
}

// Kind maps the registry file type onto a lowercase kind name.
func (f FileInfo) Kind() string {
	if k, ok := fileKinds[f.FileType]; ok {
		return k
	}
	return "null"
}

// UserInfo is the identity resolved from a caller token.
type UserInfo struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Type      string `json:"type"`
}

// GenerationID builds a unique id for one generation run, used to tag logs
// and lock ownership.
func GenerationID(fingerprint string) string {
	return fmt.Sprintf("gen_%s_%s", fingerprint, uuid.New().String())
}

// FormatDay renders t as a day key.
func FormatDay(t time.Time) string {
	return t.Format("2006-01-02")
}
