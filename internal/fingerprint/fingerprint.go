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

// Package fingerprint derives the cache key and artifact name of a report
// request.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blnkfinance/tally/model"
)

// Length of a fingerprint in hex characters.
const Length = 16

// Params is the canonicalizable parameter set of a request.
type Params struct {
	Kind           model.ReportKind
	OrganizationID string
	DateRanges     []model.DateRange
	Statuses       []model.Status
	Modes          []string
	PaymentSystems [][]string
	FileIDs        []uint32
}

// FromFilters collects statuses, modes, payment systems and file ids from a
// bound filter set. Date ranges come from the file registry and are passed in
// separately.
func FromFilters(kind model.ReportKind, orgID string, filters []model.Filter, ranges []model.DateRange) Params {
	p := Params{
		Kind:           kind,
		OrganizationID: orgID,
		DateRanges:     ranges,
	}
	for i := range filters {
		f := &filters[i]
		p.Statuses = append(p.Statuses, f.StatusValue())
		p.Modes = append(p.Modes, f.ModeValue())
		p.PaymentSystems = append(p.PaymentSystems, append([]string(nil), f.PaymentSystems...))
		p.FileIDs = append(p.FileIDs, f.ID)
	}
	return p
}

// Canonical renders p with every list sorted, so the order of sub-filters in
// a request never changes the result.
func Canonical(p Params) string {
	statuses := append([]model.Status(nil), p.Statuses...)
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	statusNames := make([]string, len(statuses))
	for i, s := range statuses {
		statusNames[i] = s.String()
	}

	modes := append([]string(nil), p.Modes...)
	sort.Strings(modes)

	systems := make([]string, 0, len(p.PaymentSystems))
	for _, list := range p.PaymentSystems {
		l := make([]string, len(list))
		for i, s := range list {
			l[i] = strings.ToLower(s)
		}
		sort.Strings(l)
		systems = append(systems, strings.Join(l, ","))
	}
	sort.Strings(systems)

	ids := append([]uint32(nil), p.FileIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = strconv.FormatUint(uint64(id), 10)
	}

	dates := make([]string, len(p.DateRanges))
	for i, r := range p.DateRanges {
		dates[i] = r.From + "_" + r.To
	}
	sort.Strings(dates)

	return fmt.Sprintf("%s_%s_%s_%s_%s_%s_%s",
		p.OrganizationID,
		p.Kind.FingerprintName(),
		strings.Join(dates, "_"),
		strings.Join(idStrings, ","),
		strings.Join(statusNames, "|"),
		strings.Join(modes, "|"),
		strings.Join(systems, "|"),
	)
}

// Compute returns the first 16 lowercase hex characters of the MD5 digest of
// the canonical form.
func Compute(p Params) string {
	sum := md5.Sum([]byte(Canonical(p)))
	return hex.EncodeToString(sum[:])[:Length]
}

// Valid reports whether s is shaped like a fingerprint. It guards paths built
// from user input.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
