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
	"strings"

	"github.com/blnkfinance/tally/model"
)

// Aggregator maintains the rollups that differ between report shapes. Fold
// adds one row to an item; Combine adds a whole item into another.
type Aggregator interface {
	Name() string
	Required() []model.Field
	Fold(item *model.ReportItem, r row)
	Combine(dst, src *model.ReportItem)
}

// For selects the aggregator of a report kind and category.
func For(kind model.ReportKind, category model.Category) Aggregator {
	switch {
	case kind == model.KindMerchant:
		return merchantAggregator{}
	case kind == model.KindAgent && category == model.CategoryRemittance:
		return agentRemittanceAggregator{}
	case kind == model.KindAgent || kind == model.KindTaxiCompany:
		return providerAggregator{}
	default:
		return noRollup{}
	}
}

type noRollup struct{}

func (noRollup) Name() string                       { return "summary" }
func (noRollup) Required() []model.Field            { return nil }
func (noRollup) Fold(*model.ReportItem, row)        {}
func (noRollup) Combine(dst, src *model.ReportItem) {}

// providerAggregator keeps the general per-provider rollup of taxi and agent
// reports.
type providerAggregator struct{}

func (providerAggregator) Name() string            { return "provider" }
func (providerAggregator) Required() []model.Field { return []model.Field{model.FieldProvider} }

func (providerAggregator) Fold(item *model.ReportItem, r row) {
	item.ByProvider = addProvider(item.ByProvider, model.ProviderRollup{
		Provider:   r.provider,
		Count:      1,
		Amount:     r.amount,
		Commission: r.commission,
	})
}

func (providerAggregator) Combine(dst, src *model.ReportItem) {
	for _, e := range src.ByProvider {
		dst.ByProvider = addProvider(dst.ByProvider, e)
	}
}

// agentRemittanceAggregator adds the agent fee breakdown on top of the
// provider rollup.
type agentRemittanceAggregator struct {
	providerAggregator
}

func (agentRemittanceAggregator) Name() string { return "agent_remittance" }

func (a agentRemittanceAggregator) Fold(item *model.ReportItem, r row) {
	a.providerAggregator.Fold(item, r)
	item.ByProviderRemittance = addRemittance(item.ByProviderRemittance, model.RemittanceRollup{
		Provider:    r.provider,
		Count:       1,
		Amount:      r.amount,
		Commission:  r.commission,
		PlatformFee: r.sys.Add(r.bank),
		AgentFee:    r.partner,
	})
}

func (a agentRemittanceAggregator) Combine(dst, src *model.ReportItem) {
	a.providerAggregator.Combine(dst, src)
	for _, e := range src.ByProviderRemittance {
		dst.ByProviderRemittance = addRemittance(dst.ByProviderRemittance, e)
	}
}

// merchantAggregator groups merchant payments by vendor and payment system.
type merchantAggregator struct{}

func (merchantAggregator) Name() string { return "merchant" }

func (merchantAggregator) Required() []model.Field {
	return []model.Field{model.FieldVendor, model.FieldPaymentSystem}
}

func (merchantAggregator) Fold(item *model.ReportItem, r row) {
	item.ByVendorAndPaymentSystem = addVendorPayment(item.ByVendorAndPaymentSystem, model.VendorPaymentRollup{
		Vendor:        r.vendor,
		PaymentSystem: strings.ToLower(r.paymentSystem),
		Count:         1,
		Amount:        r.amount,
		Commission:    r.commission,
	})
}

func (merchantAggregator) Combine(dst, src *model.ReportItem) {
	for _, e := range src.ByVendorAndPaymentSystem {
		dst.ByVendorAndPaymentSystem = addVendorPayment(dst.ByVendorAndPaymentSystem, e)
	}
}

// The rollups below are small lists keyed by display name; a linear scan is
// enough.

func addVendor(list []model.VendorSummary, e model.VendorSummary) []model.VendorSummary {
	for i := range list {
		if list[i].Vendor == e.Vendor {
			list[i].Count += e.Count
			list[i].Amount = list[i].Amount.Add(e.Amount)
			list[i].Commission = list[i].Commission.Add(e.Commission)
			list[i].BankFee = list[i].BankFee.Add(e.BankFee)
			list[i].PlatformFee = list[i].PlatformFee.Add(e.PlatformFee)
			return list
		}
	}
	return append(list, e)
}

func addProvider(list []model.ProviderRollup, e model.ProviderRollup) []model.ProviderRollup {
	for i := range list {
		if list[i].Provider == e.Provider {
			list[i].Count += e.Count
			list[i].Amount = list[i].Amount.Add(e.Amount)
			list[i].Commission = list[i].Commission.Add(e.Commission)
			return list
		}
	}
	return append(list, e)
}

func addRemittance(list []model.RemittanceRollup, e model.RemittanceRollup) []model.RemittanceRollup {
	for i := range list {
		if list[i].Provider == e.Provider {
			list[i].Count += e.Count
			list[i].Amount = list[i].Amount.Add(e.Amount)
			list[i].Commission = list[i].Commission.Add(e.Commission)
			list[i].PlatformFee = list[i].PlatformFee.Add(e.PlatformFee)
			list[i].AgentFee = list[i].AgentFee.Add(e.AgentFee)
			return list
		}
	}
	return append(list, e)
}

func addVendorPayment(list []model.VendorPaymentRollup, e model.VendorPaymentRollup) []model.VendorPaymentRollup {
	for i := range list {
		if list[i].Vendor == e.Vendor && strings.EqualFold(list[i].PaymentSystem, e.PaymentSystem) {
			list[i].Count += e.Count
			list[i].Amount = list[i].Amount.Add(e.Amount)
			list[i].Commission = list[i].Commission.Add(e.Commission)
			return list
		}
	}
	return append(list, e)
}
