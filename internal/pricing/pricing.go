// Package pricing computes what an enrollment costs the organization and what
// the shopper receives.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/foxzi/hyperdrive/internal/apperr"
)

// MinorUnitPlaces is the number of decimal places kept for currency amounts
const MinorUnitPlaces = 2

var hundred = decimal.NewFromInt(100)

// Pricing is the pricing configuration attached to a campaign
type Pricing struct {
	BillRate         decimal.Decimal `json:"billRate"`    // percent of order value
	PlatformFee      decimal.Decimal `json:"platformFee"` // flat fee per enrollment
	GSTRate          decimal.Decimal `json:"gstRate"`     // percent of bill amount
	TDSRate          decimal.Decimal `json:"tdsRate"`     // percent withheld from shopper payout
	BonusAmount      decimal.Decimal `json:"bonusAmount"`
	RebatePercentage decimal.Decimal `json:"rebatePercentage"`
}

// Cost is the organization-side cost breakdown for one enrollment
type Cost struct {
	BillAmount decimal.Decimal `json:"billAmount"`
	GSTAmount  decimal.Decimal `json:"gstAmount"`
	TotalCost  decimal.Decimal `json:"totalCost"`
}

// Payout is the shopper-side breakdown for one enrollment
type Payout struct {
	Rebate decimal.Decimal `json:"rebate"`
	Bonus  decimal.Decimal `json:"bonus"`
	TDS    decimal.Decimal `json:"tds"`
	Net    decimal.Decimal `json:"net"`
}

// Round rounds an amount to whole minor units, half away from zero
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnitPlaces)
}

func wholeMinorUnits(d decimal.Decimal) bool {
	return d.Equal(Round(d))
}

// ComputeCost converts an order value into the organization's cost
func ComputeCost(orderValue, billRate, gstRate, platformFee decimal.Decimal) (Cost, error) {
	if orderValue.IsNegative() {
		return Cost{}, apperr.InvalidPricingInput("orderValue must not be negative")
	}
	if billRate.IsNegative() {
		return Cost{}, apperr.InvalidPricingInput("billRate must not be negative")
	}
	if gstRate.IsNegative() {
		return Cost{}, apperr.InvalidPricingInput("gstRate must not be negative")
	}
	if platformFee.IsNegative() {
		return Cost{}, apperr.InvalidPricingInput("platformFee must not be negative")
	}
	if !wholeMinorUnits(platformFee) {
		return Cost{}, apperr.InvalidPricingInput("platformFee must have at most %d decimal places", MinorUnitPlaces)
	}

	bill := Round(orderValue.Mul(billRate).Div(hundred))
	gst := Round(bill.Mul(gstRate).Div(hundred))

	return Cost{
		BillAmount: bill,
		GSTAmount:  gst,
		TotalCost:  bill.Add(gst).Add(platformFee),
	}, nil
}

// ComputeCostFloat is ComputeCost for callers holding float64 values.
// NaN and infinities are rejected.
func ComputeCostFloat(orderValue, billRate, gstRate, platformFee float64) (Cost, error) {
	for _, v := range []float64{orderValue, billRate, gstRate, platformFee} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Cost{}, apperr.InvalidPricingInput("pricing input must be a finite number")
		}
	}
	return ComputeCost(
		decimal.NewFromFloat(orderValue),
		decimal.NewFromFloat(billRate),
		decimal.NewFromFloat(gstRate),
		decimal.NewFromFloat(platformFee),
	)
}

// Cost computes the cost of an order under this pricing
func (p Pricing) Cost(orderValue decimal.Decimal) (Cost, error) {
	return ComputeCost(orderValue, p.BillRate, p.GSTRate, p.PlatformFee)
}

// ShopperPayout computes what the shopper receives for an approved order
func (p Pricing) ShopperPayout(orderValue decimal.Decimal) (Payout, error) {
	if orderValue.IsNegative() {
		return Payout{}, apperr.InvalidPricingInput("orderValue must not be negative")
	}
	if err := p.Validate(); err != nil {
		return Payout{}, err
	}

	rebate := Round(orderValue.Mul(p.RebatePercentage).Div(hundred))
	gross := rebate.Add(p.BonusAmount)
	tds := Round(gross.Mul(p.TDSRate).Div(hundred))

	return Payout{
		Rebate: rebate,
		Bonus:  p.BonusAmount,
		TDS:    tds,
		Net:    gross.Sub(tds),
	}, nil
}

// Validate checks rates are percentages and amounts are non-negative
func (p Pricing) Validate() error {
	rates := []struct {
		name  string
		value decimal.Decimal
	}{
		{"billRate", p.BillRate},
		{"gstRate", p.GSTRate},
		{"tdsRate", p.TDSRate},
		{"rebatePercentage", p.RebatePercentage},
	}
	for _, r := range rates {
		if r.value.IsNegative() || r.value.GreaterThan(hundred) {
			return apperr.InvalidPricingInput("%s must be between 0 and 100", r.name)
		}
	}
	if p.PlatformFee.IsNegative() {
		return apperr.InvalidPricingInput("platformFee must not be negative")
	}
	if !wholeMinorUnits(p.PlatformFee) {
		return apperr.InvalidPricingInput("platformFee must have at most %d decimal places", MinorUnitPlaces)
	}
	if p.BonusAmount.IsNegative() {
		return apperr.InvalidPricingInput("bonusAmount must not be negative")
	}
	return nil
}
