package core

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Pricing holds the editable source fields of a line.
type Pricing struct {
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	VATRate      decimal.Decimal `json:"vat_rate"`
}

// LineComputed is derived from Pricing on every read and never stored.
type LineComputed struct {
	UnitNet      decimal.Decimal `json:"unit_net"`
	UnitVatIncl  decimal.Decimal `json:"unit_vat_incl"`
	TotalNet     decimal.Decimal `json:"total_net"`
	TotalVatIncl decimal.Decimal `json:"total_vat_incl"`
	VATAmount    decimal.Decimal `json:"vat_amount"`
}

// Normalize clamps quantity and unit price to >= 0 and both rates to [0,100].
func (p Pricing) Normalize() Pricing {
	return Pricing{
		Quantity:     NonNegative(p.Quantity),
		UnitPrice:    NonNegative(p.UnitPrice),
		DiscountRate: ClampPercent(p.DiscountRate),
		VATRate:      ClampPercent(p.VATRate),
	}
}

// Weight is the pre-discount value of the line: unit price times quantity.
func (p Pricing) Weight() decimal.Decimal {
	n := p.Normalize()
	return n.UnitPrice.Mul(n.Quantity)
}

// ComputeLine derives every monetary figure of a line. It is total: inputs
// are clamped first, so any Pricing yields a result.
func ComputeLine(p Pricing) LineComputed {
	n := p.Normalize()

	unitNet := n.UnitPrice.Mul(one.Sub(n.DiscountRate.Div(hundred)))
	unitVatIncl := unitNet.Mul(one.Add(n.VATRate.Div(hundred)))
	totalNet := unitNet.Mul(n.Quantity)
	totalVatIncl := unitVatIncl.Mul(n.Quantity)

	return LineComputed{
		UnitNet:      unitNet,
		UnitVatIncl:  unitVatIncl,
		TotalNet:     totalNet,
		TotalVatIncl: totalVatIncl,
		VATAmount:    totalVatIncl.Sub(totalNet),
	}
}

// ComputeRaw parses the four raw inputs and computes the line.
func ComputeRaw(quantity, unitPrice, discountRate, vatRate RawInput) LineComputed {
	return ComputeLine(Pricing{
		Quantity:     quantity.Value(),
		UnitPrice:    unitPrice.Value(),
		DiscountRate: discountRate.Value(),
		VATRate:      vatRate.Value(),
	})
}

// NonNegative returns d, or zero when d is negative.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ClampPercent bounds d to [0,100].
func ClampPercent(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(hundred) {
		return hundred
	}
	return d
}
