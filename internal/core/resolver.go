package core

import "github.com/shopspring/decimal"

// DerivedField names a computed line value that can be edited directly.
type DerivedField string

const (
	FieldUnitNet     DerivedField = "unit_net"
	FieldUnitVatIncl DerivedField = "unit_vat_incl"
)

// InverseFunc back-solves the source fields of p so that the derived field
// it serves equals value.
type InverseFunc func(p Pricing, value decimal.Decimal) Pricing

var inverses = map[DerivedField]InverseFunc{
	// A net price above the undiscounted price raises the price itself and
	// drops the discount to zero. A zero price is replaced outright.
	FieldUnitNet: DeriveFromUnitNet,
	// Strips VAT at the current rate, then applies the unit net policy.
	FieldUnitVatIncl: DeriveFromUnitVatIncl,
}

// Resolve applies the inverse registered for field.
func Resolve(p Pricing, field DerivedField, value decimal.Decimal) (Pricing, error) {
	inv, ok := inverses[field]
	if !ok {
		return p, Invalid(string(field), ErrUnknownDerivedField)
	}
	return inv(p, value), nil
}

// DeriveFromUnitNet sets the discount rate so the discounted unit price
// equals unitNet.
//
// When unitNet exceeds the current unit price, or the unit price is zero,
// the unit price becomes unitNet and the discount rate becomes zero.
// Otherwise only the discount rate changes.
func DeriveFromUnitNet(p Pricing, unitNet decimal.Decimal) Pricing {
	unitNet = NonNegative(unitNet)
	out := p

	price := NonNegative(p.UnitPrice)
	if !price.IsPositive() {
		out.UnitPrice = unitNet
		out.DiscountRate = decimal.Zero
		return out
	}

	rate := hundred.Mul(one.Sub(unitNet.Div(price)))
	if rate.IsNegative() {
		out.UnitPrice = unitNet
		out.DiscountRate = decimal.Zero
		return out
	}
	out.DiscountRate = ClampPercent(rate)
	return out
}

// DeriveFromUnitVatIncl removes VAT from unitVatIncl at the line's VAT rate
// and delegates to DeriveFromUnitNet.
func DeriveFromUnitVatIncl(p Pricing, unitVatIncl decimal.Decimal) Pricing {
	unitVatIncl = NonNegative(unitVatIncl)

	net := unitVatIncl
	if denom := one.Add(ClampPercent(p.VATRate).Div(hundred)); denom.IsPositive() {
		net = unitVatIncl.Div(denom)
	}
	return DeriveFromUnitNet(p, net)
}
