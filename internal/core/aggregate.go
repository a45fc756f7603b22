package core

import "github.com/shopspring/decimal"

// InvoiceComputed holds the invoice-level sums. It is rebuilt from the lines
// on every read.
type InvoiceComputed struct {
	GrossNet         decimal.Decimal `json:"gross_net"`
	TotalNet         decimal.Decimal `json:"total_net"`
	TotalVatIncl     decimal.Decimal `json:"total_vat_incl"`
	VATAmount        decimal.Decimal `json:"vat_amount"`
	DiscountComputed decimal.Decimal `json:"discount_computed"`
	WithheldVAT      decimal.Decimal `json:"withheld_vat"`
	PayableVAT       decimal.Decimal `json:"payable_vat"`
	LineCount        int             `json:"line_count"`
}

// Aggregate sums the lines owned by inv. Lines with a different invoice id
// are ignored.
func Aggregate(inv Invoice, lines []Line) InvoiceComputed {
	var out InvoiceComputed
	for _, l := range lines {
		if l.InvoiceID != inv.ID {
			continue
		}
		c := l.Computed()
		out.GrossNet = out.GrossNet.Add(l.Weight())
		out.TotalNet = out.TotalNet.Add(c.TotalNet)
		out.TotalVatIncl = out.TotalVatIncl.Add(c.TotalVatIncl)
		out.VATAmount = out.VATAmount.Add(c.VATAmount)
		out.LineCount++
	}

	out.DiscountComputed = NonNegative(out.GrossNet.Sub(out.TotalNet))
	out.WithheldVAT = out.VATAmount.Mul(ClampPercent(inv.WithholdingRate).Div(hundred))
	out.PayableVAT = out.VATAmount.Sub(out.WithheldVAT)
	return out
}
