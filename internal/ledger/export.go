package ledger

import "satinalma/internal/core"

const (
	moneyPlaces = 2
	ratePlaces  = 4
)

// ExportRow is the flat record written by exporters. Numbers are plain
// decimal strings with '.' as separator.
type ExportRow struct {
	Date         string `json:"date"`
	SupplierName string `json:"supplierName"`
	InvoiceNo    string `json:"invoiceNo"`
	InvoiceItem  string `json:"invoiceItem"`
	Qty          string `json:"qty"`
	UnitType     string `json:"unitType"`
	UnitPrice    string `json:"unitPrice"`
	DiscountRate string `json:"discountRate"`
	UnitNet      string `json:"unitNet"`
	VATRate      string `json:"vatRate"`
	UnitVatIncl  string `json:"unitVatIncl"`
	TotalNet     string `json:"totalNet"`
	TotalVatIncl string `json:"totalVatIncl"`
}

// Header returns the export column names in record order.
func Header() []string {
	return []string{
		"date", "supplierName", "invoiceNo", "invoiceItem", "qty", "unitType",
		"unitPrice", "discountRate", "unitNet", "vatRate", "unitVatIncl",
		"totalNet", "totalVatIncl",
	}
}

// Values returns the record fields in Header order.
func (e ExportRow) Values() []string {
	return []string{
		e.Date, e.SupplierName, e.InvoiceNo, e.InvoiceItem, e.Qty, e.UnitType,
		e.UnitPrice, e.DiscountRate, e.UnitNet, e.VATRate, e.UnitVatIncl,
		e.TotalNet, e.TotalVatIncl,
	}
}

// Export converts a joined row. Money is rounded to two places and rates
// and quantities to four.
func Export(r Row) ExportRow {
	return ExportRow{
		Date:         r.Date,
		SupplierName: r.Supplier,
		InvoiceNo:    r.InvoiceNo,
		InvoiceItem:  r.Item,
		Qty:          core.FormatPlain(r.Quantity, ratePlaces),
		UnitType:     string(r.Unit),
		UnitPrice:    core.FormatPlain(r.UnitPrice, moneyPlaces),
		DiscountRate: core.FormatPlain(r.DiscountRate, ratePlaces),
		UnitNet:      core.FormatPlain(r.UnitNet, moneyPlaces),
		VATRate:      core.FormatPlain(r.VATRate, ratePlaces),
		UnitVatIncl:  core.FormatPlain(r.UnitVatIncl, moneyPlaces),
		TotalNet:     core.FormatPlain(r.TotalNet, moneyPlaces),
		TotalVatIncl: core.FormatPlain(r.TotalVatIncl, moneyPlaces),
	}
}

// ExportRecords converts rows to string records in Header order.
func ExportRecords(rows []Row) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, Export(r).Values())
	}
	return out
}
