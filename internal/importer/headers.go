package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field is a ledger column an import header can map to.
type Field string

const (
	FieldDate         Field = "date"
	FieldSupplier     Field = "supplier"
	FieldInvoiceNo    Field = "invoice_no"
	FieldItem         Field = "item"
	FieldQuantity     Field = "quantity"
	FieldUnit         Field = "unit"
	FieldUnitPrice    Field = "unit_price"
	FieldDiscountRate Field = "discount_rate"
	FieldVATRate      Field = "vat_rate"
	FieldUnitNet      Field = "unit_net"
	FieldUnitVatIncl  Field = "unit_vat_incl"
	FieldWithholding  Field = "withholding_rate"
)

// synonyms lists, per field, the accepted header names in normalized form.
var synonyms = map[Field][]string{
	FieldDate:         {"tarih", "faturatarihi", "date", "invoicedate", "issuedate"},
	FieldSupplier:     {"tedarikci", "tedarikciadi", "firma", "firmaadi", "satici", "cari", "supplier", "suppliername", "vendor"},
	FieldInvoiceNo:    {"faturano", "faturanumarasi", "fatura", "belgeno", "invoiceno", "invoicenumber", "invoice"},
	FieldItem:         {"urun", "urunadi", "malzeme", "kalem", "hizmet", "aciklama", "item", "invoiceitem", "description"},
	FieldQuantity:     {"miktar", "adet", "qty", "quantity"},
	FieldUnit:         {"birim", "olcubirimi", "unit", "unittype", "uom"},
	FieldUnitPrice:    {"birimfiyat", "fiyat", "unitprice", "price"},
	FieldDiscountRate: {"iskonto", "iskontoorani", "indirim", "indirimorani", "discount", "discountrate"},
	FieldVATRate:      {"kdv", "kdvorani", "vat", "vatrate", "taxrate"},
	FieldUnitNet:      {"netbirimfiyat", "iskontolubirimfiyat", "indirimlibirimfiyat", "unitnet", "netunitprice", "netprice"},
	FieldUnitVatIncl:  {"kdvdahilbirimfiyat", "kdvlibirimfiyat", "unitvatincl", "unitpriceinclvat", "grossunitprice"},
	FieldWithholding:  {"tevkifat", "tevkifatorani", "withholding", "withholdingrate"},
}

var synonymIndex = func() map[string]Field {
	idx := make(map[string]Field)
	for f, names := range synonyms {
		for _, n := range names {
			idx[n] = f
		}
	}
	return idx
}()

// NormalizeHeader lowercases s, folds diacritics and drops everything that
// is not a letter or digit.
//
//	NormalizeHeader("KDV Dahil Birim Fiyat (₺)") -> "kdvdahilbirimfiyat"
//	NormalizeHeader("Tedarikçi Adı")             -> "tedarikciadi"
func NormalizeHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r == 'ı' || r == 'I':
			b.WriteRune('i')
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// MatchHeader maps a raw header to a field.
func MatchHeader(header string) (Field, bool) {
	f, ok := synonymIndex[NormalizeHeader(header)]
	return f, ok
}
