package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"satinalma/internal/core"
	"satinalma/internal/ledger"
	"satinalma/internal/log"
	"satinalma/internal/services"
	"satinalma/internal/sheets/csv"
)

type (
	headerPatch struct {
		InvoiceNo       *string `json:"invoice_no"`
		Date            *string `json:"date"`
		Supplier        *string `json:"supplier_name"`
		WithholdingRate Number  `json:"withholding_rate"`
		DiscountAmount  Number  `json:"discount_amount"`
	}

	linePatch struct {
		Item         *string `json:"item"`
		Unit         *string `json:"unit"`
		Quantity     Number  `json:"quantity"`
		UnitPrice    Number  `json:"unit_price"`
		DiscountRate Number  `json:"discount_rate"`
		VATRate      Number  `json:"vat_rate"`
		UnitNet      Number  `json:"unit_net"`
		UnitVatIncl  Number  `json:"unit_vat_incl"`
	}

	calcView struct {
		Pricing  core.Pricing      `json:"pricing"`
		Computed core.LineComputed `json:"computed"`
	}

	allocationView struct {
		Total  string            `json:"total"`
		Shares map[string]string `json:"shares"`
		Lines  []lineView        `json:"lines"`
	}
)

// apply overlays the fields present in p onto the stored header.
func (p headerPatch) apply(inv core.Invoice) core.InvoiceHeader {
	h := core.InvoiceHeader{
		Number:          inv.Number,
		IssueDate:       inv.IssueDate,
		Supplier:        inv.Supplier,
		WithholdingRate: inv.WithholdingRate,
		DiscountAmount:  inv.DiscountAmount,
	}
	if p.InvoiceNo != nil {
		h.Number = sanitizeInput(*p.InvoiceNo)
	}
	if p.Date != nil {
		h.IssueDate = sanitizeInput(*p.Date)
	}
	if p.Supplier != nil {
		h.Supplier = sanitizeInput(*p.Supplier)
	}
	if p.WithholdingRate.Set {
		h.WithholdingRate = p.WithholdingRate.Decimal
	}
	if p.DiscountAmount.Set {
		h.DiscountAmount = p.DiscountAmount.Decimal
	}
	return h
}

// apply overlays the fields present in p onto l, then solves a directly
// edited net or VAT-inclusive price.
func (p linePatch) apply(l core.Line) core.LineFields {
	f := core.LineFields{Item: l.Item, Unit: string(l.Unit), Pricing: l.Pricing}
	if p.Item != nil {
		f.Item = sanitizeInput(*p.Item)
	}
	if p.Unit != nil {
		f.Unit = sanitizeInput(*p.Unit)
	}
	if p.Quantity.Set {
		f.Quantity = p.Quantity.Decimal
	}
	if p.UnitPrice.Set {
		f.UnitPrice = p.UnitPrice.Decimal
	}
	if p.DiscountRate.Set {
		f.DiscountRate = p.DiscountRate.Decimal
	}
	if p.VATRate.Set {
		f.VATRate = p.VATRate.Decimal
	}

	f.Pricing = f.Pricing.Normalize()
	switch {
	case p.UnitNet.Set:
		f.Pricing = core.DeriveFromUnitNet(f.Pricing, p.UnitNet.Decimal)
	case p.UnitVatIncl.Set:
		f.Pricing = core.DeriveFromUnitVatIncl(f.Pricing, p.UnitVatIncl.Decimal)
	}
	return f
}

func (s *Server) invoiceView(id string) (invoiceView, bool) {
	store := s.svc.Store()
	inv, ok := store.Invoice(id)
	if !ok {
		return invoiceView{}, false
	}
	return newInvoiceView(inv, store.Lines(id)), true
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.svc.CreateInvoice(r.Context(), req.header(), req.lines())
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, _ := s.invoiceView(id)
	w.Header().Set("Location", "/invoices/"+id)
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Store().Snapshot()
	byInvoice := make(map[string][]core.Line, len(snap.Invoices))
	for _, l := range snap.Lines {
		byInvoice[l.InvoiceID] = append(byInvoice[l.InvoiceID], l)
	}
	out := make([]invoiceView, 0, len(snap.Invoices))
	for _, inv := range snap.Invoices {
		out = append(out, newInvoiceView(inv, byInvoice[inv.ID]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": out, "version": snap.Version})
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	view, ok := s.invoiceView(r.PathValue("id"))
	if !ok {
		writeNotFound(w, "invoice")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var patch headerPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	ok, err := s.svc.PatchInvoiceHeader(r.Context(), id, patch.apply)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeInvoiceOrNoContent(w, id, ok)
}

func (s *Server) handleAllocateDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	alloc, ok, err := s.svc.AllocateDiscount(r.Context(), r.PathValue("id"), req.Amount.Decimal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	view := allocationView{
		Total:  alloc.Sum().String(),
		Shares: make(map[string]string, len(alloc.Shares)),
		Lines:  make([]lineView, 0, len(alloc.Lines)),
	}
	for id, share := range alloc.Shares {
		view.Shares[id] = share.String()
	}
	for _, l := range alloc.Lines {
		view.Lines = append(view.Lines, newLineView(l))
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreateLine(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.svc.CreateLine(r.Context(), r.PathValue("id"), req.fields())
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, _ := s.svc.Store().Line(id)
	writeJSON(w, http.StatusCreated, newLineView(l))
}

func (s *Server) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	var patch linePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	updated, ok, err := s.svc.PatchLine(r.Context(), r.PathValue("id"), patch.apply)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, newLineView(updated))
}

func (s *Server) handleDeleteLine(w http.ResponseWriter, r *http.Request) {
	s.svc.DeleteLine(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRename(rename func(ctx context.Context, from, to string) (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renameRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		n, err := rename(r.Context(), req.From, sanitizeInput(req.To))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"changed": n})
	}
}

func handleCalcLine(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p := req.pricing()
	writeJSON(w, http.StatusOK, calcView{Pricing: p, Computed: core.ComputeLine(p)})
}

func handleCalcDerive(w http.ResponseWriter, r *http.Request) {
	var req deriveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := core.Resolve(req.base(), core.DerivedField(req.Field), req.Value.Decimal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, calcView{Pricing: p, Computed: core.ComputeLine(p)})
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, desc, err := parseSort(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRowsView(s.svc.Rows(parseFilter(q), key, desc)))
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, desc, err := parseSort(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if key == "" {
		key = ledger.SortDate
	}
	rows := ledger.ExportRecords(s.svc.Rows(parseFilter(q), key, desc))

	name := fmt.Sprintf("ledger-%s.csv", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := csv.Encode(w, ledger.Header(), rows); err != nil {
		s.logger.ErrorContext(r.Context(), "CSV export failed", log.FieldError, err)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Export(r.Context(), parseFilter(r.URL.Query()))
	if errors.Is(err, services.ErrNoExportWriter) {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	report, ids, err := s.svc.Import(r.Context(), csv.NewReader(body))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, importView{Report: report, InvoiceIDs: ids})
}

func (s *Server) writeInvoiceOrNoContent(w http.ResponseWriter, id string, ok bool) {
	view, found := s.invoiceView(id)
	if !ok || !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
