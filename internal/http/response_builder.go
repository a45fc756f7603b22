package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"satinalma/internal/core"
	"satinalma/internal/importer"
	"satinalma/internal/ledger"
	"satinalma/internal/log"
	"satinalma/internal/middleware/trace"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	// RequestID is set on internal errors so they can be found in the logs.
	RequestID string `json:"request_id,omitempty"`
}

type (
	lineView struct {
		core.Line
		core.LineComputed
	}

	invoiceView struct {
		core.Invoice
		Computed core.InvoiceComputed `json:"computed"`
		Lines    []lineView           `json:"lines"`
	}

	rowsView struct {
		Rows   []ledger.ExportRow `json:"rows"`
		Totals ledger.RowTotals   `json:"totals"`
	}

	importView struct {
		Report     importer.Report `json:"report"`
		InvoiceIDs []string        `json:"invoice_ids"`
	}
)

func newLineView(l core.Line) lineView {
	return lineView{Line: l, LineComputed: l.Computed()}
}

func newInvoiceView(inv core.Invoice, lines []core.Line) invoiceView {
	v := invoiceView{
		Invoice:  inv,
		Computed: core.Aggregate(inv, lines),
		Lines:    make([]lineView, 0, len(lines)),
	}
	for _, l := range lines {
		v.Lines = append(v.Lines, newLineView(l))
	}
	return v
}

func newRowsView(rows []ledger.Row) rowsView {
	v := rowsView{Rows: make([]ledger.ExportRow, 0, len(rows)), Totals: ledger.Totals(rows)}
	for _, r := range rows {
		v.Rows = append(v.Rows, ledger.Export(r))
	}
	return v
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status: validation failures to 422 with the
// offending field, malformed bodies to 400, everything else to 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: ve.Err.Error(), Field: ve.Field})
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, importer.ErrTooManyRows):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path, log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:     "internal error",
			RequestID: trace.GetRequestID(r.Context()),
		})
	}
}

func writeNotFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: what + " not found"})
}
