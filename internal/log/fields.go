package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldInvoiceID  = "invoice_id"
	FieldLineID     = "line_id"
	FieldVersion    = "ledger_version"
	FieldRows       = "rows"
	FieldSkipped    = "skipped"
	FieldInvoices   = "invoices"
	FieldLines      = "lines"
	FieldBackend    = "backend"
	FieldRef        = "ref"
	FieldEventType  = "event_type"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentImport    = "import"
	ComponentExport    = "export"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpCreateInvoice  = "create_invoice"
	OpUpdateHeader   = "update_header"
	OpCreateLine     = "create_line"
	OpUpdateLine     = "update_line"
	OpDeleteLine     = "delete_line"
	OpRenameSupplier = "rename_supplier"
	OpRenameItem     = "rename_item"
	OpAllocate       = "allocate_discount"
	OpImport         = "import"
	OpExport         = "export"
	OpRestore        = "restore"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithInvoice adds the invoice id and, when set, the line id.
func (f LogFields) WithInvoice(invoiceID, lineID string) LogFields {
	if invoiceID != "" {
		f[FieldInvoiceID] = invoiceID
	}
	if lineID != "" {
		f[FieldLineID] = lineID
	}
	return f
}

// WithVersion adds the ledger version after a mutation.
func (f LogFields) WithVersion(v uint64) LogFields {
	f[FieldVersion] = v
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
