package log

import "time"

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
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldTrigger    = "trigger"
	FieldSilent     = "silent"
	FieldState      = "state"
	FieldOutcome    = "outcome"
	FieldIncome     = "income_count"
	FieldExpense    = "expense_count"
	FieldCutoff     = "cutoff"
	FieldKey        = "key"
	FieldOrigin     = "origin"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentRefresh    = "refresh"
	ComponentCredential = "credential"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentBackend    = "backend"
	ComponentExport     = "export"
	ComponentCache      = "cache"
	ComponentTrace      = "trace"
)

// Operations defines standard operation names
const (
	OpRefresh  = "refresh"
	OpFetch    = "fetch"
	OpProject  = "project"
	OpExport   = "export"
	OpSetToken = "set_token"
	OpClear    = "clear_token"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error text; nil errors are skipped.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRefresh adds the fields describing a finished refresh pass.
func (f LogFields) WithRefresh(trigger string, silent bool, outcome string, income, expense int, took time.Duration) LogFields {
	f[FieldTrigger] = trigger
	f[FieldSilent] = silent
	f[FieldOutcome] = outcome
	f[FieldIncome] = income
	f[FieldExpense] = expense
	f[FieldDuration] = took.Milliseconds()
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog.
// The component key is left out since Logger adds its own.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		if k == FieldComponent {
			continue
		}
		slice = append(slice, k, v)
	}
	return slice
}
