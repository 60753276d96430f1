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
	FieldItemKey    = "item_key"
	FieldUserID     = "user_id"
	FieldCursor     = "cursor"
	FieldCategoryID = "category_id"
	FieldPageCount  = "pages"
	FieldAdded      = "added"
	FieldModified   = "modified"
	FieldRemoved    = "removed"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentSync      = "sync"
	ComponentProvider  = "provider"
	ComponentStore     = "store"
	ComponentBudget    = "budget"
	ComponentTaxonomy  = "taxonomy"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpSync     = "sync"
	OpFullSync = "full_sync"
	OpUpsert   = "upsert"
	OpDelete   = "delete"
	OpList     = "list"
	OpFetch    = "fetch"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
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

// WithItem adds the item identity field
func (f LogFields) WithItem(itemKey string) LogFields {
	f[FieldItemKey] = itemKey
	return f
}

// WithPage adds reconciliation counts for one sync page
func (f LogFields) WithPage(added, modified, removed int) LogFields {
	f[FieldAdded] = added
	f[FieldModified] = modified
	f[FieldRemoved] = removed
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
