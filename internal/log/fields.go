package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldStage     = "stage"
	FieldKind      = "kind"
	FieldCount     = "count"
	FieldCategory  = "category"
	FieldBudget    = "budget"
	FieldGoal      = "goal"
	FieldAmount    = "amount"
	FieldDate      = "date"
	FieldBackend   = "backend"
	FieldUser      = "user"
	FieldDuration  = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentStorage    = "storage"
	ComponentLedger     = "ledger"
	ComponentPipeline   = "pipeline"
	ComponentImport     = "import"
	ComponentProjection = "projection"
	ComponentSession    = "session"
	ComponentCache      = "cache"
	ComponentBackend    = "backend"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpDelete     = "delete"
	OpSupersede  = "supersede"
	OpContribute = "contribute"
	OpClear      = "clear"
	OpGenerate   = "generate"
	OpImport     = "import"
	OpReport     = "report"
	OpLogin      = "login"
	OpLogout     = "logout"
	OpMigrate    = "migrate"
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

// WithStage adds the pipeline stage and the entity kind it handles
func (f LogFields) WithStage(stage, kind string) LogFields {
	f[FieldStage] = stage
	if kind != "" {
		f[FieldKind] = kind
	}
	return f
}

// WithCount adds an entity count
func (f LogFields) WithCount(n int) LogFields {
	f[FieldCount] = n
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
