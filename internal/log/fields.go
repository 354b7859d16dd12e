package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldRows        = "rows"
	FieldNudgeType   = "nudge_type"
	FieldCategory    = "category"
	FieldMerchant    = "merchant"
	FieldAmountCents = "amount_cents"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentIngest  = "ingest"
	ComponentRules   = "rules"
	ComponentService = "service"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
)

// Operations defines standard operation names
const (
	OpImport   = "import"
	OpList     = "list"
	OpInsights = "insights"
	OpSuggest  = "suggest"
	OpUpsert   = "upsert"
	OpStatus   = "status"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
