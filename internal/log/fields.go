package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldKey       = "key"
	FieldBytes     = "bytes"
	FieldRecordID  = "record_id"
	FieldRecords   = "records"
	FieldBackend   = "backend"
	FieldPath      = "path"
	FieldModel     = "model"
	FieldMIMEType  = "mime_type"
	FieldTopic     = "topic"
	FieldDuration  = "duration_ms"
)

// Components
const (
	ComponentApp       = "app"
	ComponentStorage   = "storage"
	ComponentExtract   = "extract"
	ComponentPublisher = "publisher"
	ComponentCLI       = "cli"
)

// Operations
const (
	OpLoad    = "load"
	OpSave    = "save"
	OpAdd     = "add"
	OpDelete  = "delete"
	OpReset   = "reset"
	OpExtract = "extract"
	OpPublish = "publish"
)
