package port

// Fields - structured data attached to a log record.
type Fields map[string]interface{}

// LoggerPort keeps the core independent of a concrete logger.
type LoggerPort interface {
	Info(msg string, fields Fields)

	Warn(msg string, fields Fields)

	// Error logs err next to the message; err may be nil.
	Error(msg string, err error, fields Fields)

	Debug(msg string, fields Fields)

	// WithFields returns a logger that adds fields to every record.
	WithFields(fields Fields) LoggerPort
}
