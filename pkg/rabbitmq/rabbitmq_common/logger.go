package rabbitmq_common

// Logger is what the rabbitmq packages log through. Callers bridge their own
// logger to it; a nil Logger logs nothing.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(err error, msg string, keysAndValues ...interface{})
}

// OrNoop returns l, or a logger that drops everything when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return discard{}
	}
	return l
}

// WithValues returns a logger that appends keysAndValues to every entry.
func WithValues(l Logger, keysAndValues ...interface{}) Logger {
	if len(keysAndValues) == 0 {
		return OrNoop(l)
	}
	return valuesLogger{next: OrNoop(l), values: keysAndValues}
}

type discard struct{}

func (discard) Debug(string, ...interface{})        {}
func (discard) Info(string, ...interface{})         {}
func (discard) Warn(string, ...interface{})         {}
func (discard) Error(error, string, ...interface{}) {}

type valuesLogger struct {
	next   Logger
	values []interface{}
}

func (v valuesLogger) with(keysAndValues []interface{}) []interface{} {
	out := make([]interface{}, 0, len(v.values)+len(keysAndValues))
	out = append(out, v.values...)
	return append(out, keysAndValues...)
}

func (v valuesLogger) Debug(msg string, keysAndValues ...interface{}) {
	v.next.Debug(msg, v.with(keysAndValues)...)
}

func (v valuesLogger) Info(msg string, keysAndValues ...interface{}) {
	v.next.Info(msg, v.with(keysAndValues)...)
}

func (v valuesLogger) Warn(msg string, keysAndValues ...interface{}) {
	v.next.Warn(msg, v.with(keysAndValues)...)
}

func (v valuesLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	v.next.Error(err, msg, v.with(keysAndValues)...)
}
