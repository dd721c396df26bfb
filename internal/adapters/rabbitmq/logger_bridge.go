package rabbitmq

import (
	"fmt"

	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
	"github.com/apesoftware1/Memorial-sub001/pkg/rabbitmq/rabbitmq_common"
)

// PkgLoggerBridge feeds the key/value logging of pkg/rabbitmq into LoggerPort.
type PkgLoggerBridge struct {
	logger port.LoggerPort
}

var _ rabbitmq_common.Logger = (*PkgLoggerBridge)(nil)

func NewPkgLoggerBridge(logger port.LoggerPort) *PkgLoggerBridge {
	return &PkgLoggerBridge{logger: logger.WithFields(port.Fields{"component": "rabbitmq"})}
}

// fields pairs up keysAndValues. A non-string key is formatted; a trailing
// value without a key is kept as "arg_N".
func fields(keysAndValues []interface{}) port.Fields {
	if len(keysAndValues) == 0 {
		return nil
	}
	out := make(port.Fields, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 == len(keysAndValues) {
			out[fmt.Sprintf("arg_%d", i)] = keysAndValues[i]
			break
		}
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out[key] = keysAndValues[i+1]
	}
	return out
}

func (b *PkgLoggerBridge) Debug(msg string, keysAndValues ...interface{}) {
	b.logger.Debug(msg, fields(keysAndValues))
}

func (b *PkgLoggerBridge) Info(msg string, keysAndValues ...interface{}) {
	b.logger.Info(msg, fields(keysAndValues))
}

func (b *PkgLoggerBridge) Warn(msg string, keysAndValues ...interface{}) {
	b.logger.Warn(msg, fields(keysAndValues))
}

func (b *PkgLoggerBridge) Error(err error, msg string, keysAndValues ...interface{}) {
	b.logger.Error(msg, err, fields(keysAndValues))
}
