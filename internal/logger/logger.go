package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceField is attached to every entry so server, worker and CLI logs can
// be told apart once they land in the same sink
const ServiceField = "service"

func level(debugMode bool) zap.AtomicLevel {
	if debugMode {
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zap.NewAtomicLevelAt(zapcore.InfoLevel)
}

// jsonEncoderConfig is the field layout shared by the server and worker
func jsonEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// NewProductionLogger creates a JSON logger for a long-running process.
// Error entries carry a stack trace.
func NewProductionLogger(service string, debugMode bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = level(debugMode)
	config.Encoding = "json"
	config.EncoderConfig = jsonEncoderConfig()
	config.DisableStacktrace = false
	if service != "" {
		config.InitialFields = map[string]any{ServiceField: service}
	}
	return config.Build()
}

// NewDevelopmentLogger creates a console logger for local runs
func NewDevelopmentLogger(debugMode bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = level(debugMode)
	return config.Build()
}

// Log formats accepted by New
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New builds the process logger: JSON production output, or the
// development console encoder when format is FormatConsole
func New(service, format string, debugMode bool) (*zap.Logger, error) {
	if format == FormatConsole {
		l, err := NewDevelopmentLogger(debugMode)
		if err != nil {
			return nil, err
		}
		return l.With(zap.String(ServiceField, service)), nil
	}
	return NewProductionLogger(service, debugMode)
}

// NewCLILogger creates a quiet console logger on stderr so command output on
// stdout stays machine readable
func NewCLILogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.OutputPaths = []string{"stderr"}
	config.DisableStacktrace = true
	config.DisableCaller = !verbose
	config.EncoderConfig.TimeKey = ""
	return config.Build()
}

// Sync flushes buffered entries. A nil logger is a no-op.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}
