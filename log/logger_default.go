package log

import (
	"io"
	"os"

	"github.com/nanovms/docker2eif/types"
)

var defaultLogger *Logger

// Make sure default logger instantiated by default.
func init() {
	defaultLogger = New(os.Stdout)
	defaultLogger.SetError(true)
}

// Default returns the package-level logger
func Default() *Logger {
	return defaultLogger
}

// InitDefault creates default logger for package-level logging access.
func InitDefault(output io.Writer, config *types.Config) {
	defaultLogger = New(output)
	defaultLogger.SetError(true)

	if config == nil {
		return
	}

	if config.RunConfig.ShowDebug {
		defaultLogger.SetDebug(true)
		defaultLogger.SetWarn(true)
		defaultLogger.SetInfo(true)
	}

	if config.RunConfig.ShowWarnings {
		defaultLogger.SetWarn(true)
	}

	if !config.RunConfig.ShowErrors && config.RunConfig.JSON {
		defaultLogger.SetError(false)
	}

	if config.RunConfig.Verbose {
		defaultLogger.SetInfo(true)
	}
}

// Info logs info-level message using default logger.
func Info(message string, a ...interface{}) {
	defaultLogger.Info(message, a...)
}

// Warn logs warning-level message using default logger.
func Warn(message string, a ...interface{}) {
	defaultLogger.Warn(message, a...)
}

// Errorf logs error-level formatted string message using default logger.
func Errorf(message string, a ...interface{}) {
	defaultLogger.Errorf(message, a...)
}

// Debug logs debug-level message using default logger.
func Debug(message string, a ...interface{}) {
	defaultLogger.Debug(message, a...)
}
