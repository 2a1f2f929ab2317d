// Package logger provides the process-wide structured logger shared by
// the components of streamcore that log (executor, gateway, config and
// the cmd/streamcore entrypoint).
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	isDevelopment = false

	logFile *os.File

	// AdHocLogger is a ready-to-use logger for call sites that do not
	// want to thread a component-scoped logger through.
	AdHocLogger zerolog.Logger

	once sync.Once

	globalLogger zerolog.Logger
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	AdHocLogger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "ad-hoc-logger").Caller().Logger()
}

// GetLogger returns the process-wide logger, lazily initialized on the
// first call and tagged with that call's serviceName; later calls
// return the same logger and their serviceName is ignored.
func GetLogger(serviceName string) zerolog.Logger {
	once.Do(func() {
		if !isDevelopment {
			globalLogger = zerolog.New(os.Stderr).With().Timestamp().Str("service", serviceName).Logger()
			return
		}

		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i any) string {
				return strings.ToUpper(fmt.Sprintf("[%5s]", i))
			},
			FormatMessage: func(i any) string {
				return fmt.Sprintf("| %s |", i)
			},
			FormatCaller: func(i any) string {
				return filepath.Base(fmt.Sprintf("%s", i))
			},
			PartsExclude: []string{zerolog.TimestampFieldName},
		}

		writer := zerolog.MultiLevelWriter(consoleWriter, writerOrDiscard(logFile))
		globalLogger = zerolog.New(writer).Level(zerolog.TraceLevel).With().Timestamp().Str("service", serviceName).Caller().Logger()
	})

	return globalLogger
}

func writerOrDiscard(f *os.File) io.Writer {
	if f == nil {
		return io.Discard
	}
	return f
}

// Component returns a child logger tagged with a "component" field,
// the convention every package in this repo uses for its own logger.
func Component(name string) zerolog.Logger {
	return GetLogger("streamcore").With().Str("component", name).Logger()
}

// SetDevelopment toggles the human-readable console writer.
func SetDevelopment(value bool) {
	isDevelopment = value
}

// SetLogFile directs the development-mode writer to also write file.
func SetLogFile(file *os.File) {
	logFile = file
}
