package h2conn

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/imroc/h2conn/internal/logging"
)

// Logger interface is to abstract the logging from h2conn. Gives control to
// the h2conn users, choice of the logger.
type Logger = logging.Logger

// NewLogger create a Logger wraps the *log.Logger
func NewLogger(output io.Writer) Logger {
	return logging.New(output)
}

// NewLoggerFromZerolog adapts a zerolog logger.
func NewLoggerFromZerolog(zl zerolog.Logger) Logger {
	return logging.FromZerolog(zl)
}
