// Package logging provides the structured JSON logger shared across every
// component. It replaces the teacher's logrus wrapper with zerolog, the
// logging dependency the rest of the corpus (agentd, skills) already
// standardizes on, keeping the same per-component child-logger idea: every
// component calls New with its own name and gets a logger that tags every
// line with it.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// New returns a zerolog.Logger tagged with component, writing JSON lines to
// w (os.Stderr if w is nil). The level is read from LOG_LEVEL (default
// "info"); an unrecognised value falls back to info rather than failing
// startup.
func New(component string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("component", component).Logger()
}
