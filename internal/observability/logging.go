package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-complaint-desk/internal/sysutil"
)

// LogOptions configures SetupLogger.
type LogOptions struct {
	Level     string // debug|info|warn|error|fatal|panic
	Pretty    bool   // human-readable console output
	Service   string // added as "service" on every event
	Component string // added as "component" when set
	Writer    io.Writer
}

// SetupLogger configures zerolog globally (level, time format, writer) and
// installs the resulting logger as log.Logger. The returned logger is the same
// value, for callers that prefer injection.
func SetupLogger(opt LogOptions) zerolog.Logger {
	sysutil.SetLogLevel(opt.Level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stdout
	if opt.Writer != nil {
		w = opt.Writer
	}
	if opt.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).With().Timestamp()
	if opt.Service != "" {
		ctx = ctx.Str("service", opt.Service)
	}
	if opt.Component != "" {
		ctx = ctx.Str("component", opt.Component)
	}
	l := ctx.Logger()
	log.Logger = l
	return l
}

// Named returns a child of the global logger tagged with component.
func Named(component string) zerolog.Logger {
	if component == "" {
		return log.Logger
	}
	return log.Logger.With().Str("component", component).Logger()
}
