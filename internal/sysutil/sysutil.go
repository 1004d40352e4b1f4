// Package sysutil holds process-level helpers for the binaries: log level
// selection and environment value parsing.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

// ParseLevel maps a level name to a zerolog level. "warning" is accepted
// as an alias; empty or unknown names yield info and ok=false.
func ParseLevel(name string) (lvl zerolog.Level, ok bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	if name == "" {
		return zerolog.InfoLevel, false
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel, false
	}
	return lvl, true
}

// SetLogLevel applies name as the global zerolog level and returns the level
// actually set.
func SetLogLevel(name string) zerolog.Level {
	lvl, _ := ParseLevel(name)
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// IsTruthy reports whether an environment value means "on":
// 1, true, yes, y or on, in any case.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// FirstNonEmpty returns the first value that is not blank, unmodified.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
