// Package monitoring holds the diagnostic logger shared by the sampler,
// transports and display hosts.
package monitoring

import (
	"log"
	"strings"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Logger writes lines tagged with a component prefix such as "[Sampler]".
// The prefix is resolved against Logf on every call so SetLogger still
// applies to loggers created before it.
type Logger struct {
	prefix string
}

// Prefixed returns a Logger for the named component. The name is wrapped
// in brackets unless it already is.
func Prefixed(component string) Logger {
	p := strings.TrimSpace(component)
	if p != "" && !strings.HasPrefix(p, "[") {
		p = "[" + p + "]"
	}
	return Logger{prefix: p}
}

// Printf logs a formatted line with the component prefix.
func (l Logger) Printf(format string, v ...interface{}) {
	if l.prefix == "" {
		Logf(format, v...)
		return
	}
	Logf(l.prefix+" "+format, v...)
}

// Prefix returns the bracketed component tag.
func (l Logger) Prefix() string { return l.prefix }
