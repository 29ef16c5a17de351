// Package logging adapts go-logger to the small leveled contract the sync
// engine components depend on, so tests can inject a no-op logger.
package logging

import (
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

// Logger is the leveled logging contract used across the engine. It mirrors
// the surface exposed by github.com/goliatone/go-logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Provider hands out named child loggers backed by a shared root.
type Provider interface {
	GetLogger(name string) Logger
}

// Config captures the options exposed by the go-logger provider.
type Config struct {
	Level  string
	Format string
}

type provider struct {
	root *glog.BaseLogger
}

// NewProvider constructs a go-logger backed provider. Format accepts json,
// console, and pretty; level accepts the usual leveled names.
func NewProvider(cfg Config) (Provider, error) {
	options := []glog.Option{}

	if level := normalizeLevel(cfg.Level); level != "" {
		options = append(options, glog.WithLevel(level))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "console":
		options = append(options, glog.WithLoggerTypeConsole())
	case "json":
		options = append(options, glog.WithLoggerTypeJSON())
	case "pretty":
		options = append(options, glog.WithLoggerTypePretty())
	default:
		return nil, fmt.Errorf("logging: unsupported log format %q", cfg.Format)
	}

	return &provider{root: glog.NewLogger(options...)}, nil
}

func (p *provider) GetLogger(name string) Logger {
	if p == nil || p.root == nil {
		return NoOp()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return p.root
	}
	return p.root.GetLogger(name)
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return ""
	case "trace":
		return glog.Trace
	case "debug":
		return glog.Debug
	case "info":
		return glog.Info
	case "warn", "warning":
		return glog.Warn
	case "error":
		return glog.Error
	default:
		return ""
	}
}

type noop struct{}

func (noop) Debug(string, ...any) {}
func (noop) Info(string, ...any)  {}
func (noop) Warn(string, ...any)  {}
func (noop) Error(string, ...any) {}

// NoOp returns a logger that discards everything.
func NoOp() Logger {
	return noop{}
}

type noopProvider struct{}

func (noopProvider) GetLogger(string) Logger { return NoOp() }

// NoOpProvider returns a provider whose loggers discard everything.
func NoOpProvider() Provider {
	return noopProvider{}
}
