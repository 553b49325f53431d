// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logger provides the structured, colorized logging surface used
// throughout the scheduler. It is instance-scoped: callers construct a
// Logger and thread it through the components that need it rather than
// reaching for a package-level global.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	slogmulti "github.com/samber/slog-multi"
)

// Logger is the logging surface threaded through the scheduler, workers,
// and experiment strategies.
type Logger interface {
	Debug(msg string, args ...any)
	Debugf(format string, args ...any)
	Info(msg string, args ...any)
	Infof(format string, args ...any)
	Warn(msg string, args ...any)
	Warnf(format string, args ...any)
	Error(msg string, args ...any)
	Errorf(format string, args ...any)
	// With returns a Logger that always includes the given key/value pairs.
	With(args ...any) Logger
}

// Config controls how a Logger is built.
type Config struct {
	// Quiet suppresses Debug and Info output (Warn/Error always print).
	Quiet bool
	// Color enables ANSI coloring of lines by level on the console writer.
	Color bool
	// File optionally tees all output to an additional writer, e.g. a log file.
	File io.Writer
}

type logger struct {
	slog *slog.Logger
}

// New builds a Logger writing to stdout, and additionally to cfg.File when set.
func New(cfg Config) Logger {
	writers := []io.Writer{&consoleWriter{out: os.Stdout, color: cfg.Color}}
	if cfg.File != nil {
		writers = append(writers, cfg.File)
	}

	level := slog.LevelInfo
	if cfg.Quiet {
		level = slog.LevelWarn
	}

	handlers := make([]slog.Handler, 0, len(writers))
	for _, w := range writers {
		handlers = append(handlers, slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	}

	return &logger{slog: slog.New(slogmulti.Fanout(handlers...))}
}

func (l *logger) Debug(msg string, args ...any)  { l.slog.Debug(msg, args...) }
func (l *logger) Info(msg string, args ...any)   { l.slog.Info(msg, args...) }
func (l *logger) Warn(msg string, args ...any)   { l.slog.Warn(msg, args...) }
func (l *logger) Error(msg string, args ...any)  { l.slog.Error(msg, args...) }
func (l *logger) Debugf(f string, a ...any)      { l.slog.Debug(sprintf(f, a...)) }
func (l *logger) Infof(f string, a ...any)       { l.slog.Info(sprintf(f, a...)) }
func (l *logger) Warnf(f string, a ...any)       { l.slog.Warn(sprintf(f, a...)) }
func (l *logger) Errorf(f string, a ...any)      { l.slog.Error(sprintf(f, a...)) }

func (l *logger) With(args ...any) Logger {
	return &logger{slog: l.slog.With(args...)}
}

// consoleWriter colorizes each whole line slog.TextHandler emits by its
// level: red for ERROR, yellow for WARN, grey for DEBUG; INFO is uncolored.
type consoleWriter struct {
	out   io.Writer
	color bool
}

func (w *consoleWriter) Write(p []byte) (int, error) {
	if !w.color {
		return w.out.Write(p)
	}
	return w.out.Write(colorizeLevel(p))
}

func colorizeLevel(line []byte) []byte {
	switch {
	case contains(line, "level=ERROR"):
		return []byte(color.RedString("%s", line))
	case contains(line, "level=WARN"):
		return []byte(color.YellowString("%s", line))
	case contains(line, "level=DEBUG"):
		return []byte(color.New(color.FgHiBlack).Sprintf("%s", line))
	default:
		return line
	}
}

func contains(b []byte, s string) bool {
	return len(b) >= len(s) && indexOf(b, s) >= 0
}

func indexOf(b []byte, s string) int {
	for i := 0; i+len(s) <= len(b); i++ {
		if string(b[i:i+len(s)]) == s {
			return i
		}
	}
	return -1
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// contextKey avoids collisions with other packages' context keys.
type contextKey struct{}

// WithContext attaches l to ctx.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext retrieves the Logger attached by WithContext, or a quiet
// default Logger when none is present.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(contextKey{}).(Logger); ok {
		return l
	}
	return New(Config{Quiet: true})
}
