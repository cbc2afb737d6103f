// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package loomlog is a small leveled logger with key/value fields, the
// ambient logging surface a host links against when embedding loom.
// The upstream go-ethereum `log` package this is modeled on was
// trimmed from the retrieval pack, but its two terminal-handling
// dependencies were not, so this package reconstructs a minimal
// logger around the same pair: go-isatty to decide whether output is
// a terminal, go-colorable to make ANSI color codes work on Windows
// consoles that don't natively understand them.
package loomlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is a logging severity, ordered least to most urgent.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCrit
)

func (lv Level) String() string {
	switch lv {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCrit:
		return "CRIT"
	default:
		return "?????"
	}
}

// color returns the ANSI color code conventionally used for lv, or 0
// for none.
func (lv Level) color() int {
	switch lv {
	case LevelTrace:
		return 90 // bright black
	case LevelDebug:
		return 34 // blue
	case LevelInfo:
		return 32 // green
	case LevelWarn:
		return 33 // yellow
	case LevelError:
		return 31 // red
	case LevelCrit:
		return 35 // magenta
	default:
		return 0
	}
}

// Logger writes leveled, key/value-annotated lines to an underlying
// writer, gated by a minimum level.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
	color    bool
	ctx      []interface{} // key/value pairs carried by With
}

// New wraps w as a Logger at the given minimum level. Color output is
// enabled automatically when w is a terminal go-isatty recognizes;
// w itself should usually be the result of Stdout/Stderr below so that
// ANSI sequences are translated on platforms that need it.
func New(w io.Writer, minLevel Level) *Logger {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Logger{out: w, minLevel: minLevel, color: color}
}

// Stdout returns a colorable stdout writer, translating ANSI escapes
// on platforms whose console doesn't understand them natively.
func Stdout() io.Writer { return colorable.NewColorableStdout() }

// Stderr is Stdout's counterpart for standard error.
func Stderr() io.Writer { return colorable.NewColorableStderr() }

// With returns a derived Logger that prepends kvs to every subsequent
// call's fields, for attaching request/session-scoped context once.
func (l *Logger) With(kvs ...interface{}) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	merged := make([]interface{}, 0, len(l.ctx)+len(kvs))
	merged = append(merged, l.ctx...)
	merged = append(merged, kvs...)
	return &Logger{out: l.out, minLevel: l.minLevel, color: l.color, ctx: merged}
}

func (l *Logger) log(lv Level, msg string, kvs []interface{}) {
	if lv < l.minLevel {
		return
	}
	var b strings.Builder
	ts := time.Now().Format("2006-01-02T15:04:05.000Z0700")
	if l.color {
		fmt.Fprintf(&b, "\x1b[%dm%-5s\x1b[0m[%s] %s", lv.color(), lv, ts, msg)
	} else {
		fmt.Fprintf(&b, "%-5s[%s] %s", lv, ts, msg)
	}
	all := append(append([]interface{}{}, l.ctx...), kvs...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&b, " %v=%v", all[i], all[i+1])
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.out, b.String())
}

func (l *Logger) Trace(msg string, kvs ...interface{}) { l.log(LevelTrace, msg, kvs) }
func (l *Logger) Debug(msg string, kvs ...interface{}) { l.log(LevelDebug, msg, kvs) }
func (l *Logger) Info(msg string, kvs ...interface{})  { l.log(LevelInfo, msg, kvs) }
func (l *Logger) Warn(msg string, kvs ...interface{})  { l.log(LevelWarn, msg, kvs) }
func (l *Logger) Error(msg string, kvs ...interface{}) { l.log(LevelError, msg, kvs) }
func (l *Logger) Crit(msg string, kvs ...interface{})  { l.log(LevelCrit, msg, kvs) }

// Root is the default logger used by package-level convenience
// functions, writing to a colorable stderr at Info level.
var Root = New(Stderr(), LevelInfo)

func Trace(msg string, kvs ...interface{}) { Root.Trace(msg, kvs...) }
func Debug(msg string, kvs ...interface{}) { Root.Debug(msg, kvs...) }
func Info(msg string, kvs ...interface{})  { Root.Info(msg, kvs...) }
func Warn(msg string, kvs ...interface{})  { Root.Warn(msg, kvs...) }
func Error(msg string, kvs ...interface{}) { Root.Error(msg, kvs...) }
func Crit(msg string, kvs ...interface{})  { Root.Crit(msg, kvs...) }
