// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conesolve

import (
	"fmt"
	"io"
)

// LogLevel controls the frequency and type of logger output, mirroring
// the teacher's L-BFGS-B logger but cut down to the levels an IPM outer
// loop actually needs.
type LogLevel int

const (
	LogNoop    LogLevel = -1
	LogLast    LogLevel = 0
	LogPerIter LogLevel = 1
	LogVerbose LogLevel = 2
)

// Logger handles logging output for the solver. The writers must be
// thread-safe if the same Logger is shared across solves.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // narrative messages (status changes, warnings)
	Out   io.Writer // tabular per-iteration data
}

func (l *Logger) enable(level LogLevel) bool {
	return l != nil && l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if l.Msg == nil {
		return
	}
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

func (l *Logger) out(format string, a ...any) {
	if l.Out == nil {
		return
	}
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Out, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Out, format)
	}
}
