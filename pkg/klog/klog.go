// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Package klog provides the level-based logger used across this module.
//
// Karabo devices run under a supervisor that already timestamps and
// frames log lines, so by default no date/time is emitted here — only
// a level tag. Call SetLogDateTime(true) for standalone binaries.
package klog

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
)

var (
	DebugPrefix string = "[DEBUG] "
	InfoPrefix  string = "[INFO]  "
	WarnPrefix  string = "[WARN]  "
	ErrPrefix   string = "[ERROR] "
)

var (
	debugLog *log.Logger = log.New(DebugWriter, DebugPrefix, 0)
	infoLog  *log.Logger = log.New(InfoWriter, InfoPrefix, 0)
	warnLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	errLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.Llongfile)

	debugTimeLog *log.Logger = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	infoTimeLog  *log.Logger = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	warnTimeLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	errTimeLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
)

// SetLevel cascades: "warn" silences debug+info, "err" silences
// debug+info+warn, etc. Unknown levels fall back to "debug".
func SetLevel(lvl string) {
	switch lvl {
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
	default:
		fmt.Fprintf(os.Stderr, "klog: unknown level %q, using debug\n", lvl)
		SetLevel("debug")
	}
}

func SetLogDateTime(on bool) { logDateTime = on }

func out(discard io.Writer, plain, timed *log.Logger, s string) {
	if discard == io.Discard {
		return
	}
	if logDateTime {
		timed.Output(3, s)
	} else {
		plain.Output(3, s)
	}
}

func Debug(v ...any) { out(DebugWriter, debugLog, debugTimeLog, fmt.Sprint(v...)) }
func Info(v ...any)  { out(InfoWriter, infoLog, infoTimeLog, fmt.Sprint(v...)) }
func Warn(v ...any)  { out(WarnWriter, warnLog, warnTimeLog, fmt.Sprint(v...)) }
func Error(v ...any) { out(ErrWriter, errLog, errTimeLog, fmt.Sprint(v...)) }

func Debugf(f string, v ...any) { out(DebugWriter, debugLog, debugTimeLog, fmt.Sprintf(f, v...)) }
func Infof(f string, v ...any)  { out(InfoWriter, infoLog, infoTimeLog, fmt.Sprintf(f, v...)) }
func Warnf(f string, v ...any)  { out(WarnWriter, warnLog, warnTimeLog, fmt.Sprintf(f, v...)) }
func Errorf(f string, v ...any) { out(ErrWriter, errLog, errTimeLog, fmt.Sprintf(f, v...)) }

// Fatal logs at error level and terminates the process. Reserved for
// startup failures (duplicate instance id, broker unreachable past
// the retry budget) per spec §6 exit codes.
func Fatal(v ...any) {
	Error(v...)
	os.Exit(1)
}

// Panic logs at error level and panics. Reserved for invariant
// violations that the original marks as logic exceptions.
func Panic(v ...any) {
	Error(v...)
	panic(fmt.Sprint(v...))
}
