// Copyright 2019-2020 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is the logging facade used by every package in the
// node-selection core. It is a trimmed-down adaptation of
// github.com/intel/cri-resource-manager/pkg/log: a per-source Logger backed
// by a pluggable Backend, with a default asynchronous fmt-based backend.
package log

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Level is the severity of a log message.
type Level int32

const (
	// LevelDebug is the severity for debug messages.
	LevelDebug Level = iota
	// LevelInfo is the severity for informational messages.
	LevelInfo
	// LevelWarn is the severity for warnings.
	LevelWarn
	// LevelError is the severity for errors.
	LevelError
)

// Logger produces log messages for a particular source/package.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Fatal(format string, args ...interface{})
	Panic(format string, args ...interface{})

	DebugBlock(prefix, format string, args ...interface{})
	InfoBlock(prefix, format string, args ...interface{})
	WarnBlock(prefix, format string, args ...interface{})
	ErrorBlock(prefix, format string, args ...interface{})

	EnableDebug(bool) bool
	DebugEnabled() bool

	Source() string
}

// Backend can format and emit log messages.
type Backend interface {
	Name() string
	Log(level Level, source, message string)
	Block(level Level, source, prefix, message string)
	Sync()
	Stop()
}

type registry struct {
	sync.Mutex
	loggers map[string]*logger
	active  Backend
	level   Level
	srcalign int
}

var reg = &registry{
	loggers: make(map[string]*logger),
	level:   LevelInfo,
}

func init() {
	reg.active = newFmtBackend()
}

// SetBackend installs b as the active backend for all loggers.
func SetBackend(b Backend) {
	reg.Lock()
	defer reg.Unlock()
	if reg.active != nil {
		reg.active.Stop()
	}
	reg.active = b
}

// SetLevel sets the lowest severity that is not suppressed, for loggers
// that have not individually enabled debug.
func SetLevel(l Level) {
	reg.Lock()
	defer reg.Unlock()
	reg.level = l
}

// logger implements Logger.
type logger struct {
	source string
	debug  bool
}

// Get returns the Logger for source, creating it if necessary.
func Get(source string) Logger {
	source = strings.Trim(source, "[] ")

	reg.Lock()
	defer reg.Unlock()

	if l, ok := reg.loggers[source]; ok {
		return l
	}

	l := &logger{source: source}
	reg.loggers[source] = l
	if len(source) > reg.srcalign {
		reg.srcalign = len(source)
	}
	return l
}

// NewLogger is an alias for Get, matching the upstream constructor name.
func NewLogger(source string) Logger {
	return Get(source)
}

func (l *logger) Source() string {
	return l.source
}

// EnableDebug enables or disables debug messages for this logger.
func (l *logger) EnableDebug(state bool) bool {
	reg.Lock()
	defer reg.Unlock()
	old := l.debug
	l.debug = state
	return old
}

// DebugEnabled reports whether debug messages are enabled for this logger.
func (l *logger) DebugEnabled() bool {
	reg.Lock()
	defer reg.Unlock()
	return l.debug
}

func (l *logger) passthrough(level Level) bool {
	reg.Lock()
	defer reg.Unlock()
	return level >= reg.level || (level == LevelDebug && l.debug)
}

func (l *logger) emit(level Level, format string, args ...interface{}) {
	if !l.passthrough(level) {
		return
	}
	reg.active.Log(level, l.source, fmt.Sprintf(format, args...))
}

func (l *logger) Debug(format string, args ...interface{}) { l.emit(LevelDebug, format, args...) }
func (l *logger) Info(format string, args ...interface{})  { l.emit(LevelInfo, format, args...) }
func (l *logger) Warn(format string, args ...interface{})  { l.emit(LevelWarn, format, args...) }
func (l *logger) Error(format string, args ...interface{}) { l.emit(LevelError, format, args...) }

func (l *logger) Fatal(format string, args ...interface{}) {
	reg.active.Log(LevelError, l.source, fmt.Sprintf(format, args...))
	reg.active.Sync()
	os.Exit(1)
}

func (l *logger) Panic(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	reg.active.Log(LevelError, l.source, msg)
	panic(msg)
}

func (l *logger) block(level Level, prefix, format string, args ...interface{}) {
	if !l.passthrough(level) {
		return
	}
	reg.active.Block(level, l.source, prefix, fmt.Sprintf(format, args...))
}

func (l *logger) DebugBlock(prefix, format string, args ...interface{}) {
	l.block(LevelDebug, prefix, format, args...)
}
func (l *logger) InfoBlock(prefix, format string, args ...interface{}) {
	l.block(LevelInfo, prefix, format, args...)
}
func (l *logger) WarnBlock(prefix, format string, args ...interface{}) {
	l.block(LevelWarn, prefix, format, args...)
}
func (l *logger) ErrorBlock(prefix, format string, args ...interface{}) {
	l.block(LevelError, prefix, format, args...)
}
