// Copyright 2019 Jorn Friedrich Dreyer
// Modified 2021 Serhii Mikhno
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

// Package logger implements the github.com/go-logr/logr interfaces
// on top of zerolog (github.com/rs/zerolog).
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/rs/zerolog"
)

const (
	debugVerbosity = 2
	traceVerbosity = 8
	timeFormat     = "2006-01-02 15:04:05.000"
)

// GlobalConfig configures the verbosity of all loggers created after
// SetGlobalOptions. V maps to logr verbosity: 0 info, 1 debug, 2+ trace.
type GlobalConfig struct {
	V int `mapstructure:"v"`
}

var (
	globalMu sync.RWMutex
	globalV  int
)

// SetGlobalOptions sets the verbosity used by subsequent New calls.
func SetGlobalOptions(config GlobalConfig) {
	v := config.V
	if v < 0 {
		v = 0
	}
	globalMu.Lock()
	globalV = v
	globalMu.Unlock()
}

// SetVLevelByStringValue maps the old level names onto verbosity values.
func SetVLevelByStringValue(level string) {
	var v int
	switch level {
	case "trace":
		v = 2
	case "debug":
		v = 1
	default:
		v = 0
	}
	SetGlobalOptions(GlobalConfig{V: v})
}

// Options that can be passed to NewWithOptions.
type Options struct {
	// Name is an optional name of the logger
	Name string
	// Logger is an instance of zerolog, if nil a default console logger is used
	Logger *zerolog.Logger
}

// New returns a logr.Logger writing human-readable output to stdout.
func New() logr.Logger {
	return NewWithOptions(Options{})
}

// NewWithOptions returns a logr.Logger which is implemented by zerolog.
func NewWithOptions(opts Options) logr.Logger {
	if opts.Logger == nil {
		l := zerolog.New(consoleWriter()).With().Timestamp().Logger()
		opts.Logger = &l
	}
	globalMu.RLock()
	v := globalV
	globalMu.RUnlock()
	return logger{
		l:         opts.Logger,
		verbosity: v,
		prefix:    opts.Name,
	}
}

func consoleWriter() zerolog.ConsoleWriter {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
	output.FormatTimestamp = func(i interface{}) string {
		return fmt.Sprintf("[%v]", i)
	}
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("[%-3s]", i))
	}
	return output
}

// logger is a logr.Logger that uses zerolog to log.
type logger struct {
	l         *zerolog.Logger
	verbosity int
	level     int
	prefix    string
	values    []interface{}
}

func (l logger) Enabled() bool {
	return l.level <= l.verbosity
}

func (l logger) Info(msg string, keysAndVals ...interface{}) {
	if !l.Enabled() {
		return
	}
	var e *zerolog.Event
	if l.level < 1 {
		e = l.l.Info()
	} else if l.level < debugVerbosity {
		e = l.l.Debug()
	} else {
		e = l.l.Trace()
	}
	if l.prefix != "" {
		e.Str("name", l.prefix)
	}
	add(e, l.values)
	add(e, keysAndVals)
	e.Msg(msg)
}

func (l logger) Error(err error, msg string, keysAndVals ...interface{}) {
	e := l.l.Error().Err(err)
	if l.prefix != "" {
		e.Str("name", l.prefix)
	}
	add(e, l.values)
	add(e, keysAndVals)
	e.Msg(msg)
}

func (l logger) V(level int) logr.Logger {
	new := l.clone()
	new.level += level
	return new
}

// WithName returns a new logr.Logger with the specified name appended.
// '/' separates name elements.
func (l logger) WithName(name string) logr.Logger {
	new := l.clone()
	if len(l.prefix) > 0 {
		new.prefix = l.prefix + "/"
	}
	new.prefix += name
	return new
}

func (l logger) WithValues(kvList ...interface{}) logr.Logger {
	new := l.clone()
	new.values = append(new.values, kvList...)
	return new
}

func (l logger) clone() logger {
	out := l
	out.values = copySlice(l.values)
	return out
}

func copySlice(in []interface{}) []interface{} {
	out := make([]interface{}, len(in))
	copy(out, in)
	return out
}

// add converts a bunch of arbitrary key-value pairs into zerolog fields.
func add(e *zerolog.Event, keysAndVals []interface{}) {
	// make sure we got an even number of arguments
	if len(keysAndVals)%2 != 0 {
		e.Interface("args", keysAndVals).Msg("odd number of arguments passed as key-value pairs for logging")
		return
	}
	for i := 0; i < len(keysAndVals); i += 2 {
		key, val := keysAndVals[i], keysAndVals[i+1]
		keyStr, isString := key.(string)
		if !isString {
			e.Interface("invalid key", key).Msg("non-string key argument passed to logging, ignoring all later arguments")
			return
		}
		e.Interface(keyStr, val)
	}
}
