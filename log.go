// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledctl

import (
	"log/slog"
	"os"
	"sync"
)

var (
	// logLevel controls the minimum level of the default logger.
	logLevel = new(slog.LevelVar)

	// logMutex protects defaultLogger.
	logMutex sync.RWMutex

	defaultLogger *slog.Logger
)

func init() {
	logLevel.Set(slog.LevelWarn)
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// SetLogLevel sets the minimum level of the default logger.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetLogger replaces the default logger used by devices bound without
// WithLogger.
func SetLogger(l *slog.Logger) {
	logMutex.Lock()
	defer logMutex.Unlock()
	defaultLogger = l
}

// Logger returns the default logger.
func Logger() *slog.Logger {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return defaultLogger
}
