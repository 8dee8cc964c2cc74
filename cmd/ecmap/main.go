// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/AleutianAI/ecmap/pkg/logging"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitUsage)
	}
}

// newLogger builds the process logger from the persistent flags.
func newLogger() *logging.Logger {
	level := logging.LevelInfo
	switch logLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  logDir,
		Service: "ecmap",
		JSON:    logJSON,
	})
}
