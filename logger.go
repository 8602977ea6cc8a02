// logger.go
package main

import (
	"log"
	"os"
	"strings"
)

// Log levels, gated by the LOG_LEVEL environment variable.
// Production runs at "info"; set LOG_LEVEL=debug to see raw payloads.
const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

var logLevel = levelInfo

func initLogLevel() {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		logLevel = levelDebug
	case "info", "":
		logLevel = levelInfo
	case "warn", "warning":
		logLevel = levelWarn
	case "error":
		logLevel = levelError
	default:
		logLevel = levelInfo
	}
}

func LogDebug(format string, args ...interface{}) {
	if logLevel <= levelDebug {
		log.Printf("🔍 "+format, args...)
	}
}

func LogInfo(format string, args ...interface{}) {
	if logLevel <= levelInfo {
		log.Printf("ℹ️ "+format, args...)
	}
}

func LogWarn(format string, args ...interface{}) {
	if logLevel <= levelWarn {
		log.Printf("⚠️ "+format, args...)
	}
}

func LogError(format string, args ...interface{}) {
	if logLevel <= levelError {
		log.Printf("❌ "+format, args...)
	}
}
