// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"
)

// Level represents the severity of a log entry
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// Logger writes structured JSON log lines to stdout for a single component.
// The minimum level is read from LOG_LEVEL at construction time.
type Logger struct {
	component string
	minLevel  Level
}

type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component"`
	RequestID string                 `json:"request_id,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// New creates a Logger for the given component name.
func New(component string) *Logger {
	return &Logger{
		component: component,
		minLevel:  parseLevel(os.Getenv("LOG_LEVEL")),
	}
}

func parseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func (l *Logger) write(level Level, requestID, message string, fields map[string]interface{}) {
	if level < l.minLevel {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     levelNames[level],
		Component: l.component,
		RequestID: requestID,
		Message:   message,
		Fields:    fields,
	}

	jsonBytes, err := json.Marshal(e)
	if err != nil {
		log.Printf("ERROR: failed to marshal log entry: %v", err)
		return
	}
	log.Println(string(jsonBytes))
}

// Debug logs a debug message.
func (l *Logger) Debug(requestID, message string, fields map[string]interface{}) {
	l.write(DEBUG, requestID, message, fields)
}

// Info logs an informational message.
func (l *Logger) Info(requestID, message string, fields map[string]interface{}) {
	l.write(INFO, requestID, message, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(requestID, message string, fields map[string]interface{}) {
	l.write(WARN, requestID, message, fields)
}

// Error logs an error message. A nil err is allowed.
func (l *Logger) Error(requestID, message string, err error, fields map[string]interface{}) {
	if err != nil {
		if fields == nil {
			fields = make(map[string]interface{})
		}
		fields["error"] = err.Error()
	}
	l.write(ERROR, requestID, message, fields)
}

// InfoWithDuration logs an info message with a duration_ms field.
func (l *Logger) InfoWithDuration(requestID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(requestID, message, fields)
}
