package logx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Formatter is the interface for log formatters
type Formatter interface {
	Format(rec *Record) ([]byte, error)
}

// Record represents a single log record
type Record struct {
	Level     Level
	Message   string
	Fields    Fields
	Error     error
	Timestamp time.Time
	Caller    string
}

// Fields is a map of structured data
type Fields map[string]interface{}

// formatTimestamp formats the timestamp based on the config
func formatTimestamp(t time.Time, format string) string {
	if format == "unix" {
		return fmt.Sprintf("%d", t.Unix())
	}
	return t.Format(format)
}

// ANSI color codes for console output
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

func levelColor(l Level) string {
	switch l {
	case LevelTrace:
		return colorGray
	case LevelDebug:
		return colorCyan
	case LevelInfo:
		return colorGreen
	case LevelWarn:
		return colorYellow
	case LevelError, LevelFatal:
		return colorRed
	default:
		return colorReset
	}
}

// ConsoleFormatter renders human-readable, optionally colored lines
type ConsoleFormatter struct {
	config *Config
}

// NewConsoleFormatter creates a console formatter
func NewConsoleFormatter(config *Config) *ConsoleFormatter {
	return &ConsoleFormatter{config: config}
}

// Format implements Formatter
func (f *ConsoleFormatter) Format(rec *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(formatTimestamp(rec.Timestamp, f.config.TimeFormat))
	buf.WriteString(" ")

	level := fmt.Sprintf("%-5s", rec.Level.String())
	if f.config.EnableColors {
		buf.WriteString(levelColor(rec.Level))
		buf.WriteString(level)
		buf.WriteString(colorReset)
	} else {
		buf.WriteString(level)
	}

	if rec.Caller != "" {
		buf.WriteString(" ")
		buf.WriteString(rec.Caller)
	}

	buf.WriteString(" ")
	buf.WriteString(rec.Message)

	// Stable field order so lines are diffable
	if len(rec.Fields) > 0 {
		keys := make([]string, 0, len(rec.Fields))
		for k := range rec.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&buf, " %s=%v", k, rec.Fields[k])
		}
	}

	if rec.Error != nil {
		fmt.Fprintf(&buf, " error=%q", rec.Error.Error())
	}

	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// JSONFormatter renders one JSON object per line
type JSONFormatter struct {
	config *Config
}

// NewJSONFormatter creates a JSON formatter
func NewJSONFormatter(config *Config) *JSONFormatter {
	return &JSONFormatter{config: config}
}

// Format implements Formatter
func (f *JSONFormatter) Format(rec *Record) ([]byte, error) {
	payload := make(map[string]interface{}, len(rec.Fields)+4)
	for k, v := range rec.Fields {
		payload[k] = v
	}
	payload["ts"] = formatTimestamp(rec.Timestamp, f.config.TimeFormat)
	payload["level"] = rec.Level.String()
	payload["msg"] = rec.Message
	if rec.Caller != "" {
		payload["caller"] = rec.Caller
	}
	if rec.Error != nil {
		payload["error"] = rec.Error.Error()
	}

	out, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
