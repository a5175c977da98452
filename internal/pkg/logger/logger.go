package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger writes structured JSON lines. Import files are full of contact
// data, so field values pass through PII redaction before they are emitted;
// disable only in local debugging.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	level     Level
	redactPII bool
}

var std = &Logger{out: os.Stderr, level: INFO, redactPII: true}

// SetLevel sets the minimum level for the package-level logger.
func SetLevel(l Level) { std.level = l }

// SetRedactPII toggles contact-data masking on the package-level logger.
func SetRedactPII(on bool) { std.redactPII = on }

// SetOutput redirects the package-level logger, mainly for tests.
func SetOutput(w io.Writer) { std.out = w }

func Debug(msg string, fields ...interface{}) { std.log(DEBUG, msg, fields...) }
func Info(msg string, fields ...interface{})  { std.log(INFO, msg, fields...) }
func Warn(msg string, fields ...interface{})  { std.log(WARN, msg, fields...) }
func Error(msg string, fields ...interface{}) { std.log(ERROR, msg, fields...) }

// log renders one entry. Fields are alternating key/value pairs; a trailing
// odd value is dropped.
func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": level.String(),
		"msg":   msg,
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if l.redactPII {
			val = redactValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	l.mu.Lock()
	fmt.Fprintln(l.out, string(data))
	l.mu.Unlock()
}
