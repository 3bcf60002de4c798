// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/helper/gc"
)

// Logger is the logging contract every engine component accepts.
//
// Informational events go through Printf and Println, failures that did not
// stop the caller (persistence errors, soft revocation failures) through Errorf.
type Logger interface {
	// Printf formats and prints an informational message.
	Printf(format string, v ...any)
	// Println prints an informational message.
	Println(v ...any)
	// Errorf formats and prints an error message.
	Errorf(format string, v ...any)
	// SetOutput sets the output destination for the logger.
	SetOutput(w io.Writer)
}

// CLILogger writes plain lines through the standard log package, for humans
// reading a terminal.
type CLILogger struct{ logger *log.Logger }

// NewCLILogger returns a CLILogger writing to stdout without timestamps.
func NewCLILogger() *CLILogger {
	return &CLILogger{logger: log.New(os.Stdout, "", 0)}
}

// Printf formats and prints a log message using fmt.Printf semantics.
func (c *CLILogger) Printf(format string, v ...any) { c.logger.Printf(format, v...) }

// Println prints a log message with a newline.
func (c *CLILogger) Println(v ...any) { c.logger.Println(v...) }

// Errorf prints a message prefixed with "error: ".
func (c *CLILogger) Errorf(format string, v ...any) { c.logger.Printf("error: "+format, v...) }

// SetOutput sets the output destination for the CLI logger.
func (c *CLILogger) SetOutput(w io.Writer) { c.logger.SetOutput(w) }

// JSONLogger writes one JSON object per line:
//
//	{"level":"info","time":"2025-01-02T15:04:05Z","message":"..."}
//
// It is used wherever stdout is a protocol channel (the [MCP] server) or when
// logs are shipped to a collector. A silent JSONLogger discards everything.
//
// JSONLogger is safe for concurrent use by multiple goroutines.
//
// [MCP]: https://modelcontextprotocol.io/docs/getting-started/intro
type JSONLogger struct {
	mu     sync.Mutex
	writer io.Writer
	silent bool
	now    func() time.Time
}

// NewJSONLogger returns a JSONLogger writing to writer. A nil writer discards.
func NewJSONLogger(writer io.Writer, silent bool) *JSONLogger {
	if writer == nil {
		writer = io.Discard
	}
	return &JSONLogger{writer: writer, silent: silent, now: time.Now}
}

// Nop returns a Logger that discards everything.
func Nop() Logger { return NewJSONLogger(nil, true) }

// Printf logs an info level message.
func (j *JSONLogger) Printf(format string, v ...any) { j.write("info", fmt.Sprintf(format, v...)) }

// Println logs an info level message built with fmt.Sprint.
func (j *JSONLogger) Println(v ...any) { j.write("info", fmt.Sprint(v...)) }

// Errorf logs an error level message.
func (j *JSONLogger) Errorf(format string, v ...any) { j.write("error", fmt.Sprintf(format, v...)) }

// SetOutput sets the output destination. A nil writer discards.
func (j *JSONLogger) SetOutput(w io.Writer) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if w == nil {
		w = io.Discard
	}
	j.writer = w
}

func (j *JSONLogger) write(level, msg string) {
	if j.silent {
		return
	}

	// json.Marshal of a string cannot fail.
	quoted, _ := json.Marshal(msg)

	buf := gc.Default.Get()
	defer func() {
		buf.Reset()
		gc.Default.Put(buf)
	}()

	buf.WriteString(`{"level":"`)
	buf.WriteString(level)
	buf.WriteString(`","time":"`)
	buf.WriteString(j.now().UTC().Format(time.RFC3339))
	buf.WriteString(`","message":`)
	buf.Write(quoted)
	buf.WriteString("}\n")

	j.mu.Lock()
	defer j.mu.Unlock()
	buf.WriteTo(j.writer)
}

// OrNop returns l, or a discarding Logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
