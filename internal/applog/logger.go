// Package applog is the centralized leveled logger used across every
// component. It writes formatted lines to stdout rather than a
// database sink.
package applog

import (
	"fmt"
	"log"
	"os"
	"time"
)

type Level string

const (
	DEBUG Level = "DEBUG"
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
)

// Logger is a service-scoped, leveled console logger.
type Logger struct {
	service     string
	enableDebug bool
	out         *log.Logger
}

// New creates a logger scoped to one component ("agent-runtime",
// "room-events", ...). LOG_LEVEL=DEBUG enables Debug output.
func New(service string) *Logger {
	return &Logger{
		service:     service,
		enableDebug: os.Getenv("LOG_LEVEL") == "DEBUG",
		out:         log.New(os.Stdout, "", 0),
	}
}

func (l *Logger) Debug(message string, kv ...any) {
	if !l.enableDebug {
		return
	}
	l.log(DEBUG, message, kv...)
}

func (l *Logger) Info(message string, kv ...any) { l.log(INFO, message, kv...) }
func (l *Logger) Warn(message string, kv ...any)  { l.log(WARN, message, kv...) }

func (l *Logger) Error(message string, err error, kv ...any) {
	if err != nil {
		kv = append(kv, "error", err.Error())
	}
	l.log(ERROR, message, kv...)
}

func (l *Logger) log(level Level, message string, kv ...any) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s][%s][%s] %s", ts, l.service, level, message)
	if len(kv) > 0 {
		line = fmt.Sprintf("%s %s", line, formatKV(kv...))
	}
	l.out.Println(line)
}

func formatKV(kv ...any) string {
	var b []byte
	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, []byte(fmt.Sprintf("%v=%v", kv[i], kv[i+1]))...)
	}
	return string(b)
}
