package logger

import (
	"io"
	"log"
	"os"
)

// Logger is a small leveled wrapper over the standard log package.
// Debug and Info go to stdout, Warn and Error to stderr.
type Logger struct {
	debug *log.Logger
	info  *log.Logger
	warn  *log.Logger
	error *log.Logger
}

const flags = log.Ldate | log.Ltime

func New() *Logger {
	return &Logger{
		debug: log.New(os.Stdout, "DEBUG: ", flags),
		info:  log.New(os.Stdout, "INFO: ", flags),
		warn:  log.New(os.Stderr, "WARN: ", flags),
		error: log.New(os.Stderr, "ERROR: ", flags),
	}
}

// NewWithWriter routes every level to the given writer. Used by tests.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		debug: log.New(w, "DEBUG: ", flags),
		info:  log.New(w, "INFO: ", flags),
		warn:  log.New(w, "WARN: ", flags),
		error: log.New(w, "ERROR: ", flags),
	}
}

func (l *Logger) Debug(v ...interface{})            { l.debug.Println(v...) }
func (l *Logger) Debugf(f string, v ...interface{}) { l.debug.Printf(f, v...) }
func (l *Logger) Info(v ...interface{})             { l.info.Println(v...) }
func (l *Logger) Infof(f string, v ...interface{})  { l.info.Printf(f, v...) }
func (l *Logger) Warn(v ...interface{})             { l.warn.Println(v...) }
func (l *Logger) Warnf(f string, v ...interface{})  { l.warn.Printf(f, v...) }
func (l *Logger) Error(v ...interface{})            { l.error.Println(v...) }
func (l *Logger) Errorf(f string, v ...interface{}) { l.error.Printf(f, v...) }
