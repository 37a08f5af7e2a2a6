package utils

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

type LogLevel uint8

const (
	LevelInfo LogLevel = iota
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger tags every message with the rank that produced it. Several
// ranks may share one sink, writes are serialized by log.Logger.
type Logger struct {
	rank, size int
	l          *log.Logger
	closer     io.Closer
	mu         sync.Mutex
	quiet      bool
}

func NewLogger(rank, size int, sink io.Writer) *Logger {
	if sink == nil {
		sink = os.Stdout
	}
	return &Logger{
		rank: rank,
		size: size,
		l:    log.New(sink, fmt.Sprintf("[%d/%d] ", rank, size), log.LstdFlags),
	}
}

// NewFileLogger mirrors the output to a per rank file named <path>_<rank>.
func NewFileLogger(rank, size int, sink io.Writer, path string) (*Logger, error) {
	if path == "" {
		return NewLogger(rank, size, sink), nil
	}
	name := fmt.Sprintf("%s_%d", path, rank)
	file, err := os.Create(name)
	if err != nil {
		return nil, InvalidFileNameError(name, err)
	}
	if sink == nil {
		sink = os.Stdout
	}
	lg := NewLogger(rank, size, io.MultiWriter(sink, file))
	lg.closer = file
	return lg, nil
}

// Discard returns a logger that drops everything, used by tests.
func Discard(rank, size int) *Logger {
	lg := NewLogger(rank, size, io.Discard)
	lg.quiet = true
	return lg
}

func (lg *Logger) Rank() int { return lg.rank }
func (lg *Logger) Size() int { return lg.size }

func (lg *Logger) Close() error {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.closer == nil {
		return nil
	}
	err := lg.closer.Close()
	lg.closer = nil
	return err
}

func (lg *Logger) output(level LogLevel, depth int, msg string) {
	if lg.quiet {
		return
	}
	if level > LevelInfo {
		if _, file, line, ok := runtime.Caller(depth); ok {
			msg = fmt.Sprintf("%s:%d: %s", filepath.Base(file), line, msg)
		}
	}
	lg.l.Printf("%s %s", level, msg)
}

func (lg *Logger) Infof(format string, args ...any) {
	lg.output(LevelInfo, 0, fmt.Sprintf(format, args...))
}

// RootInfof only logs on rank 0.
func (lg *Logger) RootInfof(format string, args ...any) {
	if lg.rank != 0 {
		return
	}
	lg.output(LevelInfo, 0, fmt.Sprintf(format, args...))
}

func (lg *Logger) Warnf(format string, args ...any) {
	lg.output(LevelWarn, 2, fmt.Sprintf(format, args...))
}

// Error logs err with the location it was raised at, when known.
func (lg *Logger) Error(err error) {
	var e *Error
	if errors.As(err, &e) && e.File != "" {
		if !lg.quiet {
			lg.l.Printf("%s %s:%d: %v", LevelError, e.File, e.Line, err)
		}
		return
	}
	lg.output(LevelError, 2, err.Error())
}
