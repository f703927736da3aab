// Package logging sets up the logrus logger shared by all commands: short
// LEVEL: message lines on the console and timestamped, tab-separated records
// in a rotating log file.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// DefaultFile is the log file written in the working directory
	DefaultFile = "output.log"
	// DefaultName is the logger name recorded when no component field is set
	DefaultName = "bindeploy"

	// ComponentField is the logrus field naming the subsystem that logged a record
	ComponentField = "component"

	timestampFormat = "2006-01-02 15:04:05.000"
)

// Options configures the logger
type Options struct {
	// File is the log file path. Empty disables file logging.
	File string
	// Verbose lowers the console level to debug
	Verbose bool
	// Console receives console output, os.Stdout when nil
	Console io.Writer
}

// New returns a logger writing to the console and, if configured, a rotating
// log file. The returned closer flushes and closes the log file.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.DebugLevel)

	consoleLevel := logrus.InfoLevel
	if opts.Verbose {
		consoleLevel = logrus.DebugLevel
	}
	log.AddHook(&writerHook{
		writer:    console,
		formatter: &ConsoleFormatter{},
		levels:    levelsUpTo(consoleLevel),
	})

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if info, err := os.Stat(opts.File); err == nil && info.IsDir() {
			return nil, nil, fmt.Errorf("log file %s is a directory", opts.File)
		}
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    20,
			MaxBackups: 3,
			MaxAge:     14,
		}
		log.AddHook(&writerHook{
			writer:    file,
			formatter: &FileFormatter{},
			levels:    logrus.AllLevels,
		})
		closer = file
	}

	return log, closer, nil
}

// ConsoleFormatter renders "LEVEL: message"
type ConsoleFormatter struct{}

// Format implements logrus.Formatter
func (f *ConsoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s: %s", strings.ToUpper(entry.Level.String()), entry.Message)
	if err, ok := entry.Data[logrus.ErrorKey]; ok {
		fmt.Fprintf(&b, ": %v", err)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// FileFormatter renders "timestamp\tname\tLEVEL\tmessage" followed by any
// remaining fields as key=value
type FileFormatter struct{}

// Format implements logrus.Formatter
func (f *FileFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	name := DefaultName
	if component, ok := entry.Data[ComponentField]; ok {
		name = fmt.Sprint(component)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s\t%s\t%s\t%s",
		entry.Time.Format(timestampFormat),
		name,
		strings.ToUpper(entry.Level.String()),
		entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != ComponentField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\t%s=%v", k, entry.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// writerHook formats and writes entries of the given levels to a writer
type writerHook struct {
	writer    io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

func (h *writerHook) Levels() []logrus.Level {
	return h.levels
}

func (h *writerHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(line)
	return err
}

func levelsUpTo(max logrus.Level) []logrus.Level {
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= max {
			levels = append(levels, l)
		}
	}
	return levels
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
