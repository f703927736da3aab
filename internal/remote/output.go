package remote

import (
	"bytes"
	"sync"

	"github.com/sirupsen/logrus"
)

// lineLogger is an io.Writer that logs every complete line it receives
type lineLogger struct {
	mu    sync.Mutex
	entry *logrus.Entry
	level logrus.Level
	buf   bytes.Buffer
}

func newLineLogger(entry *logrus.Entry, level logrus.Level) *lineLogger {
	return &lineLogger{entry: entry, level: level}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Write(p)
	for {
		line, err := l.buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line, keep it for the next write
			l.buf.Write(line)
			break
		}
		l.emit(line)
	}
	return len(p), nil
}

// Flush logs any trailing partial line
func (l *lineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.buf.Len() > 0 {
		l.emit(l.buf.Bytes())
		l.buf.Reset()
	}
}

func (l *lineLogger) emit(line []byte) {
	text := string(bytes.TrimRight(line, "\r\n"))
	if text == "" {
		return
	}
	l.entry.Log(l.level, text)
}
