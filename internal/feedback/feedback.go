// Package feedback appends user feedback to a plain-text log.
package feedback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// Log appends one line per entry: "<utc timestamp> - <actor> - <text>".
type Log struct {
	path string

	mu  sync.Mutex
	now func() time.Time
}

func New(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Append writes a single entry. Newlines in text are folded to spaces so
// every entry stays on one line.
func (l *Log) Append(actor, text string) error {
	text = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
	line := fmt.Sprintf("%s - %s - %s\n", l.now().UTC().Format(timeLayout), actor, text)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("feedback dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open feedback log: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append feedback: %w", err)
	}
	return f.Close()
}
