package requestlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nuclio/errors"
	"github.com/spf13/afero"
)

// TimestampFormat matches JavaScript's Date.toISOString, always UTC.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Logger appends timestamped lines to one file per run, named after the
// UTC date the logger was created. The file is opened for every write and
// is not created until the first entry.
type Logger struct {
	fs       afero.Fs
	dir      string
	path     string
	now      func() time.Time
	mu       sync.Mutex
	dirReady bool
}

func New(fs afero.Fs, dir string, now func() time.Time) *Logger {
	if now == nil {
		now = time.Now
	}
	return &Logger{
		fs:   fs,
		dir:  dir,
		path: filepath.Join(dir, FileName(now())),
		now:  now,
	}
}

// FileName returns the log file name for the UTC calendar day of t.
func FileName(t time.Time) string {
	return fmt.Sprintf("request-log-%s.txt", t.UTC().Format("2006-01-02"))
}

func (l *Logger) Path() string {
	return l.path
}

// Log appends "<timestamp> - <message>" as a single line.
func (l *Logger) Log(message string) error {
	entry := fmt.Sprintf("%s - %s\n", l.now().UTC().Format(TimestampFormat), message)

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.dirReady {
		if err := l.fs.MkdirAll(l.dir, 0755); err != nil {
			return errors.Wrapf(err, "Failed to create log directory %s", l.dir)
		}
		l.dirReady = true
	}

	f, err := l.fs.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "Failed to open request log %s", l.path)
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		return errors.Wrapf(err, "Failed to append to request log %s", l.path)
	}
	return nil
}
