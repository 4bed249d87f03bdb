package coworking

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// OperationLogger receives one message per successful mutation.
type OperationLogger interface {
	LogOperation(msg string)
}

// NopOperationLog discards every message.
type NopOperationLog struct{}

func (NopOperationLog) LogOperation(string) {}

// ctimeLayout renders timestamps such as "Thu Oct 15 06:55:01 2026".
const ctimeLayout = "Mon Jan _2 15:04:05 2006"

// opLineFormatter renders "[<ctime>] LOG: <message>".
type opLineFormatter struct{}

func (opLineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s] LOG: %s\n", e.Time.Format(ctimeLayout), e.Message)
	return b.Bytes(), nil
}

// FileOperationLog appends operation lines to a text file. The underlying
// logrus logger serializes writers with its own mutex, independent of the
// entity locks.
type FileOperationLog struct {
	logger *logrus.Logger
	file   *os.File
}

// OpenOperationLog opens (or creates) path for appending.
func OpenOperationLog(path string) (*FileOperationLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open operation log: %w", err)
	}
	l := newOperationLogger(f)
	return &FileOperationLog{logger: l, file: f}, nil
}

// NewOperationLog writes operation lines to w. Used by tests and for stdout
// mirroring.
func NewOperationLog(w io.Writer) *FileOperationLog {
	return &FileOperationLog{logger: newOperationLogger(w)}
}

func newOperationLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(opLineFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// LogOperation writes msg synchronously, stamped with the current local time.
func (o *FileOperationLog) LogOperation(msg string) {
	o.logger.WithTime(time.Now()).Info(msg)
}

// Close releases the file, if any.
func (o *FileOperationLog) Close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}
