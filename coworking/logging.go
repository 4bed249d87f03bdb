package coworking

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the diagnostics logger. Every entry carries the session id
// so lines from one run can be grouped.
func NewLogger(level string, w io.Writer) (*logrus.Entry, string, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, "", err
	}
	if w == nil {
		w = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	session := uuid.NewString()
	return l.WithField("session", session), session, nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
