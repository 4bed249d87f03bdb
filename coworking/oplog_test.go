package coworking

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var opLine = regexp.MustCompile(`^\[[A-Z][a-z]{2} [A-Z][a-z]{2} [ \d]\d \d{2}:\d{2}:\d{2} \d{4}\] LOG: (.*)$`)

func TestOperationLogLineFormat(t *testing.T) {
	var buf bytes.Buffer
	db := NewDatabase(WithOperationLog(NewOperationLog(&buf)))
	if _, err := db.AddMember("Alice", "a@x.com"); err != nil {
		t.Fatalf("add: %v", err)
	}
	line := strings.TrimSuffix(buf.String(), "\n")
	m := opLine.FindStringSubmatch(line)
	if m == nil {
		t.Fatalf("line %q does not match", line)
	}
	if m[1] != "Added Member ID 1 (Alice)" {
		t.Fatalf("message = %q", m[1])
	}
}

func TestOpenOperationLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "system.log")
	for _, msg := range []string{"System Started", "System Shutdown"} {
		l, err := OpenOperationLog(path)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		l.LogOperation(msg)
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasSuffix(lines[0], "LOG: System Started") || !strings.HasSuffix(lines[1], "LOG: System Shutdown") {
		t.Fatalf("lines = %q", lines)
	}
}
