package spec

import (
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// Progress actions
const (
	ActionInit  = "INIT"
	ActionStart = "START"
	ActionDone  = "DONE"
	ActionReset = "RESET"
	ActionClose = "CLOSE"
)

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readFile(path string) ([]byte, error) {
	content, err := lockedfile.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return content, nil
}

func splitLines(data []byte) []string {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// logProgress appends "HH:MM ACTION target" to PROGRESS.md, keeping only
// the newest progressLimit lines.
func (s *Store) logProgress(action, target string) error {
	entry := s.now().Local().Format("15:04") + " " + action + " " + target

	err := lockedfile.Transform(s.path(ProgressFile), func(data []byte) ([]byte, error) {
		lines := append(splitLines(data), entry)
		if len(lines) > s.progressLimit {
			lines = lines[len(lines)-s.progressLimit:]
		}

		var buf bytes.Buffer
		buf.WriteString(strings.Join(lines, "\n"))
		buf.WriteString("\n")
		return buf.Bytes(), nil
	})
	return errors.Wrap(err, "failed to update progress log")
}

// Progress returns the logged lines, oldest first.
func (s *Store) Progress() ([]string, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	path := s.path(ProgressFile)
	if !fileExists(path) {
		return nil, nil
	}
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return splitLines(data), nil
}
