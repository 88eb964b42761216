// Package artifacts writes diagnostic captures (screenshots and HTML
// dumps) for failed or unclassifiable page states. Files follow the
// pattern <carrier>-<context>-<taskId>.png|.html so a capture can be tied
// back to its task without opening it.
package artifacts

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quotelane/quotelane/pkg/logging"
)

// Dir is a diagnostic artifact directory.
type Dir struct {
	path   string
	logger *logging.Logger
}

// New creates the artifact directory if needed.
func New(path string, logger *logging.Logger) (*Dir, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "quotelane-artifacts")
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if logger == nil {
		logger, _ = logging.NewLogger("artifacts")
	}
	return &Dir{path: path, logger: logger}, nil
}

// Path returns the artifact directory path.
func (d *Dir) Path() string {
	return d.path
}

// SaveScreenshot writes a PNG capture. pngBase64 is the base64 payload the
// transports return. Failures are logged and returned, but callers on
// error paths are expected to ignore them: a failed diagnostic must never
// mask the error it was diagnosing.
func (d *Dir) SaveScreenshot(carrier, context, taskID, pngBase64 string) (string, error) {
	png, err := base64.StdEncoding.DecodeString(pngBase64)
	if err != nil {
		return "", fmt.Errorf("invalid screenshot payload: %w", err)
	}
	return d.write(carrier, context, taskID, "png", png)
}

// SaveHTML writes a page-source dump.
func (d *Dir) SaveHTML(carrier, context, taskID, html string) (string, error) {
	return d.write(carrier, context, taskID, "html", []byte(html))
}

func (d *Dir) write(carrier, context, taskID, ext string, data []byte) (string, error) {
	name := fmt.Sprintf("%s-%s-%s.%s",
		sanitize(carrier), sanitize(context), sanitize(taskID), ext)
	path := filepath.Join(d.path, name)

	if err := os.WriteFile(path, data, 0600); err != nil {
		d.logger.Warnf("failed to write artifact %s: %v", name, err)
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	d.logger.Infof("saved diagnostic artifact %s", name)
	return path, nil
}

// sanitize keeps filenames shell- and filesystem-safe.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
