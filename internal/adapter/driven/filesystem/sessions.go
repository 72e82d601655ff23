// Package filesystem reads session credentials and the proxy list from disk.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
)

// sessionExt is the suffix of credential files in the sessions directory.
const sessionExt = ".session"

// Compile-time interface satisfaction check.
var _ driven.SessionSource = (*SessionDir)(nil)

// SessionDir lists "*.session" files in a directory. Each file holds one
// Telethon string session.
type SessionDir struct {
	dir string
}

// NewSessionDir creates a SessionDir rooted at dir.
func NewSessionDir(dir string) *SessionDir {
	return &SessionDir{dir: dir}
}

// ListSessions returns the sessions sorted by file name. Empty files and
// entries without the .session suffix are skipped.
func (d *SessionDir) ListSessions(ctx context.Context) ([]model.Session, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read sessions directory %s: %w", d.dir, err)
	}

	var sessions []model.Session
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sessionExt) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(d.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read session %s: %w", entry.Name(), err)
		}

		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}

		sessions = append(sessions, model.Session{Name: entry.Name(), Data: content})
	}

	return sessions, nil
}
