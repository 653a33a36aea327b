// Package artifacts persists run diagnostics to the local filesystem.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sglre6355/ferry-watch/internal/domain"
	"github.com/sglre6355/ferry-watch/internal/usecase"
)

const timestampLayout = "20060102_150405"

// FileStore writes diagnostics under a single directory.
type FileStore struct {
	dir   string
	nowFn func() time.Time
}

var _ usecase.ArtifactStore = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir. The directory is created on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, nowFn: time.Now}
}

// SaveDiagnostic writes <ts>_<runid>_screenshot.png, _page.txt and _page.html. Empty
// parts are skipped. Paths written before a failure are still returned.
func (s *FileStore) SaveDiagnostic(ctx context.Context, runID string, diag domain.Diagnostic) ([]string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory %s: %w", s.dir, err)
	}

	captured := diag.CapturedAt
	if captured.IsZero() {
		captured = s.nowFn()
	}
	prefix := fmt.Sprintf("%s_%s", captured.Format(timestampLayout), runID)

	files := []struct {
		suffix string
		data   []byte
	}{
		{suffix: "screenshot.png", data: diag.Screenshot},
		{suffix: "page.txt", data: pageText(diag)},
		{suffix: "page.html", data: []byte(diag.HTML)},
	}

	var paths []string
	for _, f := range files {
		if len(f.data) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return paths, err
		}

		path := filepath.Join(s.dir, prefix+"_"+f.suffix)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func pageText(diag domain.Diagnostic) []byte {
	if diag.PageText == "" && diag.URL == "" && diag.Title == "" {
		return nil
	}
	return fmt.Appendf(nil, "URL: %s\nTitle: %s\nCaptured: %s\n\n%s\n",
		diag.URL, diag.Title, diag.CapturedAt.UTC().Format(time.RFC3339), diag.PageText)
}
