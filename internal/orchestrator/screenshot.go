package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ScreenshotStore persists and removes platform screenshot bytes, keyed by
// platform id. A filesystem implementation is the default; tests may supply
// an in-memory one.
type ScreenshotStore interface {
	Save(platformID int64, data []byte) (path string, err error)
	Delete(platformID int64) error
}

// screenshotHandle wraps one platform's screenshot write so that every exit
// path — diff failure, save failure, or a clean finish — can release it
// with a single deferred Close, the same "close on every path" shape the
// TLS probe uses for its raw connection on handshake failure. Close deletes
// the just-written file unless commit was called.
type screenshotHandle struct {
	store      ScreenshotStore
	platformID int64
	path       string
	committed  bool
}

func (h *screenshotHandle) commit() { h.committed = true }

func (h *screenshotHandle) Close() error {
	if h.committed || h.store == nil {
		return nil
	}
	return h.store.Delete(h.platformID)
}

// acquireScreenshot writes data and returns a handle the caller must defer
// Close on. A nil store or empty payload is a valid no-op.
func (o *Orchestrator) acquireScreenshot(platformID int64, data []byte) (*screenshotHandle, error) {
	if o.screenshots == nil || len(data) == 0 {
		return &screenshotHandle{}, nil
	}
	path, err := o.screenshots.Save(platformID, data)
	if err != nil {
		return nil, err
	}
	return &screenshotHandle{store: o.screenshots, platformID: platformID, path: path}, nil
}

// commitScreenshot keeps the handle's file and persists its path on the
// platform row.
func (o *Orchestrator) commitScreenshot(ctx context.Context, platformID int64, h *screenshotHandle) {
	if h == nil || h.store == nil {
		return
	}
	h.commit()
	if err := o.repo.UpdatePlatformScreenshot(ctx, platformID, h.path); err != nil {
		o.log.Warn("orchestrator: persisting screenshot path failed", "platform_id", platformID, "err", err)
	}
}

// discardScreenshot deletes any screenshot left over from a previous run
// when the current pipeline short-circuits before reaching a fresh
// capture, per the short-circuit matrix's "delete" column.
func (o *Orchestrator) discardScreenshot(platformID int64) {
	if o.screenshots == nil {
		return
	}
	if err := o.screenshots.Delete(platformID); err != nil {
		o.log.Warn("orchestrator: discarding screenshot failed", "platform_id", platformID, "err", err)
	}
}

// FileScreenshotStore persists screenshots under a directory, one file per
// platform id.
type FileScreenshotStore struct {
	Dir string
}

func (s FileScreenshotStore) pathFor(platformID int64) string {
	return filepath.Join(s.Dir, fmt.Sprintf("platform-%d.png", platformID))
}

func (s FileScreenshotStore) Save(platformID int64, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}
	path := s.pathFor(platformID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}
	return path, nil
}

func (s FileScreenshotStore) Delete(platformID int64) error {
	err := os.Remove(s.pathFor(platformID))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
