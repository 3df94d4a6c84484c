package widget

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"expensesync/internal/core"
)

// FileSlot stores the snapshot as JSON in a file both processes can reach.
// The write goes through a temp file and a rename, so the reader never
// observes a partial value.
type FileSlot struct {
	dir string
	key string
}

var _ Slot = (*FileSlot)(nil)

// NewFileSlot places the slot for userID under base/<Namespace>/.
func NewFileSlot(base, userID string) *FileSlot {
	return &FileSlot{
		dir: filepath.Join(base, Namespace),
		key: fmt.Sprintf("widget-%s.json", userID),
	}
}

func (s *FileSlot) path() string {
	return filepath.Join(s.dir, s.key)
}

func (s *FileSlot) Publish(_ context.Context, snap core.WidgetSnapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create slot directory: %w", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, s.key+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp slot file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp slot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp slot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish slot file: %w", err)
	}
	return nil
}

func (s *FileSlot) Load(_ context.Context) (core.WidgetSnapshot, bool, error) {
	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return core.EmptyWidgetSnapshot(), false, nil
	}
	if err != nil {
		return core.EmptyWidgetSnapshot(), false, fmt.Errorf("read slot file: %w", err)
	}
	var snap core.WidgetSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.EmptyWidgetSnapshot(), false, fmt.Errorf("decode slot file: %w", err)
	}
	return snap, true, nil
}
