// Package file implements store.Store on plain text files: an append-only
// users.txt, a fully rewritten groups.txt and one append-only log per room.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vovakirdan/roomchat-server/internal/store"
)

const (
	usersFile  = "users.txt"
	groupsFile = "groups.txt"
)

// FileStore implements store.Store in a directory.
// A single mutex serializes all file I/O so catalog rewrites and history
// appends never interleave.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ store.Store = (*FileStore)(nil)

// New creates a file store rooted at dir, creating the directory if needed.
func New(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the data directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Close is a no-op; files are opened per operation.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// HistoryFileName returns the log file name for a room.
func HistoryFileName(roomID int) string {
	switch roomID {
	case store.RoomGeneral:
		return "chat_general.txt"
	case store.RoomStudy:
		return "chat_study.txt"
	case store.RoomGaming:
		return "chat_gaming.txt"
	default:
		return fmt.Sprintf("chat_group_%d.txt", roomID)
	}
}
