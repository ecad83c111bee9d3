package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// AppendHistory appends line to the room's log.
func (s *FileStore) AppendHistory(_ context.Context, roomID int, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(HistoryFileName(roomID)), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append history: %w", err)
	}
	return f.Close()
}

// History reads the room's log from the beginning.
func (s *FileStore) History(_ context.Context, roomID int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path(HistoryFileName(roomID)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return lines, nil
}

// PurgeHistory removes the room's log file.
func (s *FileStore) PurgeHistory(_ context.Context, roomID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(HistoryFileName(roomID))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove history: %w", err)
	}
	return nil
}
