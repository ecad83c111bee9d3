package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vovakirdan/roomchat-server/internal/store"
)

// CreateAccount appends "username credential" to users.txt unless the
// username is already present.
func (s *FileStore) CreateAccount(_ context.Context, username, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(usersFile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open users: %w", err)
	}
	defer f.Close()

	if _, err := scanAccounts(f, username); err == nil {
		return store.ErrDuplicateName
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if _, err := fmt.Fprintf(f, "%s %s\n", username, credential); err != nil {
		return fmt.Errorf("append user: %w", err)
	}
	return nil
}

// GetAccount scans users.txt for username.
func (s *FileStore) GetAccount(_ context.Context, username string) (*store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path(usersFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("open users: %w", err)
	}
	defer f.Close()

	return scanAccounts(f, username)
}

// scanAccounts returns the first record for username.
func scanAccounts(r io.Reader, username string) (*store.Account, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[0] == username {
			return &store.Account{Username: fields[0], Credential: fields[1]}, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return nil, store.ErrNotFound
}
