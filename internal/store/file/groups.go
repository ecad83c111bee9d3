package file

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vovakirdan/roomchat-server/internal/store"
)

// LoadGroups parses groups.txt. A missing file is an empty catalog.
func (s *FileStore) LoadGroups(_ context.Context) ([]store.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(groupsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read groups: %w", err)
	}

	var groups []store.Group
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		g, err := parseGroupRecord(line)
		if err != nil {
			return nil, fmt.Errorf("groups.txt line %d: %w", lineNo, err)
		}
		groups = append(groups, g)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan groups: %w", err)
	}
	return groups, nil
}

// SaveGroups rewrites groups.txt with one record per group.
// The file is replaced atomically via a temp file and rename.
func (s *FileStore) SaveGroups(_ context.Context, groups []store.Group) error {
	var buf bytes.Buffer
	for _, g := range groups {
		line, err := formatGroupRecord(g)
		if err != nil {
			return err
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path(groupsFile + ".tmp")
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write groups: %w", err)
	}
	if err := os.Rename(tmp, s.path(groupsFile)); err != nil {
		return fmt.Errorf("replace groups: %w", err)
	}
	return nil
}

// formatGroupRecord renders id|name|admins|members|banned.
func formatGroupRecord(g store.Group) (string, error) {
	if err := g.Validate(); err != nil {
		return "", err
	}
	return strings.Join([]string{
		strconv.Itoa(g.ID),
		g.Name,
		g.Admins.CSV(),
		g.Members.CSV(),
		g.Banned.CSV(),
	}, "|"), nil
}

func parseGroupRecord(line string) (store.Group, error) {
	fields := strings.Split(line, "|")
	if len(fields) != 5 {
		return store.Group{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return store.Group{}, fmt.Errorf("parse id: %w", err)
	}
	if fields[1] == "" {
		return store.Group{}, errors.New("empty group name")
	}
	return store.Group{
		ID:      id,
		Name:    fields[1],
		Admins:  store.ParseNameSet(fields[2]),
		Members: store.ParseNameSet(fields[3]),
		Banned:  store.ParseNameSet(fields[4]),
	}, nil
}
