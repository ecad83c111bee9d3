package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when an account, group or room does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName is returned when a unique name is already taken.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrCapacityExceeded is returned when a bounded table is full.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrBanned is returned when a banned user tries to join a group.
	ErrBanned = errors.New("banned")
	// ErrInvalidName is returned when a name holds a record or list separator.
	ErrInvalidName = errors.New("invalid name")
)

// nameSeparators may never appear in a persisted group or user name.
const nameSeparators = " \t\r\n|,"

// ValidName reports whether name can be stored in a group record.
func ValidName(name string) bool {
	return name != "" && !strings.ContainsAny(name, nameSeparators)
}

// Fixed channel ids. Custom groups start at FirstGroupID.
const (
	RoomGeneral  = 1
	RoomStudy    = 2
	RoomGaming   = 3
	FirstGroupID = 100
)

// Account is a registered user credential.
type Account struct {
	Username   string
	Credential string // plaintext or password hash, depending on the hasher
}

// Group is a custom, persisted room.
type Group struct {
	ID      int
	Name    string
	Admins  NameSet
	Members NameSet
	Banned  NameSet
}

// Clone returns a deep copy of the group.
func (g Group) Clone() Group {
	return Group{
		ID:      g.ID,
		Name:    g.Name,
		Admins:  g.Admins.Clone(),
		Members: g.Members.Clone(),
		Banned:  g.Banned.Clone(),
	}
}

// Validate checks the group name and every set member with ValidName.
func (g Group) Validate() error {
	if !ValidName(g.Name) {
		return fmt.Errorf("group %d name %q: %w", g.ID, g.Name, ErrInvalidName)
	}
	for _, set := range []NameSet{g.Admins, g.Members, g.Banned} {
		for _, n := range set.order {
			if !ValidName(n) {
				return fmt.Errorf("group %d user %q: %w", g.ID, n, ErrInvalidName)
			}
		}
	}
	return nil
}

// AccountStore handles credential persistence.
type AccountStore interface {
	// CreateAccount appends a new account. Returns ErrDuplicateName if the username exists.
	CreateAccount(ctx context.Context, username, credential string) error

	// GetAccount retrieves an account by exact username. Returns ErrNotFound if absent.
	GetAccount(ctx context.Context, username string) (*Account, error)
}

// GroupStore persists the whole group catalog.
type GroupStore interface {
	// LoadGroups returns the persisted catalog in stored order.
	LoadGroups(ctx context.Context) ([]Group, error)

	// SaveGroups replaces the persisted catalog with groups.
	SaveGroups(ctx context.Context, groups []Group) error
}

// HistoryStore handles per-room chat logs.
type HistoryStore interface {
	// AppendHistory appends one line to the room's log.
	AppendHistory(ctx context.Context, roomID int, line string) error

	// History returns every line previously appended to the room, oldest first.
	History(ctx context.Context, roomID int) ([]string, error)

	// PurgeHistory drops the room's log.
	PurgeHistory(ctx context.Context, roomID int) error
}

// Store aggregates all storage interfaces.
type Store interface {
	AccountStore
	GroupStore
	HistoryStore

	// Close releases underlying resources.
	Close() error
}
