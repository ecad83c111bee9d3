package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/roomchat-server/internal/store"
)

// Schema creates every table the store needs. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	username   TEXT PRIMARY KEY,
	credential TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chat_groups (
	position INTEGER NOT NULL,
	id       INTEGER PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE,
	admins   TEXT NOT NULL DEFAULT '',
	members  TEXT NOT NULL DEFAULT '',
	banned   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS history (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id INTEGER NOT NULL,
	line    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_room ON history(room_id, id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup opens the database and runs setup before the first ping.
// Useful for tests that need a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== AccountStore implementation ====

// CreateAccount inserts a new account row.
func (s *SQLiteStore) CreateAccount(ctx context.Context, username, credential string) error {
	query := `
		INSERT INTO accounts (username, credential)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, username, credential); err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateName
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by exact username.
func (s *SQLiteStore) GetAccount(ctx context.Context, username string) (*store.Account, error) {
	query := `
		SELECT username, credential
		FROM accounts
		WHERE username = ?
	`
	var acc store.Account
	err := s.db.QueryRowContext(ctx, query, username).Scan(&acc.Username, &acc.Credential)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return &acc, nil
}

// ==== GroupStore implementation ====

// LoadGroups returns all groups in catalog order.
func (s *SQLiteStore) LoadGroups(ctx context.Context) ([]store.Group, error) {
	query := `
		SELECT id, name, admins, members, banned
		FROM chat_groups
		ORDER BY position ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var groups []store.Group
	for rows.Next() {
		var (
			g                       store.Group
			admins, members, banned string
		)
		if err := rows.Scan(&g.ID, &g.Name, &admins, &members, &banned); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.Admins = store.ParseNameSet(admins)
		g.Members = store.ParseNameSet(members)
		g.Banned = store.ParseNameSet(banned)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

// SaveGroups replaces the catalog inside one transaction.
func (s *SQLiteStore) SaveGroups(ctx context.Context, groups []store.Group) error {
	for _, g := range groups {
		if err := g.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_groups`); err != nil {
		return fmt.Errorf("clear groups: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chat_groups (position, id, name, admins, members, banned)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert group: %w", err)
	}
	defer stmt.Close()

	for i, g := range groups {
		if _, err := stmt.ExecContext(ctx, i, g.ID, g.Name, g.Admins.CSV(), g.Members.CSV(), g.Banned.CSV()); err != nil {
			return fmt.Errorf("insert group %d: %w", g.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit groups: %w", err)
	}
	return nil
}

// ==== HistoryStore implementation ====

// AppendHistory inserts a history line for the room.
func (s *SQLiteStore) AppendHistory(ctx context.Context, roomID int, line string) error {
	query := `
		INSERT INTO history (room_id, line)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, line); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// History returns the room's lines oldest first.
func (s *SQLiteStore) History(ctx context.Context, roomID int) ([]string, error) {
	query := `
		SELECT line
		FROM history
		WHERE room_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return lines, nil
}

// PurgeHistory deletes every line of the room.
func (s *SQLiteStore) PurgeHistory(ctx context.Context, roomID int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
