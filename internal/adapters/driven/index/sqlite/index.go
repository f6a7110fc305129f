package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-flow/internal/adapters/driven/index/sqlite/migrations"
	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driven"
)

// Ensure Connector and Client implement the interfaces.
var (
	_ driven.IndexConnector = Connector{}
	_ driven.IndexClient    = (*Client)(nil)
)

// DefaultFile is the database file name used when Connector.Path is a directory.
const DefaultFile = "index.db"

// Connector opens clients on a SQLite database file.
type Connector struct {
	// Path is the database file, or a directory holding DefaultFile.
	// Empty means ~/.sercha-flow/data/index.db.
	Path string
}

// NewConnector creates a connector for path.
func NewConnector(path string) Connector {
	return Connector{Path: path}
}

// Describe returns the connector description.
func (c Connector) Describe() string {
	return "sqlite:" + c.Path
}

// resolvePath returns the database file path, creating its directory.
func (c Connector) resolvePath() (string, error) {
	path := c.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".sercha-flow", "data")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultFile)
	} else if filepath.Ext(path) == "" {
		path = filepath.Join(path, DefaultFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return path, nil
}

// Connect opens a database handle and applies pending migrations.
func (c Connector) Connect(ctx context.Context) (driven.IndexClient, error) {
	return c.Open(ctx)
}

// Open is Connect returning the concrete client.
func (c Connector) Open(ctx context.Context) (*Client, error) {
	path, err := c.resolvePath()
	if err != nil {
		return nil, err
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection per client keeps the handle private to its task.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	client := &Client{db: db, path: path}
	if err := client.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return client, nil
}

// Client is one connection to the SQLite index.
type Client struct {
	db   *sql.DB
	path string
}

// Path returns the database file path.
func (c *Client) Path() string { return c.path }

// migrate runs all pending migrations.
func (c *Client) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := c.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := c.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// CollectionExists reports whether the collection exists.
func (c *Client) CollectionExists(ctx context.Context, collection string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE name = ?`, collection).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking collection: %w", err)
	}
	return n > 0, nil
}

// CreateCollection creates a collection with optional settings.
func (c *Client) CreateCollection(ctx context.Context, collection string, settings domain.CollectionSettings) error {
	if settings == nil {
		settings = domain.CollectionSettings{}
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO collections (name, settings, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, collection, string(settingsJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("collection %q: %w", collection, domain.ErrAlreadyExists)
	}
	return nil
}

// Settings returns the creation settings of a collection.
func (c *Client) Settings(ctx context.Context, collection string) (domain.CollectionSettings, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, `SELECT settings FROM collections WHERE name = ?`, collection).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning settings: %w", err)
	}
	var settings domain.CollectionSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}
	return settings, nil
}

// Upsert inserts or replaces a record. Non-finite floats are stored tagged
// and restored by Get. Payloads that cannot be encoded as JSON and records
// addressed to a missing collection are rejected.
func (c *Client) Upsert(ctx context.Context, action domain.WriteAction) error {
	payload, err := json.Marshal(encodeValue(action.Payload))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRecordRejected, err)
	}
	exists, err := c.CollectionExists(ctx, action.Collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: collection %q does not exist", domain.ErrRecordRejected, action.Collection)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO records (collection, id, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, action.Collection, action.ID, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving record: %w", err)
	}
	return nil
}

// Get returns the payload stored under id.
func (c *Client) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, `
		SELECT payload FROM records WHERE collection = ? AND id = ?
	`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}
	decodeValue(payload)
	return payload, nil
}

// Count returns the number of records in a collection.
func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	exists, err := c.CollectionExists(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, domain.ErrNotFound
	}
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Close closes the database handle.
func (c *Client) Close() error {
	return c.db.Close()
}
