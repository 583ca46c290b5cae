// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/poiesic/patentindex/storage"
	"github.com/poiesic/patentindex/storage/sqlite/migrations"
)

// DatabaseFile is the file name of the database inside the data directory.
const DatabaseFile = "documents.db"

// reservedTables are managed by migrations and never listed as document tables.
var reservedTables = map[string]struct{}{
	"schema_migrations": {},
	"build_runs":        {},
}

// Store is a SQLite-backed document and run log store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var (
	_ storage.StructuredStore = (*Store)(nil)
	_ storage.RunLog          = (*Store)(nil)
)

// NewStore creates a new SQLite store in the specified data directory.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// WAL lets searches read while a build stages the next table
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:     db,
		path:   dbPath,
		logger: slog.Default().With("component", "sqlite"),
	}

	if err := s.migrate(context.Background(), migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// tableExists reports whether a table with the given name exists.
func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// checkDocumentTable validates a document table name.
func checkDocumentTable(name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	if _, ok := reservedTables[name]; ok {
		return fmt.Errorf("%w: %q is reserved", storage.ErrInvalidName, name)
	}
	return nil
}
