package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/storage"
)

const idSignBit = uint64(1) << 63

const documentColumns = `id, application_number, filing_date, entity_type, first_inventor_flag,
	inventors, inventors_json, correspondence_text, summary_text, source_fingerprint, quality_score`

// toRowID maps an id onto a signed integer preserving unsigned order.
func toRowID(id core.ID) int64 {
	return int64(uint64(id) ^ idSignBit)
}

func fromRowID(v int64) core.ID {
	return core.ID(uint64(v) ^ idSignBit)
}

// CreateTable creates an empty document table.
func (s *Store) CreateTable(ctx context.Context, name string) error {
	if err := checkDocumentTable(name); err != nil {
		return err
	}
	exists, err := s.tableExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking table %s: %w", name, err)
	}
	if exists {
		return fmt.Errorf("table %s: %w", name, storage.ErrAlreadyExists)
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE %[1]q (
			id                  INTEGER PRIMARY KEY,
			application_number  TEXT NOT NULL,
			filing_date         TEXT NOT NULL DEFAULT '',
			entity_type         TEXT NOT NULL DEFAULT '',
			first_inventor_flag TEXT NOT NULL DEFAULT '',
			inventors           TEXT NOT NULL DEFAULT '',
			inventors_json      TEXT NOT NULL DEFAULT '[]',
			correspondence_text TEXT NOT NULL DEFAULT '',
			summary_text        TEXT NOT NULL,
			source_fingerprint  TEXT NOT NULL UNIQUE,
			quality_score       INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX %[2]q ON %[1]q (application_number);
	`, name, name+"_application_number")

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating table %s: %w", name, err)
	}
	s.logger.Debug("created table", "table", name)
	return nil
}

// ReplaceTable replaces every row in the table with docs in one transaction.
func (s *Store) ReplaceTable(ctx context.Context, name string, docs []*core.Document) error {
	if err := checkDocumentTable(name); err != nil {
		return err
	}
	exists, err := s.tableExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking table %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("table %s: %w", name, storage.ErrNotFound)
	}

	ids := make(map[core.ID]struct{}, len(docs))
	fingerprints := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return err
		}
		if _, ok := ids[doc.Id]; ok {
			return fmt.Errorf("document %d: %w", doc.Id, storage.ErrDuplicateKey)
		}
		if _, ok := fingerprints[doc.Fingerprint]; ok {
			return fmt.Errorf("fingerprint %s: %w", doc.Fingerprint, storage.ErrDuplicateKey)
		}
		ids[doc.Id] = struct{}{}
		fingerprints[doc.Fingerprint] = struct{}{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q", name)); err != nil {
		return fmt.Errorf("clearing table %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %q (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", name, documentColumns))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		inventorsJSON, err := storage.MarshalInventors(doc.Attributes.Inventors)
		if err != nil {
			return err
		}
		a := doc.Attributes
		_, err = stmt.ExecContext(ctx,
			toRowID(doc.Id), a.ApplicationNumber, a.FilingDate, a.EntityType, a.FirstInventorFlag,
			a.InventorList(), inventorsJSON, a.CorrespondenceText,
			doc.DerivedText, doc.Fingerprint, doc.QualityScore)
		if err != nil {
			return fmt.Errorf("inserting document %d: %w", doc.Id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing table %s: %w", name, err)
	}
	s.logger.Debug("replaced table contents", "table", name, "rows", len(docs))
	return nil
}

// Select returns rows matching the predicate, ordered by ascending id.
// A non-nil, empty IDs selects nothing.
func (s *Store) Select(ctx context.Context, name string, pred storage.Predicate) ([]*core.Document, error) {
	if err := checkDocumentTable(name); err != nil {
		return nil, err
	}
	if pred.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", storage.ErrInvalidQuery)
	}
	exists, err := s.tableExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking table %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("table %s: %w", name, storage.ErrNotFound)
	}
	if pred.IDs != nil && len(pred.IDs) == 0 {
		return []*core.Document{}, nil
	}

	var (
		where []string
		args  []any
	)
	if len(pred.IDs) > 0 {
		placeholders := make([]string, len(pred.IDs))
		for i, id := range pred.IDs {
			placeholders[i] = "?"
			args = append(args, toRowID(id))
		}
		where = append(where, "id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if pred.ApplicationNumber != "" {
		where = append(where, "application_number = ?")
		args = append(args, pred.ApplicationNumber)
	}
	if text := core.NormalizeText(pred.SummaryContains); text != "" {
		where = append(where, `summary_text LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(text)+"%")
	}

	query := fmt.Sprintf("SELECT %s FROM %q", documentColumns, name)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if pred.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, pred.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying table %s: %w", name, err)
	}
	defer rows.Close()

	docs := []*core.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// IDs returns every id stored in the table, ascending.
func (s *Store) IDs(ctx context.Context, name string) ([]core.ID, error) {
	if err := checkDocumentTable(name); err != nil {
		return nil, err
	}
	exists, err := s.tableExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking table %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("table %s: %w", name, storage.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %q ORDER BY id", name))
	if err != nil {
		return nil, fmt.Errorf("querying table %s: %w", name, err)
	}
	defer rows.Close()

	ids := []core.ID{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		ids = append(ids, fromRowID(v))
	}
	return ids, rows.Err()
}

// DropTable removes a table. Dropping a missing table is not an error.
func (s *Store) DropTable(ctx context.Context, name string) error {
	if err := checkDocumentTable(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", name)); err != nil {
		return fmt.Errorf("dropping table %s: %w", name, err)
	}
	s.logger.Debug("dropped table", "table", name)
	return nil
}

// Tables lists the document tables by name.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if _, ok := reservedTables[name]; ok {
			continue
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func scanDocument(rows *sql.Rows) (*core.Document, error) {
	var (
		doc           core.Document
		rowID         int64
		inventorList  string
		inventorsJSON string
	)
	a := &doc.Attributes
	err := rows.Scan(&rowID, &a.ApplicationNumber, &a.FilingDate, &a.EntityType, &a.FirstInventorFlag,
		&inventorList, &inventorsJSON, &a.CorrespondenceText,
		&doc.DerivedText, &doc.Fingerprint, &doc.QualityScore)
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.Id = fromRowID(rowID)
	if a.Inventors, err = storage.UnmarshalInventors(inventorsJSON); err != nil {
		return nil, err
	}
	return &doc, nil
}

// escapeLike escapes LIKE wildcards so text matches literally.
func escapeLike(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(text)
}
