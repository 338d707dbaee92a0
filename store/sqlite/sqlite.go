/*
Package sqlite provides a SQLite-backed Workbook implementation.

PURPOSE:
  Implements the tabular.Workbook / tabular.Sheet contract on a local
  SQLite file, serving as the durable cache of the shared spreadsheet
  tables. The hosted spreadsheet service speaks the same contract, so the
  two are interchangeable behind the interface.

STORAGE MODEL:
  One generic table holds every worksheet:

    worksheet_rows(sheet TEXT, position INTEGER, cells_json TEXT)

  Position 0 is the header row; data rows follow in append order. Cells
  are stored as a JSON array of strings — the backend is text-only by
  contract, so no typed columns are needed here.

APPEND/OVERWRITE SEMANTICS:
  Sheets are only ever appended to or wiped wholesale
  (ClearAndWriteHeader). There are no row-level UPDATE or DELETE paths,
  matching the append-only discipline of the record store above it.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The wider system schedules at most
  one ingestion writer per process; the lock only protects a dashboard
  read racing an in-flight append.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  wb, err := sqlite.New("./data/vplan.db")
  if err != nil {
      log.Fatal(err)
  }
  defer wb.Close()

  records := tabular.NewRecordStore(wb.Sheet("vertretungsplan"))

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - tabular/table.go: Interface definitions
  - store/memory: In-memory twin used by tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/schulwerk/vplan-engine/tabular"
)

// =============================================================================
// WORKBOOK
// =============================================================================

// Workbook implements tabular.Workbook on SQLite.
type Workbook struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the workbook database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Workbook, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	wb := &Workbook{db: db}
	if err := wb.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return wb, nil
}

// Close closes the database connection.
func (w *Workbook) Close() error {
	return w.db.Close()
}

func (w *Workbook) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS worksheet_rows (
		sheet TEXT NOT NULL,
		position INTEGER NOT NULL,
		cells_json TEXT NOT NULL,
		PRIMARY KEY (sheet, position)
	);
	`
	_, err := w.db.Exec(schema)
	return err
}

// Sheet returns a handle to the named worksheet. The sheet need not
// exist yet; reads and appends on an uninitialized sheet return
// tabular.ErrSheetMissing.
func (w *Workbook) Sheet(name string) tabular.Sheet {
	return &sheet{wb: w, name: name}
}

// =============================================================================
// SHEET
// =============================================================================

type sheet struct {
	wb   *Workbook
	name string
}

func (s *sheet) ReadAllRows(ctx context.Context) ([]map[string]string, error) {
	s.wb.mu.RLock()
	defer s.wb.mu.RUnlock()

	rows, err := s.wb.db.QueryContext(ctx,
		"SELECT cells_json FROM worksheet_rows WHERE sheet = ? ORDER BY position ASC",
		s.name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query worksheet %q: %w", s.name, err)
	}
	defer rows.Close()

	var header []string
	var out []map[string]string
	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan worksheet row: %w", err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
			return nil, fmt.Errorf("corrupt row in worksheet %q: %w", s.name, err)
		}

		// Position 0 is the header.
		if header == nil {
			header = cells
			continue
		}

		m := make(map[string]string, len(header))
		for i, column := range header {
			if i < len(cells) {
				m[column] = cells[i]
			} else {
				m[column] = ""
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if header == nil {
		return nil, tabular.ErrSheetMissing
	}
	return out, nil
}

func (s *sheet) AppendRows(ctx context.Context, dataRows [][]string) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	var maxPos sql.NullInt64
	err := s.wb.db.QueryRowContext(ctx,
		"SELECT MAX(position) FROM worksheet_rows WHERE sheet = ?", s.name,
	).Scan(&maxPos)
	if err != nil {
		return fmt.Errorf("failed to find end of worksheet %q: %w", s.name, err)
	}
	if !maxPos.Valid {
		return tabular.ErrSheetMissing
	}

	tx, err := s.wb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	position := maxPos.Int64
	for _, row := range dataRows {
		position++
		cellsJSON, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to encode row: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO worksheet_rows (sheet, position, cells_json) VALUES (?, ?, ?)",
			s.name, position, string(cellsJSON),
		); err != nil {
			return fmt.Errorf("failed to append to worksheet %q: %w", s.name, err)
		}
	}
	return tx.Commit()
}

func (s *sheet) ClearAndWriteHeader(ctx context.Context, columns []string) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	tx, err := s.wb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM worksheet_rows WHERE sheet = ?", s.name,
	); err != nil {
		return fmt.Errorf("failed to clear worksheet %q: %w", s.name, err)
	}

	cellsJSON, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO worksheet_rows (sheet, position, cells_json) VALUES (?, 0, ?)",
		s.name, string(cellsJSON),
	); err != nil {
		return fmt.Errorf("failed to write header for worksheet %q: %w", s.name, err)
	}
	return tx.Commit()
}
