/*
Package tabular is the adapter layer between typed domain records and the
spreadsheet-style table backend.

PURPOSE:
  The backing store is a shared spreadsheet service: worksheets of text
  cells with a header row, reachable only through read-all / append-rows /
  clear-and-rewrite operations. Everything round-trips as text. This
  package owns ALL type coercion on read and ALL stringification on write,
  so the "stringly-typed" surface stays confined to one place.

INTERFACES (this file):
  Sheet:    one worksheet (read all rows, append, clear+rewrite header)
  Workbook: a named collection of Sheets

IMPLEMENTATIONS:
  store/sqlite: local SQLite-backed workbook (production cache)
  store/memory: in-memory workbook (tests, dev)

CONSISTENCY MODEL:
  The store is an eventually-consistent append/overwrite target, not a
  database. Deduplication happens here by record ID; there is no merge or
  patch of rows, and the single-writer discipline is external scheduling,
  not locking.

SEE ALSO:
  - codec.go: per-column coercion and stringification rules
  - records.go: the schedule RecordStore
  - variance.go: quota configuration and variance tables
*/
package tabular

import (
	"context"
	"errors"
)

// ErrSheetMissing is returned when a worksheet does not exist yet (or was
// never initialized with a header row).
var ErrSheetMissing = errors.New("worksheet missing or uninitialized")

// Sheet is one worksheet of the backing spreadsheet service. All values are
// text; the first row is the header.
type Sheet interface {
	// ReadAllRows returns every data row keyed by header column name.
	// A sheet without a header row yields ErrSheetMissing.
	ReadAllRows(ctx context.Context) ([]map[string]string, error)

	// AppendRows appends data rows in header column order. The sheet must
	// already carry a header.
	AppendRows(ctx context.Context, rows [][]string) error

	// ClearAndWriteHeader wipes the sheet and writes a fresh header row,
	// creating the sheet if needed.
	ClearAndWriteHeader(ctx context.Context, columns []string) error
}

// Workbook hands out named sheets. Sheet never fails; a missing worksheet
// only surfaces when it is read.
type Workbook interface {
	Sheet(name string) Sheet
}
