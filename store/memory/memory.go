// Package memory provides an in-memory Workbook implementation for tests
// and development.
package memory

import (
	"context"
	"sync"

	"github.com/schulwerk/vplan-engine/tabular"
)

// Workbook is an in-memory collection of worksheets. Safe for concurrent
// use; all sheets share one lock, mirroring the single shared spreadsheet
// the production backend is.
type Workbook struct {
	mu     sync.RWMutex
	sheets map[string]*worksheet
}

type worksheet struct {
	header []string
	rows   [][]string
}

func New() *Workbook {
	return &Workbook{sheets: make(map[string]*worksheet)}
}

// Sheet returns a handle to the named worksheet. The worksheet itself only
// comes into existence on ClearAndWriteHeader.
func (w *Workbook) Sheet(name string) tabular.Sheet {
	return &sheetHandle{wb: w, name: name}
}

type sheetHandle struct {
	wb   *Workbook
	name string
}

func (s *sheetHandle) ReadAllRows(_ context.Context) ([]map[string]string, error) {
	s.wb.mu.RLock()
	defer s.wb.mu.RUnlock()

	ws, ok := s.wb.sheets[s.name]
	if !ok || len(ws.header) == 0 {
		return nil, tabular.ErrSheetMissing
	}

	out := make([]map[string]string, 0, len(ws.rows))
	for _, row := range ws.rows {
		m := make(map[string]string, len(ws.header))
		for i, column := range ws.header {
			if i < len(row) {
				m[column] = row[i]
			} else {
				m[column] = ""
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *sheetHandle) AppendRows(_ context.Context, rows [][]string) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	ws, ok := s.wb.sheets[s.name]
	if !ok || len(ws.header) == 0 {
		return tabular.ErrSheetMissing
	}
	for _, row := range rows {
		copied := make([]string, len(row))
		copy(copied, row)
		ws.rows = append(ws.rows, copied)
	}
	return nil
}

func (s *sheetHandle) ClearAndWriteHeader(_ context.Context, columns []string) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	header := make([]string, len(columns))
	copy(header, columns)
	s.wb.sheets[s.name] = &worksheet{header: header}
	return nil
}
