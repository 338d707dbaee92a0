package tabular

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/schulwerk/vplan-engine/plan"
)

// RecordStore persists ScheduleRecords to one worksheet, incrementally and
// append-only. Rows are identified solely by their content hash; the store
// never edits a row in place. Two rows for the same class/period/day with
// different IDs are valid history, not corruption.
type RecordStore struct {
	sheet Sheet
}

func NewRecordStore(sheet Sheet) *RecordStore {
	return &RecordStore{sheet: sheet}
}

// LoadAll reads and coerces every stored record. A missing worksheet is an
// empty store. Rows with an unparseable date are dropped with a warning
// rather than propagated; the grade level is always recomputed from the
// class label instead of trusting the stored column.
func (s *RecordStore) LoadAll(ctx context.Context) ([]plan.ScheduleRecord, error) {
	rows, err := s.sheet.ReadAllRows(ctx)
	if errors.Is(err, ErrSheetMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule records: %w", err)
	}

	records := make([]plan.ScheduleRecord, 0, len(rows))
	for i, row := range rows {
		date, ok := parseDate(row["Datum"])
		if !ok {
			log.Printf("[Store] dropping schedule row %d: unparseable date %q", i+1, row["Datum"])
			continue
		}
		records = append(records, plan.ScheduleRecord{
			ID:               row["ID"],
			SourceFile:       row["Datei"],
			Date:             date,
			Class:            row["Klasse"],
			Period:           parseIntDefault(row["Stunde"], 0),
			Subject:          row["Fach"],
			Teacher:          row["Lehrer"],
			Room:             row["Raum"],
			Info:             row["Info"],
			IsCancelled:      parseBool(row["Ausfall"]),
			IsSelfStudy:      parseBool(row["Selbststudium"]),
			CancelledSubject: normalizeText(row["Ausfall-Fach"]),
			CancelledTeacher: normalizeText(row["Ausfall-Lehrer"]),
			GradeLevel:       plan.ExtractGradeLevel(row["Klasse"]),
		})
	}
	return records, nil
}

// AppendNew appends only records whose ID is not yet stored and returns the
// number appended. Re-appending the same batch after a successful append is
// a no-op, which makes multi-day re-ingestion idempotent. An empty store is
// initialized with the header row first.
func (s *RecordStore) AppendNew(ctx context.Context, records []plan.ScheduleRecord) (int, error) {
	existing, err := s.sheet.ReadAllRows(ctx)
	if errors.Is(err, ErrSheetMissing) {
		if err := s.sheet.ClearAndWriteHeader(ctx, ScheduleColumns); err != nil {
			return 0, fmt.Errorf("initialize schedule sheet: %w", err)
		}
		existing = nil
	} else if err != nil {
		return 0, fmt.Errorf("read existing schedule records: %w", err)
	}

	seen := make(map[string]bool, len(existing))
	for _, row := range existing {
		seen[row["ID"]] = true
	}

	var fresh [][]string
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true // also dedup within the batch
		fresh = append(fresh, EncodeScheduleRow(r))
	}

	if len(fresh) == 0 {
		return 0, nil
	}
	if err := s.sheet.AppendRows(ctx, fresh); err != nil {
		return 0, fmt.Errorf("append schedule records: %w", err)
	}
	return len(fresh), nil
}

// OverwriteAll clears the worksheet and rewrites header plus every record.
// Administrative rebuild flows only; the primary ingestion path never
// overwrites.
func (s *RecordStore) OverwriteAll(ctx context.Context, records []plan.ScheduleRecord) error {
	if err := s.sheet.ClearAndWriteHeader(ctx, ScheduleColumns); err != nil {
		return fmt.Errorf("clear schedule sheet: %w", err)
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, EncodeScheduleRow(r))
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.sheet.AppendRows(ctx, rows); err != nil {
		return fmt.Errorf("rewrite schedule records: %w", err)
	}
	return nil
}

// EncodeScheduleRow stringifies one record in wire column order. The CSV
// export reuses this so downloads match the stored table byte for byte.
func EncodeScheduleRow(r plan.ScheduleRecord) []string {
	return []string{
		r.ID,
		r.SourceFile,
		formatDate(r.Date),
		r.Class,
		strconv.Itoa(r.Period),
		r.Subject,
		r.Teacher,
		r.Room,
		r.Info,
		formatBool(r.IsCancelled),
		formatBool(r.IsSelfStudy),
		r.CancelledSubject,
		r.CancelledTeacher,
		formatOptionalInt(r.GradeLevel),
	}
}
