package tabular

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/schulwerk/vplan-engine/plan"
	"github.com/schulwerk/vplan-engine/quota"
)

// Worksheet naming scheme of the quota workbook. One configuration sheet,
// plus a Soll sheet and a variance sheet per school year.
const (
	configSheetName  = "schuljahr"
	sollSheetPrefix  = "soll-"
	quotaSheetPrefix = "vergleich-"
	sollGradeColumn  = "Klassenstufe"
)

// VarianceStore reads the compact quota configuration and persists the
// expanded quota/variance tables, one worksheet per school year.
type VarianceStore struct {
	wb Workbook
}

func NewVarianceStore(wb Workbook) *VarianceStore {
	return &VarianceStore{wb: wb}
}

// =============================================================================
// CONFIGURATION SHEETS
// =============================================================================

// SchoolYearConfigs reads the school-year configuration sheet. A missing
// sheet is a caller configuration error, not an empty result.
func (s *VarianceStore) SchoolYearConfigs(ctx context.Context) ([]quota.SchoolYearConfig, error) {
	rows, err := s.wb.Sheet(configSheetName).ReadAllRows(ctx)
	if errors.Is(err, ErrSheetMissing) {
		return nil, fmt.Errorf("%w: %q sheet not found", quota.ErrNoQuotaForYear, configSheetName)
	}
	if err != nil {
		return nil, fmt.Errorf("read school year configs: %w", err)
	}

	configs := make([]quota.SchoolYearConfig, 0, len(rows))
	for i, row := range rows {
		startYear := parseOptionalInt(row["Jahr-Start"])
		startWeek := parseOptionalInt(row["KW-Start"])
		endYear := parseOptionalInt(row["Jahr-Ende"])
		endWeek := parseOptionalInt(row["KW-Ende"])
		if row["Schuljahr"] == "" || startYear == nil || startWeek == nil || endYear == nil || endWeek == nil {
			log.Printf("[Store] dropping school year config row %d: incomplete", i+1)
			continue
		}
		configs = append(configs, quota.SchoolYearConfig{
			SchoolYear: row["Schuljahr"],
			Start:      plan.ISOWeek{Year: *startYear, Week: *startWeek},
			End:        plan.ISOWeek{Year: *endYear, Week: *endWeek},
			Classes:    quota.ParseClassList(row["Klassen"]),
		})
	}
	return configs, nil
}

// SollTable reads the planned-hours sheet for one school year. Every column
// except Klassenstufe is a subject; the cells are weekly hours per grade.
func (s *VarianceStore) SollTable(ctx context.Context, schoolYear string) (quota.SollTable, error) {
	name := sollSheetPrefix + schoolYear
	rows, err := s.wb.Sheet(name).ReadAllRows(ctx)
	if errors.Is(err, ErrSheetMissing) {
		return nil, fmt.Errorf("%w: %q sheet not found", quota.ErrNoQuotaForYear, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read Soll table %q: %w", name, err)
	}

	table := make(quota.SollTable)
	for i, row := range rows {
		grade := parseOptionalInt(row[sollGradeColumn])
		if grade == nil {
			log.Printf("[Store] dropping Soll row %d of %q: bad grade %q", i+1, name, row[sollGradeColumn])
			continue
		}
		subjects := make(map[string]decimal.Decimal)
		for column, cell := range row {
			if column == sollGradeColumn {
				continue
			}
			if hours, ok := parseHours(cell); ok {
				subjects[column] = hours
			}
		}
		table[*grade] = subjects
	}
	return table, nil
}

// =============================================================================
// QUOTA / VARIANCE SHEETS
// =============================================================================

// LoadQuota reads the expanded quota rows for one school year. Rows with
// unparseable numerics are dropped, not propagated. The stored Ist/Delta
// seeds are ignored here; reconciliation always recomputes them.
func (s *VarianceStore) LoadQuota(ctx context.Context, schoolYear string) ([]quota.Record, error) {
	name := quotaSheetPrefix + schoolYear
	rows, err := s.wb.Sheet(name).ReadAllRows(ctx)
	if errors.Is(err, ErrSheetMissing) {
		return nil, fmt.Errorf("%w: %q sheet not found", quota.ErrNoQuotaForYear, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read quota table %q: %w", name, err)
	}

	records := make([]quota.Record, 0, len(rows))
	for i, row := range rows {
		year := parseOptionalInt(row["Jahr"])
		week := parseOptionalInt(row["KW"])
		grade := parseOptionalInt(row["Klassenstufe"])
		soll, sollOK := parseHours(row["Soll"])
		if year == nil || week == nil || grade == nil || !sollOK {
			log.Printf("[Store] dropping quota row %d of %q: unparseable numerics", i+1, name)
			continue
		}
		records = append(records, quota.Record{
			ID:           row["ID"],
			SchoolYear:   row["Schuljahr"],
			Week:         plan.ISOWeek{Year: *year, Week: *week},
			Class:        row["Klasse"],
			Subject:      row["Fach"],
			GradeLevel:   *grade,
			PlannedHours: soll,
		})
	}
	return records, nil
}

// WriteQuota clears and rewrites the school year's quota sheet, seeding
// Ist=0, Delta=0 and Keine-Daten=True for every row. Reconciliation fills
// the real values on demand.
func (s *VarianceStore) WriteQuota(ctx context.Context, schoolYear string, records []quota.Record) error {
	sheet := s.wb.Sheet(quotaSheetPrefix + schoolYear)
	if err := sheet.ClearAndWriteHeader(ctx, VarianceColumns); err != nil {
		return fmt.Errorf("clear quota sheet for %s: %w", schoolYear, err)
	}
	rows := make([][]string, 0, len(records))
	for _, q := range records {
		rows = append(rows, []string{
			q.ID,
			q.SchoolYear,
			strconv.Itoa(q.Week.Year),
			strconv.Itoa(q.Week.Week),
			q.Class,
			q.Subject,
			strconv.Itoa(q.GradeLevel),
			q.PlannedHours.String(),
			"0",    // Ist seed
			"0",    // Delta seed
			"True", // Keine-Daten until reconciled
		})
	}
	if len(rows) == 0 {
		log.Printf("[Store] no quota rows for school year %s; is Soll zero everywhere?", schoolYear)
		return nil
	}
	if err := sheet.AppendRows(ctx, rows); err != nil {
		return fmt.Errorf("write quota rows for %s: %w", schoolYear, err)
	}
	return nil
}

// RebuildAll re-expands and rewrites the quota sheet of every configured
// school year. Returns the school years rebuilt.
func (s *VarianceStore) RebuildAll(ctx context.Context) ([]string, error) {
	configs, err := s.SchoolYearConfigs(ctx)
	if err != nil {
		return nil, err
	}

	var rebuilt []string
	for _, cfg := range configs {
		soll, err := s.SollTable(ctx, cfg.SchoolYear)
		if err != nil {
			return rebuilt, err
		}
		records, err := quota.BuildTable(cfg, soll)
		if err != nil {
			return rebuilt, fmt.Errorf("expand quota for %s: %w", cfg.SchoolYear, err)
		}
		if err := s.WriteQuota(ctx, cfg.SchoolYear, records); err != nil {
			return rebuilt, err
		}
		rebuilt = append(rebuilt, cfg.SchoolYear)
	}
	return rebuilt, nil
}
