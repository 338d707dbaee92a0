/*
Package quota expands compact per-school-year quota configurations into full
planned-hours tables.

PURPOSE:
  A school year is configured compactly: an inclusive ISO-week range, a
  semicolon-separated class list and a Soll table mapping grade level and
  subject to planned weekly hours. This package materializes that into one
  Record per (school year, ISO year, ISO week, class, subject) with nonzero
  planned hours — the baseline the reconciliation engine joins against.

WEEK RANGE EXPANSION:
  The range is walked by whole calendar weeks: starting from the Monday of
  the first week, the representative date advances by exactly 7 days and the
  ISO (year, week) pair is re-derived from the date at each step. School
  years cross the calendar-year boundary, and 52/53-week years make naive
  week-number arithmetic wrong; deriving from the date is always correct.

SEE ALSO:
  - reconcile/: consumes these records
  - tabular/: persistence of the expanded table
*/
package quota

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/schulwerk/vplan-engine/plan"
)

// maxWeeksPerYear bounds range expansion so a misconfigured range whose end
// precedes its start cannot loop forever.
const maxWeeksPerYear = 120

var (
	// ErrInvalidWeekRange is returned when the configured end week is not
	// reachable from the start week.
	ErrInvalidWeekRange = errors.New("invalid ISO week range")

	// ErrNoQuotaForYear is returned when no quota configuration exists for
	// the requested school year. This is a caller configuration error.
	ErrNoQuotaForYear = errors.New("no quota configuration for school year")
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// SchoolYearConfig is one row of the school-year configuration table.
type SchoolYearConfig struct {
	SchoolYear string // e.g. "2024-25"
	Start      plan.ISOWeek
	End        plan.ISOWeek // inclusive
	Classes    []string
}

// ParseClassList splits the semicolon-separated class list of the
// configuration table, dropping empty entries.
func ParseClassList(raw string) []string {
	var classes []string
	for _, part := range strings.Split(raw, ";") {
		if c := strings.TrimSpace(part); c != "" {
			classes = append(classes, c)
		}
	}
	return classes
}

// SollTable maps grade level to subject to planned weekly hours.
type SollTable map[int]map[string]decimal.Decimal

// Subjects returns the sorted union of subjects across all grades.
func (t SollTable) Subjects() []string {
	seen := make(map[string]bool)
	for _, row := range t {
		for subject := range row {
			seen[subject] = true
		}
	}
	subjects := make([]string, 0, len(seen))
	for s := range seen {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects
}

// =============================================================================
// QUOTA RECORD
// =============================================================================

// Record is one materialized planned-hours row. Records only exist for
// (grade, subject) pairs whose planned hours are nonzero.
type Record struct {
	ID           string
	SchoolYear   string
	Week         plan.ISOWeek
	Class        string
	Subject      string
	GradeLevel   int
	PlannedHours decimal.Decimal
}

// RecordIDFor computes the deterministic content hash identifying a quota
// row within its school-year table.
func RecordIDFor(schoolYear string, week plan.ISOWeek, class, subject string) string {
	return plan.ContentID(schoolYear, strconv.Itoa(week.Year), strconv.Itoa(week.Week), class, subject)
}

// =============================================================================
// TABLE BUILDING
// =============================================================================

// ExpandWeekRange returns every ISO (year, week) pair from start to end
// inclusive, walking Monday to Monday.
func ExpandWeekRange(start, end plan.ISOWeek) ([]plan.ISOWeek, error) {
	var weeks []plan.ISOWeek
	current := start.Monday()
	for i := 0; i < maxWeeksPerYear; i++ {
		week := plan.ISOWeekOf(current)
		weeks = append(weeks, week)
		if week == end {
			return weeks, nil
		}
		current = current.AddDate(0, 0, 7)
	}
	return nil, fmt.Errorf("%w: %v never reaches %v", ErrInvalidWeekRange, start, end)
}

// BuildTable expands a school-year configuration and its Soll table into the
// full quota record table. Classes without a derivable grade level and
// grades without a Soll row are skipped with a warning; both are
// configuration gaps, not fatal errors.
func BuildTable(cfg SchoolYearConfig, soll SollTable) ([]Record, error) {
	weeks, err := ExpandWeekRange(cfg.Start, cfg.End)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, week := range weeks {
		for _, class := range cfg.Classes {
			grade := plan.ExtractGradeLevel(class)
			if grade == nil {
				log.Printf("[Quota] no grade level derivable for class %q, skipping", class)
				continue
			}
			row, ok := soll[*grade]
			if !ok {
				log.Printf("[Quota] no Soll row for grade %d in school year %s, skipping class %q",
					*grade, cfg.SchoolYear, class)
				continue
			}
			for _, subject := range sortedSubjects(row) {
				hours := row[subject]
				if hours.IsZero() {
					continue
				}
				records = append(records, Record{
					ID:           RecordIDFor(cfg.SchoolYear, week, class, subject),
					SchoolYear:   cfg.SchoolYear,
					Week:         week,
					Class:        class,
					Subject:      subject,
					GradeLevel:   *grade,
					PlannedHours: hours,
				})
			}
		}
	}
	return records, nil
}

func sortedSubjects(row map[string]decimal.Decimal) []string {
	subjects := make([]string, 0, len(row))
	for s := range row {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects
}
