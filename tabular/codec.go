/*
codec.go - Column layout and per-field coercion rules

The stored (German) column names are the wire contract with the existing
spreadsheet data; renaming them would orphan every previously stored row.
Coercion is declared once per field here and nowhere else:

  dates     DD.MM.YYYY; an unparseable date drops the whole row on load
  booleans  "True"/"False" text; anything else coerces to false
  integers  invalid text coerces to absent (grade) or zero (period)
  subjects  blank, "nan" and "None" normalize to the empty string
*/
package tabular

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the stored date format.
const DateLayout = "02.01.2006"

// ScheduleColumns is the schedule table header, in wire order.
var ScheduleColumns = []string{
	"ID", "Datei", "Datum", "Klasse", "Stunde", "Fach", "Lehrer", "Raum",
	"Info", "Ausfall", "Selbststudium", "Ausfall-Fach", "Ausfall-Lehrer",
	"Klassenstufe",
}

// VarianceColumns is the quota/variance table header, in wire order.
var VarianceColumns = []string{
	"ID", "Schuljahr", "Jahr", "KW", "Klasse", "Fach", "Klassenstufe",
	"Soll", "Ist", "Delta", "Keine-Daten",
}

// =============================================================================
// COERCION (read side)
// =============================================================================

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseBool maps "true"/"false" text (any casing) to bool; everything else,
// including blanks, coerces to false.
func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// parseOptionalInt coerces numeric text to an int, invalid to nil.
func parseOptionalInt(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

func parseIntDefault(s string, def int) int {
	if n := parseOptionalInt(s); n != nil {
		return *n
	}
	return def
}

// parseHours coerces a stored hours cell to a decimal.
func parseHours(s string) (decimal.Decimal, bool) {
	// German sheets occasionally carry comma decimals.
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// normalizeText folds the placeholder spellings a spreadsheet round-trip
// produces for missing values into the empty string.
func normalizeText(s string) string {
	switch strings.TrimSpace(s) {
	case "", "nan", "None", "<NA>":
		return ""
	default:
		return s
	}
}

// =============================================================================
// STRINGIFICATION (write side)
// =============================================================================

func formatDate(t time.Time) string { return t.Format(DateLayout) }

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatOptionalInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
