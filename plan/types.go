/*
Package plan contains the core substitution-plan domain model.

PURPOSE:
  This package defines the canonical record produced by feed ingestion and
  the pure functions that derive fields from raw feed text: grade-level
  extraction, class/period range expansion, cancellation parsing and the
  content-hash identity used for deduplication.

KEY CONCEPTS IN THIS FILE (types.go):
  - ScheduleRecord: One substitution-plan entry for one class, one period,
    one day. Immutable once created.
  - ISOWeek: An (ISO year, ISO week) pair per the ISO-8601 week calendar.
  - RecordID: Deterministic MD5 content hash over the record's fields.

DESIGN PRINCIPLES:
  1. Identity by content: two parses of the same feed entry always produce
     the same ID, which makes re-ingestion idempotent.
  2. Append-only history: a changed upstream entry yields a new ID; records
     are never edited in place.
  3. Derivation at the edge: every derived field (grade, cancellation flags,
     cancelled subject/teacher) is computed once, at parse time.

SEE ALSO:
  - grade.go: Grade-level extraction from class labels
  - parser.go: Feed document parsing and range expansion
  - filter.go: Conjunctive record selection for the dashboard
*/
package plan

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SCHEDULE RECORD - One plan entry per (class, period, day)
// =============================================================================

// ScheduleRecord is a normalized substitution-plan entry. Records are created
// by ParseDocument, persisted once, and never updated.
type ScheduleRecord struct {
	ID         string
	SourceFile string
	Date       time.Time // day precision, UTC midnight
	Class      string    // e.g. "6/4" or "JG12/inf2"
	Period     int       // 1-based
	Subject    string    // raw subject, "---" marks a cancellation
	Teacher    string
	Room       string
	Info       string

	// Derived fields.
	IsCancelled      bool   // Subject == "---"
	IsSelfStudy      bool   // Info contains "selbst." (case-insensitive)
	CancelledSubject string // only set when cancelled and Info names it
	CancelledTeacher string
	GradeLevel       *int // nil when no grade can be derived from Class
}

// RecordID computes the deterministic content hash used as the record's
// identity and sole deduplication key. The hash covers every raw field, so a
// record whose teacher or room changed upstream gets a fresh ID and persists
// alongside the old row.
func RecordID(date time.Time, class string, period int, subject, teacher, room, info string) string {
	return ContentID(date.Format("20060102"), class, strconv.Itoa(period), subject, teacher, room, info)
}

// ContentID is the shared identity scheme for all persisted tables: the hex
// MD5 digest of the underscore-joined field values. Stable across runs and
// platforms; identity, not security, is the point of the digest.
func ContentID(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "_")))
	return hex.EncodeToString(sum[:])
}

// =============================================================================
// ISO WEEK - (year, week) pair per ISO-8601
// =============================================================================

type ISOWeek struct {
	Year int
	Week int
}

// ISOWeekOf returns the ISO calendar week containing t.
func ISOWeekOf(t time.Time) ISOWeek {
	y, w := t.ISOWeek()
	return ISOWeek{Year: y, Week: w}
}

// Before reports whether w is strictly earlier than other, comparing
// (year, week) lexicographically.
func (w ISOWeek) Before(other ISOWeek) bool {
	if w.Year != other.Year {
		return w.Year < other.Year
	}
	return w.Week < other.Week
}

func (w ISOWeek) String() string {
	return fmt.Sprintf("%d-KW%d", w.Year, w.Week)
}

// Monday returns the Monday of the ISO week, at UTC midnight.
// Jan 4 is always inside ISO week 1 of its year, which anchors the math.
func (w ISOWeek) Monday() time.Time {
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 { // Sunday
		weekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, -(weekday - 1))
	return week1Monday.AddDate(0, 0, (w.Week-1)*7)
}

// =============================================================================
// HELPERS
// =============================================================================

// Grade wraps an int for use as a GradeLevel pointer in literals.
func Grade(n int) *int { return &n }

// Day builds a UTC midnight date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
