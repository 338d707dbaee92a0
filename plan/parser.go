/*
parser.go - Feed document parsing

PURPOSE:
  Turns one day's raw substitution-plan XML into canonical ScheduleRecords.
  The feed publishes one document per calendar day with the shape:

    <vp>
      <kopf>
        <datei>VplanKl20241125.xml</datei>
        <titel>Montag, 25. November 2024</titel>
      </kopf>
      <haupt>
        <aktion>
          <klasse>6/1-6/4</klasse>
          <stunde>3-4</stunde>
          <fach>---</fach>
          <lehrer>Schmidt</lehrer>
          <raum>204</raum>
          <info>fällt aus Mathe Schmidt</info>
        </aktion>
        ...
      </haupt>
    </vp>

  Class and period fields use a compact comma/dash range notation that is
  expanded here; every (class x period) combination becomes its own record.

FAILURE SEMANTICS:
  - Absent document (nil input): empty result, not an error.
  - Unparseable title date or missing header: the whole document fails
    (ParseError); the caller skips that day.
  - A class range whose two ends disagree on the base ("6/1-7/3"): only that
    fragment is skipped, with a warning log.

SEE ALSO:
  - types.go: ScheduleRecord and RecordID
  - feed/: the HTTP client that obtains the raw documents
*/
package plan

import (
	"encoding/xml"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

const cancelledMarker = "fällt aus"

// =============================================================================
// XML SHAPE
// =============================================================================

type feedDocument struct {
	Kopf  *feedHeader `xml:"kopf"`
	Haupt feedBody    `xml:"haupt"`
}

type feedHeader struct {
	Datei string `xml:"datei"`
	Titel string `xml:"titel"`
}

type feedBody struct {
	Aktionen []feedAction `xml:"aktion"`
}

type feedAction struct {
	Klasse string `xml:"klasse"`
	Stunde string `xml:"stunde"`
	Fach   string `xml:"fach"`
	Lehrer string `xml:"lehrer"`
	Raum   string `xml:"raum"`
	Info   string `xml:"info"`
}

// =============================================================================
// DOCUMENT PARSING
// =============================================================================

// ParseDocument parses one day's raw feed document into ScheduleRecords.
// A nil or empty document (no feed published for that date) yields an empty
// result and no error.
func ParseDocument(raw []byte) ([]ScheduleRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var doc feedDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("invalid XML: %w", err)}
	}
	if doc.Kopf == nil {
		return nil, &ParseError{Err: ErrMissingHeader}
	}

	date, err := ParseTitleDate(doc.Kopf.Titel)
	if err != nil {
		return nil, &ParseError{SourceFile: doc.Kopf.Datei, Err: err}
	}

	var records []ScheduleRecord
	for _, action := range doc.Haupt.Aktionen {
		records = append(records, expandAction(doc.Kopf.Datei, date, action)...)
	}
	return records, nil
}

// expandAction turns one <aktion> entry into the Cartesian product of its
// expanded class and period lists.
func expandAction(sourceFile string, date time.Time, a feedAction) []ScheduleRecord {
	classes := ExpandClasses(a.Klasse)
	periods := ExpandPeriods(a.Stunde)

	isCancelled := a.Fach == "---"
	isSelfStudy := strings.Contains(strings.ToLower(a.Info), "selbst.")
	cancelledSubject, cancelledTeacher := extractCancellation(isCancelled, a.Info)

	var records []ScheduleRecord
	for _, class := range classes {
		grade := ExtractGradeLevel(class)
		for _, period := range periods {
			records = append(records, ScheduleRecord{
				ID:               RecordID(date, class, period, a.Fach, a.Lehrer, a.Raum, a.Info),
				SourceFile:       sourceFile,
				Date:             date,
				Class:            class,
				Period:           period,
				Subject:          a.Fach,
				Teacher:          a.Lehrer,
				Room:             a.Raum,
				Info:             a.Info,
				IsCancelled:      isCancelled,
				IsSelfStudy:      isSelfStudy,
				CancelledSubject: cancelledSubject,
				CancelledTeacher: cancelledTeacher,
				GradeLevel:       grade,
			})
		}
	}
	return records
}

// extractCancellation pulls the cancelled subject and teacher out of the info
// text. Only cancelled entries whose info carries the marker phrase name
// them: the first word after the marker is the subject, everything else the
// teacher.
func extractCancellation(isCancelled bool, info string) (subject, teacher string) {
	if !isCancelled || !strings.Contains(info, cancelledMarker) {
		return "", ""
	}
	rest := strings.TrimSpace(strings.ReplaceAll(info, cancelledMarker, ""))
	words := strings.Fields(rest)
	switch {
	case len(words) >= 2:
		return words[0], strings.Join(words[1:], " ")
	case len(words) == 1:
		return words[0], ""
	default:
		return "", ""
	}
}

// =============================================================================
// TITLE DATE
// =============================================================================

// German month names as published in the feed title.
var germanMonths = map[string]time.Month{
	"Januar":    time.January,
	"Februar":   time.February,
	"März":      time.March,
	"April":     time.April,
	"Mai":       time.May,
	"Juni":      time.June,
	"Juli":      time.July,
	"August":    time.August,
	"September": time.September,
	"Oktober":   time.October,
	"November":  time.November,
	"Dezember":  time.December,
}

// ParseTitleDate extracts the calendar date from a document title such as
// "Montag, 25. November 2024". The weekday token before the comma is
// ignored; the rest must be a day, a German month name and a year.
func ParseTitleDate(title string) (time.Time, error) {
	_, datePart, found := strings.Cut(title, ",")
	if !found {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTitle, title)
	}

	fields := strings.Fields(strings.TrimSpace(datePart))
	if len(fields) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTitle, title)
	}

	day, err := strconv.Atoi(strings.TrimSuffix(fields[0], "."))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad day in %q", ErrMalformedTitle, title)
	}
	month, ok := germanMonths[fields[1]]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown month in %q", ErrMalformedTitle, title)
	}
	year, err := strconv.Atoi(fields[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad year in %q", ErrMalformedTitle, title)
	}

	return Day(year, month, day), nil
}

// =============================================================================
// RANGE EXPANSION
// =============================================================================

// ExpandClasses expands the compact class notation into individual labels.
// Input is a comma-separated list; each part is either a verbatim label or a
// dash range "6/1-6/4" whose two ends must share the base before the slash.
// A range with mismatched bases is skipped with a warning, not fatal.
func ExpandClasses(raw string) []string {
	raw = strings.ReplaceAll(raw, " ", "")
	var classes []string
	for _, part := range strings.Split(raw, ",") {
		if part == "" {
			continue
		}
		if !strings.Contains(part, "-") {
			classes = append(classes, part)
			continue
		}

		start, end, _ := strings.Cut(part, "-")
		startBase, startSection, okStart := strings.Cut(start, "/")
		endBase, endSection, okEnd := strings.Cut(end, "/")
		if !okStart || !okEnd {
			log.Printf("[Parser] unexpected class range format %q, skipping fragment", part)
			continue
		}
		if startBase != endBase {
			log.Printf("[Parser] mismatched bases in class range %q, skipping fragment", part)
			continue
		}

		from, err1 := strconv.Atoi(startSection)
		to, err2 := strconv.Atoi(endSection)
		if err1 != nil || err2 != nil {
			log.Printf("[Parser] non-numeric sections in class range %q, skipping fragment", part)
			continue
		}
		for section := from; section <= to; section++ {
			classes = append(classes, fmt.Sprintf("%s/%d", startBase, section))
		}
	}
	return classes
}

// ExpandPeriods expands the comma/dash period notation into integers.
// "1,3-5" yields [1 3 4 5]. Non-numeric fragments are skipped with a
// warning.
func ExpandPeriods(raw string) []int {
	raw = strings.ReplaceAll(raw, " ", "")
	var periods []int
	for _, part := range strings.Split(raw, ",") {
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			startStr, endStr, _ := strings.Cut(part, "-")
			start, err1 := strconv.Atoi(startStr)
			end, err2 := strconv.Atoi(endStr)
			if err1 != nil || err2 != nil {
				log.Printf("[Parser] non-numeric period range %q, skipping fragment", part)
				continue
			}
			for p := start; p <= end; p++ {
				periods = append(periods, p)
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			log.Printf("[Parser] non-numeric period %q, skipping fragment", part)
			continue
		}
		periods = append(periods, p)
	}
	return periods
}
