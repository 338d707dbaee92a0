package plan

import (
	"strconv"
	"strings"
)

// ExtractGradeLevel maps a raw class label to its numeric grade level, or nil
// when no grade can be derived. The rules mirror the label conventions of the
// upstream plan:
//
//	"6/4"       -> 6      (grade before the slash, digits only)
//	"JG12/inf2" -> 12     (upper-school cohorts are prefixed "JG")
//	"10Klub"    -> nil    (club groups carry no grade)
//	"DAZ2"      -> nil    (language-support groups carry no grade)
//
// Both ingestion and reconciliation use this; the stored Klassenstufe column
// is always recomputed from the class label on load rather than trusted.
func ExtractGradeLevel(class string) *int {
	switch {
	case class == "":
		return nil
	case strings.Contains(class, "Klub"):
		return nil
	case strings.Contains(class, "DAZ"):
		return nil
	case strings.Contains(class, "JG"):
		head, _, _ := strings.Cut(class, "/")
		if !strings.HasPrefix(head, "JG") {
			return nil
		}
		n, err := strconv.Atoi(head[len("JG"):])
		if err != nil {
			return nil
		}
		return &n
	case strings.Contains(class, "/"):
		head, _, _ := strings.Cut(class, "/")
		n, err := strconv.Atoi(head)
		if err != nil || !allDigits(head) {
			return nil
		}
		return &n
	default:
		return nil
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
