package plan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schulwerk/vplan-engine/plan"
)

func rec(date time.Time, class string, cancelled, selfStudy bool, cancelledSubject string) plan.ScheduleRecord {
	return plan.ScheduleRecord{
		ID:               plan.RecordID(date, class, 1, "Fach", "L", "R", ""),
		Date:             date,
		Class:            class,
		Period:           1,
		IsCancelled:      cancelled,
		IsSelfStudy:      selfStudy,
		CancelledSubject: cancelledSubject,
		GradeLevel:       plan.ExtractGradeLevel(class),
	}
}

func TestFilter_ZeroValueMatchesEverything(t *testing.T) {
	records := []plan.ScheduleRecord{
		rec(plan.Day(2024, 11, 25), "6/1", true, false, "Mathe"),
		rec(plan.Day(2024, 11, 26), "7/2", false, true, ""),
	}
	got := plan.Filter{}.Apply(records)
	assert.Len(t, got, 2)
}

func TestFilter_Conjunction(t *testing.T) {
	records := []plan.ScheduleRecord{
		rec(plan.Day(2024, 11, 25), "6/1", true, false, "Mathe"),
		rec(plan.Day(2024, 11, 25), "6/2", true, false, "Deutsch"),
		rec(plan.Day(2024, 11, 26), "6/1", false, false, ""),
		rec(plan.Day(2024, 11, 27), "7/1", true, false, "Mathe"),
	}

	f := plan.Filter{
		From:             plan.Day(2024, 11, 25),
		To:               plan.Day(2024, 11, 26),
		Classes:          map[string]bool{"6/1": true, "6/2": true},
		Grades:           map[int]bool{6: true},
		Cancelled:        plan.TriYes,
		CancelledSubject: map[string]bool{"Mathe": true},
	}

	got := f.Apply(records)
	assert.Len(t, got, 1)
	assert.Equal(t, "6/1", got[0].Class)
}

func TestFilter_TriState(t *testing.T) {
	records := []plan.ScheduleRecord{
		rec(plan.Day(2024, 11, 25), "6/1", true, true, ""),
		rec(plan.Day(2024, 11, 25), "6/2", false, false, ""),
	}

	assert.Len(t, plan.Filter{Cancelled: plan.TriYes}.Apply(records), 1)
	assert.Len(t, plan.Filter{Cancelled: plan.TriNo}.Apply(records), 1)
	assert.Len(t, plan.Filter{SelfStudy: plan.TriAny}.Apply(records), 2)
}

func TestFilter_NoSubjectBucket(t *testing.T) {
	records := []plan.ScheduleRecord{
		rec(plan.Day(2024, 11, 25), "6/1", true, false, ""),
		rec(plan.Day(2024, 11, 25), "6/2", true, false, "Mathe"),
	}

	f := plan.Filter{CancelledSubject: map[string]bool{plan.NoSubjectBucket: true}}
	got := f.Apply(records)
	assert.Len(t, got, 1)
	assert.Equal(t, "6/1", got[0].Class)
}

func TestFilter_GradeSetExcludesNilGrades(t *testing.T) {
	records := []plan.ScheduleRecord{
		rec(plan.Day(2024, 11, 25), "6/1", false, false, ""),
		rec(plan.Day(2024, 11, 25), "10Klub", false, false, ""),
	}
	got := plan.Filter{Grades: map[int]bool{6: true, 10: true}}.Apply(records)
	assert.Len(t, got, 1)
	assert.Equal(t, "6/1", got[0].Class)
}

func TestCountPerDay(t *testing.T) {
	records := []plan.ScheduleRecord{
		rec(plan.Day(2024, 11, 26), "6/1", false, false, ""),
		rec(plan.Day(2024, 11, 25), "6/1", false, false, ""),
		rec(plan.Day(2024, 11, 25), "6/2", false, false, ""),
	}
	got := plan.CountPerDay(records)
	assert.Equal(t, []plan.DayCount{
		{Date: plan.Day(2024, 11, 25), Count: 2},
		{Date: plan.Day(2024, 11, 26), Count: 1},
	}, got)
}

func TestCancelledSubjects(t *testing.T) {
	records := []plan.ScheduleRecord{
		rec(plan.Day(2024, 11, 25), "6/1", true, false, "Mathe"),
		rec(plan.Day(2024, 11, 25), "6/2", true, false, ""),
		rec(plan.Day(2024, 11, 25), "6/3", true, false, "Mathe"),
	}
	assert.Equal(t, []string{plan.NoSubjectBucket, "Mathe"}, plan.CancelledSubjects(records))
}
