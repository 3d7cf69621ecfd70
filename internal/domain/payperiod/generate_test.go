package payperiod

import (
	"reflect"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateMonthly(t *testing.T) {
	sched := Schedule{ID: "s1", Frequency: FrequencyMonthly, PayDateOffsetDays: 5}
	periods, err := Generate(sched, 2026)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(periods) != 12 {
		t.Fatalf("expected 12 periods, got %d", len(periods))
	}

	first := periods[0]
	if !first.StartDate.Equal(date(2026, time.January, 1)) || !first.EndDate.Equal(date(2026, time.January, 31)) {
		t.Fatalf("unexpected first period %v – %v", first.StartDate, first.EndDate)
	}
	if !first.PayDate.Equal(date(2026, time.February, 5)) {
		t.Fatalf("unexpected pay date %v", first.PayDate)
	}
	if first.PeriodNumber != 1 || first.Year != 2026 || first.ScheduleID != "s1" {
		t.Fatalf("unexpected period metadata %+v", first)
	}

	feb := periods[1]
	if !feb.EndDate.Equal(date(2026, time.February, 28)) {
		t.Fatalf("expected february end on the 28th, got %v", feb.EndDate)
	}
	if periods[11].PeriodNumber != 12 {
		t.Fatalf("expected sequential numbering, got %d", periods[11].PeriodNumber)
	}
}

func TestGeneratePayDateWeekendRoll(t *testing.T) {
	sched := Schedule{Frequency: FrequencyMonthly, PayDateOffsetDays: 0}
	periods, err := Generate(sched, 2026)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// 2026-01-31 is a Saturday; the pay date must roll back to Friday.
	if !periods[0].PayDate.Equal(date(2026, time.January, 30)) {
		t.Fatalf("expected pay date rolled to friday, got %v", periods[0].PayDate)
	}
}

func TestGenerateSemimonthly(t *testing.T) {
	sched := Schedule{Frequency: FrequencySemimonthly, PayDateOffsetDays: 3}
	periods, err := Generate(sched, 2026)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(periods) != 24 {
		t.Fatalf("expected 24 periods, got %d", len(periods))
	}
	if !periods[2].StartDate.Equal(date(2026, time.February, 1)) || !periods[2].EndDate.Equal(date(2026, time.February, 15)) {
		t.Fatalf("unexpected third period %v – %v", periods[2].StartDate, periods[2].EndDate)
	}
	if !periods[3].StartDate.Equal(date(2026, time.February, 16)) || !periods[3].EndDate.Equal(date(2026, time.February, 28)) {
		t.Fatalf("unexpected fourth period %v – %v", periods[3].StartDate, periods[3].EndDate)
	}
}

func TestGenerateBiweeklyAnchored(t *testing.T) {
	sched := Schedule{Frequency: FrequencyBiweekly, AnchorDate: date(2026, time.January, 5), PayDateOffsetDays: 4}
	periods, err := Generate(sched, 2026)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(periods) != 26 {
		t.Fatalf("expected 26 periods, got %d", len(periods))
	}
	if !periods[0].StartDate.Equal(date(2026, time.January, 5)) || !periods[0].EndDate.Equal(date(2026, time.January, 18)) {
		t.Fatalf("unexpected first period %v – %v", periods[0].StartDate, periods[0].EndDate)
	}
	for i := 1; i < len(periods); i++ {
		if !periods[i].StartDate.Equal(periods[i-1].EndDate.AddDate(0, 0, 1)) {
			t.Fatalf("gap between period %d and %d", i, i+1)
		}
	}
}

func TestGenerateWeeklyAnchorInPriorYear(t *testing.T) {
	sched := Schedule{Frequency: FrequencyWeekly, AnchorDate: date(2024, time.January, 1)}
	periods, err := Generate(sched, 2026)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(periods) != 52 {
		t.Fatalf("expected 52 periods, got %d", len(periods))
	}
	// Anchor was a Monday, so every period must start on a Monday.
	if periods[0].StartDate.Weekday() != time.Monday {
		t.Fatalf("expected monday start, got %v", periods[0].StartDate.Weekday())
	}
	if !periods[0].StartDate.Equal(date(2026, time.January, 5)) {
		t.Fatalf("unexpected first start %v", periods[0].StartDate)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	sched := Schedule{ID: "s9", Frequency: FrequencyBiweekly, AnchorDate: date(2026, time.January, 5), PayDateOffsetDays: 2}
	a, err := Generate(sched, 2026)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := Generate(sched, 2026)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("expected identical output for identical inputs")
	}
}

func TestGenerateUnknownFrequency(t *testing.T) {
	if _, err := Generate(Schedule{Frequency: "daily"}, 2026); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
}
