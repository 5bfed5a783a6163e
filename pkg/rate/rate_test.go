package rate

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"medcourier/pkg/errs"
)

var newYork = mustLoc("America/New_York")

func mustLoc(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, newYork)
}

func newTestEngine(t *testing.T, clock time.Time) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig(), func() time.Time { return clock })
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

var (
	mondayMorning  = at(2026, time.October, 19, 10)
	mondayEvening  = at(2026, time.October, 19, 19)
	saturdayMidday = at(2026, time.October, 17, 12)
	thanksgiving   = at(2026, time.November, 26, 10)
)

func TestQuote(t *testing.T) {
	e := newTestEngine(t, mondayMorning)

	tests := []struct {
		name      string
		distance  float64
		service   string
		ready     time.Time
		base      float64
		surcharge float64
		total     float64
		perMile   float64
	}{
		{"routine business hours", 20, "ROUTINE", mondayMorning, 45.00, 0, 45.00, 2.25},
		{"routine weekend flat fee", 20, "ROUTINE", saturdayMidday, 45.00, 35.00, 80.00, 4.00},
		{"stat evening per mile", 100, "STAT", mondayEvening, 450.00, 75.00, 525.00, 5.25},
		{"urgent at crossover is flat", 50, "URGENT", thanksgiving, 155.00, 35.00, 190.00, 3.80},
		{"urgent just past crossover", 50.5, "urgent", mondayEvening, 156.55, 37.88, 194.43, 3.85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready := tt.ready
			q, err := e.Quote(tt.distance, tt.service, &ready, nil)
			if err != nil {
				t.Fatalf("Quote: %v", err)
			}
			if q.BaseRate != tt.base || q.AfterHoursSurcharge != tt.surcharge || q.TotalRate != tt.total || q.RatePerMile != tt.perMile {
				t.Errorf("got base=%.2f surcharge=%.2f total=%.2f per_mile=%.2f, want %.2f %.2f %.2f %.2f",
					q.BaseRate, q.AfterHoursSurcharge, q.TotalRate, q.RatePerMile,
					tt.base, tt.surcharge, tt.total, tt.perMile)
			}
		})
	}
}

func TestQuoteUsesClockWithoutReadyTime(t *testing.T) {
	e := newTestEngine(t, saturdayMidday)
	q, err := e.Quote(10, "ROUTINE", nil, nil)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !q.AfterHours || !q.EvaluatedAt.Equal(saturdayMidday) {
		t.Errorf("expected clock-based after-hours evaluation, got %+v", q)
	}
}

func TestZeroDistance(t *testing.T) {
	e := newTestEngine(t, saturdayMidday)
	for _, tier := range Tiers {
		q, err := e.Quote(0, string(tier), nil, nil)
		if err != nil {
			t.Fatalf("%s: %v", tier, err)
		}
		if q.TotalRate != 0 || q.RatePerMile != 0 {
			t.Errorf("%s: total=%.2f per_mile=%.2f, want zeros", tier, q.TotalRate, q.RatePerMile)
		}
	}
}

func TestTotalNeverBelowBase(t *testing.T) {
	e := newTestEngine(t, mondayMorning)
	times := []time.Time{mondayMorning, mondayEvening, saturdayMidday, thanksgiving, at(2026, time.October, 20, 7), at(2026, time.October, 20, 8)}
	distances := []float64{0.4, 1, 12.5, 49.99, 50, 50.01, 233}

	for _, tier := range Tiers {
		for _, d := range distances {
			for _, ready := range times {
				ready := ready
				q, err := e.Quote(d, string(tier), &ready, nil)
				if err != nil {
					t.Fatalf("Quote(%v, %s): %v", d, tier, err)
				}
				if q.TotalRate < q.BaseRate {
					t.Errorf("Quote(%v, %s, %s): total %.2f < base %.2f", d, tier, ready, q.TotalRate, q.BaseRate)
				}
				businessDay := !e.IsAfterHours(ready)
				if (q.TotalRate == q.BaseRate) != businessDay {
					t.Errorf("Quote(%v, %s, %s): equality=%v but business hours=%v", d, tier, ready, q.TotalRate == q.BaseRate, businessDay)
				}
			}
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	e := newTestEngine(t, mondayMorning)
	inputs := []string{"SAME_DAY", "same-day", " Same Day ", "RUSH", "asap", "STAT", "routine", "Two-Hour"}

	for _, in := range inputs {
		once, err := e.Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		twice, err := e.Normalize(string(once))
		if err != nil {
			t.Fatalf("Normalize(%q): %v", once, err)
		}
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %s then %s", in, once, twice)
		}
	}

	ready := mondayEvening
	legacy, err := e.Quote(37, "SAME_DAY", &ready, nil)
	if err != nil {
		t.Fatal(err)
	}
	canonical, err := e.Quote(37, "ROUTINE", &ready, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(canonical, legacy); diff != "" {
		t.Errorf("legacy alias quote differs (-routine +same_day):\n%s", diff)
	}
}

func TestQuoteValidation(t *testing.T) {
	e := newTestEngine(t, mondayMorning)
	early := mondayMorning.Add(-time.Hour)

	tests := []struct {
		name     string
		distance float64
		service  string
		deadline *time.Time
	}{
		{"unknown service", 10, "OVERNIGHT_BOAT", nil},
		{"negative distance", -1, "ROUTINE", nil},
		{"nan distance", math.NaN(), "ROUTINE", nil},
		{"deadline before ready", 10, "ROUTINE", &early},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready := mondayMorning
			_, err := e.Quote(tt.distance, tt.service, &ready, tt.deadline)
			if !errs.HasCode(err, errs.CodeInvalidInput) {
				t.Errorf("expected invalid_input, got %v", err)
			}
		})
	}
}

func TestDeadlineReachable(t *testing.T) {
	e := newTestEngine(t, mondayMorning)
	ready := mondayMorning
	tight := ready.Add(30 * time.Minute)
	loose := ready.Add(3 * time.Hour)

	q, err := e.Quote(90, "STAT", &ready, &tight)
	if err != nil {
		t.Fatal(err)
	}
	if q.DeadlineReachable == nil || *q.DeadlineReachable {
		t.Errorf("90 miles in 30 minutes should not be reachable: %+v", q.DeadlineReachable)
	}
	if q.EstimatedTransit != 2*time.Hour {
		t.Errorf("transit = %s, want 2h", q.EstimatedTransit)
	}

	q, err = e.Quote(90, "STAT", &ready, &loose)
	if err != nil {
		t.Fatal(err)
	}
	if q.DeadlineReachable == nil || !*q.DeadlineReachable {
		t.Errorf("90 miles in 3 hours should be reachable")
	}
}

func TestApplyMinimum(t *testing.T) {
	e := newTestEngine(t, mondayMorning)
	floors := []float64{0.5, 1.75, 2.25, 3.333, 7}
	distances := []float64{0.7, 1, 12.5, 33.3, 180}
	rates := []float64{0, 5, 28.13, 45, 100, 999.99}

	for _, floor := range floors {
		for _, d := range distances {
			for _, r := range rates {
				floor := floor
				got := e.ApplyMinimum(r, d, &floor)
				if got.Rate < floor*d-1e-9 {
					t.Errorf("ApplyMinimum(%v, %v, %v) = %v below floor total %v", r, d, floor, got.Rate, floor*d)
				}
				if r/d >= floor && (got.Rate != r || got.RateAdjustedForMinimum) {
					t.Errorf("ApplyMinimum(%v, %v, %v) modified a rate already above the floor: %+v", r, d, floor, got)
				}
				if r/d < floor && !got.RateAdjustedForMinimum {
					t.Errorf("ApplyMinimum(%v, %v, %v) did not flag the adjustment", r, d, floor)
				}
			}
		}
	}

	if got := e.ApplyMinimum(10, 20, nil); got.Rate != 10 || got.RateAdjustedForMinimum {
		t.Errorf("nil floor should leave the rate alone: %+v", got)
	}
	floor := 3.0
	if got := e.ApplyMinimum(0, 0, &floor); got.Rate != 0 || got.RateAdjustedForMinimum {
		t.Errorf("zero distance should leave the rate alone: %+v", got)
	}

	cents := []struct {
		rate, distance, floor float64
		want                  Adjusted
	}{
		{0.3, 3, 0.1, Adjusted{Rate: 0.3, MinimumRate: 0.3}},
		{0.7, 7, 0.1, Adjusted{Rate: 0.7, MinimumRate: 0.7}},
		{0.29, 3, 0.1, Adjusted{Rate: 0.3, RateAdjustedForMinimum: true, MinimumRate: 0.3}},
	}
	for _, tt := range cents {
		floor := tt.floor
		if diff := cmp.Diff(tt.want, e.ApplyMinimum(tt.rate, tt.distance, &floor)); diff != "" {
			t.Errorf("ApplyMinimum(%v, %v, %v) mismatch (-want +got):\n%s", tt.rate, tt.distance, tt.floor, diff)
		}
	}
}

func TestEstimateProfit(t *testing.T) {
	e := newTestEngine(t, mondayMorning)

	got := e.EstimateProfit(100, 45, nil)
	want := Profit{
		Rate:             100,
		DistanceMiles:    45,
		EstimatedHours:   1,
		FuelCost:         27.90,
		TimeCost:         22.00,
		EstimatedCosts:   49.90,
		Profit:           50.10,
		RatePerMile:      2.22,
		MinimumPerMile:   1.75,
		MeetsMinimumRate: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EstimateProfit mismatch (-want +got):\n%s", diff)
	}

	floor := 2.5
	if p := e.EstimateProfit(100, 45, &floor); p.MeetsMinimumRate {
		t.Errorf("2.22/mi should not meet a 2.50 floor")
	}
}

func TestCheckBounds(t *testing.T) {
	e := newTestEngine(t, mondayMorning)

	tests := []struct {
		name     string
		amount   float64
		distance float64
		service  string
		ok       bool
	}{
		{"plausible routine", 60, 20, "ROUTINE", true},
		{"legacy alias", 60, 20, "SAME_DAY", true},
		{"zero amount", 0, 20, "ROUTINE", false},
		{"below min total", 10, 0, "ROUTINE", false},
		{"above max total", 20000, 900, "STAT", false},
		{"per mile too low", 30, 100, "URGENT", false},
		{"per mile too high", 400, 10, "ROUTINE", false},
		{"unknown distance uses totals only", 400, 0, "ROUTINE", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.CheckBounds(tt.amount, tt.distance, tt.service)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errs.HasCode(err, errs.CodeQuoteOutOfBounds) {
				t.Errorf("expected quote_out_of_bounds, got %v", err)
			}
		})
	}
}

func TestHolidays(t *testing.T) {
	e := newTestEngine(t, mondayMorning)
	cfg := DefaultConfig()
	cfg.Holidays = []string{"2026-10-21"}
	custom, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		engine  *Engine
		when    time.Time
		holiday bool
	}{
		{"thanksgiving", e, thanksgiving, true},
		{"memorial day", e, at(2026, time.May, 25, 10), true},
		{"mlk day", e, at(2026, time.January, 19, 10), true},
		{"july 4 observed on friday", e, at(2026, time.July, 3, 10), true},
		{"new year observed in prior year", e, at(2027, time.December, 31, 10), true},
		{"ordinary monday", e, mondayMorning, false},
		{"configured extra date", custom, at(2026, time.October, 21, 10), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.engine.IsHoliday(tt.when); got != tt.holiday {
				t.Errorf("IsHoliday(%s) = %v, want %v", tt.when.Format(time.RFC3339), got, tt.holiday)
			}
		})
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Urgent.PerMile = 1
	if _, err := NewEngine(cfg, nil); err == nil {
		t.Error("expected error for non-increasing tier rates")
	}

	cfg = DefaultConfig()
	cfg.TimeZone = "Mars/Olympus"
	if _, err := NewEngine(cfg, nil); err == nil {
		t.Error("expected error for unknown time zone")
	}
}
