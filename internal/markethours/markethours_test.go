package markethours

import (
	"testing"
	"time"
)

func TestIsMarketOpen(t *testing.T) {
	// Monday March 2, 2026, mid-session.
	open := time.Date(2026, 3, 2, 12, 0, 0, 0, ET)
	if !IsMarketOpen(open) {
		t.Error("noon on a Monday should be open")
	}
	// Before the bell.
	if IsMarketOpen(time.Date(2026, 3, 2, 9, 29, 0, 0, ET)) {
		t.Error("9:29 ET should be closed")
	}
	// After the close.
	if IsMarketOpen(time.Date(2026, 3, 2, 16, 0, 0, 0, ET)) {
		t.Error("16:00 ET should be closed")
	}
	// Saturday.
	if IsMarketOpen(time.Date(2026, 3, 7, 12, 0, 0, 0, ET)) {
		t.Error("Saturday should be closed")
	}
	// Christmas.
	if IsMarketOpen(time.Date(2026, 12, 25, 12, 0, 0, 0, ET)) {
		t.Error("Christmas should be closed")
	}
}

func TestIsTradingDay(t *testing.T) {
	if !IsTradingDay(time.Date(2026, 3, 2, 0, 0, 0, 0, ET)) {
		t.Error("Monday March 2 should be a trading day")
	}
	if IsTradingDay(time.Date(2026, 7, 3, 0, 0, 0, 0, ET)) {
		t.Error("observed July 4 should not be a trading day")
	}
	if IsTradingDay(time.Date(2026, 3, 8, 0, 0, 0, 0, ET)) {
		t.Error("Sunday should not be a trading day")
	}
}

func TestNextOpen_SkipsWeekend(t *testing.T) {
	// Friday March 6 after the close rolls to Monday March 9.
	friday := time.Date(2026, 3, 6, 17, 0, 0, 0, ET)
	next := NextOpen(friday)
	want := time.Date(2026, 3, 9, 9, 30, 0, 0, ET)
	if !next.Equal(want) {
		t.Errorf("NextOpen = %v, want %v", next, want)
	}

	// Early on a trading day returns the same day's open.
	early := time.Date(2026, 3, 2, 8, 0, 0, 0, ET)
	if got := NextOpen(early); !got.Equal(time.Date(2026, 3, 2, 9, 30, 0, 0, ET)) {
		t.Errorf("NextOpen before the bell = %v, want same-day open", got)
	}
}
