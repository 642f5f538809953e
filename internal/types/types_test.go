package types

import (
	"errors"
	"testing"
	"time"
)

func TestDay_UsesLocationCivilDate(t *testing.T) {
	taipei := time.FixedZone("UTC+8", 8*3600)
	// 2024-01-01 20:00 UTC is already 2024-01-02 in UTC+8.
	ts := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)

	if got := Day(ts, time.UTC); !got.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Day(UTC) = %v", got)
	}
	if got := Day(ts, taipei); !got.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Day(UTC+8) = %v", got)
	}
	if got := Day(ts, nil); got.Location() != time.UTC {
		t.Errorf("Day(nil) location = %v", got.Location())
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if n := DaysBetween(a, b); n != 14 {
		t.Errorf("DaysBetween = %d, want 14", n)
	}
	if n := DaysBetween(b, a); n != -14 {
		t.Errorf("DaysBetween reversed = %d, want -14", n)
	}
}

func TestBestEffort(t *testing.T) {
	ok := Succeeded("flush")
	if !ok.OK() || ok.String() != "flush: ok" {
		t.Errorf("unexpected success outcome: %v", ok)
	}
	bad := Failed("notify", errors.New("boom"))
	if bad.OK() || bad.String() != "notify: boom" {
		t.Errorf("unexpected failure outcome: %v", bad)
	}
}
