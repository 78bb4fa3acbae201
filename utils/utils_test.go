package utils

import (
	"testing"
	"time"
)

func TestFormatMs(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{-1, "N/A"},
		{0, "0s"},
		{45 * 1000, "45s"},
		{5 * 60 * 1000, "5m"},
		{(2*3600 + 3*60 + 4) * 1000, "2h 3m 4s"},
		{(26*3600 + 30*60) * 1000, "1d 2h 30m"},
	}
	for _, tc := range cases {
		if got := FormatMs(tc.ms); got != tc.want {
			t.Errorf("FormatMs(%d) = %q, want %q", tc.ms, got, tc.want)
		}
	}
}

func TestDateRange(t *testing.T) {
	// A Wednesday.
	ref := time.Date(2025, 3, 12, 14, 30, 0, 0, time.UTC)

	start, end := DateRange("today", ref)
	if start.Day() != 12 || start.Hour() != 0 {
		t.Errorf("today start = %v", start)
	}
	if end.Day() != 12 || end.Hour() != 23 {
		t.Errorf("today end = %v", end)
	}

	start, end = DateRange("thisWeek", ref)
	if start.Weekday() != time.Sunday || start.Day() != 9 {
		t.Errorf("thisWeek start = %v", start)
	}
	if end.Weekday() != time.Saturday || end.Day() != 15 {
		t.Errorf("thisWeek end = %v", end)
	}

	start, end = DateRange("lastWeek", ref)
	if start.Day() != 2 || end.Day() != 8 {
		t.Errorf("lastWeek = %v .. %v", start, end)
	}

	start, end = DateRange("thisMonth", ref)
	if start.Month() != time.March || start.Day() != 1 || end.Day() != 31 {
		t.Errorf("thisMonth = %v .. %v", start, end)
	}

	start, end = DateRange("lastMonth", ref)
	if start.Month() != time.February || end.Month() != time.February || end.Day() != 28 {
		t.Errorf("lastMonth = %v .. %v", start, end)
	}

	// Unknown filters fall back to today.
	start, _ = DateRange("garbage", ref)
	if start.Day() != 12 {
		t.Errorf("fallback start = %v", start)
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	valid := []string{"01712345678", "+8801712345678", " 01912345678 "}
	for _, p := range valid {
		if !ValidatePhoneNumber(p) {
			t.Errorf("ValidatePhoneNumber(%q) = false, want true", p)
		}
	}

	invalid := []string{"", "0171234567", "017123456789", "8801712345678", "02123456789"}
	for _, p := range invalid {
		if ValidatePhoneNumber(p) {
			t.Errorf("ValidatePhoneNumber(%q) = true, want false", p)
		}
	}
}
