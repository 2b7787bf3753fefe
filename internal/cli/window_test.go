package cli

import (
	"errors"
	"testing"
	"time"
)

func TestParseWindow_DaysBack(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 02:30 UTC is still the previous evening in New York.
	at := time.Date(2016, 9, 2, 2, 30, 0, 0, time.UTC)

	w, err := parseWindow([]string{"1"}, at, ny)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	wantFrom := time.Date(2016, 8, 31, 0, 0, 0, 0, ny)
	if !w.From.Equal(wantFrom) {
		t.Errorf("from = %v, want %v", w.From, wantFrom)
	}
	if !w.Until.Equal(at) {
		t.Errorf("until = %v, want %v", w.Until, at)
	}
	if w.Cursor() != "1472783400" {
		t.Errorf("cursor = %s", w.Cursor())
	}

	w, err = parseWindow([]string{"0"}, at, ny)
	if err != nil {
		t.Fatalf("parse 0: %v", err)
	}
	if !w.From.Equal(time.Date(2016, 9, 1, 0, 0, 0, 0, ny)) {
		t.Errorf("from(0) = %v", w.From)
	}
}

func TestParseWindow_DateRange(t *testing.T) {
	w, err := parseWindow([]string{"2016-09-01", "2016-09-02"}, time.Now(), time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !w.From.Equal(time.Date(2016, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", w.From)
	}
	if !w.Until.Equal(time.Date(2016, 9, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("until = %v, want end date + 1 day", w.Until)
	}

	w, err = parseWindow([]string{"2016-09-01", "2016-09-01"}, time.Now(), time.UTC)
	if err != nil {
		t.Fatalf("single day: %v", err)
	}
	if w.Until.Sub(w.From) != 24*time.Hour {
		t.Errorf("single day span = %v", w.Until.Sub(w.From))
	}
}

func TestParseWindow_Invalid(t *testing.T) {
	cases := [][]string{
		nil,
		{"x"},
		{"-1"},
		{"2016-09-01"},
		{"2016-09-01", "soon"},
		{"09/01/2016", "2016-09-02"},
		{"1", "2", "3"},
	}
	for _, args := range cases {
		_, err := parseWindow(args, time.Now(), time.UTC)
		if !errors.Is(err, errWindowArgs) {
			t.Errorf("parseWindow(%q) error = %v, want usage error", args, err)
		}
	}
}

func TestParseWindow_StartAfterEnd(t *testing.T) {
	_, err := parseWindow([]string{"2016-09-02", "2016-09-01"}, time.Now(), time.UTC)
	if err == nil {
		t.Fatal("expected error when start is after end")
	}
}
