package digest

import (
	"bytes"
	"strings"
	"testing"
)

func TestTerminal_FullSummary(t *testing.T) {
	f := NewTerminal(false)
	var buf bytes.Buffer

	if err := f.Format(&buf, Build(KindPosts, testPosts(), testFrom, testUntil)); err != nil {
		t.Fatalf("format: %v", err)
	}
	out := buf.String()

	// Header
	if !strings.Contains(out, "5 posts from 2 pages") {
		t.Errorf("missing header counts:\n%s", out)
	}
	if !strings.Contains(out, "2016-09-01 00:00 to 2016-09-02 00:00") {
		t.Error("missing window")
	}

	// Sections
	for _, want := range []string{"Medians:", "Totals:", "Top by adjusted engagement:"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing section %q", want)
		}
	}

	// Tables
	if !strings.Contains(out, "Num Shares") {
		t.Error("missing column header")
	}
	if !strings.Contains(out, "600") {
		t.Error("missing nytimes reaction total")
	}
	if !strings.Contains(out, "3.2%") && !strings.Contains(out, "3.3%") {
		t.Errorf("missing top score:\n%s", out)
	}
	if !strings.Contains(out, "headline 4") {
		t.Error("missing top headline")
	}

	// Missing medians render as a dash.
	if !strings.Contains(out, "-") {
		t.Error("missing placeholder for empty median")
	}
}

func TestTerminal_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTerminal(false).Format(&buf, Build(KindVideos, nil, testFrom, testUntil)); err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.Contains(buf.String(), "No items found.") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestTerminal_Color(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTerminal(true).Format(&buf, Build(KindPosts, testPosts(), testFrom, testUntil)); err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.Contains(buf.String(), "\033[1m") {
		t.Error("expected ANSI bold")
	}
}

func TestFormatTotal_Commas(t *testing.T) {
	if got := formatTotal(1234567.4); got != "1,234,567" {
		t.Errorf("formatTotal = %q, want 1,234,567", got)
	}
}

func TestFormatMedian(t *testing.T) {
	if got := formatMedian(nil); got != "-" {
		t.Errorf("formatMedian(nil) = %q, want -", got)
	}
	v := 1234.56
	if got := formatMedian(&v); got != "1,234.6" {
		t.Errorf("formatMedian = %q, want 1,234.6", got)
	}
}
