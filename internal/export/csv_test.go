package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/reachpan/internal/processor"
	"github.com/ppiankov/reachpan/internal/record"
)

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func column(t *testing.T, header []string, name string) int {
	t.Helper()
	for i, h := range header {
		if h == name {
			return i
		}
	}
	t.Fatalf("column %q not found", name)
	return -1
}

func TestWrite_PostRow(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	recs := []record.Record{{
		record.FieldPage:          "nytimes",
		record.FieldPublished:     "2016-09-01T12:00:00+0000",
		record.FieldType:          "link",
		record.FieldHeadline:      "Hello, \"world\"",
		record.FieldPostID:        "1_2",
		processor.FieldNumShares:  int64(10),
		processor.FieldCTR:        4.04999,
		processor.FieldVideoViews: nil,
	}}

	var buf bytes.Buffer
	w := &Writer{Columns: PostColumns, Location: ny}
	if err := w.Write(&buf, recs); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows := readCSV(t, buf.Bytes())
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	header, row := rows[0], rows[1]

	if len(header) != len(PostColumns) || header[0] != "Page" || header[len(header)-1] != "Post ID" {
		t.Errorf("header = %v", header)
	}
	if got := row[column(t, header, FieldPublishedLocal)]; got != "2016-09-01 08:00:00" {
		t.Errorf("published local = %q, want 2016-09-01 08:00:00", got)
	}
	if got := row[column(t, header, processor.FieldCTR)]; got != "4" {
		t.Errorf("ctr = %q, want 4", got)
	}
	if got := row[column(t, header, processor.FieldNumShares)]; got != "10" {
		t.Errorf("shares = %q, want 10", got)
	}
	if got := row[column(t, header, processor.FieldVideoViews)]; got != "" {
		t.Errorf("video views = %q, want empty", got)
	}
	if got := row[column(t, header, processor.FieldUniqueImpressions)]; got != "" {
		t.Errorf("missing field = %q, want empty", got)
	}
	if got := row[column(t, header, record.FieldHeadline)]; got != "Hello, \"world\"" {
		t.Errorf("headline = %q", got)
	}
}

func TestWrite_VideoColumns(t *testing.T) {
	recs := []record.Record{{
		record.FieldPage:           "MyPage",
		record.FieldVideoID:        "v1",
		record.FieldPublished:      "2016-09-01T12:00:00+0000",
		processor.FieldLiveVideo:   false,
		processor.FieldCrossposted: true,
		processor.Field10s3sRatio:  33.333333,
	}}

	var buf bytes.Buffer
	if err := (&Writer{Columns: VideoColumns}).Write(&buf, recs); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows := readCSV(t, buf.Bytes())
	header, row := rows[0], rows[1]

	if got := row[column(t, header, processor.FieldLiveVideo)]; got != "false" {
		t.Errorf("live = %q, want false", got)
	}
	if got := row[column(t, header, processor.FieldCrossposted)]; got != "true" {
		t.Errorf("crossposted = %q, want true", got)
	}
	if got := row[column(t, header, processor.Field10s3sRatio)]; got != "33.3" {
		t.Errorf("ratio = %q, want 33.3", got)
	}
	if got := row[column(t, header, FieldPublishedLocal)]; got != "2016-09-01 12:00:00" {
		t.Errorf("published utc = %q", got)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{int64(-3), "-3"},
		{7, "7"},
		{2.25, "2.3"},
		{100.0, "100"},
		{true, "true"},
		{map[string]any{"a": 1.0}, "map[a:1]"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2016, 9, 2, 14, 5, 9, 0, time.UTC)
	if got := FileName("posts", now); got != "posts_16-09-02_14.05.09.csv" {
		t.Errorf("file name = %q", got)
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "facebook_output")
	now := time.Date(2016, 9, 2, 14, 5, 9, 0, time.UTC)

	path, err := (&Writer{Columns: VideoColumns}).WriteFile(dir, "videos", now, nil)
	if err != nil {
		t.Fatalf("write file: %v", err)
	}
	if filepath.Base(path) != "videos_16-09-02_14.05.09.csv" {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "Page,Video ID,Published (Local)") {
		t.Errorf("content = %q", data)
	}
}
