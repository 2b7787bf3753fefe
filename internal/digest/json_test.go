package digest

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestJSON_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSON().Format(&buf, Build(KindPosts, testPosts(), testFrom, testUntil)); err != nil {
		t.Fatalf("format: %v", err)
	}

	var out jsonSummary
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, buf.String())
	}

	if out.Meta.Kind != KindPosts || out.Meta.Records != 5 {
		t.Errorf("meta = %+v", out.Meta)
	}
	if out.Meta.From != "2016-09-01T00:00:00Z" {
		t.Errorf("from = %q", out.Meta.From)
	}
	if len(out.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(out.Pages))
	}

	ny := out.Pages[0]
	if ny.Page != "nytimes" || ny.Items != 3 {
		t.Errorf("first page = %+v", ny)
	}
	if ny.Totals["Num Reactions"] != 600 {
		t.Errorf("total reactions = %v, want 600", ny.Totals["Num Reactions"])
	}
	if v, ok := ny.Medians["CTR (%)"]; !ok || v != nil {
		t.Errorf("CTR median = %v, %v; want present and null", v, ok)
	}

	if len(out.Top) != 2 || out.Top[0].Score != 3.3 {
		t.Errorf("top = %+v", out.Top)
	}
}

func TestJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSON().Format(&buf, Build(KindVideos, nil, testFrom, testUntil)); err != nil {
		t.Fatalf("format: %v", err)
	}
	var out jsonSummary
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Pages == nil || len(out.Pages) != 0 {
		t.Errorf("pages = %v, want empty array", out.Pages)
	}
	if out.Top != nil {
		t.Errorf("top = %v, want omitted", out.Top)
	}
}
