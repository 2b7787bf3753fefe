package digest

import (
	"encoding/json"
	"io"
)

type jsonSummary struct {
	Meta  jsonMeta   `json:"meta"`
	Pages []jsonPage `json:"pages"`
	Top   []jsonTop  `json:"top,omitempty"`
}

type jsonMeta struct {
	Kind    string `json:"kind"`
	Records int    `json:"records"`
	From    string `json:"from"`
	Until   string `json:"until"`
}

type jsonPage struct {
	Page    string              `json:"page"`
	Items   int                 `json:"items"`
	Medians map[string]*float64 `json:"medians"`
	Totals  map[string]float64  `json:"totals"`
}

type jsonTop struct {
	Page     string  `json:"page"`
	ID       string  `json:"id"`
	Headline string  `json:"headline,omitempty"`
	Score    float64 `json:"score"`
}

// JSONFormatter formats a summary as JSON.
type JSONFormatter struct{}

// NewJSON creates a JSON formatter.
func NewJSON() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes the summary as JSON to w.
func (f *JSONFormatter) Format(w io.Writer, s *Summary) error {
	out := jsonSummary{
		Meta: jsonMeta{
			Kind:    s.Kind,
			Records: s.Records,
			From:    s.From.Format("2006-01-02T15:04:05Z07:00"),
			Until:   s.Until.Format("2006-01-02T15:04:05Z07:00"),
		},
		Pages: make([]jsonPage, 0, len(s.Pages)),
	}

	for _, p := range s.Pages {
		jp := jsonPage{
			Page:    p.Page,
			Items:   p.Items,
			Medians: make(map[string]*float64, len(p.Medians)),
			Totals:  make(map[string]float64, len(p.Totals)),
		}
		for i, m := range p.Medians {
			if m != nil {
				v := round1(*m)
				m = &v
			}
			jp.Medians[s.MedianFields[i]] = m
		}
		for i, t := range p.Totals {
			jp.Totals[s.TotalFields[i]] = round1(t)
		}
		out.Pages = append(out.Pages, jp)
	}

	for _, t := range s.Top {
		out.Top = append(out.Top, jsonTop{Page: t.Page, ID: t.ID, Headline: t.Headline, Score: round1(t.Score)})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
