// Package digest summarizes a scrape run per page: medians and totals of the
// headline metrics, plus the best-scoring items, for terminal, json or
// markdown output.
package digest

import (
	"io"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/ppiankov/reachpan/internal/processor"
	"github.com/ppiankov/reachpan/internal/record"
)

// Kinds of scrape a summary can describe.
const (
	KindPosts  = "posts"
	KindVideos = "videos"
)

const topItems = 5

// PageSummary holds the aggregates of one page. Medians are nil when no
// record of the page carried the metric.
type PageSummary struct {
	Page    string
	Items   int
	Medians []*float64
	Totals  []float64
}

// TopItem is one of the best items of the run by adjusted engagement.
type TopItem struct {
	Page     string
	ID       string
	Headline string
	Score    float64
}

// Summary is the full input for a formatter.
type Summary struct {
	Kind         string
	From         time.Time
	Until        time.Time
	Records      int
	MedianFields []string
	TotalFields  []string
	Pages        []PageSummary
	Top          []TopItem
}

// Formatter writes a formatted summary to w.
type Formatter interface {
	Format(w io.Writer, s *Summary) error
}

// Fields summarized per kind.
var (
	postMedianFields = []string{
		processor.FieldNumShares, processor.FieldNumReactions, processor.FieldNumComments,
		processor.FieldVideoViews, processor.FieldNonLikerRate, processor.FieldCTR,
	}
	postTotalFields = []string{
		processor.FieldNumShares, processor.FieldNumReactions, processor.FieldNumComments,
		processor.FieldVideoViews,
	}
	videoMedianFields = []string{
		processor.FieldNumReactions, processor.FieldComplete3sRatio, processor.Field3sViews,
		processor.FieldNonLikerRate,
	}
	videoTotalFields = []string{processor.Field3sViews, processor.FieldNumReactions}
)

// Build aggregates records of the given kind. Post pages keep the order
// they first appear in; video pages are ranked by total reactions.
func Build(kind string, records []record.Record, from, until time.Time) *Summary {
	s := &Summary{Kind: kind, From: from, Until: until, Records: len(records)}
	idField := record.FieldPostID
	switch kind {
	case KindVideos:
		s.MedianFields, s.TotalFields = videoMedianFields, videoTotalFields
		idField = record.FieldVideoID
	default:
		s.MedianFields, s.TotalFields = postMedianFields, postTotalFields
	}

	var order []string
	byPage := map[string][]record.Record{}
	for _, r := range records {
		page := r.String(record.FieldPage)
		if _, ok := byPage[page]; !ok {
			order = append(order, page)
		}
		byPage[page] = append(byPage[page], r)
	}

	for _, page := range order {
		recs := byPage[page]
		ps := PageSummary{Page: page, Items: len(recs)}
		for _, f := range s.MedianFields {
			ps.Medians = append(ps.Medians, median(recs, f))
		}
		for _, f := range s.TotalFields {
			ps.Totals = append(ps.Totals, total(recs, f))
		}
		s.Pages = append(s.Pages, ps)
	}

	if kind == KindVideos {
		col := indexOf(s.TotalFields, processor.FieldNumReactions)
		sort.SliceStable(s.Pages, func(i, j int) bool {
			return s.Pages[i].Totals[col] > s.Pages[j].Totals[col]
		})
	}

	s.Top = top(records, idField)
	return s
}

func values(recs []record.Record, field string) stats.Float64Data {
	var data stats.Float64Data
	for _, r := range recs {
		if v, ok := r.Float(field); ok {
			data = append(data, v)
		}
	}
	return data
}

func median(recs []record.Record, field string) *float64 {
	data := values(recs, field)
	if len(data) == 0 {
		return nil
	}
	m, err := stats.Median(data)
	if err != nil {
		return nil
	}
	return &m
}

func total(recs []record.Record, field string) float64 {
	data := values(recs, field)
	if len(data) == 0 {
		return 0
	}
	sum, err := stats.Sum(data)
	if err != nil {
		return 0
	}
	return sum
}

func top(records []record.Record, idField string) []TopItem {
	var items []TopItem
	for _, r := range records {
		v, ok := r.Float(processor.FieldAdjustedEngagementRate)
		if !ok {
			continue
		}
		items = append(items, TopItem{
			Page:     r.String(record.FieldPage),
			ID:       r.ID(idField),
			Headline: r.String(record.FieldHeadline),
			Score:    v,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > topItems {
		items = items[:topItems]
	}
	return items
}

func indexOf(fields []string, name string) int {
	for i, f := range fields {
		if f == name {
			return i
		}
	}
	return 0
}

func round1(v float64) float64 {
	r, err := stats.Round(v, 1)
	if err != nil {
		return v
	}
	return r
}
