// Package processor turns raw feed items into flat records, enriching them
// with reaction breakdowns, share counts and insights where configured.
package processor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/reachpan/internal/config"
	"github.com/ppiankov/reachpan/internal/graph"
)

// API is the subset of the Graph client the processors call per item.
type API interface {
	Reactions(ctx context.Context, postID, token string) (*graph.Reactions, error)
	PostInsights(ctx context.Context, postID, token string, metrics []string) (graph.Insights, error)
	VideoInsights(ctx context.Context, videoID, token string) (graph.Insights, error)
	URLShares(ctx context.Context, token, link string) (int64, bool, error)
}

// Processor holds what every item processor needs. Insights are only
// requested for pages that have their own credential.
type Processor struct {
	API         API
	Credentials *config.Credentials
	Enrich      config.EnrichConfig
	Log         zerolog.Logger
	// Now stamps records. Nil means time.Now.
	Now func() time.Time
}

func (p *Processor) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Processor) owned(pageID string) bool {
	return p.Credentials.Owned(pageID)
}

// summaryEdge is the shape of comments/likes/reactions edges requested
// with limit(0).summary(true).
type summaryEdge struct {
	Summary struct {
		TotalCount *int64 `json:"total_count"`
	} `json:"summary"`
}

func (e *summaryEdge) total() *int64 {
	if e == nil {
		return nil
	}
	return e.Summary.TotalCount
}

var textReplacer = strings.NewReplacer(
	"\u2018", "'",
	"\u2019", "'",
	"\u201c", `"`,
	"\u201d", `"`,
	"\u00a0", " ",
)

// normalizeText replaces typographic quotes and non-breaking spaces with
// their ASCII forms and drops invalid UTF-8.
func normalizeText(s *string) any {
	if s == nil {
		return nil
	}
	return textReplacer.Replace(strings.ToValidUTF8(*s, ""))
}

func optional(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func valueOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// count converts an insight number to an integer count.
func count(ins graph.Insights, name string) (int64, bool) {
	v, ok := ins.Number(name)
	if !ok {
		return 0, false
	}
	return int64(v), true
}

// stripDots removes '.' from a key; index field names must not contain dots.
func stripDots(s string) string {
	return strings.ReplaceAll(s, ".", "")
}

// decodeValue decodes an insight value, stripping dots from object keys.
func decodeValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		clean := make(map[string]any, len(m))
		for k, val := range m {
			clean[stripDots(k)] = val
		}
		return clean
	}
	return v
}
