// Package record defines the flat row produced by the item processors and
// consumed by the CSV exporter, the summary and the index publisher.
package record

import (
	"encoding/json"
	"math"
	"time"
)

// Field names shared by processors, exporters and the publisher.
const (
	FieldPage      = "Page"
	FieldPublished = "Published"
	FieldTimestamp = "Timestamp"
	FieldPostID    = "Post ID"
	FieldVideoID   = "Video ID"
	FieldHeadline  = "Headline"
	FieldCaption   = "Caption"
	FieldLink      = "Link"
	FieldType      = "Type"
)

// TimestampLayout is the layout of the Timestamp field (scrape time, UTC).
const TimestampLayout = "2006-01-02T15:04:05+0000"

// Record is one normalized item. Values are scalars (string, bool, int64,
// float64), nested maps, or nil for a metric that could not be fetched.
type Record map[string]any

// ID returns the value of idField as a string, or "" if absent.
func (r Record) ID(idField string) string {
	s, _ := r[idField].(string)
	return s
}

// String returns a string field, or "".
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Float returns a numeric field as float64. The boolean is false for nil,
// missing or non-numeric values.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Published parses the Published field.
func (r Record) Published() (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05-0700", r.String(FieldPublished))
}

// Stamp formats t as a Timestamp field value.
func Stamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// Percent returns num/den*100, or nil when den is zero.
func Percent(num, den float64) any {
	if den == 0 || math.IsNaN(den) {
		return nil
	}
	return num / den * 100
}
