package graph

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the timestamp format the Graph API uses for created_time.
const TimeLayout = "2006-01-02T15:04:05-0700"

// APIError is the error object the Graph API returns in place of data, for
// example when a token has expired or lacks permission on a page.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error %d (%s): %s", e.Code, e.Type, e.Message)
}

// Item is one entry of a posts or videos feed. Raw keeps the full object for
// the item processor.
type Item struct {
	ID          string
	CreatedTime time.Time
	Raw         json.RawMessage
}

// Page is one decoded feed page.
type Page struct {
	Items []Item
	Next  string
	// Skipped holds one error per entry that could not be decoded. Those
	// entries are left out of Items.
	Skipped []error
}

// ErrorOf returns the API error carried in res, or nil.
func ErrorOf(res *FetchResult) *APIError {
	if res == nil {
		return nil
	}
	raw, ok := res.Body["error"]
	if !ok {
		return nil
	}
	var apiErr APIError
	if err := json.Unmarshal(raw, &apiErr); err != nil {
		return &APIError{Message: string(raw)}
	}
	return &apiErr
}

// ParsePage decodes a feed response. A body carrying an error object yields
// *APIError; a body without data yields an empty page. Entries without a
// readable id or created_time are reported in Skipped.
func ParsePage(res *FetchResult) (*Page, error) {
	if apiErr := ErrorOf(res); apiErr != nil {
		return nil, apiErr
	}
	if res == nil {
		return &Page{}, nil
	}

	page := &Page{Next: res.Next}
	raw, ok := res.Body["data"]
	if !ok {
		return page, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode feed data: %w", err)
	}

	for _, entry := range entries {
		var head struct {
			ID          string `json:"id"`
			CreatedTime string `json:"created_time"`
		}
		if err := json.Unmarshal(entry, &head); err != nil {
			page.Skipped = append(page.Skipped, fmt.Errorf("decode feed item: %w", err))
			continue
		}
		created, err := ParseTime(head.CreatedTime)
		if err != nil {
			page.Skipped = append(page.Skipped, fmt.Errorf("item %s: %w", head.ID, err))
			continue
		}
		page.Items = append(page.Items, Item{ID: head.ID, CreatedTime: created, Raw: entry})
	}
	return page, nil
}

// ParseTime parses a Graph API timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_time %q: %w", s, err)
	}
	return t, nil
}
