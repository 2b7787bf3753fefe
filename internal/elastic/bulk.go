package elastic

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/reachpan/internal/record"
)

type bulkAction struct {
	Index bulkMeta `json:"index"`
}

type bulkMeta struct {
	Index string `json:"_index"`
	Type  string `json:"_type,omitempty"`
	ID    string `json:"_id"`
}

// BuildBulkBody serializes records as NDJSON index actions. Each record
// contributes an action line keyed by its idField value followed by the
// document itself. docType is written as _type only when non-empty.
func BuildBulkBody(records []record.Record, index, docType, idField string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, r := range records {
		id := r.ID(idField)
		if id == "" {
			return nil, fmt.Errorf("record %d: missing %q", i, idField)
		}
		action := bulkAction{Index: bulkMeta{Index: index, Type: docType, ID: id}}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("record %s: encode action: %w", id, err)
		}
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("record %s: encode document: %w", id, err)
		}
	}
	return buf.Bytes(), nil
}

// TemplateBody returns an index template matching pattern that adds a raw
// keyword and an english-stemmed subfield to field.
func TemplateBody(pattern, field string) ([]byte, error) {
	body := map[string]any{
		"index_patterns": []string{pattern},
		"mappings": map[string]any{
			"properties": map[string]any{
				field: map[string]any{
					"type": "text",
					"fields": map[string]any{
						"raw":     map[string]any{"type": "keyword", "ignore_above": 256},
						"stemmed": map[string]any{"type": "text", "analyzer": "english"},
					},
				},
			},
		},
	}
	return json.Marshal(body)
}
