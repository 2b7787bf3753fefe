package elastic

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/reachpan/internal/record"
)

func bulkLines(t *testing.T, body []byte) []map[string]any {
	t.Helper()
	var lines []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestBuildBulkBody(t *testing.T) {
	recs := []record.Record{
		{record.FieldPostID: "1_1", record.FieldHeadline: "a & b", "Num Shares": int64(3)},
		{record.FieldPostID: "1_2", record.FieldHeadline: "c", "CTR (%)": nil},
	}

	body, err := BuildBulkBody(recs, "fb-20160902-1200", "fb-post-endpoint", record.FieldPostID)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(body, []byte("\n")))
	assert.Contains(t, string(body), "a & b")

	lines := bulkLines(t, body)
	require.Len(t, lines, 4)

	action := lines[0]["index"].(map[string]any)
	assert.Equal(t, "fb-20160902-1200", action["_index"])
	assert.Equal(t, "fb-post-endpoint", action["_type"])
	assert.Equal(t, "1_1", action["_id"])
	assert.Equal(t, float64(3), lines[1]["Num Shares"])

	action = lines[2]["index"].(map[string]any)
	assert.Equal(t, "1_2", action["_id"])
	assert.Contains(t, lines[3], "CTR (%)")
	assert.Nil(t, lines[3]["CTR (%)"])
}

func TestBuildBulkBody_OmitsEmptyType(t *testing.T) {
	recs := []record.Record{{record.FieldVideoID: "v1"}}
	body, err := BuildBulkBody(recs, "fb-1", "", record.FieldVideoID)
	require.NoError(t, err)

	action := bulkLines(t, body)[0]["index"].(map[string]any)
	assert.NotContains(t, action, "_type")
	assert.Equal(t, "v1", action["_id"])
}

func TestBuildBulkBody_MissingID(t *testing.T) {
	recs := []record.Record{{record.FieldPostID: "1_1"}, {record.FieldHeadline: "no id"}}
	_, err := BuildBulkBody(recs, "fb-1", "", record.FieldPostID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 1")
}

func TestBuildBulkBody_Empty(t *testing.T) {
	body, err := BuildBulkBody(nil, "fb-1", "", record.FieldPostID)
	require.NoError(t, err)
	assert.Empty(t, body)
}
