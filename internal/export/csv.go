// Package export writes scraped records to CSV files with a fixed column
// order per kind.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/ppiankov/reachpan/internal/processor"
	"github.com/ppiankov/reachpan/internal/record"
)

// FieldPublishedLocal is the derived column holding Published rendered in
// the configured timezone.
const FieldPublishedLocal = "Published (Local)"

const localLayout = "2006-01-02 15:04:05"

// PostColumns is the column order of posts CSV files.
var PostColumns = []string{
	record.FieldPage, FieldPublishedLocal, record.FieldType, record.FieldHeadline,
	processor.FieldUniqueImpressions, processor.FieldNonLikerRate, processor.FieldUniqueLinkClicks,
	processor.FieldCTR, processor.FieldAdjustedCTR, processor.FieldNumShares,
	processor.FieldEngagementRate, processor.FieldAdjustedEngagementRate, processor.FieldPublicShares,
	processor.FieldNumReactions, processor.FieldVideoViews, record.FieldCaption, record.FieldLink,
	processor.FieldNumLikes, processor.FieldNumComments, processor.FieldNumLoves, processor.FieldNumWows,
	processor.FieldNumHahas, processor.FieldNumSads, processor.FieldNumAngrys, processor.FieldHideRate,
	processor.FieldHideClicks, processor.FieldHideAllClicks, processor.FieldPaidImpressions,
	processor.FieldOrganicImpressions, record.FieldPostID,
}

// VideoColumns is the column order of videos CSV files.
var VideoColumns = []string{
	record.FieldPage, record.FieldVideoID, FieldPublishedLocal, processor.FieldLiveVideo,
	processor.FieldCrossposted, record.FieldHeadline, record.FieldCaption, processor.FieldNumLikes,
	processor.FieldNumReactions, processor.FieldNumComments, processor.Field3sViews,
	processor.Field10sViews, processor.FieldCompleteViews, processor.FieldPaidViews,
	processor.Field10s3sRatio, processor.FieldComplete3sRatio, processor.FieldImpressions,
	processor.FieldNonLikerRate, processor.FieldAvgViewTime, record.FieldLink,
}

// Writer renders records as CSV rows.
type Writer struct {
	Columns  []string
	Location *time.Location
}

// Write writes a header and one row per record. Floats are rounded to one
// decimal and nil or missing fields become empty cells.
func (cw *Writer) Write(w io.Writer, records []record.Record) error {
	out := csv.NewWriter(w)
	if err := out.Write(cw.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(cw.Columns))
	for _, r := range records {
		for i, col := range cw.Columns {
			row[i] = cw.cell(r, col)
		}
		if err := out.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	out.Flush()
	return out.Error()
}

func (cw *Writer) cell(r record.Record, col string) string {
	if col == FieldPublishedLocal {
		t, err := r.Published()
		if err != nil {
			return ""
		}
		loc := cw.Location
		if loc == nil {
			loc = time.UTC
		}
		return t.In(loc).Format(localLayout)
	}
	return FormatValue(r[col])
}

// FormatValue renders a record value as a CSV cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		rounded, err := stats.Round(x, 1)
		if err != nil {
			return ""
		}
		return strconv.FormatFloat(rounded, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// FileName returns the CSV file name for a run of kind started at now.
func FileName(kind string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", kind, now.Format("06-01-02_15.04.05"))
}

// WriteFile writes records to a new timestamped CSV file under dir and
// returns its path.
func (cw *Writer) WriteFile(dir, kind string, now time.Time, records []record.Record) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, FileName(kind, now))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := cw.Write(f, records); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
