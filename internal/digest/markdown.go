package digest

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownFormatter formats a summary as Markdown tables.
type MarkdownFormatter struct{}

// NewMarkdown creates a Markdown formatter.
func NewMarkdown() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format writes the summary as Markdown to w.
func (f *MarkdownFormatter) Format(w io.Writer, s *Summary) error {
	fmt.Fprintf(w, "# reachpan %s summary\n\n", s.Kind)
	fmt.Fprintf(w, "%d %s from %d pages, %s to %s\n\n",
		s.Records, s.Kind, len(s.Pages), s.From.Format("2006-01-02"), s.Until.Format("2006-01-02"))

	if len(s.Pages) == 0 {
		fmt.Fprintln(w, "No items found.")
		return nil
	}

	fmt.Fprintf(w, "## Medians\n\n")
	writeTableHeader(w, s.MedianFields)
	for _, p := range s.Pages {
		cells := make([]string, 0, len(p.Medians))
		for _, m := range p.Medians {
			cells = append(cells, formatMedian(m))
		}
		fmt.Fprintf(w, "| %s | %s |\n", p.Page, strings.Join(cells, " | "))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "## Totals\n\n")
	writeTableHeader(w, s.TotalFields)
	for _, p := range s.Pages {
		cells := make([]string, 0, len(p.Totals))
		for _, t := range p.Totals {
			cells = append(cells, formatTotal(t))
		}
		fmt.Fprintf(w, "| %s | %s |\n", p.Page, strings.Join(cells, " | "))
	}
	fmt.Fprintln(w)

	if len(s.Top) > 0 {
		fmt.Fprintf(w, "## Top by adjusted engagement\n\n")
		for _, t := range s.Top {
			fmt.Fprintf(w, "- **%.1f%%** %s: %s\n", round1(t.Score), t.Page, headlineOrID(t))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func writeTableHeader(w io.Writer, fields []string) {
	fmt.Fprintf(w, "| Page | %s |\n", strings.Join(fields, " | "))
	fmt.Fprintf(w, "|---|%s\n", strings.Repeat("---:|", len(fields)))
}
