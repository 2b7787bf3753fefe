package digest

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// TerminalFormatter formats a summary as aligned tables.
type TerminalFormatter struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color}
}

// Format writes medians, totals and top items to w.
func (f *TerminalFormatter) Format(w io.Writer, s *Summary) error {
	header := fmt.Sprintf("reachpan: %d %s from %d pages, %s to %s",
		s.Records, s.Kind, len(s.Pages), s.From.Format("2006-01-02 15:04"), s.Until.Format("2006-01-02 15:04"))
	fmt.Fprintln(w, f.bold(header))
	fmt.Fprintln(w)

	if len(s.Pages) == 0 {
		fmt.Fprintln(w, "No items found.")
		return nil
	}

	fmt.Fprintln(w, f.bold("Medians:"))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Page\t%s\t\n", strings.Join(s.MedianFields, "\t"))
	for _, p := range s.Pages {
		cells := make([]string, 0, len(p.Medians))
		for _, m := range p.Medians {
			cells = append(cells, formatMedian(m))
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", p.Page, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, f.bold("Totals:"))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Page\t%s\t\n", strings.Join(s.TotalFields, "\t"))
	for _, p := range s.Pages {
		cells := make([]string, 0, len(p.Totals))
		for _, t := range p.Totals {
			cells = append(cells, formatTotal(t))
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", p.Page, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(s.Top) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, f.bold("Top by adjusted engagement:"))
		for _, t := range s.Top {
			fmt.Fprintf(w, "  %5.1f%%  %s  %s\n", round1(t.Score), t.Page, f.dim(headlineOrID(t)))
		}
	}
	fmt.Fprintln(w)
	return nil
}

func formatMedian(m *float64) string {
	if m == nil {
		return "-"
	}
	return humanize.CommafWithDigits(round1(*m), 1)
}

func formatTotal(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}

func headlineOrID(t TopItem) string {
	if t.Headline != "" {
		return t.Headline
	}
	return t.ID
}

// ANSI helpers, no-op when color=false.

func (f *TerminalFormatter) bold(s string) string {
	if !f.color {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func (f *TerminalFormatter) dim(s string) string {
	if !f.color {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}
