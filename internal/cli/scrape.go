package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/reachpan/internal/config"
	"github.com/ppiankov/reachpan/internal/digest"
	"github.com/ppiankov/reachpan/internal/export"
	"github.com/ppiankov/reachpan/internal/graph"
	"github.com/ppiankov/reachpan/internal/processor"
	"github.com/ppiankov/reachpan/internal/record"
	"github.com/ppiankov/reachpan/internal/source"
)

var (
	summaryFormat string
	noColor       bool

	// now is replaced in tests.
	now = time.Now
)

// scraper wires the Graph client, item processor and scheduler of one run.
type scraper struct {
	cfg   *config.Config
	log   zerolog.Logger
	api   *graph.Client
	proc  *processor.Processor
	sched *source.Scheduler
}

func newScraper(cfg *config.Config, log zerolog.Logger) *scraper {
	fetcher := graph.NewFetcher(graph.FetcherConfig{
		Attempts:          config.DefaultRequestAttempts,
		RetryInterval:     cfg.Graph.RetryInterval.Duration,
		Timeout:           cfg.Graph.Timeout.Duration,
		RequestsPerSecond: cfg.Graph.RequestsPerSecond,
	}, log)
	api := graph.NewClient(cfg.Graph.BaseURL, cfg.Graph.APIVersion, cfg.Graph.PageSize, fetcher)
	creds := cfg.Credentials()

	return &scraper{
		cfg: cfg,
		log: log,
		api: api,
		proc: &processor.Processor{
			API:         api,
			Credentials: creds,
			Enrich:      cfg.Enrich,
			Log:         log,
			Now:         now,
		},
		sched: &source.Scheduler{
			Credentials: creds,
			MaxParallel: cfg.Graph.MaxParallel,
			Log:         log,
		},
	}
}

// run walks the feed of every page in pages and returns the merged records
// in page order.
func (s *scraper) run(ctx context.Context, pages []string, first source.FirstPageFunc, process source.ProcessFunc, w window) ([]record.Record, error) {
	walker := &source.Walker{
		First:    first,
		Next:     s.api.Next,
		Process:  process,
		Log:      s.log,
		Location: s.cfg.Location(),
	}

	s.log.Info().
		Int("pages", len(pages)).
		Time("from", w.From).
		Time("until", w.Until).
		Msg("scraping")

	results, err := s.sched.Run(ctx, pages, walker.Func(w.From, w.Cursor()))
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		s.log.Warn().Int("failed", failed).Int("pages", len(pages)).Msg("some pages ended early")
	}
	return source.Merge(results), nil
}

// scrapePages returns the pages exported by the post command.
func scrapePages(cfg *config.Config) []string {
	if len(cfg.Pages.Scrape) > 0 {
		return cfg.Pages.Scrape
	}
	return cfg.OwnedIDs()
}

func addSummaryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&summaryFormat, "format", "", "summary format: terminal, json, markdown")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI colors")
}

func summaryFormatter() (digest.Formatter, error) {
	switch summaryFormat {
	case "json":
		return digest.NewJSON(), nil
	case "markdown", "md":
		return digest.NewMarkdown(), nil
	case "terminal", "":
		return digest.NewTerminal(!noColor), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want terminal, json, or markdown)", summaryFormat)
	}
}

// exportRun writes the CSV file and prints the summary of one scrape.
func exportRun(cfg *config.Config, kind string, columns []string, records []record.Record, w window, started time.Time) error {
	formatter, err := summaryFormatter()
	if err != nil {
		return err
	}

	writer := &export.Writer{Columns: columns, Location: cfg.Location()}
	path, err := writer.WriteFile(cfg.Output.Dir, kind, started.In(cfg.Location()), records)
	if err != nil {
		return fmt.Errorf("export %s: %w", kind, err)
	}

	if summaryFormat == "" || summaryFormat == "terminal" {
		fmt.Fprintf(os.Stdout, "Wrote %d %s to %s in %s\n\n", len(records), kind, path, time.Since(started).Round(time.Second))
	}
	return formatter.Format(os.Stdout, digest.Build(kind, records, w.From, w.Until))
}
