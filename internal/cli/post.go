package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/reachpan/internal/digest"
	"github.com/ppiankov/reachpan/internal/export"
)

var postCmd = &cobra.Command{
	Use:   "post <days-back | start-date end-date>",
	Short: "Scrape page posts to CSV and print a summary",
	Example: "  reachpan post 1                      # since yesterday midnight\n" +
		"  reachpan post 2016-09-01 2016-09-02  # both days inclusive",
	Args: cobra.RangeArgs(1, 2),
	RunE: postAction,
}

func init() {
	addSummaryFlags(postCmd)
	rootCmd.AddCommand(postCmd)
}

func postAction(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	started := now()
	w, err := parseWindow(args, started, cfg.Location())
	if err != nil {
		return err
	}

	s := newScraper(cfg, log)
	records, err := s.run(commandContext(cmd), scrapePages(cfg), s.api.PostFeed, s.proc.Post, w)
	if err != nil {
		return err
	}
	return exportRun(cfg, digest.KindPosts, export.PostColumns, records, w, started)
}
