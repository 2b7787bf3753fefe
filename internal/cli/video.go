package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/reachpan/internal/digest"
	"github.com/ppiankov/reachpan/internal/export"
)

var videoCmd = &cobra.Command{
	Use:   "video <days-back | start-date end-date>",
	Short: "Scrape owned page videos to CSV and print a summary",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  videoAction,
}

func init() {
	addSummaryFlags(videoCmd)
	rootCmd.AddCommand(videoCmd)
}

func videoAction(cmd *cobra.Command, args []string) error {
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
	records, err := s.run(commandContext(cmd), cfg.OwnedIDs(), s.api.VideoFeed, s.proc.Video, w)
	if err != nil {
		return err
	}
	return exportRun(cfg, digest.KindVideos, export.VideoColumns, records, w, started)
}
