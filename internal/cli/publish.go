package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/reachpan/internal/config"
	"github.com/ppiankov/reachpan/internal/elastic"
	"github.com/ppiankov/reachpan/internal/privacy"
	"github.com/ppiankov/reachpan/internal/publish"
	"github.com/ppiankov/reachpan/internal/record"
	"github.com/ppiankov/reachpan/internal/store"
)

var publishCmd = &cobra.Command{
	Use:   "publish <days-back | start-date end-date>",
	Short: "Scrape owned pages into a fresh index and swap the alias onto it",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  publishAction,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

// newClients builds one index client per configured host.
func newClients(cfg *config.Config) ([]elastic.Client, error) {
	if len(cfg.Elastic.Hosts) == 0 {
		return nil, errors.New("elastic.hosts: no index hosts configured")
	}
	clients := make([]elastic.Client, 0, len(cfg.Elastic.Hosts))
	for _, uri := range cfg.Elastic.Hosts {
		c, err := elastic.NewFromURI(uri, cfg.Elastic.Insecure, cfg.Elastic.Timeout.Duration)
		if err != nil {
			return nil, fmt.Errorf("host %s: %w", privacy.Secrets(uri), err)
		}
		clients = append(clients, c)
	}
	return clients, nil
}

// newPublisher builds a publisher over every configured host. ledger may
// be nil.
func newPublisher(cfg *config.Config, log zerolog.Logger, ledger publish.Ledger) (*publish.Publisher, error) {
	clients, err := newClients(cfg)
	if err != nil {
		return nil, err
	}
	return &publish.Publisher{
		Clients:       clients,
		Alias:         cfg.Elastic.Alias,
		RetryInterval: cfg.Elastic.RetryInterval.Duration,
		Ledger:        ledger,
		Log:           log,
		Now:           now,
	}, nil
}

// docType returns the legacy mapping type for kind, or "" when mapping
// types are disabled.
func docType(cfg *config.Config, kind string) string {
	if !cfg.Elastic.MappingTypes {
		return ""
	}
	return cfg.Elastic.IndexPrefix + "-" + kind + "-endpoint"
}

func publishAction(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	started := now()
	w, err := parseWindow(args, started, cfg.Location())
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	pub, err := newPublisher(cfg, log, db)
	if err != nil {
		return err
	}
	if err := pub.Preflight(ctx); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	tmpl, err := elastic.TemplateBody(cfg.Elastic.Template.Pattern, cfg.Elastic.Template.RawField)
	if err != nil {
		return fmt.Errorf("build template: %w", err)
	}
	if err := pub.PutTemplate(ctx, cfg.Elastic.Template.Name, tmpl); err != nil {
		return fmt.Errorf("put template: %w", err)
	}

	s := newScraper(cfg, log)
	owned := cfg.OwnedIDs()

	videos, err := s.run(ctx, owned, s.api.VideoFeed, s.proc.VideoAllMetrics, w)
	if err != nil {
		return err
	}
	posts, err := s.run(ctx, owned, s.api.PostFeed, s.proc.Post, w)
	if err != nil {
		return err
	}

	index := publish.IndexName(cfg.Elastic.IndexPrefix, started)
	acks, err := pub.Publish(ctx, index,
		publish.Batch{Name: "posts", Records: posts, DocType: docType(cfg, "post"), IDField: record.FieldPostID},
		publish.Batch{Name: "videos", Records: videos, DocType: docType(cfg, "video"), IDField: record.FieldVideoID},
	)
	printAcks(index, cfg.Elastic.Alias, acks)

	if cfg.Storage.RetainDays > 0 {
		if n, perr := db.PruneOld(context.WithoutCancel(ctx), cfg.Storage.RetainDays); perr != nil {
			log.Warn().Err(perr).Msg("prune snapshots")
		} else if n > 0 {
			log.Debug().Int64("rows", n).Msg("pruned old snapshots")
		}
	}

	if err != nil {
		var swapErr *publish.AliasSwapError
		if errors.As(err, &swapErr) {
			return fmt.Errorf("%w\nrerun with: reachpan swap %s", err, index)
		}
		return err
	}
	return nil
}

func printAcks(index, alias string, acks []publish.HostAck) {
	for _, a := range acks {
		state := "written, not swapped"
		if a.Swapped {
			state = "alias " + alias + " swapped"
		}
		fmt.Fprintf(os.Stdout, "%s  %s: %d docs, %d failed, %s\n", a.Host, index, a.Docs, a.ItemErrors, state)
	}
}
