package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reachpan/internal/publish"
	"github.com/ppiankov/reachpan/internal/record"
)

var followersCmd = &cobra.Command{
	Use:   "followers",
	Short: "Index the current follower count of every owned page",
	Args:  cobra.NoArgs,
	RunE:  followersAction,
}

func init() {
	rootCmd.AddCommand(followersCmd)
}

func followersAction(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	pub, err := newPublisher(cfg, log, nil)
	if err != nil {
		return err
	}
	if err := pub.Preflight(ctx); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	s := newScraper(cfg, log)
	creds := cfg.Credentials()
	stamp := record.Stamp(now())

	var docs []publish.FollowersDoc
	for _, id := range cfg.OwnedIDs() {
		pf, err := s.api.Followers(ctx, id, creds.Resolve(id))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Str("page", id).Msg("followers lookup failed")
			continue
		}
		docs = append(docs, publish.FollowersDoc{
			Type:      cfg.Elastic.FollowersType,
			Page:      id,
			Followers: pf.Count(),
			Timestamp: stamp,
		})
	}

	if err := pub.IndexFollowers(ctx, cfg.Elastic.FollowersIndex, docType(cfg, "followers"), docs); err != nil {
		return err
	}
	for _, d := range docs {
		fmt.Fprintf(os.Stdout, "%s: %d followers\n", d.Page, d.Followers)
	}
	if len(docs) < len(cfg.Pages.Owned) {
		return fmt.Errorf("followers: %d of %d pages failed", len(cfg.Pages.Owned)-len(docs), len(cfg.Pages.Owned))
	}
	return nil
}
