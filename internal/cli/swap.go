package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reachpan/internal/store"
)

var swapCmd = &cobra.Command{
	Use:   "swap [index]",
	Short: "Move the alias onto a written index (default: the newest pending one)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  swapAction,
}

func init() {
	rootCmd.AddCommand(swapCmd)
}

func swapAction(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	var index string
	if len(args) == 1 {
		index = args[0]
	} else {
		pending, err := db.Pending(ctx)
		if err != nil {
			return fmt.Errorf("list pending: %w", err)
		}
		if len(pending) == 0 {
			fmt.Fprintln(os.Stdout, "No pending snapshots.")
			return nil
		}
		index = pending[0].Index
	}

	pub, err := newPublisher(cfg, log, db)
	if err != nil {
		return err
	}
	if err := pub.SwapAlias(ctx, index); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Alias %s -> %s on %d hosts\n", cfg.Elastic.Alias, index, len(pub.Clients))
	return nil
}
