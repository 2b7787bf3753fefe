package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ppiankov/reachpan/internal/config"
	"github.com/ppiankov/reachpan/internal/store"
)

var (
	statusFormat  string
	statusPending bool
	statusLimit   int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List published snapshots and their alias state",
	Args:  cobra.NoArgs,
	RunE:  statusAction,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "terminal", "output format: terminal, json")
	statusCmd.Flags().BoolVar(&statusPending, "pending", false, "only snapshots written but not swapped")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "maximum rows (0 for all)")
	rootCmd.AddCommand(statusCmd)
}

// stalePending is how long a written snapshot may wait for its swap before
// status flags it.
const stalePending = 24 * time.Hour

func statusAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	filter := store.SnapshotFilter{Limit: statusLimit}
	if statusPending {
		filter.Status = store.StatusWritten
	}
	snaps, err := db.ListSnapshots(commandContext(cmd), filter)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	switch statusFormat {
	case "json":
		return printStatusJSON(os.Stdout, snaps)
	case "terminal", "":
		if len(snaps) == 0 {
			fmt.Fprintln(os.Stdout, "No snapshots found. Run 'reachpan publish' first.")
			return nil
		}
		printStatus(os.Stdout, snaps, now())
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", statusFormat)
	}
}

type jsonSnapshot struct {
	Index      string `json:"index"`
	Alias      string `json:"alias"`
	Host       string `json:"host"`
	Docs       int    `json:"docs"`
	ItemErrors int    `json:"item_errors"`
	Status     string `json:"status"`
	WrittenAt  string `json:"written_at"`
	SwappedAt  string `json:"swapped_at,omitempty"`
}

func printStatusJSON(w io.Writer, snaps []store.Snapshot) error {
	out := make([]jsonSnapshot, 0, len(snaps))
	for _, s := range snaps {
		js := jsonSnapshot{
			Index:      s.Index,
			Alias:      s.Alias,
			Host:       s.Host,
			Docs:       s.Docs,
			ItemErrors: s.ItemErrors,
			Status:     s.Status,
			WrittenAt:  s.WrittenAt.UTC().Format(time.RFC3339),
		}
		if !s.SwappedAt.IsZero() {
			js.SwappedAt = s.SwappedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, js)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"snapshots": out})
}

func printStatus(w io.Writer, snaps []store.Snapshot, at time.Time) {
	pending := 0
	for _, s := range snaps {
		if s.Status == store.StatusWritten {
			pending++
		}
	}
	fmt.Fprintf(w, "reachpan status: %d snapshots, %d pending swap\n\n", len(snaps), pending)

	maxIndex := 5 // minimum "Index"
	for _, s := range snaps {
		if len(s.Index) > maxIndex {
			maxIndex = len(s.Index)
		}
	}

	fmt.Fprintf(w, "  %-*s  %-7s  %6s  %6s  %-14s  %s\n", maxIndex, "Index", "Status", "Docs", "Failed", "Written", "Host")
	for _, s := range snaps {
		fmt.Fprintf(w, "  %-*s  %-7s  %6s  %6d  %-14s  %s\n",
			maxIndex, s.Index, s.Status, humanize.Comma(int64(s.Docs)), s.ItemErrors,
			humanize.RelTime(s.WrittenAt, at, "ago", "from now"), s.Host)
	}
	fmt.Fprintln(w)

	for _, s := range snaps {
		if s.Status == store.StatusWritten && at.Sub(s.WrittenAt) > stalePending {
			fmt.Fprintf(w, "  %s on %s was never swapped; run 'reachpan swap %s'\n", s.Index, s.Host, s.Index)
		}
	}
}
