package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reachpan/internal/config"
	"github.com/ppiankov/reachpan/internal/privacy"
	"github.com/ppiankov/reachpan/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, credentials, ledger and index hosts",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return fmt.Errorf("some checks failed")
	}
	printCheck(true, "config.yaml (%d pages to scrape, %d owned, %d index hosts)",
		len(scrapePages(cfg)), len(cfg.Pages.Owned), len(cfg.Elastic.Hosts))

	// Tokens
	for _, o := range cfg.Pages.Owned {
		if o.Token == "" {
			printCheck(false, "token for %s ($%s is empty)", o.ID, o.TokenEnv)
			ok = false
		} else {
			printCheck(true, "token for %s", o.ID)
		}
	}
	if cfg.Credentials().Default() == "" {
		printCheck(false, "default credential (no owned page has a token)")
		ok = false
	}

	// Database
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		printCheck(false, "database: %v", err)
		ok = false
	} else {
		defer func() { _ = db.Close() }()
		printCheck(true, "database %s", cfg.Storage.Path)
		checkPending(commandContext(cmd), db)
	}

	// Index hosts
	if len(cfg.Elastic.Hosts) == 0 {
		printInfo("no index hosts configured; publish and followers are unavailable")
	} else {
		clients, err := newClients(cfg)
		if err != nil {
			printCheck(false, "index hosts: %v", err)
			ok = false
		}
		for _, c := range clients {
			if err := c.Ping(commandContext(cmd)); err != nil {
				printCheck(false, "index host %s: %s", c.BaseURL(), privacy.Secrets(err.Error()))
				ok = false
			} else {
				printCheck(true, "index host %s", c.BaseURL())
			}
		}
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func checkPending(ctx context.Context, db *store.Store) {
	pending, err := db.Pending(ctx)
	if err != nil || len(pending) == 0 {
		return
	}
	for _, s := range pending {
		age := time.Since(s.WrittenAt).Round(time.Minute)
		printInfo("pending swap: %s on %s, written %s ago", s.Index, s.Host, age)
	}
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
