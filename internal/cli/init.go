package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reachpan/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with an example config",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s. Export the token variables named in config.yaml before scraping.\n", configDir)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# reachpan configuration

graph:
  api_version: "2.7"
  page_size: 100
  requests_per_second: 10
  timeout: 30s
  retry_interval: 3s
  max_parallel: 0

pages:
  # pages exported by 'reachpan post'; defaults to the owned pages
  scrape:
    - nytimes
  owned:
    - id: YourPage
      token_env: YOURPAGE_ACCESS_TOKEN

enrich:
  specific_reactions: false
  public_shares: false

output:
  dir: facebook_output
  timezone: "America/New_York"

elastic:
  hosts_env:
    - REACHPAN_ES_URI
  index_prefix: facebook
  alias: facebook
  followers_index: followers
  mapping_types: false
  timeout: 30s
  retry_interval: 3s

storage:
  path: .reachpan/reachpan.db
  retain_days: 90

log:
  level: info
`
