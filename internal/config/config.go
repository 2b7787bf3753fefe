package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile      = "config.yaml"
	DefaultGraphBaseURL    = "https://graph.facebook.com"
	DefaultGraphVersion    = "2.7"
	DefaultPageSize        = 100
	DefaultRequestsPerSec  = 10
	DefaultGraphTimeout    = 30 * time.Second
	DefaultOutputDir       = "facebook_output"
	DefaultTimezone        = "America/New_York"
	DefaultIndexPrefix     = "facebook"
	DefaultFollowersIndex  = "followers"
	DefaultTemplateField   = "Headline"
	DefaultStoragePath     = ".reachpan/reachpan.db"
	DefaultElasticTimeout  = 30 * time.Second
	DefaultLogLevel        = "info"
	DefaultFollowersDoc    = "facebook"
	DefaultRetryInterval   = 3 * time.Second
	DefaultRequestAttempts = 3
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Graph   GraphConfig   `yaml:"graph"`
	Pages   PagesConfig   `yaml:"pages"`
	Enrich  EnrichConfig  `yaml:"enrich"`
	Output  OutputConfig  `yaml:"output"`
	Elastic ElasticConfig `yaml:"elastic"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

type GraphConfig struct {
	BaseURL           string   `yaml:"base_url"`
	APIVersion        string   `yaml:"api_version"`
	PageSize          int      `yaml:"page_size"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Timeout           Duration `yaml:"timeout"`
	RetryInterval     Duration `yaml:"retry_interval"`
	MaxParallel       int      `yaml:"max_parallel"`
}

type PagesConfig struct {
	// Scrape lists page handles exported by the post command. Pages without
	// their own token are queried with the default credential.
	Scrape []string      `yaml:"scrape"`
	Owned  []OwnedConfig `yaml:"owned"`
}

type OwnedConfig struct {
	ID       string `yaml:"id"`
	TokenEnv string `yaml:"token_env"`

	// Resolved from env var at load time.
	Token string `yaml:"-"`
}

type EnrichConfig struct {
	SpecificReactions bool `yaml:"specific_reactions"`
	PublicShares      bool `yaml:"public_shares"`
}

type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Timezone string `yaml:"timezone"`
}

type ElasticConfig struct {
	Hosts          []string       `yaml:"hosts"`
	HostsEnv       []string       `yaml:"hosts_env"`
	IndexPrefix    string         `yaml:"index_prefix"`
	Alias          string         `yaml:"alias"`
	FollowersIndex string         `yaml:"followers_index"`
	FollowersType  string         `yaml:"followers_type"`
	MappingTypes   bool           `yaml:"mapping_types"`
	Insecure       bool           `yaml:"insecure"`
	Timeout        Duration       `yaml:"timeout"`
	RetryInterval  Duration       `yaml:"retry_interval"`
	Template       TemplateConfig `yaml:"template"`
}

type TemplateConfig struct {
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
	RawField string `yaml:"raw_field"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Graph.BaseURL == "" {
		cfg.Graph.BaseURL = DefaultGraphBaseURL
	}
	if cfg.Graph.APIVersion == "" {
		cfg.Graph.APIVersion = DefaultGraphVersion
	}
	if cfg.Graph.PageSize == 0 {
		cfg.Graph.PageSize = DefaultPageSize
	}
	if cfg.Graph.RequestsPerSecond == 0 {
		cfg.Graph.RequestsPerSecond = DefaultRequestsPerSec
	}
	if cfg.Graph.Timeout.Duration == 0 {
		cfg.Graph.Timeout.Duration = DefaultGraphTimeout
	}
	if cfg.Graph.RetryInterval.Duration == 0 {
		cfg.Graph.RetryInterval.Duration = DefaultRetryInterval
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if cfg.Output.Timezone == "" {
		cfg.Output.Timezone = DefaultTimezone
	}
	if cfg.Elastic.IndexPrefix == "" {
		cfg.Elastic.IndexPrefix = DefaultIndexPrefix
	}
	if cfg.Elastic.Alias == "" {
		cfg.Elastic.Alias = cfg.Elastic.IndexPrefix
	}
	if cfg.Elastic.FollowersIndex == "" {
		cfg.Elastic.FollowersIndex = DefaultFollowersIndex
	}
	if cfg.Elastic.FollowersType == "" {
		cfg.Elastic.FollowersType = DefaultFollowersDoc
	}
	if cfg.Elastic.Timeout.Duration == 0 {
		cfg.Elastic.Timeout.Duration = DefaultElasticTimeout
	}
	if cfg.Elastic.RetryInterval.Duration == 0 {
		cfg.Elastic.RetryInterval.Duration = DefaultRetryInterval
	}
	if cfg.Elastic.Template.Name == "" {
		cfg.Elastic.Template.Name = cfg.Elastic.IndexPrefix + "_template"
	}
	if cfg.Elastic.Template.Pattern == "" {
		cfg.Elastic.Template.Pattern = cfg.Elastic.IndexPrefix + "-*"
	}
	if cfg.Elastic.Template.RawField == "" {
		cfg.Elastic.Template.RawField = DefaultTemplateField
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func resolveEnv(cfg *Config) {
	for i := range cfg.Pages.Owned {
		if cfg.Pages.Owned[i].TokenEnv != "" {
			cfg.Pages.Owned[i].Token = os.Getenv(cfg.Pages.Owned[i].TokenEnv)
		}
	}
	for _, name := range cfg.Elastic.HostsEnv {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			cfg.Elastic.Hosts = append(cfg.Elastic.Hosts, v)
		}
	}
}

func validate(cfg *Config) error {
	if len(cfg.Pages.Owned) == 0 {
		return errors.New("pages.owned: at least one owned page with a token is required")
	}
	seen := make(map[string]bool)
	for _, o := range cfg.Pages.Owned {
		id := strings.ToLower(strings.TrimSpace(o.ID))
		if id == "" {
			return errors.New("pages.owned: id is required")
		}
		if seen[id] {
			return fmt.Errorf("pages.owned: duplicate page %q", o.ID)
		}
		seen[id] = true
		if o.TokenEnv == "" {
			return fmt.Errorf("pages.owned: %s: token_env is required", o.ID)
		}
	}

	if cfg.Graph.PageSize < 1 {
		return fmt.Errorf("graph.page_size: must be positive, got %d", cfg.Graph.PageSize)
	}
	if cfg.Graph.RequestsPerSecond < 0 {
		return errors.New("graph.requests_per_second: must not be negative")
	}
	if cfg.Graph.MaxParallel < 0 {
		return errors.New("graph.max_parallel: must not be negative")
	}
	if cfg.Storage.RetainDays < 0 {
		return errors.New("storage.retain_days: must not be negative")
	}

	if _, err := time.LoadLocation(cfg.Output.Timezone); err != nil {
		return fmt.Errorf("output.timezone: %w", err)
	}

	if strings.ContainsAny(cfg.Elastic.IndexPrefix, " ,*\"\\/?#") {
		return fmt.Errorf("elastic.index_prefix: invalid index name %q", cfg.Elastic.IndexPrefix)
	}

	return nil
}

// Location returns the configured output timezone. validate has already
// checked that it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Output.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OwnedIDs returns the owned page handles in configuration order.
func (c *Config) OwnedIDs() []string {
	ids := make([]string, 0, len(c.Pages.Owned))
	for _, o := range c.Pages.Owned {
		ids = append(ids, o.ID)
	}
	return ids
}

// Credentials builds the token table for a scheduling run.
func (c *Config) Credentials() *Credentials {
	entries := make([]Credential, 0, len(c.Pages.Owned))
	for _, o := range c.Pages.Owned {
		entries = append(entries, Credential{SourceID: o.ID, Token: o.Token})
	}
	return NewCredentials(entries)
}
