package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Ledger     LedgerConfig     `toml:"ledger"`
	Catalog    CatalogConfig    `toml:"catalog"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Downloader DownloaderConfig `toml:"downloader"`
	Uploader   UploaderConfig   `toml:"uploader"`
	Notify     NotifyConfig     `toml:"notify"`
	HTTP       HTTPConfig       `toml:"http"`
}

// LedgerConfig addresses the gist that holds the three ledger documents.
type LedgerConfig struct {
	APIBaseURL     string `toml:"api_base_url"`
	Description    string `toml:"description"`
	ConfigDocument string `toml:"config_document"`
	CookieDocument string `toml:"cookie_document"`
	IndexDocument  string `toml:"index_document"`
}

// CatalogConfig contains channel feed settings.
type CatalogConfig struct {
	FeedBaseURL string `toml:"feed_base_url"`
}

// PipelineConfig contains per-run migration settings.
type PipelineConfig struct {
	QuotaPerSource int    `toml:"quota_per_source"`
	PacingSeconds  int    `toml:"pacing_seconds"`
	Workspace      string `toml:"workspace"`
	CookieFile     string `toml:"cookie_file"`
}

// DownloaderConfig contains yt-dlp invocation settings.
type DownloaderConfig struct {
	Binary  string   `toml:"binary"`
	Formats []string `toml:"formats"`
}

// UploaderConfig contains biliup invocation and manifest settings.
type UploaderConfig struct {
	Binary              string `toml:"binary"`
	ManifestFile        string `toml:"manifest_file"`
	Line                string `toml:"line"`
	Limit               int    `toml:"limit"`
	TitleMarker         string `toml:"title_marker"`
	DescriptionTemplate string `toml:"description_template"`
}

// NotifyConfig contains push notification settings.
//
// An empty token disables notifications entirely.
type NotifyConfig struct {
	Endpoint string `toml:"endpoint"`
	Token    string `toml:"token"`
	ProxyURL string `toml:"proxy_url"`
}

// HTTPConfig contains transport-level settings shared by outbound clients.
type HTTPConfig struct {
	Insecure bool `toml:"insecure"`
}

// PacingInterval returns the configured sleep between successful publishes.
func (c *Config) PacingInterval() time.Duration {
	return time.Duration(c.Pipeline.PacingSeconds) * time.Second
}

// ApplyEnv overlays the environment variable escape hatches kept for
// compatibility with scheduler deployments: verify=0 disables TLS
// verification and https_proxy routes the notification call.
func (c *Config) ApplyEnv() {
	if os.Getenv("verify") == "0" {
		c.HTTP.Insecure = true
	}
	if proxy := os.Getenv("https_proxy"); proxy != "" {
		c.Notify.ProxyURL = proxy
	}
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
