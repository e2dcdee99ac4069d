package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	DefaultAuthURL  = "https://raindrop.io/oauth/authorize"
	DefaultTokenURL = "https://raindrop.io/oauth/access_token"
	DefaultAPIBase  = "https://api.raindrop.io/rest/v1"
)

type RaindropConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	APIBase      string `yaml:"api_base"`
	TokenFile    string `yaml:"token_file"`
}

type OutputConfig struct {
	VaultPath    string `yaml:"vault_path"`
	TaggedFile   string `yaml:"tagged_file"`
	UntaggedFile string `yaml:"untagged_file"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type HTTPConfig struct {
	TimeoutSec int    `yaml:"timeout_sec"`
	UserAgent  string `yaml:"user_agent"`
	PerPage    int    `yaml:"per_page"`
	// MaxPages caps bookmark pagination. 0 keeps paging until an empty page.
	MaxPages int `yaml:"max_pages"`
}

type EnrichConfig struct {
	Enabled         bool `yaml:"enabled"`
	TimeoutSec      int  `yaml:"timeout_sec"`
	DelayMS         int  `yaml:"delay_ms"`
	MaxBodyKB       int  `yaml:"max_body_kb"`
	MaxExcerptChars int  `yaml:"max_excerpt_chars"`
}

type DBConfig struct {
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	Collections struct {
		Runs string `yaml:"runs"`
	} `yaml:"collections"`
}

type SyncConfig struct {
	Raindrop RaindropConfig `yaml:"raindrop"`
	Output   OutputConfig   `yaml:"output"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	DB       DBConfig       `yaml:"db"`
}

func LoadConfig(path string) (*SyncConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg SyncConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyEnv lets credentials live outside the config file.
func (c *SyncConfig) ApplyEnv() {
	if v := os.Getenv("RAINDROP_CLIENT_ID"); v != "" {
		c.Raindrop.ClientID = v
	}
	if v := os.Getenv("RAINDROP_CLIENT_SECRET"); v != "" {
		c.Raindrop.ClientSecret = v
	}
}

func (c *SyncConfig) ApplyDefaults() {
	r := &c.Raindrop
	r.AuthURL = orDefault(r.AuthURL, DefaultAuthURL)
	r.TokenURL = orDefault(r.TokenURL, DefaultTokenURL)
	r.APIBase = orDefault(r.APIBase, DefaultAPIBase)
	r.RedirectURI = orDefault(r.RedirectURI, "http://localhost/callback")
	r.TokenFile = orDefault(r.TokenFile, "raindrop_token.json")

	o := &c.Output
	o.TaggedFile = orDefault(o.TaggedFile, "bookmarks.md")
	o.UntaggedFile = orDefault(o.UntaggedFile, "bookmarks_untagged.md")

	c.Log.File = orDefault(c.Log.File, "sync_raindrop_to_obsidian.log")
	c.Log.Level = orDefault(c.Log.Level, "info")
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}

	if c.HTTP.TimeoutSec <= 0 {
		c.HTTP.TimeoutSec = 30
	}
	c.HTTP.UserAgent = orDefault(c.HTTP.UserAgent, "raindrop-sync/1.0")

	e := &c.Enrich
	if e.TimeoutSec <= 0 {
		e.TimeoutSec = 10
	}
	if e.DelayMS <= 0 {
		e.DelayMS = 500
	}
	if e.MaxBodyKB <= 0 {
		e.MaxBodyKB = 2048
	}
	if e.MaxExcerptChars <= 0 {
		e.MaxExcerptChars = 300
	}

	c.DB.Database = orDefault(c.DB.Database, "raindrop_sync")
	c.DB.Collections.Runs = orDefault(c.DB.Collections.Runs, "sync_runs")
}

func (c *SyncConfig) Validate() error {
	var errs []error
	if c.Raindrop.ClientID == "" {
		errs = append(errs, errors.New("raindrop.client_id is required"))
	}
	if c.Raindrop.ClientSecret == "" {
		errs = append(errs, errors.New("raindrop.client_secret is required"))
	}
	if c.Output.VaultPath == "" && (!filepath.IsAbs(c.Output.TaggedFile) || !filepath.IsAbs(c.Output.UntaggedFile)) {
		errs = append(errs, errors.New("output.vault_path is required for relative output files"))
	}
	if c.TaggedPath() == c.UntaggedPath() {
		errs = append(errs, errors.New("output.tagged_file and output.untagged_file must differ"))
	}
	if c.HTTP.PerPage < 0 || c.HTTP.PerPage > 50 {
		errs = append(errs, fmt.Errorf("http.per_page must be between 0 and 50, got %d", c.HTTP.PerPage))
	}
	if c.HTTP.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("http.max_pages must not be negative, got %d", c.HTTP.MaxPages))
	}
	return errors.Join(errs...)
}

// SetVault moves the output to vault. Absolute output files inside the
// previous vault follow it; those outside it are kept as they are.
func (c *SyncConfig) SetVault(vault string) {
	old := c.Output.VaultPath
	c.Output.TaggedFile = rebase(c.Output.TaggedFile, old)
	c.Output.UntaggedFile = rebase(c.Output.UntaggedFile, old)
	c.Output.VaultPath = vault
}

func rebase(name, vault string) string {
	if vault == "" || !filepath.IsAbs(name) {
		return name
	}
	rel, err := filepath.Rel(vault, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return name
	}
	return rel
}

func (c *SyncConfig) TaggedPath() string {
	return c.outputPath(c.Output.TaggedFile)
}

func (c *SyncConfig) UntaggedPath() string {
	return c.outputPath(c.Output.UntaggedFile)
}

func (c *SyncConfig) outputPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Output.VaultPath, name)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
