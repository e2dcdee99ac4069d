package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
raindrop:
  client_id: file-id
  client_secret: file-secret
output:
  vault_path: /vault
  untagged_file: inbox/untagged.md
http:
  per_page: 50
enrich:
  enabled: true
db:
  connection: mongodb://localhost:27017
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Setenv("RAINDROP_CLIENT_ID", "")
	t.Setenv("RAINDROP_CLIENT_SECRET", "")

	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "file-id", cfg.Raindrop.ClientID)
	assert.Equal(t, DefaultTokenURL, cfg.Raindrop.TokenURL)
	assert.Equal(t, DefaultAPIBase, cfg.Raindrop.APIBase)
	assert.Equal(t, "raindrop_token.json", cfg.Raindrop.TokenFile)
	assert.Equal(t, "/vault/bookmarks.md", cfg.TaggedPath())
	assert.Equal(t, "/vault/inbox/untagged.md", cfg.UntaggedPath())
	assert.Equal(t, 30, cfg.HTTP.TimeoutSec)
	assert.Equal(t, 50, cfg.HTTP.PerPage)
	assert.Equal(t, 0, cfg.HTTP.MaxPages)
	assert.True(t, cfg.Enrich.Enabled)
	assert.Equal(t, 300, cfg.Enrich.MaxExcerptChars)
	assert.Equal(t, "sync_runs", cfg.DB.Collections.Runs)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverridesCredentials(t *testing.T) {
	t.Setenv("RAINDROP_CLIENT_ID", "env-id")
	t.Setenv("RAINDROP_CLIENT_SECRET", "env-secret")

	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-id", cfg.Raindrop.ClientID)
	assert.Equal(t, "env-secret", cfg.Raindrop.ClientSecret)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigMalformed(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "raindrop: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &SyncConfig{}
	cfg.ApplyDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_id")
	assert.Contains(t, err.Error(), "client_secret")
	assert.Contains(t, err.Error(), "vault_path")

	cfg.Raindrop.ClientID = "id"
	cfg.Raindrop.ClientSecret = "secret"
	cfg.Output.TaggedFile = "/abs/bookmarks.md"
	cfg.Output.UntaggedFile = "/abs/untagged.md"
	assert.NoError(t, cfg.Validate())

	cfg.Output.UntaggedFile = cfg.Output.TaggedFile
	assert.ErrorContains(t, cfg.Validate(), "must differ")

	cfg.Output.UntaggedFile = "/abs/untagged.md"
	cfg.HTTP.PerPage = 51
	assert.ErrorContains(t, cfg.Validate(), "per_page")
}

func TestSetVaultRebasesFilesInsideOldVault(t *testing.T) {
	old := filepath.Join(string(filepath.Separator), "old", "vault")
	elsewhere := filepath.Join(string(filepath.Separator), "elsewhere", "untagged.md")
	cfg := &SyncConfig{Output: OutputConfig{
		VaultPath:    old,
		TaggedFile:   filepath.Join(old, "Raindrop", "bookmarks.md"),
		UntaggedFile: elsewhere,
	}}

	vault := filepath.Join(string(filepath.Separator), "new", "vault")
	cfg.SetVault(vault)

	assert.Equal(t, vault, cfg.Output.VaultPath)
	assert.Equal(t, filepath.Join(vault, "Raindrop", "bookmarks.md"), cfg.TaggedPath())
	assert.Equal(t, elsewhere, cfg.UntaggedPath())
}

func TestSetVaultKeepsRelativeFiles(t *testing.T) {
	cfg := &SyncConfig{}
	cfg.Output.VaultPath = "/old"
	cfg.ApplyDefaults()

	cfg.SetVault("/new")

	assert.Equal(t, filepath.Join("/new", "bookmarks.md"), cfg.TaggedPath())
	assert.Equal(t, filepath.Join("/new", "bookmarks_untagged.md"), cfg.UntaggedPath())
}

func TestSetVaultSiblingPrefixIsNotInside(t *testing.T) {
	cfg := &SyncConfig{Output: OutputConfig{
		VaultPath:    "/vault",
		TaggedFile:   "/vault-archive/bookmarks.md",
		UntaggedFile: "/vault/untagged.md",
	}}

	cfg.SetVault("/new")

	assert.Equal(t, "/vault-archive/bookmarks.md", cfg.TaggedPath())
	assert.Equal(t, filepath.Join("/new", "untagged.md"), cfg.UntaggedPath())
}
