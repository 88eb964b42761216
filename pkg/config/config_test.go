package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8700", cfg.Server.Addr)
	assert.False(t, cfg.Remote.Enabled)
	assert.Equal(t, 3, cfg.Remote.ConnectRetries)
	assert.Equal(t, 2*time.Second, cfg.Remote.RetryBackoff.Std())
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 5, cfg.Browser.MaxContexts)
	assert.Empty(t, cfg.AllowedDomains)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9000"
remote:
  enabled: true
  endpoint: "http://localhost:8931"
  retry_backoff: 500ms
browser:
  headless: false
allowed_domains:
  - "*.carrier.example"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.True(t, cfg.Remote.Enabled)
	assert.Equal(t, "http://localhost:8931", cfg.Remote.Endpoint)
	assert.Equal(t, 500*time.Millisecond, cfg.Remote.RetryBackoff.Std())
	assert.False(t, cfg.Browser.Headless)
	// Untouched fields keep defaults.
	assert.Equal(t, 5, cfg.Browser.MaxContexts)
	assert.Equal(t, []string{"*.carrier.example"}, cfg.AllowedDomains)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "remote without endpoint", content: "remote:\n  enabled: true\n"},
		{name: "zero retries", content: "remote:\n  connect_retries: 0\n"},
		{name: "bad yaml", content: "server:\n  addr: [unclosed\n"},
		{name: "bad glob", content: "allowed_domains:\n  - '[unclosed'\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestDomainWhitelist(t *testing.T) {
	w, err := NewDomainWhitelist([]string{"*.carrier.example", "quotes.example.com"})
	require.NoError(t, err)

	assert.True(t, w.Allows("https://www.carrier.example/start"))
	assert.True(t, w.Allows("https://quotes.example.com"))
	assert.False(t, w.Allows("https://carrier.example/start")) // bare apex does not match *.
	assert.False(t, w.Allows("https://evil.example.net"))
	assert.False(t, w.Allows("not a url"))
}

func TestDomainWhitelistEmptyAllowsAll(t *testing.T) {
	w, err := NewDomainWhitelist(nil)
	require.NoError(t, err)
	assert.True(t, w.Allows("https://anything.example"))
}

func TestDomainWhitelistCaseInsensitive(t *testing.T) {
	w, err := NewDomainWhitelist([]string{"*.Carrier.Example"})
	require.NoError(t, err)
	assert.True(t, w.Allows("https://WWW.CARRIER.EXAMPLE/path"))
}
