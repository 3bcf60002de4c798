// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv(EnvRepositoryURL, "")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, 10*time.Second, c.Network.Timeout.Std())
	assert.Equal(t, 24*time.Hour, c.Repository.RetryWindow.Std())
	assert.Equal(t, PolicyPrompt, c.Interaction.Policy)
	assert.False(t, c.RepositoryEnabled(), "no URL, no repository")
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "engine.yaml",
			content: `
store:
  path: /tmp/store.db
network:
  timeout: 3s
  maxRetries: 2
repository:
  url: https://certs.example.net/feed
security:
  minRSABits: 2048
  preferredRSABits: 3072
  strictUnknownCA: true
interaction:
  policy: deny
`,
		},
		{
			name: "json",
			file: "engine.json",
			content: `{
  "store": {"path": "/tmp/store.db"},
  "network": {"timeout": "3s", "maxRetries": 2},
  "repository": {"url": "https://certs.example.net/feed"},
  "security": {"minRSABits": 2048, "preferredRSABits": 3072, "strictUnknownCA": true},
  "interaction": {"policy": "deny"}
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvRepositoryURL, "")
			c, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, "/tmp/store.db", c.Store.Path)
			assert.Equal(t, 3*time.Second, c.Network.Timeout.Std())
			assert.Equal(t, uint(2), c.Network.MaxRetries)
			assert.Equal(t, 5*time.Second, c.Network.IdleTimeout.Std(), "unset values keep defaults")
			assert.True(t, c.RepositoryEnabled())
			assert.Equal(t, 2048, c.Security.MinRSABits)
			assert.Equal(t, 3072, c.Security.PreferredRSABits)
			assert.True(t, c.Security.StrictUnknownCA)
			assert.Equal(t, PolicyDeny, c.Interaction.Policy)
			assert.True(t, c.Revocation.Enabled)
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeFile(t, "engine.yml", "repository:\n  url: https://file.example.net\n  enabled: false\n")
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvRepositoryURL, "https://env.example.net/feed")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.net/feed", c.Repository.URL)
	assert.False(t, c.RepositoryEnabled(), "the file switched the repository off")
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown policy", "a.yaml", "interaction:\n  policy: maybe\n"},
		{"unknown key", "b.json", `{"network": {"speed": 1}}`},
		{"bad duration", "c.yaml", "network:\n  timeout: soon\n"},
		{"negative retries", "d.json", `{"network": {"maxRetries": -1}}`},
		{"bad url", "e.yaml", "repository:\n  url: ftp://example.net\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeFile(t, "broken.json", "{"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNormalize(t *testing.T) {
	c := Default()
	c.Network.Timeout = 0
	c.Security.MinECBits = 384
	c.Interaction.Policy = ""
	c.normalize()

	assert.Equal(t, Default().Network.Timeout, c.Network.Timeout)
	assert.Equal(t, 384, c.Security.PreferredECBits)
	assert.Equal(t, PolicyPrompt, c.Interaction.Policy)
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1h30m")))
	assert.Equal(t, 90*time.Minute, d.Std())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1h30m0s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("later")))
}
