// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/cli"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/config"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/engine"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/testpki"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/logger"
)

const version = "1.3.3.7-testing"

// workspace is a config file with a persistent store in a temp dir.
type workspace struct {
	dir    string
	config string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv(config.EnvRepositoryURL, "")

	dir := t.TempDir()
	cfg := "store:\n  path: " + filepath.Join(dir, "store.db") + "\nrevocation:\n  enabled: false\n"
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return &workspace{dir: dir, config: path}
}

func (w *workspace) writePEM(t *testing.T, name string, chain [][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	for _, der := range chain {
		require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	}
	path := filepath.Join(w.dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

// run executes the command line args with stdin and returns stdout.
func (w *workspace) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := cli.NewRootCommand(version, logger.Nop())
	cmd.SetArgs(append([]string{"--config", w.config}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVerifyRequiresInput(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "", "verify")
	assert.ErrorIs(t, err, cli.ErrInputRequired)
}

func TestVerifyNonExistentFile(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "", "verify", "--file", filepath.Join(w.dir, "missing.pem"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVerifyInvalidFile(t *testing.T) {
	w := newWorkspace(t)
	path := filepath.Join(w.dir, "invalid.cer")
	require.NoError(t, os.WriteFile(path, []byte("invalid data"), 0o600))

	_, err := w.run(t, "", "verify", "--file", path)
	assert.Error(t, err)
}

func TestUnknownPolicy(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "", "--policy", "maybe", "store", "status")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestImportAndVerify(t *testing.T) {
	w := newWorkspace(t)
	root := testpki.NewRoot(t, "CLI Root")
	inter := root.NewIntermediate(t, "CLI Intermediate")
	leaf := inter.NewLeaf(t, []string{"www.example.com"})

	rootFile := w.writePEM(t, "root.pem", testpki.Chain(root))
	chainFile := w.writePEM(t, "chain.pem", testpki.Chain(leaf, inter))

	out, err := w.run(t, "", "store", "import", "--kind", "root", rootFile)
	require.NoError(t, err)
	assert.Contains(t, out, "CLI Root")

	out, err = w.run(t, "", "--json", "store", "status")
	require.NoError(t, err)
	var stats struct {
		Records map[string]int `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Records["root"], "the import survived the previous run")

	out, err = w.run(t, "", "verify", "--file", chainFile, "--server-name", "www.example.com", "--tree", "--table")
	require.NoError(t, err)
	assert.Contains(t, out, "accepted")
	assert.Contains(t, out, "CLI Intermediate")
	assert.Contains(t, out, "CLI Root")

	out, err = w.run(t, "", "--json", "verify", "--file", chainFile, "--server-name", "www.example.com", "--pem")
	require.NoError(t, err)
	var report engine.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Accepted)
	require.Len(t, report.Chain, 3)
	assert.Contains(t, report.Chain[0].PEM, "BEGIN CERTIFICATE")
}

func TestVerifyDenied(t *testing.T) {
	w := newWorkspace(t)
	root := testpki.NewRoot(t, "CLI Root")
	leaf := root.NewLeaf(t, []string{"www.example.com"})
	_, err := w.run(t, "", "store", "import", w.writePEM(t, "root.pem", testpki.Chain(root)))
	require.NoError(t, err)

	chainFile := w.writePEM(t, "chain.pem", testpki.Chain(leaf))
	out, err := w.run(t, "", "--policy", "deny", "verify", "--file", chainFile, "--server-name", "mail.example.com")
	assert.ErrorIs(t, err, cli.ErrNotTrusted)
	assert.ErrorIs(t, err, trust.ErrAccessDenied)
	assert.Contains(t, out, "denied")
	assert.Contains(t, out, "name_mismatch")
}

func TestPromptRememberAndForget(t *testing.T) {
	w := newWorkspace(t)
	root := testpki.NewRoot(t, "CLI Root")
	leaf := root.NewLeaf(t, []string{"www.example.com"})
	_, err := w.run(t, "", "store", "import", w.writePEM(t, "root.pem", testpki.Chain(root)))
	require.NoError(t, err)
	chainFile := w.writePEM(t, "chain.pem", testpki.Chain(leaf))

	_, err = w.run(t, "a\n", "verify", "--file", chainFile, "--server-name", "mail.example.com")
	require.NoError(t, err)

	// The remembered decision answers without a prompt.
	_, err = w.run(t, "", "verify", "--file", chainFile, "--server-name", "mail.example.com")
	require.NoError(t, err)

	out, err := w.run(t, "", "--json", "acceptances", "list")
	require.NoError(t, err)
	var rows []engine.AcceptanceRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	fp := x509certs.FingerprintOf(leaf.Cert.Raw).String()
	assert.Equal(t, fp, rows[0].Fingerprint)
	assert.Equal(t, trust.PermanentlyConfirmed.String(), rows[0].Mode)

	out, err = w.run(t, "", "acceptances", "forget", fp)
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 acceptance(s)\n", out)

	out, err = w.run(t, "", "acceptances", "list")
	require.NoError(t, err)
	assert.Equal(t, "No stored acceptances\n", out)
}

func TestRepositoryRefreshDisabled(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "", "repository", "refresh")
	assert.Error(t, err)
}
