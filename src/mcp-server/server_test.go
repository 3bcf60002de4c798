// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/mcptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/config"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/engine"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/testpki"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/logger"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/mcp-server/templates"
)

func encodeChain(chain [][]byte) string {
	var b strings.Builder
	for _, der := range chain {
		b.Write(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	}
	return base64.StdEncoding.EncodeToString([]byte(b.String()))
}

func newTestServer(t *testing.T) (*engine.Engine, *client.Client) {
	t.Helper()
	e, err := engine.New(config.Default(), nil, logger.Nop(), engine.WithStore(truststore.New()))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	b := NewServerBuilder().
		WithEngine(e).
		WithTools(createTools()...).
		WithResources(createResources()...)

	srv := mcptest.NewUnstartedServer(t)
	srv.AddTools(b.ServerTools()...)
	srv.AddResources(b.ServerResources()...)
	srv.AddPrompts(createPrompts(templates.MagicEmbed)...)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(srv.Close)
	return e, srv.Client()
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := c.CallTool(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	var content strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			content.WriteString(tc.Text)
		}
	}
	return content.String(), result.IsError
}

func TestToolArgumentErrors(t *testing.T) {
	_, c := newTestServer(t)

	tests := []struct {
		name     string
		tool     string
		args     map[string]any
		contains string
	}{
		{"verify without input", "verify_tls_trust", map[string]any{}, "required"},
		{"verify bad port", "verify_tls_trust", map[string]any{"hostname": "example.com", "port": 70000}, "invalid port"},
		{"verify bad decision", "verify_tls_trust", map[string]any{"certificate": "x", "decision": "maybe"}, "unknown decision"},
		{"verify garbage", "verify_tls_trust", map[string]any{"certificate": "!!not base64!!"}, "failed to read certificate"},
		{"forget without fingerprint", "forget_acceptance", map[string]any{}, "required"},
		{"forget bad fingerprint", "forget_acceptance", map[string]any{"fingerprint": "zz"}, "invalid fingerprint"},
		{"import without certificate", "import_certificate", map[string]any{}, "required"},
		{"import unknown kind", "import_certificate", map[string]any{"certificate": "x", "kind": "nope"}, "nope"},
		{"refresh disabled repository", "refresh_repository", map[string]any{}, "failed to refresh repository"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isError := callTool(t, c, tt.tool, tt.args)
			assert.True(t, isError, text)
			assert.Contains(t, text, tt.contains)
		})
	}
}

func TestVerifyDecisionFlow(t *testing.T) {
	e, c := newTestServer(t)
	root := testpki.NewRoot(t, "MCP Root")
	leaf := root.NewLeaf(t, []string{"www.example.com"})

	text, isError := callTool(t, c, "import_certificate", map[string]any{"certificate": encodeChain(testpki.Chain(root))})
	require.False(t, isError, text)
	assert.Contains(t, text, "MCP Root")
	assert.Equal(t, 1, e.Store().Stats().Records["root"])

	chain := encodeChain(testpki.Chain(leaf))
	text, isError = callTool(t, c, "verify_tls_trust", map[string]any{"certificate": chain, "server_name": "www.example.com"})
	require.False(t, isError, text)
	assert.Contains(t, text, "accepted")
	assert.NotContains(t, text, "Decision required")

	args := map[string]any{"certificate": chain, "server_name": "mail.example.com", "format": "json"}
	text, isError = callTool(t, c, "verify_tls_trust", args)
	require.False(t, isError, text)
	var out struct {
		Accepted         bool     `json:"accepted"`
		Warnings         []string `json:"warnings"`
		DecisionRequired bool     `json:"decisionRequired"`
		Prompt           string   `json:"prompt"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.False(t, out.Accepted)
	assert.True(t, out.DecisionRequired)
	assert.Contains(t, out.Warnings, "name_mismatch")
	assert.NotEmpty(t, out.Prompt)
	assert.Empty(t, e.Acceptances(), "an unanswered prompt records nothing")

	args["decision"] = decisionAcceptAlways
	text, isError = callTool(t, c, "verify_tls_trust", args)
	require.False(t, isError, text)
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.True(t, out.Accepted)
	assert.False(t, out.DecisionRequired)

	text, isError = callTool(t, c, "list_acceptances", map[string]any{"format": "json"})
	require.False(t, isError, text)
	var rows []engine.AcceptanceRow
	require.NoError(t, json.Unmarshal([]byte(text), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "mail.example.com", rows[0].Host)

	text, isError = callTool(t, c, "forget_acceptance", map[string]any{"fingerprint": rows[0].Fingerprint})
	require.False(t, isError, text)
	assert.Equal(t, "Removed 1 acceptance(s)", text)
}

func TestGetResourceUsage(t *testing.T) {
	_, c := newTestServer(t)

	text, isError := callTool(t, c, "get_resource_usage", map[string]any{"detailed": true})
	require.False(t, isError, text)
	var data ResourceUsageData
	require.NoError(t, json.Unmarshal([]byte(text), &data))
	assert.NotEmpty(t, data.SystemInfo["go_version"])
	assert.Contains(t, data.TrustStore, "acceptances")
	assert.NotNil(t, data.CRLCache, "revocation is on by default")

	text, isError = callTool(t, c, "get_resource_usage", map[string]any{"format": "markdown"})
	require.False(t, isError, text)
	assert.Contains(t, text, "# Resource Usage Report")
	assert.Contains(t, text, "## Trust Store")
	assert.NotContains(t, text, "CRL Cache Metrics", "cache metrics are part of the detailed report")
	assert.NotContains(t, text, "Detailed Memory Statistics")

	text, isError = callTool(t, c, "get_resource_usage", map[string]any{"format": "markdown", "detailed": true})
	require.False(t, isError, text)
	assert.Contains(t, text, "## CRL Cache Metrics")
	assert.Contains(t, text, "## Detailed Memory Statistics")
}

func TestResources(t *testing.T) {
	_, c := newTestServer(t)

	tests := []struct {
		uri      string
		mime     string
		contains string
	}{
		{uriStoreStatus, mimeJSON, `"policy": "prompt"`},
		{uriAcceptances, mimeMarkdownText, "No stored acceptances"},
		{uriConfig, mimeJSON, `"timeout": "10s"`},
		{uriVersion, mimeJSON, "verify_tls_trust"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			result, err := c.ReadResource(context.Background(), mcp.ReadResourceRequest{
				Params: mcp.ReadResourceParams{URI: tt.uri},
			})
			require.NoError(t, err)
			require.Len(t, result.Contents, 1)
			tc, ok := result.Contents[0].(mcp.TextResourceContents)
			require.True(t, ok)
			assert.Equal(t, tt.mime, tc.MIMEType)
			assert.Contains(t, tc.Text, tt.contains)
		})
	}
}

func TestTrustReviewPrompt(t *testing.T) {
	_, c := newTestServer(t)

	result, err := c.GetPrompt(context.Background(), mcp.GetPromptRequest{
		Params: mcp.GetPromptParams{
			Name:      "trust-review",
			Arguments: map[string]string{"hostname": "example.com"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Messages, 3)
	assert.Equal(t, mcp.RoleUser, result.Messages[0].Role)
	assert.Equal(t, mcp.RoleAssistant, result.Messages[1].Role)

	tc, ok := result.Messages[1].Content.(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, tc.Text, "example.com")
	assert.Contains(t, tc.Text, "443")
}

func TestLoadInstructions(t *testing.T) {
	tools := createTools()
	text, err := loadInstructions(templates.MagicEmbed, tools)
	require.NoError(t, err)
	for _, tool := range tools {
		assert.Contains(t, text, tool.Tool.Name)
	}
}

func TestBuild(t *testing.T) {
	_, err := NewServerBuilder().Build()
	assert.ErrorIs(t, err, ErrNoEngine)

	e, err := engine.New(config.Default(), nil, logger.Nop(), engine.WithStore(truststore.New()))
	require.NoError(t, err)
	defer e.Close()

	s, err := NewServer(e, "1.3.3.7-testing")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestServeShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Revocation.Enabled = false

	in, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, logger.Nop(), in, io.Discard)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			assert.True(t, errors.Is(err, context.Canceled), "unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}
