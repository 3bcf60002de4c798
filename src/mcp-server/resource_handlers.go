// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/engine"
)

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: mimeJSON, Text: string(data)},
	}, nil
}

func handleStoreStatusResource(_ context.Context, _ mcp.ReadResourceRequest, e *engine.Engine) ([]mcp.ResourceContents, error) {
	status := struct {
		Stats      any    `json:"stats"`
		Repository bool   `json:"repositoryEnabled"`
		Revocation bool   `json:"revocationEnabled"`
		Policy     string `json:"policy"`
		Metrics    string `json:"metrics,omitempty"`
	}{
		Stats:      e.Store().Stats(),
		Repository: e.Repository().Enabled(),
		Revocation: e.CRLCache() != nil,
		Policy:     e.Config().Interaction.Policy,
		Metrics:    e.MetricsAddr(),
	}
	return jsonResource(uriStoreStatus, status)
}

func handleAcceptancesResource(_ context.Context, _ mcp.ReadResourceRequest, e *engine.Engine) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uriAcceptances,
			MIMEType: mimeMarkdownText,
			Text:     engine.RenderAcceptances(e.Acceptances()),
		},
	}, nil
}

func handleConfigResource(_ context.Context, _ mcp.ReadResourceRequest, e *engine.Engine) ([]mcp.ResourceContents, error) {
	return jsonResource(uriConfig, e.Config())
}

func handleVersionResource(_ context.Context, _ mcp.ReadResourceRequest, _ *engine.Engine) ([]mcp.ResourceContents, error) {
	tools := createTools()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Tool.Name)
	}
	info := map[string]any{
		"name":    serverName,
		"version": GetVersion(),
		"type":    "MCP Server",
		"capabilities": map[string]any{
			"tools":     names,
			"resources": []string{uriStoreStatus, uriAcceptances, uriConfig, uriVersion},
			"prompts":   []string{"trust-review"},
		},
		"supportedFormats": []string{"pem", "der", "pkcs7"},
	}
	return jsonResource(uriVersion, info)
}
