// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Resource URIs.
const (
	uriStoreStatus   = "trust://store/status"
	uriAcceptances   = "trust://store/acceptances"
	uriConfig        = "config://current"
	uriVersion       = "info://version"
	mimeJSON         = "application/json"
	mimeMarkdownText = "text/markdown"
)

// createResources returns the resources the server offers.
func createResources() []ResourceDefinition {
	return []ResourceDefinition{
		{
			Resource: mcp.NewResource(uriStoreStatus, "Trust store status",
				mcp.WithResourceDescription("Records per collection, acceptances, revoked fingerprints and pending changes"),
				mcp.WithMIMEType(mimeJSON),
			),
			Handler: handleStoreStatusResource,
		},
		{
			Resource: mcp.NewResource(uriAcceptances, "Remembered decisions",
				mcp.WithResourceDescription("Every stored certificate acceptance as a markdown table"),
				mcp.WithMIMEType(mimeMarkdownText),
			),
			Handler: handleAcceptancesResource,
		},
		{
			Resource: mcp.NewResource(uriConfig, "Engine configuration",
				mcp.WithResourceDescription("The configuration the engine runs with"),
				mcp.WithMIMEType(mimeJSON),
			),
			Handler: handleConfigResource,
		},
		{
			Resource: mcp.NewResource(uriVersion, "Server version",
				mcp.WithResourceDescription("Server name, version and capabilities"),
				mcp.WithMIMEType(mimeJSON),
			),
			Handler: handleVersionResource,
		},
	}
}
