// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Values of the decision argument of verify_tls_trust.
const (
	decisionAccept       = "accept"
	decisionAcceptAlways = "accept-always"
	decisionReject       = "reject"
)

// createTools returns every tool the server offers:
//   - verify_tls_trust: verify a server, or a chain given as file or base64
//   - list_acceptances / forget_acceptance: manage remembered decisions
//   - import_certificate: add certificates to a store collection
//   - refresh_repository: apply the remote repository index
//   - get_resource_usage: runtime, store and CRL cache statistics
func createTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Tool: mcp.NewTool("verify_tls_trust",
				mcp.WithDescription("Decide whether the TLS certificate chain of a server is trusted. "+
					"Give either hostname, or certificate with an optional server_name."),
				mcp.WithString("hostname",
					mcp.Description("Server to connect to"),
				),
				mcp.WithNumber("port",
					mcp.Description("Port number (default: 443)"),
					mcp.DefaultNumber(443),
				),
				mcp.WithString("certificate",
					mcp.Description("Chain file path or base64-encoded chain data (PEM, DER or PKCS#7, leaf first)"),
				),
				mcp.WithString("server_name",
					mcp.Description("Host name a certificate argument is checked against (default: hostname)"),
				),
				mcp.WithString("decision",
					mcp.Description("The user's answer when a previous call reported 'decision required'"),
					mcp.Enum(decisionAccept, decisionAcceptAlways, decisionReject),
				),
				mcp.WithString("format",
					mcp.Description("Output format: 'markdown' or 'json' (default: markdown)"),
					mcp.DefaultString("markdown"),
					mcp.Enum("markdown", "json"),
				),
			),
			Handler: handleVerifyTLSTrust,
		},
		{
			Tool: mcp.NewTool("list_acceptances",
				mcp.WithDescription("List the remembered certificate decisions"),
				mcp.WithString("format",
					mcp.Description("Output format: 'markdown' or 'json' (default: markdown)"),
					mcp.DefaultString("markdown"),
					mcp.Enum("markdown", "json"),
				),
			),
			Handler: handleListAcceptances,
		},
		{
			Tool: mcp.NewTool("forget_acceptance",
				mcp.WithDescription("Forget every remembered decision about a certificate"),
				mcp.WithString("fingerprint",
					mcp.Required(),
					mcp.Description("SHA-256 fingerprint of the certificate, hex encoded"),
				),
			),
			Handler: handleForgetAcceptance,
		},
		{
			Tool: mcp.NewTool("import_certificate",
				mcp.WithDescription("Import certificates into a trust store collection"),
				mcp.WithString("certificate",
					mcp.Required(),
					mcp.Description("Certificate file path or base64-encoded certificate data"),
				),
				mcp.WithString("kind",
					mcp.Description("Collection (default: root)"),
					mcp.DefaultString("root"),
					mcp.Enum("root", "intermediate", "untrusted", "personal"),
				),
			),
			Handler: handleImportCertificate,
		},
		{
			Tool: mcp.NewTool("refresh_repository",
				mcp.WithDescription("Download the certificate repository index and apply it to the trust store"),
			),
			Handler: handleRefreshRepository,
		},
		{
			Tool: mcp.NewTool("get_resource_usage",
				mcp.WithDescription("Get runtime, trust store and CRL cache statistics"),
				mcp.WithBoolean("detailed",
					mcp.Description("Include detailed memory breakdown (default: false)"),
					mcp.DefaultBool(false),
				),
				mcp.WithString("format",
					mcp.Description("Output format: 'json' or 'markdown' (default: 'json')"),
					mcp.DefaultString("json"),
				),
			),
			Handler: handleGetResourceUsage,
		},
	}
}
