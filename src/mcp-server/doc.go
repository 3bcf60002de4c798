// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package mcpserver serves the TLS certificate trust engine over the [MCP]
// stdio transport. Clients verify servers or chain files, manage remembered
// decisions, import certificates and refresh the certificate repository
// through tools, and read the trust store state through resources.
//
// A chain that needs a human decision is never accepted silently: the tool
// result carries the prompt text, and the client calls again with the
// user's answer in the decision argument.
//
// [MCP]: https://modelcontextprotocol.io/docs/getting-started/intro
package mcpserver
