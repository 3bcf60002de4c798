// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/engine"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/mcp-server/templates"
)

// ErrNoEngine is returned by Build without an engine.
var ErrNoEngine = errors.New("mcpserver: an engine is required")

// ToolHandlerWithEngine handles a tool call against the trust engine.
type ToolHandlerWithEngine func(ctx context.Context, request mcp.CallToolRequest, e *engine.Engine) (*mcp.CallToolResult, error)

// ResourceHandlerWithEngine serves a resource read from the trust engine.
type ResourceHandlerWithEngine func(ctx context.Context, request mcp.ReadResourceRequest, e *engine.Engine) ([]mcp.ResourceContents, error)

// ToolDefinition pairs an [MCP] tool with its handler.
//
// [MCP]: https://modelcontextprotocol.io/docs/getting-started/intro
type ToolDefinition struct {
	Tool    mcp.Tool
	Handler ToolHandlerWithEngine
}

// ResourceDefinition pairs an MCP resource with its handler.
type ResourceDefinition struct {
	Resource mcp.Resource
	Handler  ResourceHandlerWithEngine
}

// ServerDependencies holds everything Build wires into the MCP server.
type ServerDependencies struct {
	Engine       *engine.Engine
	Embed        templates.EmbedFS
	Version      string
	Tools        []ToolDefinition
	Resources    []ResourceDefinition
	Prompts      []server.ServerPrompt
	Instructions string
}

// ServerBuilder assembles the MCP server.
//
//	s, err := NewServerBuilder().
//		WithEngine(e).
//		WithVersion(version).
//		WithTools(createTools()...).
//		Build()
type ServerBuilder struct{ deps ServerDependencies }

// NewServerBuilder returns an empty builder.
func NewServerBuilder() *ServerBuilder { return &ServerBuilder{} }

// WithEngine sets the engine every handler works on.
func (b *ServerBuilder) WithEngine(e *engine.Engine) *ServerBuilder {
	b.deps.Engine = e
	return b
}

// WithEmbed sets the template filesystem.
func (b *ServerBuilder) WithEmbed(fs templates.EmbedFS) *ServerBuilder {
	b.deps.Embed = fs
	return b
}

// WithVersion sets the version reported to clients.
func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.deps.Version = version
	return b
}

// WithTools adds tools.
func (b *ServerBuilder) WithTools(tools ...ToolDefinition) *ServerBuilder {
	b.deps.Tools = append(b.deps.Tools, tools...)
	return b
}

// WithResources adds resources.
func (b *ServerBuilder) WithResources(resources ...ResourceDefinition) *ServerBuilder {
	b.deps.Resources = append(b.deps.Resources, resources...)
	return b
}

// WithPrompts adds prompts.
func (b *ServerBuilder) WithPrompts(prompts ...server.ServerPrompt) *ServerBuilder {
	b.deps.Prompts = append(b.deps.Prompts, prompts...)
	return b
}

// WithInstructions sets the instructions sent on initialize.
func (b *ServerBuilder) WithInstructions(instructions string) *ServerBuilder {
	b.deps.Instructions = instructions
	return b
}

// ServerTools binds the tool handlers to the engine.
func (b *ServerBuilder) ServerTools() []server.ServerTool {
	out := make([]server.ServerTool, 0, len(b.deps.Tools))
	for _, tool := range b.deps.Tools {
		out = append(out, server.ServerTool{
			Tool: tool.Tool,
			Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return tool.Handler(ctx, request, b.deps.Engine)
			},
		})
	}
	return out
}

// ServerResources binds the resource handlers to the engine.
func (b *ServerBuilder) ServerResources() []server.ServerResource {
	out := make([]server.ServerResource, 0, len(b.deps.Resources))
	for _, res := range b.deps.Resources {
		out = append(out, server.ServerResource{
			Resource: res.Resource,
			Handler: func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
				return res.Handler(ctx, request, b.deps.Engine)
			},
		})
	}
	return out
}

// Build creates the MCP server.
func (b *ServerBuilder) Build() (*server.MCPServer, error) {
	if b.deps.Engine == nil {
		return nil, ErrNoEngine
	}

	opts := []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
	}
	if b.deps.Instructions != "" {
		opts = append(opts, server.WithInstructions(b.deps.Instructions))
	}
	s := server.NewMCPServer(serverName, b.deps.Version, opts...)

	s.AddTools(b.ServerTools()...)
	s.AddResources(b.ServerResources()...)
	s.AddPrompts(b.deps.Prompts...)
	return s, nil
}
