// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/mcp-server/templates"
)

// promptTemplateData holds the data used to populate prompt templates.
type promptTemplateData struct {
	Hostname string
	Port     string
}

// createPrompts returns the prompt definitions backed by fs.
func createPrompts(fs templates.EmbedFS) []server.ServerPrompt {
	return []server.ServerPrompt{
		{
			Prompt: mcp.NewPrompt("trust-review",
				mcp.WithPromptDescription("Review whether a server's certificate chain is trusted and walk through any decision it needs"),
				mcp.WithArgument("hostname",
					mcp.ArgumentDescription("Server to review"),
					mcp.RequiredArgument(),
				),
				mcp.WithArgument("port",
					mcp.ArgumentDescription("Port number (default: 443)"),
				),
			),
			Handler: func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
				return handleTrustReviewPrompt(ctx, request, fs)
			},
		},
	}
}

func handleTrustReviewPrompt(_ context.Context, request mcp.GetPromptRequest, fs templates.EmbedFS) (*mcp.GetPromptResult, error) {
	data := promptTemplateData{
		Hostname: request.Params.Arguments["hostname"],
		Port:     request.Params.Arguments["port"],
	}
	if data.Hostname == "" {
		return nil, fmt.Errorf("hostname argument required")
	}
	if data.Port == "" {
		data.Port = "443"
	}

	messages, err := parsePromptTemplate(fs, templates.TrustReview, data)
	if err != nil {
		return nil, err
	}
	return mcp.NewGetPromptResult("TLS Trust Review", messages), nil
}

// parsePromptTemplate executes the named template and splits the result
// into messages at "### User:" and "### Assistant:" markers.
func parsePromptTemplate(fs templates.EmbedFS, name string, data promptTemplateData) ([]mcp.PromptMessage, error) {
	content, err := fs.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	var (
		messages []mcp.PromptMessage
		role     mcp.Role
		current  strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			messages = append(messages, mcp.NewPromptMessage(role, mcp.NewTextContent(strings.TrimSpace(current.String()))))
			current.Reset()
		}
	}
	for line := range strings.SplitSeq(buf.String(), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "### User:"):
			flush()
			role = mcp.RoleUser
		case strings.HasPrefix(line, "### Assistant:"):
			flush()
			role = mcp.RoleAssistant
		case line == "" || role == "":
		default:
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	flush()
	return messages, nil
}
