// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/config"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/engine"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/interaction"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
)

// errDecisionRequired ends a verification that needs an answer the caller
// has not given yet.
var errDecisionRequired = errors.New("decision required")

// readCertificateInput reads a file path, base64 data or inline PEM.
func readCertificateInput(input string) ([]byte, error) {
	if data, err := os.ReadFile(input); err == nil {
		return data, nil
	}
	if strings.Contains(input, "-----BEGIN") {
		return []byte(input), nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(input)); err == nil {
		return decoded, nil
	}
	return nil, errors.New("not a valid file path, PEM or base64 data")
}

// pendingDecision records the description of a prompt that was not answered.
type pendingDecision struct {
	mu   sync.Mutex
	desc *interaction.Description
}

func (p *pendingDecision) Prompt(_ context.Context, d *interaction.Description) (interaction.Decision, error) {
	p.mu.Lock()
	p.desc = d
	p.mu.Unlock()
	return interaction.Decision{}, errDecisionRequired
}

func (p *pendingDecision) description() *interaction.Description {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.desc
}

// decisionPrompter maps the decision argument to a prompter. Only the prompt
// policy lets the caller decide; other policies keep the engine's behavior.
func decisionPrompter(e *engine.Engine, decision string) (interaction.Prompter, *pendingDecision, error) {
	if e.Config().Interaction.Policy != config.PolicyPrompt {
		return nil, nil, nil
	}
	switch decision {
	case "":
		p := &pendingDecision{}
		return p, p, nil
	case decisionAccept:
		return interaction.Static{Accept: true}, nil, nil
	case decisionAcceptAlways:
		return interaction.Static{Accept: true, Remember: true}, nil, nil
	case decisionReject:
		return interaction.Static{}, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown decision %q", decision)
}

// handleVerifyTLSTrust verifies the chain of a server, or a chain given as
// input, and reports the verdict. A verdict that denies the chain is a
// successful tool result; only unusable input is reported as tool error.
func handleVerifyTLSTrust(ctx context.Context, request mcp.CallToolRequest, e *engine.Engine) (*mcp.CallToolResult, error) {
	hostname := request.GetString("hostname", "")
	certInput := request.GetString("certificate", "")
	port := request.GetInt("port", 443)
	format := request.GetString("format", "markdown")
	if hostname == "" && certInput == "" {
		return mcp.NewToolResultError("hostname or certificate parameter required"), nil
	}
	if port <= 0 || port > 65535 {
		return mcp.NewToolResultError(fmt.Sprintf("invalid port %d", port)), nil
	}

	prompter, pending, err := decisionPrompter(e, request.GetString("decision", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		chain [][]byte
		ident trust.Identity
	)
	if certInput != "" {
		data, err := readCertificateInput(certInput)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read certificate: %v", err)), nil
		}
		certs, err := x509certs.NewCodec().DecodeBundle(data)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to decode certificate: %v", err)), nil
		}
		chain = x509certs.RawChain(certs)
		ident = trust.Identity{Host: request.GetString("server_name", hostname), Port: port}
	} else {
		chain, ident, err = e.Capture(ctx, hostname, port)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to fetch certificate chain: %v", err)), nil
		}
	}

	verdict, vErr := e.VerifyWith(ctx, chain, ident, prompter)
	if verdict == nil {
		return mcp.NewToolResultError(fmt.Sprintf("verification failed: %v", vErr)), nil
	}
	report := engine.NewReport(ident, verdict, vErr, format == "json")

	var desc *interaction.Description
	if pending != nil {
		desc = pending.description()
	}

	if format == "json" {
		out := struct {
			*engine.Report
			DecisionRequired bool   `json:"decisionRequired"`
			Prompt           string `json:"prompt,omitempty"`
		}{Report: report, DecisionRequired: desc != nil}
		if desc != nil {
			out.Prompt = interaction.Render(desc)
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report: %w", err)
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	var b strings.Builder
	if desc != nil {
		b.WriteString("**Decision required.** Show the following to the user and call verify_tls_trust again with decision set to accept, accept-always or reject.\n\n")
		b.WriteString("```\n")
		b.WriteString(interaction.Render(desc))
		b.WriteString("\n```\n\n")
	}
	b.WriteString(report.Markdown())
	return mcp.NewToolResultText(b.String()), nil
}

func handleListAcceptances(_ context.Context, request mcp.CallToolRequest, e *engine.Engine) (*mcp.CallToolResult, error) {
	rows := e.Acceptances()
	if request.GetString("format", "markdown") != "json" {
		return mcp.NewToolResultText(engine.RenderAcceptances(rows)), nil
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal acceptances: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleForgetAcceptance(_ context.Context, request mcp.CallToolRequest, e *engine.Engine) (*mcp.CallToolResult, error) {
	fp, err := request.RequireString("fingerprint")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fingerprint parameter required: %v", err)), nil
	}
	n, err := e.Forget(fp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid fingerprint: %v", err)), nil
	}
	if err := e.Store().Flush(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save trust store: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed %d acceptance(s)", n)), nil
}

func handleImportCertificate(_ context.Context, request mcp.CallToolRequest, e *engine.Engine) (*mcp.CallToolResult, error) {
	certInput, err := request.RequireString("certificate")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("certificate parameter required: %v", err)), nil
	}
	kind, err := truststore.ParseKind(request.GetString("kind", truststore.KindRoot.String()))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := readCertificateInput(certInput)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read certificate: %v", err)), nil
	}

	certs, err := e.Import(kind, data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to import certificate: %v", err)), nil
	}
	if err := e.Store().Flush(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save trust store: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Imported %d certificate(s) into %s:\n", len(certs), kind)
	for i, c := range certs {
		fmt.Fprintf(&b, "%d: %s (%s)\n", i+1, c.Subject.CommonName, x509certs.FingerprintOf(c.Raw))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleRefreshRepository(ctx context.Context, _ mcp.CallToolRequest, e *engine.Engine) (*mcp.CallToolResult, error) {
	idx, err := e.RefreshRepository(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to refresh repository: %v", err)), nil
	}
	if err := e.Store().Flush(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save trust store: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Repository index applied: %d root(s), %d intermediate(s), %d untrusted, %d deleted, %d CRL location(s), %d OCSP override(s)",
		len(idx.Roots), len(idx.Intermediates), len(idx.Untrusted), len(idx.Delete), len(idx.CRLLocations), len(idx.OCSPOverrides),
	)), nil
}

func handleGetResourceUsage(_ context.Context, request mcp.CallToolRequest, e *engine.Engine) (*mcp.CallToolResult, error) {
	data := CollectResourceUsage(e, request.GetBool("detailed", false))
	if request.GetString("format", "json") == "markdown" {
		return mcp.NewToolResultText(FormatResourceUsageAsMarkdown(data)), nil
	}
	out, err := FormatResourceUsageAsJSON(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}
