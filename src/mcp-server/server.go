// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/config"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/engine"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/logger"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/mcp-server/templates"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/version"
)

const serverName = "TLS Certificate Trust Engine"

var appVersion = version.Version // default version

// GetVersion returns the version reported to clients. It is the version
// package default until Run sets it.
func GetVersion() string {
	return appVersion
}

// NewServer builds the MCP server for e with every tool, resource and
// prompt registered.
func NewServer(e *engine.Engine, version string) (*server.MCPServer, error) {
	tools := createTools()
	instructions, err := loadInstructions(templates.MagicEmbed, tools)
	if err != nil {
		return nil, fmt.Errorf("failed to load instructions: %w", err)
	}

	return NewServerBuilder().
		WithEngine(e).
		WithEmbed(templates.MagicEmbed).
		WithVersion(version).
		WithTools(tools...).
		WithResources(createResources()...).
		WithPrompts(createPrompts(templates.MagicEmbed)...).
		WithInstructions(instructions).
		Build()
}

// Run serves the trust engine over stdio until the client disconnects or
// the process receives SIGINT or SIGTERM.
//
// The configuration is read from $TLS_TRUST_ENGINE_CONFIG. Stdout carries
// the protocol, so logs go to stderr as JSON.
func Run(version string) error {
	appVersion = version

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.NewJSONLogger(os.Stderr, false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, log, os.Stdin, os.Stdout)
}

func serve(ctx context.Context, cfg *config.Config, log logger.Logger, in io.Reader, out io.Writer) (err error) {
	// Nobody can be prompted over stdio; decisions come in as tool arguments.
	e, err := engine.New(cfg, nil, log)
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer func() {
		if cerr := e.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close engine: %w", cerr)
		}
	}()

	s, err := NewServer(e, appVersion)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	stdioServer := server.NewStdioServer(s)
	errChan := make(chan error, 1)
	go func() {
		errChan <- stdioServer.Listen(ctx, in, out)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return fmt.Errorf("server shutdown: %w", ctx.Err())
	}
}
