// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/config"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/engine"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/helper/posix"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/interaction"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/logger"
)

var (
	// ErrInputRequired is returned by verify without --host or --file.
	ErrInputRequired = errors.New("cli: either --host or --file is required")
	// ErrNotTrusted is returned by verify when the chain was rejected.
	ErrNotTrusted = errors.New("cli: certificate chain not trusted")
)

// globals holds the persistent flags shared by every command.
type globals struct {
	configFile string
	policy     string
	jsonOutput bool
	log        logger.Logger
}

// Execute builds the command tree and runs it with the process arguments.
func Execute(ctx context.Context, version string, log logger.Logger) error {
	return NewRootCommand(version, log).ExecuteContext(ctx)
}

// NewRootCommand returns the root command. Output goes to the command's out
// writer, prompts to its error writer.
func NewRootCommand(version string, log logger.Logger) *cobra.Command {
	g := &globals{log: logger.OrNop(log)}

	root := &cobra.Command{
		Use:           posix.GetExecutableName(),
		Short:         "Decide whether TLS server certificate chains are trusted",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&g.configFile, "config", "c", "", "configuration file (JSON or YAML; default: $"+config.EnvConfigFile+")")
	flags.StringVar(&g.policy, "policy", "", "override the interaction policy: prompt, deny or accept-session")
	flags.BoolVarP(&g.jsonOutput, "json", "j", false, "emit JSON instead of markdown")

	root.AddCommand(
		newVerifyCommand(g),
		newAcceptancesCommand(g),
		newRepositoryCommand(g),
		newStoreCommand(g),
	)
	return root
}

// open loads the configuration and builds an engine whose prompts use the
// command's streams.
func (g *globals) open(cmd *cobra.Command) (*engine.Engine, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, err
	}
	switch g.policy {
	case "":
	case config.PolicyPrompt, config.PolicyDeny, config.PolicyAcceptSession:
		cfg.Interaction.Policy = g.policy
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", config.ErrInvalidConfig, g.policy)
	}

	prompter := interaction.Terminal{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()}
	return engine.New(cfg, prompter, g.log)
}

// emit writes v as indented JSON, or text when JSON output is off.
func (g *globals) emit(w io.Writer, v any, text string) error {
	if !g.jsonOutput {
		_, err := io.WriteString(w, text)
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// closeEngine closes e, logging any failure.
func (g *globals) closeEngine(e *engine.Engine) {
	if err := e.Close(); err != nil {
		g.log.Errorf("close engine: %v", err)
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading input file: %w", err)
	}
	return data, nil
}
