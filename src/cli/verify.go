// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/engine"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/chain"
)

type verifyOptions struct {
	host       string
	port       int
	file       string
	serverName string
	tree       bool
	table      bool
	pem        bool
}

func newVerifyCommand(g *globals) *cobra.Command {
	o := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the certificate chain of a server or a chain file",
		Example: `  tls-cert-trust-engine verify --host example.com
  tls-cert-trust-engine verify --file chain.pem --server-name www.example.com --tree`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd, g, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.host, "host", "H", "", "connect to HOST and verify the chain it presents")
	f.IntVarP(&o.port, "port", "p", 443, "server port")
	f.StringVarP(&o.file, "file", "f", "", "verify a chain file (PEM, DER or PKCS#7, leaf first; - for stdin)")
	f.StringVar(&o.serverName, "server-name", "", "host name the chain file is checked against (default: --host)")
	f.BoolVarP(&o.tree, "tree", "t", false, "also display the certification path as ASCII tree")
	f.BoolVar(&o.table, "table", false, "also display the certification path as markdown table")
	f.BoolVar(&o.pem, "pem", false, "include PEM certificates in JSON output")
	cmd.MarkFlagsMutuallyExclusive("host", "file")
	return cmd
}

func runVerify(cmd *cobra.Command, g *globals, o *verifyOptions) error {
	if o.host == "" && o.file == "" {
		return ErrInputRequired
	}

	var chain [][]byte
	if o.file != "" {
		data, err := readInput(cmd, o.file)
		if err != nil {
			return err
		}
		certs, err := x509certs.NewCodec().DecodeBundle(data)
		if err != nil {
			return fmt.Errorf("error decoding certificate chain: %w", err)
		}
		chain = x509certs.RawChain(certs)
	}

	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer g.closeEngine(e)

	ctx := cmd.Context()
	var (
		ident   trust.Identity
		verdict *trust.Verdict
		vErr    error
	)
	if chain != nil {
		name := o.serverName
		if name == "" {
			name = o.host
		}
		ident = trust.Identity{Host: name, Port: o.port}
		verdict, vErr = e.Verify(ctx, chain, ident)
	} else {
		remote, err := e.VerifyRemote(ctx, o.host, o.port)
		if err != nil {
			return fmt.Errorf("error fetching chain from %s:%d: %w", o.host, o.port, err)
		}
		ident, verdict, vErr = remote.Identity, remote.Verdict, remote.Err
	}

	report := engine.NewReport(ident, verdict, vErr, o.pem)
	text := report.Markdown()
	if verdict != nil && (o.tree || o.table) {
		path, err := e.Path(verdict.Chain)
		if err != nil {
			g.log.Errorf("rebuild path: %v", err)
		} else {
			text += "\n" + renderPath(path, o.tree, o.table)
		}
	}
	if err := g.emit(cmd.OutOrStdout(), report, text); err != nil {
		return err
	}

	if !report.Accepted {
		if vErr != nil {
			return fmt.Errorf("%w: %w", ErrNotTrusted, vErr)
		}
		return ErrNotTrusted
	}
	return nil
}

func renderPath(v *x509chain.Validation, tree, table bool) string {
	var b strings.Builder
	if tree {
		b.WriteString(x509chain.RenderASCIITree(v))
	}
	if table {
		if tree {
			b.WriteString("\n")
		}
		b.WriteString(x509chain.RenderTable(v))
	}
	return b.String()
}
