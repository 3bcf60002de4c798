// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/engine"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
)

func newAcceptancesCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acceptances",
		Short: "Manage remembered certificate decisions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored acceptances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer g.closeEngine(e)

			rows := e.Acceptances()
			return g.emit(cmd.OutOrStdout(), rows, engine.RenderAcceptances(rows))
		},
	}

	forget := &cobra.Command{
		Use:   "forget SHA256",
		Short: "Forget every decision about the certificate with the given fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer g.closeEngine(e)

			n, err := e.Forget(args[0])
			if err != nil {
				return err
			}
			out := struct {
				Removed int `json:"removed"`
			}{n}
			return g.emit(cmd.OutOrStdout(), out, fmt.Sprintf("Removed %d acceptance(s)\n", n))
		},
	}

	cmd.AddCommand(list, forget)
	return cmd
}

func newRepositoryCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repository",
		Short: "Work with the remote certificate repository",
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Download the repository index and apply it to the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer g.closeEngine(e)

			idx, err := e.RefreshRepository(cmd.Context())
			if err != nil {
				return err
			}
			out := map[string]int{
				"roots":         len(idx.Roots),
				"intermediates": len(idx.Intermediates),
				"untrusted":     len(idx.Untrusted),
				"deleted":       len(idx.Delete),
				"crlLocations":  len(idx.CRLLocations),
				"ocspOverrides": len(idx.OCSPOverrides),
			}
			return g.emit(cmd.OutOrStdout(), out, renderCounts("Index", out))
		},
	}

	cmd.AddCommand(refresh)
	return cmd
}

func newStoreCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and populate the trust store",
	}

	var kind string
	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import certificates (PEM, DER or PKCS#7) into a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := truststore.ParseKind(kind)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer g.closeEngine(e)

			certs, err := e.Import(k, data)
			if err != nil {
				return err
			}
			type imported struct {
				Subject     string `json:"subject"`
				Fingerprint string `json:"sha256"`
			}
			out := make([]imported, 0, len(certs))
			var b strings.Builder
			for _, c := range certs {
				fp := x509certs.FingerprintOf(c.Raw).String()
				out = append(out, imported{Subject: c.Subject.String(), Fingerprint: fp})
				fmt.Fprintf(&b, "Imported %s into %s (%s)\n", c.Subject.String(), k, fp)
			}
			return g.emit(cmd.OutOrStdout(), out, b.String())
		},
	}
	importCmd.Flags().StringVarP(&kind, "kind", "k", truststore.KindRoot.String(), "collection: root, intermediate, untrusted or personal")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the number of records per collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer g.closeEngine(e)

			stats := e.Store().Stats()
			counts := make(map[string]int, len(stats.Records)+2)
			for k, n := range stats.Records {
				counts[k] = n
			}
			counts["acceptances"] = stats.Acceptances
			counts["revoked"] = stats.Revoked
			return g.emit(cmd.OutOrStdout(), stats, renderCounts("Collection", counts))
		},
	}

	cmd.AddCommand(importCmd, status)
	return cmd
}

// renderCounts renders counts as a markdown table sorted by name.
func renderCounts(label string, counts map[string]int) string {
	keys := lo.Keys(counts)
	slices.Sort(keys)

	var b strings.Builder
	table := tablewriter.NewTable(&b,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{label, "Count"})
	table.Bulk(lo.Map(keys, func(k string, _ int) []string {
		return []string{k, fmt.Sprint(counts[k])}
	}))
	table.Render()
	return b.String()
}
