// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// Role names the position of a certificate within a chain of n certificates.
func Role(index, n int, anchored bool) string {
	switch {
	case n == 1 && anchored:
		return "Trusted Root"
	case n == 1:
		return "Self-Signed Certificate"
	case index == 0:
		return "End-Entity"
	case index == n-1 && anchored:
		return "Root CA"
	case index == n-1:
		return "Top Of Chain"
	default:
		return "Intermediate CA"
	}
}

// RenderTable renders v as a markdown table, one row per certificate.
//
// Parameters:
//   - v: Result of [Handler.VerifySignatures]
//
// Returns:
//   - string: Markdown table
func RenderTable(v *Validation) string {
	if v == nil || len(v.Chain) == 0 {
		return "No certificates to display"
	}

	var buf strings.Builder
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)

	headers := []string{"#", "Role", "Subject", "Issuer", "Valid Until", "Key", "Status"}
	table.Header(headers)

	rows := make([][]string, 0, len(v.Chain))
	for i, cert := range v.Chain {
		_, alg, bits := KeyStrength(cert)
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			Role(i, len(v.Chain), v.Anchored),
			displayName(cert),
			cert.Issuer.CommonName,
			cert.NotAfter.Format("2006-01-02"),
			fmt.Sprintf("%d-bit %s", bits, alg),
			v.Status[i].String(),
		})
	}

	table.Bulk(rows)
	table.Render()
	return buf.String()
}

// RenderASCIITree renders v as an indented tree from leaf to top.
func RenderASCIITree(v *Validation) string {
	if v == nil || len(v.Chain) == 0 {
		return "No certificates in chain"
	}

	var b strings.Builder
	for i, cert := range v.Chain {
		mark := "ok"
		if v.Status[i] != 0 {
			mark = v.Status[i].String()
		}
		fmt.Fprintf(&b, "%s└─ [%s] %s (%s)\n",
			strings.Repeat("   ", i), mark, displayName(cert), Role(i, len(v.Chain), v.Anchored))
	}
	return b.String()
}

func displayName(c *x509.Certificate) string {
	if c.Subject.CommonName != "" {
		return c.Subject.CommonName
	}
	return c.Subject.String()
}
