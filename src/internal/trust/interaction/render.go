// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package interaction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// Render formats d as a short text block followed by a markdown table of
// the chain.
func Render(d *Description) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Certificate problem for %s:%d: %s\n", d.Host, d.Port, d.Primary)
	for _, c := range d.Comments {
		fmt.Fprintf(&b, "  also: %s\n", c)
	}
	if len(d.Names) > 0 {
		fmt.Fprintf(&b, "Certificate names: %s\n", strings.Join(d.Names, ", "))
	}
	fmt.Fprintf(&b, "Security rating: %s", d.Rating)
	if d.Reasons != 0 {
		fmt.Fprintf(&b, " (%s)", d.Reasons)
	}
	b.WriteString("\n\n")

	table := tablewriter.NewTable(&b,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{"#", "Subject", "Issuer", "Valid Until", "SHA-256"})
	rows := make([][]string, 0, len(d.Chain))
	for i, c := range d.Chain {
		fp := c.Fingerprint.String()
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			c.Subject,
			c.Issuer,
			c.NotAfter.Format("2006-01-02"),
			fp[:16] + "…",
		})
	}
	table.Bulk(rows)
	table.Render()
	return b.String()
}

// Terminal prompts on a text stream. Answers are "y" (accept for this
// session), "a" (accept and remember) and anything else to deny.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

func (t Terminal) Prompt(ctx context.Context, d *Description) (Decision, error) {
	fmt.Fprint(t.Out, Render(d))
	fmt.Fprint(t.Out, "\nAccept this certificate? [y]es / [a]lways / [N]o: ")

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(t.In).ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	case a := <-answer:
		switch a {
		case "y", "yes":
			return Decision{Accept: true}, nil
		case "a", "always":
			return Decision{Accept: true, Remember: true}, nil
		}
		return Decision{}, nil
	}
}
