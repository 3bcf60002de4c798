// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/chain"
)

// ChainCert describes one certificate of a reported chain.
type ChainCert struct {
	Subject     string    `json:"subject"`
	Issuer      string    `json:"issuer"`
	NotBefore   time.Time `json:"notBefore"`
	NotAfter    time.Time `json:"notAfter"`
	Fingerprint string    `json:"sha256"`
	PEM         string    `json:"pem,omitempty"`
}

// Report is the serializable form of a verdict.
type Report struct {
	Host     string      `json:"host"`
	Port     int         `json:"port"`
	Accepted bool        `json:"accepted"`
	Alert    string      `json:"alert,omitempty"`
	Detail   string      `json:"detail,omitempty"`
	Rating   string      `json:"rating"`
	Reasons  []string    `json:"reasons,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
	Mode     string      `json:"mode"`
	Names    []string    `json:"names,omitempty"`
	Chain    []ChainCert `json:"chain"`
}

// NewReport summarizes v for ident. err is the error Verify returned with v;
// it fills Alert when v carries none.
func NewReport(ident trust.Identity, v *trust.Verdict, err error, withPEM bool) *Report {
	r := &Report{Host: ident.Host, Port: ident.Port}
	if v == nil {
		r.Alert = trust.AlertInternalError.String()
		if err != nil {
			r.Detail = err.Error()
		}
		return r
	}

	r.Accepted = v.Accepted
	r.Rating = v.Rating.String()
	r.Reasons = v.Reasons.Names()
	r.Warnings = v.Warnings.Names()
	r.Mode = v.Mode.String()
	r.Names = v.Names

	var alert *trust.Alert
	switch {
	case v.Alert != nil:
		alert = v.Alert
	case errors.As(err, &alert):
	}
	if alert != nil {
		r.Alert, r.Detail = alert.Code.String(), alert.Detail
	}

	codec := x509certs.NewCodec()
	certs, decodeErr := codec.DecodeDERChain(v.Chain)
	if decodeErr != nil {
		return r
	}
	for _, c := range certs {
		cc := ChainCert{
			Subject:     c.Subject.String(),
			Issuer:      c.Issuer.String(),
			NotBefore:   c.NotBefore,
			NotAfter:    c.NotAfter,
			Fingerprint: x509certs.FingerprintOf(c.Raw).String(),
		}
		if withPEM {
			cc.PEM = string(codec.EncodePEM(c))
		}
		r.Chain = append(r.Chain, cc)
	}
	return r
}

// Markdown renders the summary of r as a two column markdown table.
func (r *Report) Markdown() string {
	var b strings.Builder
	table := tablewriter.NewTable(&b,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{"Field", "Value"})

	verdict := "accepted"
	if !r.Accepted {
		verdict = "denied"
	}
	rows := [][]string{
		{"Server", fmt.Sprintf("%s:%d", r.Host, r.Port)},
		{"Verdict", verdict},
	}
	if r.Alert != "" {
		rows = append(rows, []string{"Alert", r.Alert})
	}
	if r.Detail != "" {
		rows = append(rows, []string{"Detail", r.Detail})
	}
	rows = append(rows,
		[]string{"Rating", r.Rating},
		[]string{"Reasons", joinOrNone(r.Reasons)},
		[]string{"Warnings", joinOrNone(r.Warnings)},
		[]string{"Decision", r.Mode},
		[]string{"Names", joinOrNone(r.Names)},
	)
	table.Bulk(rows)
	table.Render()
	return b.String()
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}

// Path rebuilds the certification path of chain against the store content,
// for display next to a report.
func (e *Engine) Path(chain [][]byte) (*x509chain.Validation, error) {
	h := x509chain.NewHandler()
	if err := h.LoadChain(chain); err != nil {
		return nil, err
	}
	return h.VerifySignatures(x509chain.PurposeServerAuth, x509chain.Hints{
		Roots:         e.store.Certificates(truststore.KindRoot),
		Intermediates: e.store.Certificates(truststore.KindIntermediate),
		Revoked:       e.store.Revoked(),
		AsOf:          e.clock.Now(),
	})
}

// AcceptanceRow is the serializable form of a stored acceptance.
type AcceptanceRow struct {
	Fingerprint string    `json:"sha256"`
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	Scope       string    `json:"scope"`
	Mode        string    `json:"mode"`
	Warnings    []string  `json:"warnings,omitempty"`
	Rating      string    `json:"rating"`
	Until       time.Time `json:"until"`
}

// Acceptances lists the stored acceptances.
func (e *Engine) Acceptances() []AcceptanceRow {
	list := e.store.Acceptances()
	rows := make([]AcceptanceRow, 0, len(list))
	for _, a := range list {
		until := a.TrustedUntil
		if until.IsZero() {
			until = a.NotAfter
		}
		rows = append(rows, AcceptanceRow{
			Fingerprint: a.Fingerprint.String(),
			Host:        a.Host,
			Port:        a.Port,
			Scope:       a.Scope.String(),
			Mode:        a.Mode.String(),
			Warnings:    a.Warnings.Names(),
			Rating:      a.Rating.String(),
			Until:       until,
		})
	}
	return rows
}

// Forget removes every acceptance of the certificate with the given
// fingerprint and returns how many were removed.
func (e *Engine) Forget(fingerprint string) (int, error) {
	fp, err := x509certs.ParseFingerprint(fingerprint)
	if err != nil {
		return 0, err
	}
	return e.store.ForgetCertificate(fp), nil
}

// RenderAcceptances renders rows as a markdown table.
func RenderAcceptances(rows []AcceptanceRow) string {
	if len(rows) == 0 {
		return "No stored acceptances\n"
	}
	var b strings.Builder
	table := tablewriter.NewTable(&b,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{"Server", "Mode", "Warnings", "Rating", "Until", "SHA-256"})
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			fmt.Sprintf("%s:%d", r.Host, r.Port),
			r.Mode,
			joinOrNone(r.Warnings),
			r.Rating,
			r.Until.Format("2006-01-02"),
			r.Fingerprint,
		})
	}
	table.Bulk(out)
	table.Render()
	return b.String()
}
