// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package interaction

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/logger"
)

// ErrNoPrompter is returned when a decision is requested without a prompter.
var ErrNoPrompter = errors.New("interaction: no prompter available")

// ChainEntry summarizes one certificate for presentation.
type ChainEntry struct {
	Subject     string                `json:"subject"`
	Issuer      string                `json:"issuer"`
	NotBefore   time.Time             `json:"not_before"`
	NotAfter    time.Time             `json:"not_after"`
	Fingerprint x509certs.Fingerprint `json:"fingerprint"`
}

// Description is everything a prompter needs to ask about one verification.
type Description struct {
	// ID correlates the prompt with the verification's log lines.
	ID string `json:"id"`

	Primary  Category   `json:"primary"`
	Comments []Category `json:"comments,omitempty"`

	Host  string      `json:"host"`
	Port  int         `json:"port"`
	Scope trust.Scope `json:"scope"`
	Names []string    `json:"names,omitempty"`

	Warnings trust.Warning           `json:"warnings"`
	Rating   trust.SecurityRating    `json:"rating"`
	Reasons  trust.LowSecurityReason `json:"reasons,omitempty"`

	Chain []ChainEntry `json:"chain"`
}

// Describe builds the description for warnings w. The primary category is
// the highest priority one; every other raised category becomes a comment.
func Describe(id string, ident trust.Identity, chain []*x509.Certificate, names []string, w trust.Warning, rating trust.SecurityRating, reasons trust.LowSecurityReason) *Description {
	cats := Categories(w)
	d := &Description{
		ID:       id,
		Primary:  CategoryNone,
		Host:     ident.Host,
		Port:     ident.Port,
		Scope:    ident.Scope,
		Names:    slices.Clone(names),
		Warnings: w,
		Rating:   rating,
		Reasons:  reasons,
	}
	if len(cats) > 0 {
		d.Primary, d.Comments = cats[0], cats[1:]
	}
	for _, c := range chain {
		d.Chain = append(d.Chain, ChainEntry{
			Subject:     displayName(c.Subject.CommonName, c.Subject.String()),
			Issuer:      displayName(c.Issuer.CommonName, c.Issuer.String()),
			NotBefore:   c.NotBefore,
			NotAfter:    c.NotAfter,
			Fingerprint: x509certs.FingerprintOf(c.Raw),
		})
	}
	return d
}

func displayName(cn, full string) string {
	if cn != "" {
		return cn
	}
	return full
}

// Decision is a user's answer.
type Decision struct {
	Accept   bool `json:"accept"`
	Remember bool `json:"remember"`
}

// Mode returns the confirm mode the decision records for a server.
func (d Decision) Mode() trust.ConfirmMode { return d.ModeFor(trust.ScopeServer) }

// ModeFor returns the confirm mode the decision records in scope. A session
// acceptance in the applet scope is kept apart from server ones.
func (d Decision) ModeFor(scope trust.Scope) trust.ConfirmMode {
	switch {
	case !d.Accept:
		return trust.UserRejected
	case d.Remember:
		return trust.PermanentlyConfirmed
	case scope == trust.ScopeApplet:
		return trust.AppletSessionConfirmed
	}
	return trust.SessionConfirmed
}

// Prompter asks a human. Prompt blocks until an answer arrives or ctx ends.
type Prompter interface {
	Prompt(ctx context.Context, d *Description) (Decision, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, d *Description) (Decision, error)

func (f PrompterFunc) Prompt(ctx context.Context, d *Description) (Decision, error) {
	return f(ctx, d)
}

// Static answers every prompt with the same decision.
type Static Decision

func (s Static) Prompt(context.Context, *Description) (Decision, error) { return Decision(s), nil }

// Gateway requests decisions and turns them into acceptance records.
type Gateway struct {
	prompter Prompter
	log      logger.Logger
}

// NewGateway returns a Gateway. A nil prompter means nobody can be asked.
func NewGateway(p Prompter, log logger.Logger) *Gateway {
	return &Gateway{prompter: p, log: logger.OrNop(log)}
}

// Available reports whether a prompter is configured.
func (g *Gateway) Available() bool { return g != nil && g.prompter != nil }

// RequestDecision asks the prompter about d.
func (g *Gateway) RequestDecision(ctx context.Context, d *Description) (Decision, error) {
	if !g.Available() {
		return Decision{}, ErrNoPrompter
	}
	g.log.Printf("interaction: %s: asking about %s on %s:%d", d.ID, d.Primary, d.Host, d.Port)

	dec, err := g.prompter.Prompt(ctx, d)
	if err != nil {
		return Decision{}, fmt.Errorf("interaction: prompt: %w", err)
	}
	return dec, nil
}

// ExpiredAcceptanceWindow bounds an acceptance of a leaf that had already
// expired when it was accepted.
const ExpiredAcceptanceWindow = 30 * 24 * time.Hour

// Acceptance builds the record for decision dec about leaf on the server in
// d, made at now. The caller stores it when the verification is finalized.
func Acceptance(d *Description, dec Decision, leaf *x509.Certificate, chain [][]byte, now time.Time) *truststore.Acceptance {
	a := &truststore.Acceptance{
		Fingerprint: x509certs.FingerprintOf(leaf.Raw),
		Host:        d.Host,
		Port:        d.Port,
		Scope:       d.Scope,
		Names:       slices.Clone(d.Names),
		Mode:        dec.ModeFor(d.Scope),
		Warnings:    d.Warnings,
		Rating:      d.Rating,
		Reasons:     d.Reasons,
		NotAfter:    leaf.NotAfter,
		Chain:       chain,
	}
	if now.After(leaf.NotAfter) {
		a.TrustedUntil = now.Add(ExpiredAcceptanceWindow)
	}
	return a
}
