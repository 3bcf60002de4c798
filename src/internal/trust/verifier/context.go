// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package verifier

import (
	"context"
	"crypto/x509"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/netfetch"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/interaction"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/repository"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/revocation"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/chain"
)

// Context is the live state of one verification. It is owned by the
// [Verifier] that created it; callers only use it as a handle when
// delivering events and to read the outcome once it is terminal.
type Context struct {
	id       string
	phase    Phase
	identity trust.Identity
	started  time.Time

	presented [][]byte
	handler   *x509chain.Handler
	leaf      *x509.Certificate
	leafFP    x509certs.Fingerprint

	// Store content captured by UpdateIntermediates.
	roots         []*x509.Certificate
	intermediates []*x509.Certificate
	revokedList   []x509certs.Fingerprint

	validation *x509chain.Validation
	names      []string

	warnings trust.Warning
	rating   trust.SecurityRating
	reasons  trust.LowSecurityReason
	mode     trust.ConfirmMode
	alert    *trust.Alert
	verdict  *trust.Verdict

	// Remediation bookkeeping.
	triedAIA     map[string]struct{}
	triedRepo    map[string]struct{}
	waitedBatch  bool
	downloaded   []*x509.Certificate
	responses    revocation.Responses
	revocation   *revocation.Results
	revocationOK bool

	// acceptance is the stored acceptance found by CheckCert.
	acceptance  *truststore.Acceptance
	description *interaction.Description

	// Staged store writes.
	staged staged

	pending Effect
	aborted atomic.Bool
	fetches atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	batch  *netfetch.Batch
}

type staged struct {
	entries    []repository.Entry
	keep       []*x509.Certificate
	revoked    []x509certs.Fingerprint
	acceptance *truststore.Acceptance
}

func newContext(env *Environment, chain [][]byte, ident trust.Identity) *Context {
	ctx, cancel := context.WithCancel(context.Background())
	return &Context{
		id:        uuid.NewString(),
		phase:     PhaseInit,
		identity:  ident,
		started:   env.Clock.Now(),
		presented: slices.Clone(chain),
		handler:   x509chain.NewHandler(),
		rating:    trust.RatingFull,
		triedAIA:  make(map[string]struct{}),
		triedRepo: make(map[string]struct{}),
		responses: make(revocation.Responses),
		ctx:       ctx,
		cancel:    cancel,
		batch:     netfetch.NewBatch(ctx, env.Network),
	}
}

// ID identifies the verification in log lines.
func (vc *Context) ID() string { return vc.id }

// Phase returns the current phase.
func (vc *Context) Phase() Phase { return vc.phase }

// Identity returns the server the chain was presented by.
func (vc *Context) Identity() trust.Identity { return vc.identity }

// Fetches returns how many network requests the verification started.
// Repository lookups are not counted; they are shared between verifications.
func (vc *Context) Fetches() int { return int(vc.fetches.Load()) }

// Handler returns an independent copy of the certificate handler, holding
// the validated path once chain building has run.
func (vc *Context) Handler() *x509chain.Handler { return vc.handler.Fork() }

// Description returns the prompt description, if a prompt was needed.
func (vc *Context) Description() *interaction.Description { return vc.description }

func (vc *Context) cancelIO() {
	vc.batch.Cancel()
	vc.cancel()
}

// lower caps the rating at r and records why.
func (vc *Context) lower(r trust.SecurityRating, reason trust.LowSecurityReason) {
	vc.rating = vc.rating.Cap(r)
	vc.reasons = vc.reasons.With(reason)
}

// resetFindings clears what the checks after chain building derive, so a
// re-validated chain is judged from scratch.
func (vc *Context) resetFindings() {
	vc.warnings, vc.rating, vc.reasons = 0, trust.RatingFull, 0
	if vc.revocation != nil {
		vc.lower(vc.revocation.Rating())
	}
}

func (vc *Context) fail(code trust.AlertCode, format string, args ...any) (Phase, Effect) {
	vc.alert = trust.NewAlert(code, format, args...)
	return PhaseFinishedFailed, nil
}

func (vc *Context) chainDER() [][]byte {
	if vc.validation != nil {
		return x509certs.RawChain(vc.validation.Chain)
	}
	return slices.Clone(vc.presented)
}

func (vc *Context) buildVerdict() *trust.Verdict {
	v := &trust.Verdict{
		Accepted: vc.phase == PhaseFinishedSuccess,
		Alert:    vc.alert,
		Rating:   vc.rating,
		Reasons:  vc.reasons,
		Warnings: vc.warnings,
		Mode:     vc.mode,
		Chain:    vc.chainDER(),
		Names:    slices.Clone(vc.names),
	}
	if vc.validation == nil && vc.acceptance != nil && len(vc.acceptance.Chain) > 0 {
		// Short-circuited by a stored acceptance.
		v.Chain = slices.Clone(vc.acceptance.Chain)
	}
	return v
}
