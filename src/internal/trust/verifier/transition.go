// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package verifier

import (
	"crypto/tls"
	"crypto/x509"
	"strings"

	"golang.org/x/net/idna"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/netfetch"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/interaction"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/repository"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/chain"
)

// transition handles the current phase of vc. ev is the event that ended a
// suspension and is nil otherwise. It returns the next phase and, when the
// verification must wait, the effect to perform.
//
// transition reads the environment but never writes to the store and never
// performs I/O; everything it wants persisted is staged on vc.
func transition(env *Environment, vc *Context, ev Event) (Phase, Effect) {
	switch vc.phase {
	case PhaseInit:
		return initChain(vc)
	case PhaseCheckCert:
		return checkCert(env, vc)
	case PhaseUpdateIntermediates:
		return updateIntermediates(env, vc)
	case PhaseBuildAndValidateChain:
		return buildAndValidateChain(env, vc)
	case PhaseCheckUntrusted:
		return checkUntrusted(env, vc)
	case PhaseCheckKeySize:
		return checkKeySize(env, vc)
	case PhaseExtractNames:
		vc.names = x509chain.ServerNames(vc.leaf)
		return PhaseExtractWarnStatus, nil
	case PhaseExtractWarnStatus:
		return extractWarnStatus(env, vc)
	case PhaseCheckMissingCerts:
		return checkMissingCerts(env, vc)
	case PhaseCheckWarnings:
		return checkWarnings(env, vc)
	case PhaseHandleDownloadedIntermediates:
		return handleDownloadedIntermediates(vc)
	case PhaseCheckHostName:
		if host := vc.identity.Host; host != "" && !matchesHost(vc.leaf, host) {
			vc.warnings = vc.warnings.With(trust.WarnNameMismatch)
		}
		return PhaseCheckTrustedForHost, nil
	case PhaseCheckTrustedForHost:
		return checkTrustedForHost(vc)
	case PhaseCheckNeedsInteraction:
		return checkNeedsInteraction(env, vc)

	case PhaseLoadingAIACert:
		return aiaLoaded(env, vc, ev.(Fetched))
	case PhaseLoadingCRLOrOCSP:
		for _, r := range ev.(Fetched).Results {
			vc.responses[r.Request.URL] = r
		}
		return PhaseBuildAndValidateChain, nil
	case PhaseLoadingRepositoryCert:
		return repositoryLoaded(env, vc, ev.(RepositoryFetched))
	case PhaseLoadingUntrustedCert:
		return untrustedLoaded(env, vc, ev.(RepositoryFetched))
	case PhaseWaitForRepositoryBatch:
		if err := ev.(RepositoryBatchDone).Err; err != nil {
			env.Logger.Printf("verifier: %s: repository refresh failed: %v", vc.id, err)
		}
		return PhaseCheckMissingCerts, nil
	case PhaseAskingUser:
		return decided(env, vc, ev.(Decided))
	}
	return vc.fail(trust.AlertInternalError, "no transition from phase %s", vc.phase)
}

func initChain(vc *Context) (Phase, Effect) {
	if len(vc.presented) == 0 {
		return vc.fail(trust.AlertBadCertificate, "empty certificate chain")
	}
	if err := vc.handler.LoadChain(vc.presented); err != nil {
		return vc.fail(trust.AlertBadCertificate, "%v", err)
	}
	vc.leaf = vc.handler.Certificate(0)
	vc.leafFP = x509certs.FingerprintOf(vc.leaf.Raw)
	return PhaseCheckCert, nil
}

// checkCert applies the shortcuts that need no chain building: the global
// revoked list, the blacklist and stored acceptances.
func checkCert(env *Environment, vc *Context) (Phase, Effect) {
	for i, c := range vc.handler.Certificates() {
		if env.Store.IsRevoked(x509certs.FingerprintOf(c.Raw)) {
			return vc.fail(trust.AlertCertificateRevoked, "certificate %d (%s) is on the revoked list", i, displayName(c))
		}
	}
	if env.Store.IsBlacklisted(vc.leaf) {
		return vc.fail(trust.AlertAccessDenied, "certificate %s is distrusted", displayName(vc.leaf))
	}

	id := vc.identity
	a := env.Store.FindAcceptance(vc.leafFP, id.Host, id.Port, id.Scope)
	if a == nil {
		return PhaseUpdateIntermediates, nil
	}
	switch a.Mode {
	case trust.UserRejected:
		return vc.fail(trust.AlertAccessDenied, "certificate was rejected for %s earlier in this session", id.Address())
	case trust.PermanentlyConfirmed:
		vc.acceptance = a
		vc.warnings, vc.rating, vc.reasons = a.Warnings, a.Rating, a.Reasons
		vc.mode = a.Mode
		vc.names = a.Names
		return PhaseFinishedSuccess, nil
	}
	vc.acceptance = a
	return PhaseUpdateIntermediates, nil
}

func updateIntermediates(env *Environment, vc *Context) (Phase, Effect) {
	vc.roots = env.Store.Certificates(truststore.KindRoot)
	vc.intermediates = env.Store.Certificates(truststore.KindIntermediate)
	vc.revokedList = env.Store.Revoked()
	return PhaseBuildAndValidateChain, nil
}

// hints combines the store content with certificates downloaded or staged
// during this verification.
func (vc *Context) hints(env *Environment) x509chain.Hints {
	h := x509chain.Hints{
		Roots:         append([]*x509.Certificate(nil), vc.roots...),
		Intermediates: append(append([]*x509.Certificate(nil), vc.intermediates...), vc.downloaded...),
		Revoked:       vc.revokedList,
		AsOf:          env.Clock.Now(),
	}
	for _, e := range vc.staged.entries {
		if untrustedEntry(env, e) {
			continue
		}
		switch e.Kind {
		case truststore.KindRoot:
			h.Roots = append(h.Roots, e.Certificate)
		case truststore.KindIntermediate:
			h.Intermediates = append(h.Intermediates, e.Certificate)
		}
	}
	return h
}

func buildAndValidateChain(env *Environment, vc *Context) (Phase, Effect) {
	val, err := vc.handler.VerifySignatures(env.Options.Purpose, vc.hints(env))
	if err != nil {
		return vc.fail(trust.AlertInternalError, "chain building: %v", err)
	}
	vc.validation = val

	for i, s := range val.Status {
		switch {
		case s.Has(x509chain.StatusRevoked):
			return vc.fail(trust.AlertCertificateRevoked, "%s is on the revoked list", displayName(val.Chain[i]))
		case s.Has(x509chain.StatusBadSignature):
			return vc.fail(trust.AlertBadCertificate, "signature of %s does not verify", displayName(val.Chain[i]))
		}
	}

	if val.UnresolvedAt >= 0 {
		if reqs := vc.aiaRequests(env, val.Chain[val.UnresolvedAt]); len(reqs) > 0 {
			return PhaseLoadingAIACert, Fetch{Purpose: FetchAIA, Requests: reqs}
		}
		vc.resetFindings()
		return PhaseCheckUntrusted, nil
	}

	if env.Revocation != nil && !vc.revocationOK {
		out := env.Revocation.Check(val, vc.identity.StapledOCSP, vc.responses)
		if len(out.NeedsFetch) > 0 {
			return PhaseLoadingCRLOrOCSP, Fetch{Purpose: FetchRevocation, Requests: out.NeedsFetch}
		}
		vc.revocationOK = true
		vc.revocation = out.Results
		if r, ok := out.Results.RevokedResult(); ok {
			c := val.Chain[r.Index]
			vc.staged.revoked = append(vc.staged.revoked, x509certs.FingerprintOf(c.Raw))
			return vc.fail(trust.AlertCertificateRevoked, "%s revoked (%s via %s)", displayName(c), r.Reason, r.Source)
		}
		for _, r := range out.Results.Certs {
			if r.Unable {
				env.Logger.Printf("verifier: %s: unable to check revocation of %s: %v", vc.id, displayName(val.Chain[r.Index]), r.Err)
			}
		}
	}

	vc.resetFindings()
	return PhaseCheckUntrusted, nil
}

// aiaRequests returns the issuer download requests for c that were not
// tried yet in this verification and marks them tried.
func (vc *Context) aiaRequests(env *Environment, c *x509.Certificate) []netfetch.Request {
	var reqs []netfetch.Request
	for _, u := range c.IssuingCertificateURL {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			continue
		}
		if _, done := vc.triedAIA[u]; done {
			continue
		}
		vc.triedAIA[u] = struct{}{}
		reqs = append(reqs, netfetch.Request{
			URL:            u,
			MaxRequestTime: env.Options.MaxRequestTime,
			MaxIdleTime:    env.Options.MaxIdleTime,
		})
	}
	return reqs
}

func aiaLoaded(env *Environment, vc *Context, ev Fetched) (Phase, Effect) {
	codec := x509certs.NewCodec()
	for _, r := range ev.Results {
		if r.Err != nil {
			env.Logger.Printf("verifier: %s: issuer download %s failed: %v", vc.id, r.Request.URL, r.Err)
			continue
		}
		certs, err := codec.DecodeBundle(r.Data)
		if err != nil {
			env.Logger.Printf("verifier: %s: issuer download %s: %v", vc.id, r.Request.URL, err)
			continue
		}
		for _, c := range certs {
			if !containsCert(vc.downloaded, c) {
				vc.downloaded = append(vc.downloaded, c)
			}
		}
	}
	return PhaseBuildAndValidateChain, nil
}

func checkUntrusted(env *Environment, vc *Context) (Phase, Effect) {
	val := vc.validation
	for _, c := range val.Chain {
		if env.Store.IsBlacklisted(c) || stagedDenied(env, vc, c) {
			return vc.fail(trust.AlertAccessDenied, "certificate %s is distrusted", displayName(c))
		}
	}
	if val.UnresolvedAt < 0 {
		return PhaseCheckKeySize, nil
	}

	// The missing issuer may be a distrusted CA.
	top := val.Top()
	for _, id := range x509certs.IssuerIDCandidates(top) {
		for _, r := range env.Store.FindByID(truststore.KindUntrusted, id) {
			if c, err := r.Certificate(); err == nil && signs(c, top) {
				return vc.fail(trust.AlertAccessDenied, "issuer of %s is distrusted", displayName(top))
			}
		}
	}
	if !env.Repository.Enabled() {
		return PhaseCheckKeySize, nil
	}
	for _, id := range x509certs.IssuerIDCandidates(top) {
		if !env.Store.IsInRepository(truststore.KindUntrusted, id) ||
			len(env.Store.FindByID(truststore.KindUntrusted, id)) > 0 {
			continue
		}
		if vc.tryRepository(env, truststore.KindUntrusted, id) {
			return PhaseLoadingUntrustedCert, LookupRepository{Kind: truststore.KindUntrusted, ID: id}
		}
	}
	return PhaseCheckKeySize, nil
}

func untrustedLoaded(env *Environment, vc *Context, ev RepositoryFetched) (Phase, Effect) {
	if ev.Err != nil {
		env.Logger.Printf("verifier: %s: untrusted certificate lookup: %v", vc.id, ev.Err)
		return PhaseBuildAndValidateChain, nil
	}
	vc.staged.entries = append(vc.staged.entries, ev.Entries...)

	top := vc.validation.Top()
	for _, e := range ev.Entries {
		if signs(e.Certificate, top) {
			return vc.fail(trust.AlertAccessDenied, "issuer of %s is distrusted", displayName(top))
		}
	}
	return PhaseBuildAndValidateChain, nil
}

// tryRepository reports whether a lookup of id in kind should be started
// and, if so, marks it tried for this verification.
func (vc *Context) tryRepository(env *Environment, kind truststore.Kind, id x509certs.ID) bool {
	key := repository.AttemptKey(kind, id)
	if _, done := vc.triedRepo[key]; done || env.Repository.Blocked(kind, id) {
		return false
	}
	vc.triedRepo[key] = struct{}{}
	return true
}

func checkKeySize(env *Environment, vc *Context) (Phase, Effect) {
	val := vc.validation
	opts := env.Options

	for i, c := range val.Chain {
		alg, name, bits := x509chain.KeyStrength(c)
		if r := keyRating(opts, alg, bits); r != trust.RatingFull {
			env.Logger.Printf("verifier: %s: %d-bit %s key of %s rates %s", vc.id, bits, name, displayName(c), r)
			vc.lower(r, trust.ReasonWeakKey)
		}

		// The signature on a self-signed top certificate protects nothing.
		if i == len(val.Chain)-1 && x509chain.IsSelfSigned(c) {
			continue
		}
		switch x509chain.SignatureStrength(c) {
		case x509chain.SignatureBroken:
			vc.lower(trust.RatingLow, trust.ReasonWeakMethod)
		case x509chain.SignatureWeak:
			vc.lower(trust.RatingHalf, trust.ReasonWeakMethod)
		}
	}

	if v := vc.identity.TLSVersion; v != 0 && v < tls.VersionTLS12 {
		vc.lower(trust.RatingHalf, trust.ReasonWeakProtocol)
	}
	if vc.rating == trust.RatingLow {
		vc.warnings = vc.warnings.With(trust.WarnLowEncryption)
	}
	if vc.identity.CipherDisabled {
		vc.warnings = vc.warnings.With(trust.WarnCipherDisabled)
	}
	return PhaseExtractNames, nil
}

func keyRating(opts Options, alg x509chain.KeyAlgorithm, bits int) trust.SecurityRating {
	var minBits, preferred int
	switch alg {
	case x509chain.KeyFactoring:
		minBits, preferred = opts.MinRSABits, opts.PreferredRSABits
	case x509chain.KeyElliptic:
		minBits, preferred = opts.MinECBits, opts.PreferredECBits
	default:
		return trust.RatingLow
	}
	switch {
	case bits < minBits:
		return trust.RatingLow
	case bits < preferred:
		return trust.RatingHalf
	}
	return trust.RatingFull
}

func extractWarnStatus(env *Environment, vc *Context) (Phase, Effect) {
	val := vc.validation
	for i, s := range val.Status {
		if s.Has(x509chain.StatusExpired) {
			vc.warnings = vc.warnings.With(trust.WarnExpired)
		}
		if s.Has(x509chain.StatusNotYetValid) {
			vc.warnings = vc.warnings.With(trust.WarnNotYetValid)
		}
		if s.Has(x509chain.StatusIncorrectCAFlags) || s.Has(x509chain.StatusWrongPurpose) {
			vc.warnings = vc.warnings.With(trust.WarnCertificate)
		}
		if env.Store.FlagsOf(val.Chain[i]).Has(truststore.FlagWarnIfUsed) || stagedWarn(vc, val.Chain[i]) {
			vc.warnings = vc.warnings.With(trust.WarnCertificate)
		}
	}
	if x509chain.AuthenticationOnly(vc.leaf) {
		vc.warnings = vc.warnings.With(trust.WarnAuthenticationOnly)
	}
	if vc.identity.Anonymous {
		vc.warnings = vc.warnings.With(trust.WarnAnonymous)
	}
	if vc.identity.NoRenegotiationExtension {
		vc.warnings = vc.warnings.With(trust.WarnNoRenegotiationExtension)
	}
	return PhaseCheckMissingCerts, nil
}

type lookupTarget struct {
	kind truststore.Kind
	id   x509certs.ID
}

// missingTargets lists the repository lookups that could complete the path.
// The last certificate of the built path is the one whose issuer is looked
// for, whichever way the path ended.
func missingTargets(val *x509chain.Validation) []lookupTarget {
	top := val.Top()
	if val.SelfSignedTop {
		return []lookupTarget{{truststore.KindRoot, x509certs.SubjectID(top)}}
	}
	var out []lookupTarget
	for _, id := range x509certs.IssuerIDCandidates(top) {
		out = append(out, lookupTarget{truststore.KindRoot, id}, lookupTarget{truststore.KindIntermediate, id})
	}
	return out
}

func checkMissingCerts(env *Environment, vc *Context) (Phase, Effect) {
	val := vc.validation
	if val.Anchored {
		return PhaseCheckWarnings, nil
	}

	if upd := env.Repository; upd.Enabled() {
		if !vc.waitedBatch {
			_, running := upd.InProgress()
			empty := len(env.Store.RepositoryList(truststore.KindRoot)) == 0 &&
				len(env.Store.RepositoryList(truststore.KindIntermediate)) == 0
			if running || (empty && !upd.IndexRecent()) {
				vc.waitedBatch = true
				return PhaseWaitForRepositoryBatch, AwaitRepositoryBatch{}
			}
		}
		for _, t := range missingTargets(val) {
			if !env.Store.IsInRepository(t.kind, t.id) {
				continue
			}
			if vc.tryRepository(env, t.kind, t.id) {
				return PhaseLoadingRepositoryCert, LookupRepository{Kind: t.kind, ID: t.id}
			}
		}
	}

	if val.UnresolvedAt >= 0 {
		return vc.fail(trust.AlertUnknownCA, "issuer of %s not found", displayName(val.Top()))
	}
	return PhaseCheckWarnings, nil
}

func repositoryLoaded(env *Environment, vc *Context, ev RepositoryFetched) (Phase, Effect) {
	if ev.Err != nil {
		env.Logger.Printf("verifier: %s: repository lookup: %v", vc.id, ev.Err)
		return PhaseCheckMissingCerts, nil
	}
	vc.staged.entries = append(vc.staged.entries, ev.Entries...)
	return PhaseBuildAndValidateChain, nil
}

func checkWarnings(env *Environment, vc *Context) (Phase, Effect) {
	val := vc.validation
	if val.SelfSignedTop && !val.Anchored {
		if env.Options.StrictUnknownCA {
			return vc.fail(trust.AlertUnknownCA, "chain ends in untrusted self-signed certificate %s", displayName(val.Top()))
		}
		vc.warnings = vc.warnings.With(trust.WarnUnknownChain)
	}
	return PhaseHandleDownloadedIntermediates, nil
}

// handleDownloadedIntermediates keeps the downloaded certificates the final
// path actually uses.
func handleDownloadedIntermediates(vc *Context) (Phase, Effect) {
	vc.staged.keep = vc.staged.keep[:0]
	for _, c := range vc.downloaded {
		if containsCert(vc.validation.Chain, c) {
			vc.staged.keep = append(vc.staged.keep, c)
		}
	}
	return PhaseCheckHostName, nil
}

func matchesHost(leaf *x509.Certificate, host string) bool {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if ascii, err := idna.Lookup.ToASCII(h); err == nil {
		h = ascii
	}
	return leaf.VerifyHostname(h) == nil
}

func checkTrustedForHost(vc *Context) (Phase, Effect) {
	if a := vc.acceptance; a != nil && a.Mode.Accepted() && a.Warnings.Covers(vc.warnings) {
		vc.mode = a.Mode
		return PhaseFinishedSuccess, nil
	}
	return PhaseCheckNeedsInteraction, nil
}

func checkNeedsInteraction(env *Environment, vc *Context) (Phase, Effect) {
	if vc.warnings == 0 {
		return PhaseFinishedSuccess, nil
	}
	category := interaction.Select(vc.warnings)
	if !env.Gateway.Available() {
		return vc.fail(interaction.FatalAlert(category), "%s and no one to ask", category)
	}
	vc.description = interaction.Describe(vc.id, vc.identity, vc.validation.Chain,
		vc.names, vc.warnings, vc.rating, vc.reasons)
	return PhaseAskingUser, Prompt{Description: vc.description}
}

func decided(env *Environment, vc *Context, ev Decided) (Phase, Effect) {
	category := vc.description.Primary
	if ev.Err != nil {
		env.Metrics.ObservePrompt(category.String(), "error")
		return vc.fail(trust.AlertAccessDenied, "no decision: %v", ev.Err)
	}

	vc.staged.acceptance = interaction.Acceptance(vc.description, ev.Decision, vc.leaf, vc.chainDER(), env.Clock.Now())
	vc.mode = ev.Decision.ModeFor(vc.identity.Scope)
	if !ev.Decision.Accept {
		env.Metrics.ObservePrompt(category.String(), "deny")
		return vc.fail(trust.AlertAccessDenied, "rejected by user (%s)", category)
	}
	env.Metrics.ObservePrompt(category.String(), "accept")
	return PhaseFinishedSuccess, nil
}

func untrustedEntry(env *Environment, e repository.Entry) bool {
	return e.Kind == truststore.KindUntrusted || e.Deny ||
		env.Store.IsInRepository(truststore.KindUntrusted, e.ID)
}

func stagedDenied(env *Environment, vc *Context, c *x509.Certificate) bool {
	for _, e := range vc.staged.entries {
		if untrustedEntry(env, e) && e.Certificate.Equal(c) {
			return true
		}
	}
	return false
}

func stagedWarn(vc *Context, c *x509.Certificate) bool {
	for _, e := range vc.staged.entries {
		if e.Warn && e.Certificate.Equal(c) {
			return true
		}
	}
	return false
}

// signs reports whether issuer's key verifies child's signature.
func signs(issuer, child *x509.Certificate) bool {
	return issuer.CheckSignature(child.SignatureAlgorithm, child.RawTBSCertificate, child.Signature) == nil
}

func containsCert(certs []*x509.Certificate, c *x509.Certificate) bool {
	for _, x := range certs {
		if x.Equal(c) {
			return true
		}
	}
	return false
}

func displayName(c *x509.Certificate) string {
	if c.Subject.CommonName != "" {
		return c.Subject.CommonName
	}
	return c.Subject.String()
}
