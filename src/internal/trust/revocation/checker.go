// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package revocation

import (
	"crypto/x509"
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/netfetch"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/logger"
)

// Source names where a revocation answer came from.
type Source uint8

const (
	SourceNone Source = iota
	SourceStapledOCSP
	SourceOCSP
	SourceCRL
)

func (s Source) String() string {
	switch s {
	case SourceStapledOCSP:
		return "stapled_ocsp"
	case SourceOCSP:
		return "ocsp"
	case SourceCRL:
		return "crl"
	}
	return "none"
}

// Overrides supplies repository provided responder and CRL locations,
// keyed by the issuer's subject id.
type Overrides interface {
	CRLLocations(id x509certs.ID) []string
	OCSPOverride(id x509certs.ID) (string, bool)
}

// Responses are completed fetches keyed by request URL.
type Responses map[string]netfetch.Result

// Options tune the checker.
type Options struct {
	CheckOCSP bool
	CheckCRL  bool
	// MaxRequestTime and MaxIdleTime are copied into every request.
	MaxRequestTime time.Duration
	MaxIdleTime    time.Duration
}

// DefaultOptions enables both mechanisms.
func DefaultOptions() Options {
	return Options{CheckOCSP: true, CheckCRL: true}
}

// CertResult is the answer for one chain element.
type CertResult struct {
	Index  int
	Source Source
	x509chain.RevocationResult
	// Unable is set when the certificate names revocation sources but none
	// of them produced a usable answer.
	Unable bool
	Err    error
}

// Results is the interpretation of a whole chain.
type Results struct {
	Certs []CertResult
	// Revoked is the index of the first revoked certificate, or -1.
	Revoked int
	// Unable is set when at least one certificate could not be checked.
	Unable bool
}

// RevokedResult returns the result of the first revoked certificate.
func (r *Results) RevokedResult() (CertResult, bool) {
	for _, c := range r.Certs {
		if c.Index == r.Revoked {
			return c, true
		}
	}
	return CertResult{}, false
}

// Rating returns the rating cap and reasons implied by the results.
func (r *Results) Rating() (trust.SecurityRating, trust.LowSecurityReason) {
	if r.Unable {
		return trust.RatingHalf, trust.ReasonUnableToCheckRevocation
	}
	return trust.RatingFull, 0
}

// Outcome is the result of one Check call. Exactly one field is set.
type Outcome struct {
	NeedsFetch []netfetch.Request
	Results    *Results
}

// Checker coordinates CRL and OCSP checks. It is safe for concurrent use;
// all per-verification state lives in the arguments of Check.
type Checker struct {
	opts      Options
	cache     *CRLCache
	overrides Overrides
	clock     clockwork.Clock
	log       logger.Logger
}

// NewChecker returns a Checker. cache and overrides may be nil.
func NewChecker(opts Options, cache *CRLCache, overrides Overrides, clock clockwork.Clock, log logger.Logger) *Checker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Checker{opts: opts, cache: cache, overrides: overrides, clock: clock, log: logger.OrNop(log)}
}

// Cache returns the shared CRL cache, which may be nil.
func (c *Checker) Cache() *CRLCache { return c.cache }

// Check inspects the validated chain v. stapled is the OCSP response sent in
// the handshake for the leaf, if any. fetched holds every response received
// so far for this verification.
//
// Requests in NeedsFetch are deduplicated by URL and never include a URL
// already present in fetched, so repeated calls always make progress.
func (c *Checker) Check(v *x509chain.Validation, stapled []byte, fetched Responses) Outcome {
	now := c.clock.Now()
	var (
		needs   []netfetch.Request
		results = &Results{Revoked: -1}
	)

	last := len(v.Chain) - 1
	if v.Anchored {
		// The anchor is trusted by definition.
		last--
	}

	for i := 0; i <= last; i++ {
		cert := v.Chain[i]
		issuer := v.Issuer(i)
		if issuer == nil {
			continue
		}

		res, reqs := c.checkOne(i, cert, issuer, stapled, fetched, now)
		if len(reqs) > 0 {
			needs = append(needs, reqs...)
			continue
		}
		results.Certs = append(results.Certs, res)
		if res.Unable {
			results.Unable = true
		}
		if res.State == x509chain.RevocationRevoked && results.Revoked < 0 {
			results.Revoked = i
		}
	}

	if len(needs) > 0 {
		return Outcome{NeedsFetch: lo.UniqBy(needs, func(r netfetch.Request) string { return r.URL })}
	}
	return Outcome{Results: results}
}

func (c *Checker) checkOne(i int, cert, issuer *x509.Certificate, stapled []byte, fetched Responses, now time.Time) (CertResult, []netfetch.Request) {
	res := CertResult{Index: i}
	issuerID := x509certs.SubjectID(issuer)
	var lastErr error

	if i == 0 && len(stapled) > 0 {
		r, err := x509chain.ValidateOCSPResponse(stapled, cert, issuer, now)
		if err == nil && r.State != x509chain.RevocationUnknown {
			res.Source, res.RevocationResult = SourceStapledOCSP, *r
			return res, nil
		}
		c.log.Printf("revocation: stapled OCSP response unusable: %v", err)
		lastErr = err
	}

	if i == 0 && c.opts.CheckOCSP {
		if u := c.ocspURL(cert, issuer, issuerID); u != "" {
			resp, done := fetched[u]
			if !done {
				return res, []netfetch.Request{c.request(u)}
			}
			if resp.Err == nil {
				r, err := x509chain.ValidateOCSPResponse(resp.Data, cert, issuer, now)
				if err == nil && r.State != x509chain.RevocationUnknown {
					res.Source, res.RevocationResult = SourceOCSP, *r
					return res, nil
				}
				lastErr = err
			} else {
				lastErr = resp.Err
			}
			c.log.Printf("revocation: OCSP for %s failed, falling back to CRL: %v", cert.Subject.CommonName, lastErr)
		}
	}

	if c.opts.CheckCRL {
		for _, u := range c.crlURLs(cert, issuerID) {
			data, cached := c.lookupCRL(u, fetched)
			if !cached {
				return res, []netfetch.Request{c.request(u)}
			}
			if data == nil {
				lastErr = fetched[u].Err
				continue
			}
			rl, err := x509chain.ParseCRL(data, issuer, now)
			if err != nil {
				lastErr = err
				continue
			}
			if c.cache != nil {
				c.cache.Set(u, data, rl.NextUpdate)
			}
			res.Source, res.RevocationResult = SourceCRL, *x509chain.CRLStatus(rl, cert)
			return res, nil
		}
	}

	// Sources were named but none answered.
	if lastErr != nil || c.hasSources(i, cert, issuerID) {
		res.Unable = true
		res.Err = lastErr
	}
	return res, nil
}

// lookupCRL returns the CRL bytes for u from the shared cache or the
// responses of this verification. ok is false while u still needs fetching;
// data is nil when the fetch failed.
func (c *Checker) lookupCRL(u string, fetched Responses) (data []byte, ok bool) {
	if c.cache != nil {
		if d, hit := c.cache.Get(u); hit {
			return d, true
		}
	}
	resp, done := fetched[u]
	if !done {
		return nil, false
	}
	if resp.Err != nil {
		return nil, true
	}
	return resp.Data, true
}

func (c *Checker) hasSources(i int, cert *x509.Certificate, issuerID x509certs.ID) bool {
	if c.opts.CheckCRL && len(c.crlURLs(cert, issuerID)) > 0 {
		return true
	}
	return i == 0 && c.opts.CheckOCSP && len(cert.OCSPServer) > 0
}

func (c *Checker) crlURLs(cert *x509.Certificate, issuerID x509certs.ID) []string {
	var urls []string
	if c.overrides != nil {
		urls = c.overrides.CRLLocations(issuerID)
	}
	if len(urls) == 0 {
		urls = cert.CRLDistributionPoints
	}
	return lo.Uniq(lo.Filter(urls, func(u string, _ int) bool {
		return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
	}))
}

// ocspURL returns the GET form of the OCSP request (RFC 6960 appendix A.1),
// which makes the URL unique per certificate.
func (c *Checker) ocspURL(cert, issuer *x509.Certificate, issuerID x509certs.ID) string {
	responder := ""
	if c.overrides != nil {
		responder, _ = c.overrides.OCSPOverride(issuerID)
	}
	if responder == "" {
		responder, _ = lo.Find(cert.OCSPServer, func(u string) bool {
			return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
		})
	}
	if responder == "" {
		return ""
	}

	req, err := x509chain.CreateOCSPRequest(cert, issuer)
	if err != nil {
		c.log.Printf("revocation: %v", err)
		return ""
	}
	return strings.TrimSuffix(responder, "/") + "/" + url.PathEscape(base64.StdEncoding.EncodeToString(req))
}

func (c *Checker) request(u string) netfetch.Request {
	return netfetch.Request{
		URL:            u,
		MaxRequestTime: c.opts.MaxRequestTime,
		MaxIdleTime:    c.opts.MaxIdleTime,
	}
}
