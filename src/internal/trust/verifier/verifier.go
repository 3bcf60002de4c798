// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package verifier

import (
	"sync"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
)

// Status is the state a verification is left in after a call returns.
type Status uint8

const (
	// StatusSuspended means the verification waits for the outcome of
	// Result.Effect.
	StatusSuspended Status = iota
	StatusCompleted
	StatusFailed
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	}
	return "suspended"
}

// Result is returned by [Verifier.Verify] and [Verifier.Deliver].
type Result struct {
	Status  Status
	Context *Context
	// Effect is set when Status is StatusSuspended.
	Effect Effect
	// Verdict is set for completed and failed verifications.
	Verdict *trust.Verdict
	Alert   *trust.Alert

	// Rejected is set when Verify was refused because another verification
	// is in flight. Nothing was started.
	Rejected bool
}

type queued struct {
	vc *Context
	ev Event
}

// Verifier runs one verification at a time. It is safe to call from
// several goroutines: a Verify while a verification is in flight is
// refused, and an event delivered while the trampoline is running is queued
// and applied once the running step sequence ends.
type Verifier struct {
	env *Environment

	mu        sync.Mutex
	current   *Context
	iterating bool
	queue     []queued
}

// New returns a Verifier for env.
func New(env *Environment) (*Verifier, error) {
	if env == nil || env.Store == nil {
		return nil, ErrNoStore
	}
	return &Verifier{env: env.withDefaults()}, nil
}

// Environment returns the environment with defaults applied.
func (v *Verifier) Environment() *Environment { return v.env }

// Verify starts verifying chain (DER, leaf first) for the server ident and
// advances it as far as possible without I/O.
func (v *Verifier) Verify(chain [][]byte, ident trust.Identity) Result {
	v.mu.Lock()
	if v.iterating || (v.current != nil && !v.current.phase.Terminal()) {
		v.mu.Unlock()
		return Result{Status: StatusSuspended, Rejected: true}
	}
	vc := newContext(v.env, chain, ident)
	v.current = vc
	v.iterating = true
	v.mu.Unlock()

	v.env.Logger.Printf("verifier: %s: verifying %d certificates for %s", vc.id, len(chain), ident.Address())
	return v.pump(vc, nil)
}

// Deliver hands the outcome of the pending effect of vc to the verifier.
// Events for a finished or replaced context, and events that do not answer
// the pending effect, are ignored.
func (v *Verifier) Deliver(vc *Context, ev Event) Result {
	v.mu.Lock()
	if v.iterating {
		v.queue = append(v.queue, queued{vc, ev})
		v.mu.Unlock()
		return Result{Status: StatusSuspended, Context: vc}
	}
	v.iterating = true
	v.mu.Unlock()

	return v.pump(vc, ev)
}

// Abort ends vc. Pending fetches are cancelled and later events ignored.
// Nothing staged by vc is committed.
func (v *Verifier) Abort(vc *Context) {
	if vc == nil {
		return
	}
	vc.aborted.Store(true)
	vc.cancelIO()
	v.Deliver(vc, nil)
}

// pump advances vc with ev, then drains events queued meanwhile. It is
// entered with iterating set and clears it on return.
func (v *Verifier) pump(vc *Context, ev Event) Result {
	r := v.advance(vc, ev)
	for {
		v.mu.Lock()
		if len(v.queue) == 0 {
			v.iterating = false
			v.mu.Unlock()
			return r
		}
		q := v.queue[0]
		v.queue = v.queue[1:]
		v.mu.Unlock()

		if qr := v.advance(q.vc, q.ev); q.vc == vc {
			r = qr
		}
	}
}

// advance is the trampoline: it applies transitions until one suspends or
// a terminal phase is reached.
func (v *Verifier) advance(vc *Context, ev Event) Result {
	if vc != v.current || vc.phase.Terminal() {
		return vc.result()
	}
	if vc.aborted.Load() {
		v.enter(vc, PhaseAborted)
		v.finalize(vc)
		return vc.result()
	}

	if vc.pending != nil {
		if ev == nil || !vc.pending.Accepts(ev) {
			if ev != nil {
				v.env.Logger.Printf("verifier: %s: ignoring %T while waiting for %s", vc.id, ev, vc.pending)
			}
			return vc.result()
		}
		vc.pending = nil
	} else {
		ev = nil
	}

	for {
		next, eff := v.step(vc, ev)
		ev = nil
		v.enter(vc, next)

		if next.Terminal() {
			v.finalize(vc)
			return vc.result()
		}
		if eff != nil {
			vc.pending = eff
			return vc.result()
		}
		if vc.aborted.Load() {
			v.enter(vc, PhaseAborted)
			v.finalize(vc)
			return vc.result()
		}
	}
}

// step runs one transition, turning a panic into an internal error.
func (v *Verifier) step(vc *Context, ev Event) (next Phase, eff Effect) {
	defer func() {
		if r := recover(); r != nil {
			v.env.Metrics.ObservePanic()
			v.env.Logger.Errorf("verifier: %s: panic in %s: %v", vc.id, vc.phase, r)
			next, eff = vc.fail(trust.AlertInternalError, "panic in %s: %v", vc.phase, r)
		}
	}()
	return transition(v.env, vc, ev)
}

func (v *Verifier) enter(vc *Context, next Phase) {
	from := vc.phase
	vc.phase = next
	v.env.Metrics.ObservePhase(next.String())
	if v.env.Trace != nil {
		v.env.Trace(vc.id, from, next)
	}
}

// finalize builds the verdict and commits what vc staged.
func (v *Verifier) finalize(vc *Context) {
	defer vc.cancelIO()

	elapsed := v.env.Clock.Since(vc.started)
	switch {
	case vc.phase == PhaseAborted:
		v.env.Logger.Printf("verifier: %s: aborted in flight", vc.id)
		v.env.Metrics.ObserveVerification("aborted", "", elapsed)
		return
	case vc.alert != nil && vc.alert.Code == trust.AlertInternalError:
		vc.verdict = vc.buildVerdict()
		v.env.Logger.Errorf("verifier: %s: %v", vc.id, vc.alert)
		v.env.Metrics.ObserveVerification("failed", vc.alert.Code.String(), elapsed)
		return
	}

	vc.verdict = vc.buildVerdict()
	v.commit(vc)

	if vc.alert != nil {
		v.env.Logger.Printf("verifier: %s: denied: %v", vc.id, vc.alert)
		v.env.Metrics.ObserveVerification("failed", vc.alert.Code.String(), elapsed)
		return
	}
	v.env.Logger.Printf("verifier: %s: accepted, rating %s, warnings %s", vc.id, vc.rating, vc.warnings)
	v.env.Metrics.ObserveVerification("completed", "", elapsed)
}

func (v *Verifier) commit(vc *Context) {
	env := v.env
	st := vc.staged

	if len(st.entries) > 0 && env.Repository.Enabled() {
		if err := env.Repository.Install(st.entries); err != nil {
			env.Logger.Errorf("verifier: %s: install repository certificates: %v", vc.id, err)
		}
	}
	for _, fp := range st.revoked {
		env.Store.AddRevoked(fp)
	}
	if vc.phase == PhaseFinishedSuccess {
		for _, c := range st.keep {
			if env.Store.Lookup(truststore.KindIntermediate, x509certs.FingerprintOf(c.Raw)) != nil {
				continue
			}
			if err := env.Store.InsertCertificate(truststore.KindIntermediate, c, 0); err != nil {
				env.Logger.Errorf("verifier: %s: store downloaded intermediate: %v", vc.id, err)
			}
		}
	}
	if st.acceptance != nil {
		env.Store.AddAcceptance(st.acceptance)
	}
}

func (vc *Context) result() Result {
	r := Result{Context: vc, Verdict: vc.verdict, Alert: vc.alert}
	switch vc.phase {
	case PhaseFinishedSuccess:
		r.Status = StatusCompleted
	case PhaseFinishedFailed:
		r.Status = StatusFailed
	case PhaseAborted:
		r.Status = StatusAborted
	default:
		r.Status = StatusSuspended
		r.Effect = vc.pending
	}
	return r
}
