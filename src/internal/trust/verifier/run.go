// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package verifier

import (
	"context"
	"errors"
	"runtime"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
)

var (
	// ErrBusy is returned by Run when the verifier already has a
	// verification in flight.
	ErrBusy = errors.New("verifier: verification already in flight")

	// ErrAborted is returned by Run when the verification was aborted by
	// someone else.
	ErrAborted = errors.New("verifier: verification aborted")
)

// Start performs eff for vc in the background. The returned channel
// receives exactly one event unless vc is aborted first.
func (v *Verifier) Start(vc *Context, eff Effect) <-chan Event {
	ch := make(chan Event, 1)
	env := v.env

	switch e := eff.(type) {
	case Fetch:
		vc.fetches.Add(int64(len(e.Requests)))
		go func() {
			results := vc.batch.FetchAll(e.Requests)
			for _, r := range results {
				env.Metrics.ObserveFetch(e.Purpose.String(), r.Err)
			}
			ch <- Fetched{Results: results}
		}()

	case LookupRepository:
		go func() {
			entries, err := env.Repository.FetchMissing(vc.ctx, e.ID, e.Kind)
			env.Metrics.ObserveRepositoryLookup(e.Kind.String(), err)
			ch <- RepositoryFetched{Entries: entries, Err: err}
		}()

	case AwaitRepositoryBatch:
		go func() {
			b := env.Repository.StartRefresh(vc.ctx)
			select {
			case <-b.Done():
				_, err := b.Result()
				ch <- RepositoryBatchDone{Err: err}
			case <-vc.ctx.Done():
				ch <- RepositoryBatchDone{Err: vc.ctx.Err()}
			}
		}()

	case Prompt:
		go func() {
			dec, err := env.Gateway.RequestDecision(vc.ctx, e.Description)
			ch <- Decided{Decision: dec, Err: err}
		}()

	default:
		env.Logger.Errorf("verifier: %s: unknown effect %T", vc.id, eff)
	}
	return ch
}

// Run verifies chain for ident, performing every effect until the
// verification finishes. A failed verification returns its verdict together
// with the alert as error. Cancelling ctx aborts the verification.
func (v *Verifier) Run(ctx context.Context, chain [][]byte, ident trust.Identity) (*trust.Verdict, error) {
	r := v.Verify(chain, ident)
	if r.Rejected {
		return nil, ErrBusy
	}

	for r.Status == StatusSuspended {
		if r.Effect == nil {
			// Our event was queued behind another caller; pick up the
			// state it left.
			runtime.Gosched()
			r = v.Deliver(r.Context, nil)
			continue
		}
		select {
		case ev := <-v.Start(r.Context, r.Effect):
			r = v.Deliver(r.Context, ev)
		case <-ctx.Done():
			v.Abort(r.Context)
			return nil, ctx.Err()
		}
	}

	switch r.Status {
	case StatusCompleted:
		return r.Verdict, nil
	case StatusFailed:
		return r.Verdict, r.Alert
	}
	return nil, ErrAborted
}
