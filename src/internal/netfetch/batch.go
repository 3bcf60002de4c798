// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package netfetch

import (
	"context"
	"errors"
	"sync"
)

// ErrBatchCancelled is reported for requests started on a cancelled batch.
var ErrBatchCancelled = errors.New("netfetch: batch cancelled")

// Result is the completion of one batched request.
type Result struct {
	Request Request
	Data    []byte
	Err     error
}

// Fetcher is the subset of [Client] a Batch needs.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// Batch groups the fetches of one verification so they can be cancelled
// together. Completion callbacks run on their own goroutines and are
// suppressed once the batch is cancelled.
type Batch struct {
	ctx    context.Context
	cancel context.CancelFunc
	f      Fetcher

	wg        sync.WaitGroup
	mu        sync.Mutex
	cancelled bool
}

// NewBatch returns a Batch whose requests inherit parent.
func NewBatch(parent context.Context, f Fetcher) *Batch {
	ctx, cancel := context.WithCancel(parent)
	return &Batch{ctx: ctx, cancel: cancel, f: f}
}

// Go starts req and calls done with its result unless the batch has been
// cancelled by then.
func (b *Batch) Go(req Request, done func(Result)) {
	b.mu.Lock()
	if b.cancelled {
		b.mu.Unlock()
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		data, err := b.f.Fetch(b.ctx, req)

		b.mu.Lock()
		dead := b.cancelled
		b.mu.Unlock()
		if dead {
			return
		}
		done(Result{Request: req, Data: data, Err: err})
	}()
}

// FetchAll runs every request in the batch and waits for all of them.
// Results keep the order of reqs. A cancelled batch yields ErrBatchCancelled.
func (b *Batch) FetchAll(reqs []Request) []Result {
	results := make([]Result, len(reqs))
	for i, req := range reqs {
		results[i] = Result{Request: req, Err: ErrBatchCancelled}
		b.Go(req, func(r Result) { results[i] = r })
	}
	b.wg.Wait()
	return results
}

// Cancel aborts in-flight requests and suppresses their callbacks.
func (b *Batch) Cancel() {
	b.mu.Lock()
	b.cancelled = true
	b.mu.Unlock()
	b.cancel()
}

// Cancelled reports whether Cancel was called.
func (b *Batch) Cancelled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelled
}

// Wait blocks until every started request has finished.
func (b *Batch) Wait() { b.wg.Wait() }
