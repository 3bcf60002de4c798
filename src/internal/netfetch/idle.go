// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package netfetch

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// idleWatchdog cancels its context when no progress was reported for the
// configured idle period.
type idleWatchdog struct {
	ctx    context.Context
	cancel context.CancelFunc
	timer  *time.Timer
	idle   time.Duration
	fired  atomic.Bool
}

func newIdleWatchdog(parent context.Context, idle time.Duration) *idleWatchdog {
	ctx, cancel := context.WithCancel(parent)
	w := &idleWatchdog{ctx: ctx, cancel: cancel, idle: idle}
	w.timer = time.AfterFunc(idle, func() {
		w.fired.Store(true)
		cancel()
	})
	return w
}

func (w *idleWatchdog) touch() { w.timer.Reset(w.idle) }

func (w *idleWatchdog) stop() {
	w.timer.Stop()
	w.cancel()
}

// explain replaces the generic context error with ErrIdleTimeout when the
// watchdog was the one that fired.
func (w *idleWatchdog) explain(err error) error {
	if w.fired.Load() {
		return fmt.Errorf("%w after %s: %v", ErrIdleTimeout, w.idle, err)
	}
	return err
}

func (w *idleWatchdog) reader(r io.Reader) io.Reader { return &idleReader{r: r, w: w} }

type idleReader struct {
	r io.Reader
	w *idleWatchdog
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.w.touch()
	}
	return n, err
}
