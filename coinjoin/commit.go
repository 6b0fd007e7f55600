// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import (
	"context"
	"sync"
)

// commitGate serializes the commit of round results for a wallet and makes
// snapshot reads wait for an in-flight commit. The zero value is ready to
// use.
type commitGate struct {
	mu sync.Mutex

	// done is closed when the in-flight commit finishes. It is nil while
	// no commit runs.
	done chan struct{}
}

// inflight returns the done channel of the running commit, or nil.
func (g *commitGate) inflight() chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.done
}

// wait blocks until no commit is in flight.
func (g *commitGate) wait(ctx context.Context) error {
	done := g.inflight()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire blocks until it can mark a new commit as in flight and returns
// its release function.
func (g *commitGate) acquire(ctx context.Context) (func(), error) {
	for {
		g.mu.Lock()
		if g.done == nil {
			done := make(chan struct{})
			g.done = done
			g.mu.Unlock()

			release := func() {
				g.mu.Lock()
				g.done = nil
				g.mu.Unlock()

				close(done)
			}

			return release, nil
		}

		done := g.done
		g.mu.Unlock()

		select {
		case <-done:

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// run executes commit as the only commit in flight.
func (g *commitGate) run(ctx context.Context,
	commit func(context.Context) error) error {

	release, err := g.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return commit(ctx)
}
