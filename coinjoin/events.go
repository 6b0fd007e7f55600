// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import (
	"context"
)

// RoundEventKind is the kind of a coordinator round notification.
type RoundEventKind uint8

const (
	// RoundStarted signals that the wallet joined a round.
	RoundStarted RoundEventKind = iota

	// RoundCompleted signals that a round produced a transaction.
	RoundCompleted

	// RoundFailed signals that a round was abandoned.
	RoundFailed

	// RoundStopped signals that the wallet stopped mixing with the
	// coordinator.
	RoundStopped
)

// String returns the string representation of the event kind.
func (k RoundEventKind) String() string {
	switch k {
	case RoundStarted:
		return "started"

	case RoundCompleted:
		return "completed"

	case RoundFailed:
		return "failed"

	case RoundStopped:
		return "stopped"

	default:
		return "unknown"
	}
}

// RoundEvent is a round lifecycle notification from the protocol layer.
type RoundEvent struct {
	// Wallet is the id of the wallet the event concerns.
	Wallet string

	// Coordinator names the coordinator running the round.
	Coordinator string

	// Kind is what happened.
	Kind RoundEventKind

	// Result describes the round for completed and failed rounds.
	Result *RoundResult
}

// ConsumeEvents dispatches round events to their wallets until the channel
// is closed or the context is canceled. Completed rounds are committed,
// failed rounds get their input leases released. Errors are logged and do
// not stop the loop.
func ConsumeEvents(ctx context.Context, events <-chan RoundEvent,
	wallets map[string]*Wallet) error {

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}

			handleEvent(ctx, event, wallets)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleEvent applies a single round event.
func handleEvent(ctx context.Context, event RoundEvent,
	wallets map[string]*Wallet) {

	wallet, ok := wallets[event.Wallet]
	if !ok {
		log.Warnf("Dropping %v round event of %s for unknown wallet %s",
			event.Kind, event.Coordinator, event.Wallet)

		return
	}

	switch event.Kind {
	case RoundCompleted:
		if event.Result == nil {
			log.Warnf("Wallet %s: completed round event of %s "+
				"without result", event.Wallet, event.Coordinator)

			return
		}

		if err := wallet.RegisterRound(ctx, *event.Result); err != nil {
			log.Errorf("Unable to register round: %v", err)
		}

	case RoundFailed:
		if event.Result == nil {
			return
		}

		log.Infof("Wallet %s: round %s of %s failed, releasing %d "+
			"inputs", event.Wallet, event.Result.RoundID,
			event.Coordinator, len(event.Result.CoinsIn))

		if err := wallet.ReleaseRound(ctx, *event.Result); err != nil {
			log.Errorf("Wallet %s: unable to release round inputs: %v",
				event.Wallet, err)
		}

	default:
		log.Debugf("Wallet %s: round %v with coordinator %s",
			event.Wallet, event.Kind, event.Coordinator)
	}
}
