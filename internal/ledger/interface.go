// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ledger persists the outcome of coinjoin rounds in SQLite or
// PostgreSQL.
package ledger

import "context"

// Store records completed rounds. A round is keyed by the wallet that took
// part in it and the coordinator's round id, so every wallet of a shared
// round keeps its own record.
type Store interface {
	// InsertRound stores a round. It fails with ErrDuplicateRound when
	// the wallet already recorded the round id.
	InsertRound(ctx context.Context, record RoundRecord) error

	// GetRound returns the round a wallet recorded under the given id,
	// or ErrNotFound.
	GetRound(ctx context.Context, walletID,
		roundID string) (*RoundRecord, error)

	// ListRounds returns the rounds of a wallet, oldest first.
	ListRounds(ctx context.Context, walletID string) ([]RoundRecord, error)
}
