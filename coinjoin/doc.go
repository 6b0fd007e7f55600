// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coinjoin chooses the coins a wallet registers in a coinjoin round.
//
// Candidates are narrowed down from the wallet's coins by FilterCandidates,
// then a Selector builds many randomized solutions and keeps the one with the
// best score. Each solution balances the privacy of the coins it spends
// against the pending payments it manages to pay out of the round.
package coinjoin
