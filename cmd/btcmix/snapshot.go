// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcmix/coinjoin"
	"github.com/btcsuite/btcwallet/wtxmgr"
)

// snapshotFile is the JSON layout of a wallet snapshot.
type snapshotFile struct {
	Wallet   string          `json:"wallet"`
	LockID   string          `json:"lock_id"`
	Config   storeConfigJSON `json:"config"`
	Coins    []coinJSON      `json:"coins"`
	Locks    []lockJSON      `json:"locks,omitempty"`
	Bans     []banJSON       `json:"bans,omitempty"`
	Payments []paymentJSON   `json:"payments,omitempty"`
}

type storeConfigJSON struct {
	AnonScoreTarget     float64  `json:"anon_score_target"`
	ConsolidationMode   bool     `json:"consolidation_mode"`
	RedCoinIsolation    bool     `json:"red_coin_isolation"`
	BatchPayments       bool     `json:"batch_payments"`
	InputLabelsAllowed  []string `json:"input_labels_allowed,omitempty"`
	InputLabelsExcluded []string `json:"input_labels_excluded,omitempty"`
	SimpleMode          bool     `json:"simple_mode"`
}

type coinJSON struct {
	OutPoint       string   `json:"outpoint"`
	Amount         int64    `json:"amount"`
	PkScript       string   `json:"pk_script"`
	AnonymityScore float64  `json:"anonymity_score"`
	Confirmations  int64    `json:"confirmations"`
	Labels         []string `json:"labels,omitempty"`
}

type lockJSON struct {
	OutPoint   string    `json:"outpoint"`
	LockID     string    `json:"lock_id"`
	Expiration time.Time `json:"expiration"`
}

type banJSON struct {
	Coordinator string    `json:"coordinator"`
	OutPoint    string    `json:"outpoint"`
	Until       time.Time `json:"until"`
}

type paymentJSON struct {
	ID          string `json:"id"`
	Coordinator string `json:"coordinator"`
	Amount      int64  `json:"amount"`
	PkScript    string `json:"pk_script"`
}

// queuedPayment is a pending payment along with the coordinator it waits
// for.
type queuedPayment struct {
	coordinator string
	payment     coinjoin.PendingPayment
}

// snapshot is an in-memory wallet loaded from a snapshot file. It serves as
// the coin, lease and payment source of a coinjoin wallet.
type snapshot struct {
	walletID string
	lockID   wtxmgr.LockID
	store    coinjoin.StoreConfig
	coins    []coinjoin.Coin
	bans     *coinjoin.BanTable
	payments []queuedPayment

	mu     sync.Mutex
	leases map[wire.OutPoint]*wtxmgr.LockedOutput
}

// Compile time assertions of the wallet collaborators snapshot serves as.
var (
	_ coinjoin.SnapshotSource = (*snapshot)(nil)
	_ coinjoin.LockManager    = (*snapshot)(nil)
	_ coinjoin.PaymentSource  = (*snapshot)(nil)
)

// loadSnapshot reads and decodes the snapshot file at path.
func loadSnapshot(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	return newSnapshot(&file)
}

// parseLockID decodes a hex encoded lock id. An empty string yields the zero
// id.
func parseLockID(s string) (wtxmgr.LockID, error) {
	var id wtxmgr.LockID
	if s == "" {
		return id, nil
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid lock id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid lock id %q: want %d bytes, "+
			"got %d", s, len(id), len(b))
	}

	copy(id[:], b)

	return id, nil
}

// parseOutPoint decodes an outpoint in txid:index notation.
func parseOutPoint(s string) (wire.OutPoint, error) {
	op, err := wire.NewOutPointFromString(s)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("invalid outpoint %q: %w",
			s, err)
	}

	return *op, nil
}

// parseTxOut builds an output from an amount and a hex encoded script.
func parseTxOut(amount int64, pkScript string) (wire.TxOut, error) {
	script, err := hex.DecodeString(pkScript)
	if err != nil {
		return wire.TxOut{}, fmt.Errorf("invalid pk_script %q: %w",
			pkScript, err)
	}

	return *wire.NewTxOut(amount, script), nil
}

// toCoin converts the JSON form of a coin.
func (c *coinJSON) toCoin() (coinjoin.Coin, error) {
	op, err := parseOutPoint(c.OutPoint)
	if err != nil {
		return coinjoin.Coin{}, err
	}

	txOut, err := parseTxOut(c.Amount, c.PkScript)
	if err != nil {
		return coinjoin.Coin{}, err
	}

	return coinjoin.Coin{
		OutPoint:       op,
		TxOut:          txOut,
		AnonymityScore: c.AnonymityScore,
		Confirmations:  c.Confirmations,
		Labels:         c.Labels,
	}, nil
}

// toPayment converts the JSON form of a payment.
func (p *paymentJSON) toPayment() (coinjoin.PendingPayment, error) {
	txOut, err := parseTxOut(p.Amount, p.PkScript)
	if err != nil {
		return coinjoin.PendingPayment{}, err
	}

	return coinjoin.PendingPayment{ID: p.ID, Output: txOut}, nil
}

// newSnapshot validates a decoded snapshot file and converts it to its
// in-memory form.
func newSnapshot(file *snapshotFile) (*snapshot, error) {
	if file.Wallet == "" {
		return nil, errors.New("snapshot has no wallet id")
	}

	lockID, err := parseLockID(file.LockID)
	if err != nil {
		return nil, err
	}

	s := &snapshot{
		walletID: file.Wallet,
		lockID:   lockID,
		store: coinjoin.StoreConfig{
			AnonScoreTarget:     file.Config.AnonScoreTarget,
			ConsolidationMode:   file.Config.ConsolidationMode,
			RedCoinIsolation:    file.Config.RedCoinIsolation,
			BatchPayments:       file.Config.BatchPayments,
			InputLabelsAllowed:  file.Config.InputLabelsAllowed,
			InputLabelsExcluded: file.Config.InputLabelsExcluded,
			SimpleMode:          file.Config.SimpleMode,
		},
		bans:   coinjoin.NewBanTable(coinjoin.DefaultBanLimit),
		leases: make(map[wire.OutPoint]*wtxmgr.LockedOutput),
	}

	for _, c := range file.Coins {
		coin, err := c.toCoin()
		if err != nil {
			return nil, err
		}

		s.coins = append(s.coins, coin)
	}

	for _, l := range file.Locks {
		op, err := parseOutPoint(l.OutPoint)
		if err != nil {
			return nil, err
		}

		id, err := parseLockID(l.LockID)
		if err != nil {
			return nil, err
		}

		s.leases[op] = &wtxmgr.LockedOutput{
			Outpoint:   op,
			LockID:     id,
			Expiration: l.Expiration,
		}
	}

	for _, b := range file.Bans {
		op, err := parseOutPoint(b.OutPoint)
		if err != nil {
			return nil, err
		}

		s.bans.Ban(b.Coordinator, op, b.Until)
	}

	for _, p := range file.Payments {
		payment, err := p.toPayment()
		if err != nil {
			return nil, err
		}

		s.payments = append(s.payments, queuedPayment{
			coordinator: p.Coordinator,
			payment:     payment,
		})
	}

	return s, nil
}

// ListCoins returns the coins of the snapshot.
func (s *snapshot) ListCoins(_ context.Context) ([]coinjoin.Coin, error) {
	return slices.Clone(s.coins), nil
}

// ListLeasedOutputs returns the leases of the snapshot.
func (s *snapshot) ListLeasedOutputs(
	_ context.Context) ([]*wtxmgr.LockedOutput, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	leases := make([]*wtxmgr.LockedOutput, 0, len(s.leases))
	for _, lease := range s.leases {
		leases = append(leases, lease)
	}

	return leases, nil
}

// ReleaseOutput drops the lease on op if it is held by id.
func (s *snapshot) ReleaseOutput(_ context.Context, id wtxmgr.LockID,
	op wire.OutPoint) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	lease, ok := s.leases[op]
	if !ok {
		return nil
	}
	if lease.LockID != id {
		return wtxmgr.ErrOutputUnlockNotAllowed
	}

	delete(s.leases, op)

	return nil
}

// PendingPayments returns the payments queued for the coordinator.
func (s *snapshot) PendingPayments(_ context.Context,
	coordinator string) ([]coinjoin.PendingPayment, error) {

	var payments []coinjoin.PendingPayment
	for _, p := range s.payments {
		if p.coordinator == coordinator {
			payments = append(payments, p.payment)
		}
	}

	return payments, nil
}

// totalValue returns the sum of the snapshot's coins.
func (s *snapshot) totalValue() btcutil.Amount {
	var total btcutil.Amount
	for i := range s.coins {
		total += s.coins[i].Amount()
	}

	return total
}

// bannedCoins returns the snapshot coins the coordinator has banned, with
// the time each ban ends.
func (s *snapshot) bannedCoins(coordinator string) []reportBan {
	banned := []reportBan{}
	for i := range s.coins {
		op := s.coins[i].OutPoint

		until, ok := s.bans.BannedUntil(coordinator, op)
		if !ok {
			continue
		}

		banned = append(banned, reportBan{
			OutPoint: op.String(),
			Until:    until,
		})
	}

	return banned
}

// newWallet returns a coinjoin wallet backed by the snapshot. Round results
// go to results, which may be nil.
func (s *snapshot) newWallet(selector *coinjoin.Selector,
	results coinjoin.ResultStore) (*coinjoin.Wallet, error) {

	return coinjoin.NewWallet(coinjoin.WalletConfig{
		ID:       s.walletID,
		LockID:   s.lockID,
		Store:    s.store,
		Coins:    s,
		Locks:    s,
		Payments: s,
		Results:  results,
		Bans:     s.bans,
		Selector: selector,
	})
}
