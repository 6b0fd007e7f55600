// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcmix/coinjoin"
	"github.com/btcsuite/btcmix/internal/ledger"
	"github.com/btcsuite/btcmix/pkg/btcunit"
	"github.com/lightningnetwork/lnd/ticker"
)

// banPurgeInterval is how often expired bans are purged by long running
// commands.
const banPurgeInterval = time.Minute

// cmdEnv is the state shared by all commands.
type cmdEnv struct {
	ctx context.Context
	cfg *config
	out io.Writer
}

// commandDef describes a command registered with the parser.
type commandDef struct {
	name  string
	short string
	long  string
	data  any
}

// commands returns the commands of btcmix.
func commands(env *cmdEnv) []commandDef {
	return []commandDef{
		{
			name:  "select",
			short: "Select the coins of a wallet for a round",
			long: "Builds candidate solutions for a round of the " +
				"coordinator out of a wallet snapshot and prints " +
				"the best one.",
			data: &selectCommand{env: env},
		},
		{
			name:  "record",
			short: "Record the result of a round",
			long:  "Stores a round result in the round ledger.",
			data:  &recordCommand{env: env},
		},
		{
			name:  "replay",
			short: "Apply a stream of round events to a wallet",
			long: "Reads round events, one JSON object per line, " +
				"and applies them to a wallet snapshot. Completed " +
				"rounds are stored in the round ledger.",
			data: &replayCommand{env: env},
		},
		{
			name:  "history",
			short: "List the recorded rounds of a wallet",
			long:  "Prints the rounds of a wallet, oldest first.",
			data:  &historyCommand{env: env},
		},
		{
			name:  "show",
			short: "Show a recorded round",
			long:  "Prints a round of a wallet stored in the round ledger.",
			data:  &showCommand{env: env},
		},
	}
}

// writeJSON writes v to w as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// selectCommand runs a selection against a wallet snapshot.
type selectCommand struct {
	Snapshot     string  `long:"snapshot" description:"Path of the wallet snapshot" required:"true"`
	Coordinator  string  `long:"coordinator" description:"Name of the coordinator running the round" required:"true"`
	FeeRate      int64   `long:"feerate" description:"Mining fee rate in sat/kvB" default:"10000"`
	FeeRateVB    int64   `long:"feeratevb" description:"Mining fee rate in sat/vB; overrides --feerate when set"`
	CoordFeeRate float64 `long:"coordfeerate" description:"Coordination fee as a fraction of the input amount"`
	PlebsDontPay int64   `long:"plebsdontpay" description:"Largest input amount in satoshis exempt from the coordination fee"`

	env *cmdEnv
}

// miningFeeRate returns the mining fee rate of the round. A rate given in
// sat/vB takes precedence over the sat/kvB one.
func (c *selectCommand) miningFeeRate() btcunit.SatPerKVByte {
	if c.FeeRateVB > 0 {
		return btcunit.NewSatPerKVByteFromVByte(
			btcutil.Amount(c.FeeRateVB),
		)
	}

	return btcunit.NewSatPerKVByte(btcutil.Amount(c.FeeRate))
}

// reportCoin is a selected coin as printed by the select command.
type reportCoin struct {
	OutPoint       string  `json:"outpoint"`
	Amount         int64   `json:"amount"`
	AnonymityScore float64 `json:"anonymity_score"`
	Tier           string  `json:"tier"`
}

// reportBan is a wallet coin the coordinator currently refuses.
type reportBan struct {
	OutPoint string    `json:"outpoint"`
	Until    time.Time `json:"until"`
}

// selectReport is the output of the select command.
type selectReport struct {
	Wallet            string         `json:"wallet"`
	Coordinator       string         `json:"coordinator"`
	SolutionID        string         `json:"solution_id"`
	Score             float64        `json:"score"`
	AnonLoss          float64        `json:"anon_loss"`
	Coins             []reportCoin   `json:"coins"`
	Payments          []string       `json:"payments"`
	Banned            []reportBan    `json:"banned"`
	TotalPending      int            `json:"total_pending"`
	TierCounts        map[string]int `json:"tier_counts"`
	RawValue          int64          `json:"raw_value"`
	EffectiveValue    int64          `json:"effective_value"`
	LeftoverValue     int64          `json:"leftover_value"`
	WalletValue       int64          `json:"wallet_value"`
	PrivacyPercentage float64        `json:"privacy_percentage"`
	Private           bool           `json:"private"`
	Elapsed           string         `json:"elapsed"`
}

// newSelectReport summarizes a solution.
func newSelectReport(walletID, coordinator string,
	solution *coinjoin.Solution, target float64) selectReport {

	report := selectReport{
		Wallet:         walletID,
		Coordinator:    coordinator,
		SolutionID:     solution.ID(),
		Score:          solution.Score(),
		AnonLoss:       solution.AnonLoss(),
		Coins:          []reportCoin{},
		Payments:       []string{},
		TotalPending:   solution.TotalPending(),
		TierCounts:     make(map[string]int),
		RawValue:       int64(solution.RawValue()),
		EffectiveValue: int64(solution.TotalValue()),
		LeftoverValue:  int64(solution.LeftoverValue()),
		Elapsed:        solution.Elapsed().String(),
	}

	for _, c := range solution.Coins() {
		report.Coins = append(report.Coins, reportCoin{
			OutPoint:       c.OutPoint.String(),
			Amount:         int64(c.Amount()),
			AnonymityScore: c.AnonymityScore,
			Tier:           c.Tier(target).String(),
		})
	}

	for _, p := range solution.HandledPayments() {
		report.Payments = append(report.Payments, p.ID)
	}

	for tier, count := range solution.TierCounts() {
		report.TierCounts[tier.String()] = count
	}

	return report
}

// Execute runs the select command.
func (c *selectCommand) Execute(_ []string) error {
	ctx := c.env.ctx

	if c.FeeRate < 0 || c.FeeRateVB < 0 || c.CoordFeeRate < 0 ||
		c.PlebsDontPay < 0 {

		return errors.New("fee rates and thresholds must not be " +
			"negative")
	}

	snap, err := loadSnapshot(c.Snapshot)
	if err != nil {
		return err
	}

	selector, err := coinjoin.NewSelector(c.env.cfg.selectorConfig())
	if err != nil {
		return err
	}

	wallet, err := snap.newWallet(selector, nil)
	if err != nil {
		return err
	}

	solution, err := wallet.SelectCoins(ctx, c.Coordinator,
		coinjoin.RoundParameters{
			MiningFeeRate: c.miningFeeRate(),
			CoordinationFeeRate: coinjoin.CoordinationFeeRate{
				Rate: c.CoordFeeRate,
				PlebsDontPayThreshold: btcutil.Amount(
					c.PlebsDontPay,
				),
			},
		},
	)
	if err != nil {
		return err
	}

	pct, err := wallet.PrivacyPercentage(ctx)
	if err != nil {
		return err
	}

	private, err := wallet.IsPrivate(ctx)
	if err != nil {
		return err
	}

	log.Infof("Wallet %s: selected %d coins worth %v for %s in %v",
		wallet.ID(), solution.NumCoins(), solution.RawValue(),
		c.Coordinator, solution.Elapsed())

	report := newSelectReport(
		wallet.ID(), c.Coordinator, solution,
		wallet.Config().AnonScoreTarget,
	)
	report.Banned = snap.bannedCoins(c.Coordinator)
	report.WalletValue = int64(snap.totalValue())
	report.PrivacyPercentage = pct
	report.Private = private

	return writeJSON(c.env.out, report)
}

// resultJSON is the JSON layout of a round result.
type resultJSON struct {
	Wallet      string        `json:"wallet"`
	RoundID     string        `json:"round_id"`
	Coordinator string        `json:"coordinator"`
	TxID        string        `json:"txid"`
	Timestamp   time.Time     `json:"timestamp"`
	CoinsIn     []coinJSON    `json:"coins_in"`
	CoinsOut    []coinJSON    `json:"coins_out"`
	Payments    []paymentJSON `json:"payments,omitempty"`
}

// toResult converts the JSON form of a round result.
func (r *resultJSON) toResult() (coinjoin.RoundResult, error) {
	result := coinjoin.RoundResult{
		RoundID:     r.RoundID,
		Coordinator: r.Coordinator,
		Timestamp:   r.Timestamp,
	}

	if r.TxID != "" {
		txid, err := chainhash.NewHashFromStr(r.TxID)
		if err != nil {
			return result, fmt.Errorf("invalid txid %q: %w", r.TxID,
				err)
		}
		result.TxID = *txid
	}

	for _, c := range r.CoinsIn {
		coin, err := c.toCoin()
		if err != nil {
			return result, err
		}
		result.CoinsIn = append(result.CoinsIn, coin)
	}

	for _, c := range r.CoinsOut {
		coin, err := c.toCoin()
		if err != nil {
			return result, err
		}
		result.CoinsOut = append(result.CoinsOut, coin)
	}

	for _, p := range r.Payments {
		payment, err := p.toPayment()
		if err != nil {
			return result, err
		}
		result.Payments = append(result.Payments, payment)
	}

	return result, nil
}

// recordCommand stores a round result in the ledger.
type recordCommand struct {
	Result string `long:"result" description:"Path of the round result" required:"true"`

	env *cmdEnv
}

// Execute runs the record command.
func (c *recordCommand) Execute(_ []string) error {
	ctx := c.env.ctx

	data, err := os.ReadFile(c.Result)
	if err != nil {
		return err
	}

	var file resultJSON
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode result %s: %w", c.Result, err)
	}

	result, err := file.toResult()
	if err != nil {
		return err
	}

	store, closeDB, err := c.env.cfg.openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	err = ledger.NewRecorder(store, file.Wallet).RecordRound(ctx, result)
	switch {
	case errors.Is(err, ledger.ErrDuplicateRound):
		return fmt.Errorf("round %s is already recorded", file.RoundID)

	case err != nil:
		return err
	}

	log.Infof("Recorded round %s of wallet %s", file.RoundID, file.Wallet)

	return nil
}

// eventJSON is the JSON layout of a round event.
type eventJSON struct {
	Kind        string      `json:"kind"`
	Coordinator string      `json:"coordinator"`
	Result      *resultJSON `json:"result,omitempty"`
}

// parseEventKind returns the event kind with the given name.
func parseEventKind(name string) (coinjoin.RoundEventKind, error) {
	kinds := []coinjoin.RoundEventKind{
		coinjoin.RoundStarted, coinjoin.RoundCompleted,
		coinjoin.RoundFailed, coinjoin.RoundStopped,
	}
	for _, kind := range kinds {
		if kind.String() == name {
			return kind, nil
		}
	}

	return 0, fmt.Errorf("unknown round event kind %q", name)
}

// decodeEvents reads newline delimited round events of the wallet from r.
func decodeEvents(r io.Reader, walletID string) ([]coinjoin.RoundEvent,
	error) {

	var (
		events  []coinjoin.RoundEvent
		scanner = bufio.NewScanner(r)
		line    int
	)
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var e eventJSON
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		kind, err := parseEventKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		event := coinjoin.RoundEvent{
			Wallet:      walletID,
			Coordinator: e.Coordinator,
			Kind:        kind,
		}
		if e.Result != nil {
			result, err := e.Result.toResult()
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if result.Coordinator == "" {
				result.Coordinator = e.Coordinator
			}
			event.Result = &result
		}

		events = append(events, event)
	}

	return events, scanner.Err()
}

// replayCommand applies a stream of round events to a wallet snapshot.
type replayCommand struct {
	Snapshot string `long:"snapshot" description:"Path of the wallet snapshot" required:"true"`
	Events   string `long:"events" description:"Path of the round events, - for standard input" default:"-"`

	env *cmdEnv
}

// Execute runs the replay command.
func (c *replayCommand) Execute(_ []string) error {
	ctx := c.env.ctx

	snap, err := loadSnapshot(c.Snapshot)
	if err != nil {
		return err
	}

	in := io.Reader(os.Stdin)
	if c.Events != "-" {
		f, err := os.Open(c.Events)
		if err != nil {
			return err
		}
		defer f.Close()

		in = f
	}

	events, err := decodeEvents(in, snap.walletID)
	if err != nil {
		return fmt.Errorf("decode events: %w", err)
	}

	store, closeDB, err := c.env.cfg.openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	selector, err := coinjoin.NewSelector(c.env.cfg.selectorConfig())
	if err != nil {
		return err
	}

	wallet, err := snap.newWallet(
		selector, ledger.NewRecorder(store, snap.walletID),
	)
	if err != nil {
		return err
	}

	// Expired bans are purged while the replay runs.
	purgeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go snap.bans.RunPurger(purgeCtx, ticker.New(banPurgeInterval))

	return replayEvents(ctx, events, wallet)
}

// replayEvents feeds events to the wallet through the event consumer.
func replayEvents(ctx context.Context, events []coinjoin.RoundEvent,
	wallet *coinjoin.Wallet) error {

	ch := make(chan coinjoin.RoundEvent)
	go func() {
		defer close(ch)

		for _, event := range events {
			select {
			case ch <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	wallets := map[string]*coinjoin.Wallet{wallet.ID(): wallet}
	if err := coinjoin.ConsumeEvents(ctx, ch, wallets); err != nil {
		return err
	}

	log.Infof("Wallet %s: replayed %d round events", wallet.ID(),
		len(events))

	return nil
}

// roundSummary is a recorded round as printed by the history command.
type roundSummary struct {
	Wallet      string    `json:"wallet"`
	RoundID     string    `json:"round_id"`
	Coordinator string    `json:"coordinator"`
	TxID        string    `json:"txid"`
	Timestamp   time.Time `json:"timestamp"`
	Inputs      int       `json:"inputs"`
	Outputs     int       `json:"outputs"`
	Payments    int       `json:"payments"`
	AmountIn    int64     `json:"amount_in"`
	AmountOut   int64     `json:"amount_out"`
}

// newRoundSummary summarizes a ledger record.
func newRoundSummary(r *ledger.RoundRecord) roundSummary {
	return roundSummary{
		Wallet:      r.WalletID,
		RoundID:     r.RoundID,
		Coordinator: r.Coordinator,
		TxID:        r.TxID.String(),
		Timestamp:   r.Timestamp.UTC(),
		Inputs:      len(r.CoinsIn),
		Outputs:     len(r.CoinsOut),
		Payments:    len(r.Payments),
		AmountIn:    int64(r.AmountIn()),
		AmountOut:   int64(r.AmountOut()),
	}
}

// historyCommand lists the recorded rounds of a wallet.
type historyCommand struct {
	Wallet string `long:"wallet" description:"Id of the wallet" required:"true"`

	env *cmdEnv
}

// Execute runs the history command.
func (c *historyCommand) Execute(_ []string) error {
	ctx := c.env.ctx

	store, closeDB, err := c.env.cfg.openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	records, err := store.ListRounds(ctx, c.Wallet)
	if err != nil {
		return err
	}

	summaries := make([]roundSummary, 0, len(records))
	for i := range records {
		summaries = append(summaries, newRoundSummary(&records[i]))
	}

	return writeJSON(c.env.out, summaries)
}

// showCommand prints a single recorded round.
type showCommand struct {
	Wallet string `long:"wallet" description:"Id of the wallet" required:"true"`
	Round  string `long:"round" description:"Id of the round" required:"true"`

	env *cmdEnv
}

// Execute runs the show command.
func (c *showCommand) Execute(_ []string) error {
	ctx := c.env.ctx

	store, closeDB, err := c.env.cfg.openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	record, err := store.GetRound(ctx, c.Wallet, c.Round)
	if errors.Is(err, ledger.ErrNotFound) {
		return fmt.Errorf("round %s is not recorded for wallet %s",
			c.Round, c.Wallet)
	}
	if err != nil {
		return err
	}

	return writeJSON(c.env.out, newRoundSummary(record))
}
