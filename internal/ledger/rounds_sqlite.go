package ledger

import (
	"context"
	"database/sql"
	"errors"

	sqlcsqlite "github.com/btcsuite/btcmix/internal/ledger/sqlc/sqlite"
)

// sqliteRoundWriter writes rounds through the sqlite queries of a transaction.
type sqliteRoundWriter struct {
	q *sqlcsqlite.Queries
}

// A compile-time check to ensure that sqliteRoundWriter implements roundWriter.
var _ roundWriter = (*sqliteRoundWriter)(nil)

// insertRound writes the round row.
func (w *sqliteRoundWriter) insertRound(ctx context.Context,
	record *RoundRecord) (bool, error) {

	inserted, err := w.q.InsertRound(ctx, sqlcsqlite.InsertRoundParams{
		WalletID:    record.WalletID,
		RoundID:     record.RoundID,
		Coordinator: record.Coordinator,
		TxID:        record.TxID[:],
		FinishedAt:  record.Timestamp.UnixMicro(),
	})
	if err != nil {
		return false, err
	}

	return inserted > 0, nil
}

// insertCoin writes a coin row.
func (w *sqliteRoundWriter) insertCoin(ctx context.Context,
	record *RoundRecord, dir direction, position int, coin RoundCoin) error {

	return w.q.InsertRoundCoin(ctx, sqlcsqlite.InsertRoundCoinParams{
		WalletID:       record.WalletID,
		RoundID:        record.RoundID,
		Direction:      int64(dir),
		Position:       int64(position),
		TxHash:         coin.OutPoint.Hash[:],
		OutputIndex:    int64(coin.OutPoint.Index),
		Amount:         int64(coin.Amount),
		AnonymityScore: coin.AnonymityScore,
	})
}

// insertPayment writes a payment row.
func (w *sqliteRoundWriter) insertPayment(ctx context.Context,
	record *RoundRecord, position int, payment RoundPayment) error {

	return w.q.InsertRoundPayment(ctx, sqlcsqlite.InsertRoundPaymentParams{
		WalletID:  record.WalletID,
		RoundID:   record.RoundID,
		Position:  int64(position),
		PaymentID: payment.ID,
		Amount:    int64(payment.Amount),
		PkScript:  nonNilScript(payment.PkScript),
	})
}

// InsertRound stores a round along with its coins and payments.
func (s *SQLiteStore) InsertRound(ctx context.Context,
	record RoundRecord) error {

	if err := validateRecord(&record); err != nil {
		return err
	}

	err := s.ExecuteTx(ctx, func(qtx *sqlcsqlite.Queries) error {
		return writeRound(ctx, &sqliteRoundWriter{q: qtx}, &record)
	})

	return insertRoundResult("sqlite", &record, err)
}

// loadSqliteRoundDetails fills in the coins and payments of a round.
func loadSqliteRoundDetails(ctx context.Context, q *sqlcsqlite.Queries,
	record *RoundRecord) error {

	coins, err := q.ListRoundCoins(ctx, sqlcsqlite.ListRoundCoinsParams{
		WalletID: record.WalletID,
		RoundID:  record.RoundID,
	})
	if err != nil {
		return err
	}

	for _, c := range coins {
		err := addRoundCoin(
			record, direction(c.Direction), c.TxHash,
			c.OutputIndex, c.Amount, c.AnonymityScore,
		)
		if err != nil {
			return err
		}
	}

	payments, err := q.ListRoundPayments(
		ctx, sqlcsqlite.ListRoundPaymentsParams{
			WalletID: record.WalletID,
			RoundID:  record.RoundID,
		},
	)
	if err != nil {
		return err
	}

	for _, p := range payments {
		addRoundPayment(record, p.PaymentID, p.Amount, p.PkScript)
	}

	return nil
}

// GetRound returns the round a wallet recorded under the given id.
func (s *SQLiteStore) GetRound(ctx context.Context, walletID,
	roundID string) (*RoundRecord, error) {

	row, err := s.queries.GetRound(ctx, sqlcsqlite.GetRoundParams{
		WalletID: walletID,
		RoundID:  roundID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(ErrRoundNotFound,
			roundDesc(walletID, roundID), ErrNotFound)
	}
	if err != nil {
		return nil, newError(ErrDatabase,
			"get "+roundDesc(walletID, roundID), err)
	}

	record, err := buildRoundRecord(
		row.WalletID, row.RoundID, row.Coordinator, row.TxID,
		row.FinishedAt,
	)
	if err == nil {
		err = loadSqliteRoundDetails(ctx, s.queries, record)
	}
	if err != nil {
		return nil, newError(ErrDatabase,
			"load "+roundDesc(walletID, roundID), err)
	}

	return record, nil
}

// ListRounds returns the rounds of a wallet, oldest first.
func (s *SQLiteStore) ListRounds(ctx context.Context,
	walletID string) ([]RoundRecord, error) {

	rows, err := s.queries.ListRoundsByWallet(ctx, walletID)
	if err != nil {
		return nil, newError(ErrDatabase, "list rounds of wallet "+
			walletID, err)
	}

	records := make([]RoundRecord, 0, len(rows))
	for _, row := range rows {
		record, err := buildRoundRecord(
			row.WalletID, row.RoundID, row.Coordinator, row.TxID,
			row.FinishedAt,
		)
		if err == nil {
			err = loadSqliteRoundDetails(ctx, s.queries, record)
		}
		if err != nil {
			return nil, newError(ErrDatabase,
				"load "+roundDesc(walletID, row.RoundID), err)
		}

		records = append(records, *record)
	}

	return records, nil
}
