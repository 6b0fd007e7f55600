package ledger

import (
	"context"
	"database/sql"
	"errors"

	sqlcpg "github.com/btcsuite/btcmix/internal/ledger/sqlc/postgres"
)

// pgRoundWriter writes rounds through the postgres queries of a transaction.
type pgRoundWriter struct {
	q *sqlcpg.Queries
}

// A compile-time check to ensure that pgRoundWriter implements roundWriter.
var _ roundWriter = (*pgRoundWriter)(nil)

// insertRound writes the round row.
func (w *pgRoundWriter) insertRound(ctx context.Context,
	record *RoundRecord) (bool, error) {

	inserted, err := w.q.InsertRound(ctx, sqlcpg.InsertRoundParams{
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
func (w *pgRoundWriter) insertCoin(ctx context.Context,
	record *RoundRecord, dir direction, position int, coin RoundCoin) error {

	pos, err := intToInt32(position)
	if err != nil {
		return err
	}

	return w.q.InsertRoundCoin(ctx, sqlcpg.InsertRoundCoinParams{
		WalletID:       record.WalletID,
		RoundID:        record.RoundID,
		Direction:      int16(dir),
		Position:       pos,
		TxHash:         coin.OutPoint.Hash[:],
		OutputIndex:    int64(coin.OutPoint.Index),
		Amount:         int64(coin.Amount),
		AnonymityScore: coin.AnonymityScore,
	})
}

// insertPayment writes a payment row.
func (w *pgRoundWriter) insertPayment(ctx context.Context,
	record *RoundRecord, position int, payment RoundPayment) error {

	pos, err := intToInt32(position)
	if err != nil {
		return err
	}

	return w.q.InsertRoundPayment(ctx, sqlcpg.InsertRoundPaymentParams{
		WalletID:  record.WalletID,
		RoundID:   record.RoundID,
		Position:  pos,
		PaymentID: payment.ID,
		Amount:    int64(payment.Amount),
		PkScript:  nonNilScript(payment.PkScript),
	})
}

// InsertRound stores a round along with its coins and payments.
func (s *PostgresStore) InsertRound(ctx context.Context,
	record RoundRecord) error {

	if err := validateRecord(&record); err != nil {
		return err
	}

	err := s.ExecuteTx(ctx, func(qtx *sqlcpg.Queries) error {
		return writeRound(ctx, &pgRoundWriter{q: qtx}, &record)
	})

	return insertRoundResult("postgres", &record, err)
}

// loadPgRoundDetails fills in the coins and payments of a round.
func loadPgRoundDetails(ctx context.Context, q *sqlcpg.Queries,
	record *RoundRecord) error {

	coins, err := q.ListRoundCoins(ctx, sqlcpg.ListRoundCoinsParams{
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
		ctx, sqlcpg.ListRoundPaymentsParams{
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
func (s *PostgresStore) GetRound(ctx context.Context, walletID,
	roundID string) (*RoundRecord, error) {

	row, err := s.queries.GetRound(ctx, sqlcpg.GetRoundParams{
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
		err = loadPgRoundDetails(ctx, s.queries, record)
	}
	if err != nil {
		return nil, newError(ErrDatabase,
			"load "+roundDesc(walletID, roundID), err)
	}

	return record, nil
}

// ListRounds returns the rounds of a wallet, oldest first.
func (s *PostgresStore) ListRounds(ctx context.Context,
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
			err = loadPgRoundDetails(ctx, s.queries, record)
		}
		if err != nil {
			return nil, newError(ErrDatabase,
				"load "+roundDesc(walletID, row.RoundID), err)
		}

		records = append(records, *record)
	}

	return records, nil
}
