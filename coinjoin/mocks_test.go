package coinjoin

import (
	"context"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wtxmgr"
	"github.com/stretchr/testify/mock"
)

var (
	_ SnapshotSource = (*mockSnapshotSource)(nil)
	_ LockManager    = (*mockLockManager)(nil)
	_ PaymentSource  = (*mockPaymentSource)(nil)
	_ ResultStore    = (*mockResultStore)(nil)
)

// mockSnapshotSource is a mock implementation of SnapshotSource.
type mockSnapshotSource struct {
	mock.Mock
}

func (m *mockSnapshotSource) ListCoins(ctx context.Context) ([]Coin, error) {
	args := m.Called(ctx)
	coins, _ := args.Get(0).([]Coin)

	return coins, args.Error(1)
}

// mockLockManager is a mock implementation of LockManager.
type mockLockManager struct {
	mock.Mock
}

func (m *mockLockManager) ListLeasedOutputs(
	ctx context.Context) ([]*wtxmgr.LockedOutput, error) {

	args := m.Called(ctx)
	leases, _ := args.Get(0).([]*wtxmgr.LockedOutput)

	return leases, args.Error(1)
}

func (m *mockLockManager) ReleaseOutput(ctx context.Context,
	id wtxmgr.LockID, op wire.OutPoint) error {

	args := m.Called(ctx, id, op)
	return args.Error(0)
}

// mockPaymentSource is a mock implementation of PaymentSource.
type mockPaymentSource struct {
	mock.Mock
}

func (m *mockPaymentSource) PendingPayments(ctx context.Context,
	coordinator string) ([]PendingPayment, error) {

	args := m.Called(ctx, coordinator)
	payments, _ := args.Get(0).([]PendingPayment)

	return payments, args.Error(1)
}

// mockResultStore is a mock implementation of ResultStore.
type mockResultStore struct {
	mock.Mock
}

func (m *mockResultStore) RecordRound(ctx context.Context,
	result RoundResult) error {

	args := m.Called(ctx, result)
	return args.Error(0)
}
