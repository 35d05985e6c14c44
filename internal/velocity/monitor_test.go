package velocity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/domain"
)

type stubHistory struct {
	txns []domain.Transaction
	err  error
}

func (h *stubHistory) RecentByCustomer(_ context.Context, _, _ uuid.UUID, _ time.Time) ([]domain.Transaction, error) {
	return h.txns, h.err
}

func txn(amount int64) domain.Transaction {
	return domain.Transaction{
		TransactionID: uuid.New(),
		Amount:        decimal.NewFromInt(amount),
		Currency:      "USD",
		OccurredAt:    time.Now().UTC().Add(-time.Hour),
	}
}

func limits(maxCount int, maxAmount int64) domain.OrganizationComplianceSettings {
	amt := decimal.NewFromInt(maxAmount)
	return domain.OrganizationComplianceSettings{
		OrganizationID:    uuid.New(),
		VelocityMaxCount:  maxCount,
		VelocityMaxAmount: &amt,
	}
}

func TestCheckIncludesPendingTransaction(t *testing.T) {
	m := NewMonitor(&stubHistory{txns: []domain.Transaction{txn(1000), txn(2000)}}, DefaultWindow, zap.NewNop())

	result := m.Check(context.Background(), uuid.New(), uuid.New(), decimal.NewFromInt(500), limits(10, 100000))

	assert.Equal(t, 3, result.Count)
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(3500)))
	assert.False(t, result.Breached)
	assert.False(t, result.Unknown)
}

func TestCheckCountBreach(t *testing.T) {
	m := NewMonitor(&stubHistory{txns: []domain.Transaction{txn(10), txn(10), txn(10)}}, DefaultWindow, zap.NewNop())

	result := m.Check(context.Background(), uuid.New(), uuid.New(), decimal.NewFromInt(10), limits(3, 100000))

	assert.Equal(t, 4, result.Count)
	assert.True(t, result.Breached)
}

func TestCheckAmountBreach(t *testing.T) {
	m := NewMonitor(&stubHistory{txns: []domain.Transaction{txn(9500)}}, DefaultWindow, zap.NewNop())

	result := m.Check(context.Background(), uuid.New(), uuid.New(), decimal.NewFromInt(9500), limits(100, 15000))

	assert.True(t, result.Breached)
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(19000)))
}

func TestCheckHistoryOutageDegradesToUnknown(t *testing.T) {
	m := NewMonitor(&stubHistory{err: errors.New("pool exhausted")}, DefaultWindow, zap.NewNop())

	result := m.Check(context.Background(), uuid.New(), uuid.New(), decimal.NewFromInt(100), limits(3, 1000))

	assert.True(t, result.Unknown)
	assert.False(t, result.Breached)
	assert.Zero(t, result.Count)
}

func TestUtilization(t *testing.T) {
	settings := limits(10, 10000)

	half := domain.VelocityResult{Count: 2, TotalAmount: decimal.NewFromInt(5000)}
	assert.InDelta(t, 0.5, Utilization(half, settings), 0.001)

	over := domain.VelocityResult{Count: 20, TotalAmount: decimal.NewFromInt(500)}
	assert.Equal(t, 1.0, Utilization(over, settings))

	unknown := domain.VelocityResult{Unknown: true}
	assert.Zero(t, Utilization(unknown, settings))
}
