package velocity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/domain"
)

// TransactionHistory is the read-side query surface the monitor depends on.
type TransactionHistory interface {
	// RecentByCustomer returns the customer's transactions since the cutoff,
	// newest first.
	RecentByCustomer(ctx context.Context, orgID, customerID uuid.UUID, since time.Time) ([]domain.Transaction, error)
}

// Monitor computes rolling-window velocity aggregates per evaluation. Results
// are attached to the check record but never persisted on their own.
type Monitor struct {
	history TransactionHistory
	window  time.Duration
	logger  *zap.Logger
}

const DefaultWindow = 24 * time.Hour

func NewMonitor(history TransactionHistory, window time.Duration, logger *zap.Logger) *Monitor {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Monitor{history: history, window: window, logger: logger}
}

// Window returns the configured rolling window.
func (m *Monitor) Window() time.Duration { return m.window }

// Check aggregates the customer's window activity, including the pending
// amount under evaluation, against the organization's velocity limits.
// A history outage degrades to Unknown so risk scoring can penalize it
// without hard-blocking the transaction.
func (m *Monitor) Check(ctx context.Context, orgID, customerID uuid.UUID, pendingAmount decimal.Decimal, settings domain.OrganizationComplianceSettings) domain.VelocityResult {
	since := time.Now().UTC().Add(-m.window)
	history, err := m.history.RecentByCustomer(ctx, orgID, customerID, since)
	if err != nil {
		m.logger.Warn("transaction history unavailable, velocity unknown",
			zap.String("organization_id", orgID.String()),
			zap.Error(err))
		return domain.VelocityResult{Window: m.window, Unknown: true}
	}

	result := domain.VelocityResult{
		Window:      m.window,
		Count:       len(history) + 1,
		TotalAmount: pendingAmount,
	}
	for _, tx := range history {
		result.TotalAmount = result.TotalAmount.Add(tx.Amount)
	}

	if settings.VelocityMaxCount > 0 && result.Count > settings.VelocityMaxCount {
		result.Breached = true
	}
	if settings.VelocityMaxAmount != nil && result.TotalAmount.GreaterThan(*settings.VelocityMaxAmount) {
		result.Breached = true
	}
	return result
}

// Utilization returns how much of the tighter limit the window consumed,
// 0-1, clamped. Used as the velocity sub-score basis when no breach occurred.
func Utilization(result domain.VelocityResult, settings domain.OrganizationComplianceSettings) float64 {
	if result.Unknown {
		return 0
	}
	var util float64
	if settings.VelocityMaxCount > 0 {
		util = float64(result.Count) / float64(settings.VelocityMaxCount)
	}
	if settings.VelocityMaxAmount != nil && settings.VelocityMaxAmount.IsPositive() {
		ratio, _ := result.TotalAmount.Div(*settings.VelocityMaxAmount).Float64()
		if ratio > util {
			util = ratio
		}
	}
	if util > 1 {
		util = 1
	}
	return util
}
