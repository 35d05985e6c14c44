package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/repository"
	"github.com/banking/compliance-engine/internal/repository/memory"
	"github.com/banking/compliance-engine/internal/service"
)

type reconcilerFixture struct {
	rec      *Reconciler
	reports  *memory.ReportRepository
	checks   *memory.CheckRepository
	alerts   *memory.AlertRepository
	txns     *memory.TransactionRepository
	settings *memory.SettingsRepository
	audit    *memory.AuditRepository
	orgID    uuid.UUID
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	f := &reconcilerFixture{
		reports:  memory.NewReportRepository(),
		checks:   memory.NewCheckRepository(),
		alerts:   memory.NewAlertRepository(),
		txns:     memory.NewTransactionRepository(),
		settings: memory.NewSettingsRepository(),
		audit:    memory.NewAuditRepository(),
		orgID:    uuid.New(),
	}
	logger := zap.NewNop()
	regulatory := service.NewRegulatoryService(
		f.reports, f.settings, f.checks, f.txns, f.alerts, f.audit, nil, nil, logger)
	f.rec = NewReconciler(
		regulatory, f.settings, f.txns, f.checks, f.reports, f.alerts, f.audit,
		nil, DefaultOptions(), logger)

	cfg := domain.DefaultReportingConfig(f.orgID)
	cfg.SARAutoFlag = true
	require.NoError(t, f.settings.PutReportingConfig(context.Background(), &cfg))
	return f
}

func (f *reconcilerFixture) recordDeposits(t *testing.T, customerID uuid.UUID, day time.Time, amounts ...string) {
	t.Helper()
	for i, a := range amounts {
		require.NoError(t, f.txns.Record(context.Background(), &domain.Transaction{
			TransactionID:  uuid.New(),
			OrganizationID: f.orgID,
			CustomerID:     customerID,
			AccountID:      uuid.New(),
			Amount:         decimal.RequireFromString(a),
			Currency:       "USD",
			Type:           "DEPOSIT",
			OccurredAt:     day.Add(time.Duration(i+1) * time.Hour),
		}))
	}
}

func (f *reconcilerFixture) listReports(t *testing.T, reportType domain.ReportType) []*domain.RegulatoryReport {
	t.Helper()
	out, err := f.reports.List(context.Background(), repository.ReportFilter{
		OrganizationID: &f.orgID,
		ReportType:     &reportType,
	})
	require.NoError(t, err)
	return out
}

// yesterday keeps test transactions safely inside the sweep lookback and
// fully in the past regardless of the wall clock.
func yesterday() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour).Add(-24 * time.Hour)
}

func TestCTRSweepAggregatesStructuredDeposits(t *testing.T) {
	f := newReconcilerFixture(t)
	customerID := uuid.New()
	// Six deposits each under the threshold, 57,000 in total for the day.
	f.recordDeposits(t, customerID, yesterday(),
		"9500", "9500", "9500", "9500", "9500", "9500")

	require.NoError(t, f.rec.SweepOrganization(context.Background(), f.orgID))

	ctrs := f.listReports(t, domain.ReportCTR)
	require.Len(t, ctrs, 1)
	assert.True(t, ctrs[0].TotalAmount.Equal(decimal.RequireFromString("57000")))
	assert.Len(t, ctrs[0].TransactionIDs, 6)
	assert.Equal(t, domain.ReportDraft, ctrs[0].Status)
	require.Len(t, ctrs[0].Subjects, 1)
	assert.Equal(t, customerID, ctrs[0].Subjects[0].CustomerID)
}

func TestCTRSweepIsIdempotent(t *testing.T) {
	f := newReconcilerFixture(t)
	f.recordDeposits(t, uuid.New(), yesterday(), "6000", "7000")

	ctx := context.Background()
	require.NoError(t, f.rec.SweepOrganization(ctx, f.orgID))
	require.NoError(t, f.rec.SweepOrganization(ctx, f.orgID))
	require.NoError(t, f.rec.SweepOrganization(ctx, f.orgID))

	assert.Len(t, f.listReports(t, domain.ReportCTR), 1)
}

func TestCTRSweepIgnoresBelowThreshold(t *testing.T) {
	f := newReconcilerFixture(t)
	f.recordDeposits(t, uuid.New(), yesterday(), "4000", "5000")

	require.NoError(t, f.rec.SweepOrganization(context.Background(), f.orgID))

	assert.Empty(t, f.listReports(t, domain.ReportCTR))
}

func TestCTRSweepSeparatesCustomers(t *testing.T) {
	f := newReconcilerFixture(t)
	f.recordDeposits(t, uuid.New(), yesterday(), "12000")
	f.recordDeposits(t, uuid.New(), yesterday(), "15000")
	// A third customer stays under the threshold.
	f.recordDeposits(t, uuid.New(), yesterday(), "3000")

	require.NoError(t, f.rec.SweepOrganization(context.Background(), f.orgID))

	assert.Len(t, f.listReports(t, domain.ReportCTR), 2)
}

func TestSARCandidatesBecomeDrafts(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	customerID := uuid.New()

	alert := domain.NewComplianceAlert(f.orgID, domain.AlertSanctionsMatch, domain.RiskCritical, "Sanctions watchlist match")
	alert.CustomerID = &customerID
	require.NoError(t, f.alerts.Create(ctx, alert))

	require.NoError(t, f.rec.SweepOrganization(ctx, f.orgID))

	sars := f.listReports(t, domain.ReportSAR)
	require.Len(t, sars, 1)
	assert.Equal(t, domain.ReportDraft, sars[0].Status)
	assert.Contains(t, sars[0].AlertIDs, alert.AlertID)

	// The contributing alert is flagged, so the next cycle creates nothing.
	require.NoError(t, f.rec.SweepOrganization(ctx, f.orgID))
	assert.Len(t, f.listReports(t, domain.ReportSAR), 1)
}

func TestOverdueReviewEscalatedOnce(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	stale := time.Now().UTC().Add(-72 * time.Hour)
	report := &domain.RegulatoryReport{
		ReportID:       uuid.New(),
		OrganizationID: f.orgID,
		ReportType:     domain.ReportSAR,
		Status:         domain.ReportPendingReview,
		Priority:       domain.PriorityNormal,
		Subjects:       []domain.ReportSubject{{CustomerID: uuid.New()}},
		TransactionIDs: []uuid.UUID{uuid.New()},
		PreparedBy:     uuid.New(),
		CreatedAt:      stale,
		UpdatedAt:      stale,
	}
	require.NoError(t, f.reports.Create(ctx, report))

	require.NoError(t, f.rec.SweepOrganization(ctx, f.orgID))

	stored, err := f.reports.GetByID(ctx, report.ReportID)
	require.NoError(t, err)
	assert.NotNil(t, stored.EscalatedAt)
	assert.Equal(t, domain.PriorityHigh, stored.Priority)

	alerts, err := f.alerts.ListByOrganization(ctx, f.orgID, 100, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertReviewOverdue, alerts[0].AlertType)

	// A second sweep does not escalate again.
	require.NoError(t, f.rec.SweepOrganization(ctx, f.orgID))
	alerts, err = f.alerts.ListByOrganization(ctx, f.orgID, 100, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestStaleReviewChecksExpire(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	check := &domain.ComplianceCheck{
		CheckID:         uuid.New(),
		OrganizationID:  f.orgID,
		CustomerID:      uuid.New(),
		AccountID:       uuid.New(),
		Amount:          decimal.RequireFromString("25000"),
		Currency:        "USD",
		TransactionType: "TRANSFER",
		Status:          domain.CheckReview,
		RiskScore:       40,
		RiskLevel:       domain.RiskMedium,
		CreatedAt:       time.Now().UTC().Add(-48 * time.Hour),
	}
	require.NoError(t, f.checks.Create(ctx, check))

	require.NoError(t, f.rec.SweepOrganization(ctx, f.orgID))

	stored, err := f.checks.GetByID(ctx, check.CheckID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckExpired, stored.Status)

	trail, err := f.audit.List(ctx, domain.AuditEntryFilter{EntityID: &check.CheckID})
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, string(domain.CheckExpired), trail[0].ToState)
}
