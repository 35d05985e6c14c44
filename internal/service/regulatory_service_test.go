package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/repository"
	"github.com/banking/compliance-engine/internal/repository/memory"
)

type recordingArchiver struct {
	archived []string
	fail     bool
}

func (a *recordingArchiver) ArchiveFiledReport(_ context.Context, report *domain.RegulatoryReport) error {
	if a.fail {
		return errors.New("bucket unreachable")
	}
	a.archived = append(a.archived, report.FilingIdentifier)
	return nil
}

type regulatoryFixture struct {
	svc      *RegulatoryService
	reports  *memory.ReportRepository
	settings *memory.SettingsRepository
	txns     *memory.TransactionRepository
	audit    *memory.AuditRepository
	archiver *recordingArchiver
	orgID    uuid.UUID
}

func newRegulatoryFixture(t *testing.T) *regulatoryFixture {
	t.Helper()
	f := &regulatoryFixture{
		reports:  memory.NewReportRepository(),
		settings: memory.NewSettingsRepository(),
		txns:     memory.NewTransactionRepository(),
		audit:    memory.NewAuditRepository(),
		archiver: &recordingArchiver{},
		orgID:    uuid.New(),
	}
	f.svc = NewRegulatoryService(
		f.reports, f.settings, memory.NewCheckRepository(), f.txns, memory.NewAlertRepository(), f.audit,
		f.archiver, nil, zap.NewNop(),
	)
	return f
}

func windowTransactions(orgID, customerID uuid.UUID, start time.Time, amounts ...string) []domain.Transaction {
	txns := make([]domain.Transaction, 0, len(amounts))
	for i, a := range amounts {
		txns = append(txns, domain.Transaction{
			TransactionID:  uuid.New(),
			OrganizationID: orgID,
			CustomerID:     customerID,
			AccountID:      uuid.New(),
			Amount:         amt(a),
			Currency:       "USD",
			Type:           "DEPOSIT",
			OccurredAt:     start.Add(time.Duration(i) * time.Hour),
		})
	}
	return txns
}

func (f *regulatoryFixture) subject() domain.ReportSubject {
	return domain.ReportSubject{
		CustomerID:           uuid.New(),
		FirstName:            "Dana",
		LastName:             "Whitfield",
		Country:              "US",
		IdentificationNumber: "123-45-6789",
	}
}

func (f *regulatoryFixture) ctrInput() GenerateCTRInput {
	start := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	subject := f.subject()
	return GenerateCTRInput{
		OrganizationID: f.orgID,
		Subject:        subject,
		WindowStart:    start,
		WindowEnd:      start.Add(24 * time.Hour),
		Transactions:   windowTransactions(f.orgID, subject.CustomerID, start, "9500", "9500", "9500", "9500", "9500", "9500"),
		PreparedBy:     uuid.New(),
	}
}

func (f *regulatoryFixture) sarInput() GenerateSARInput {
	return GenerateSARInput{
		OrganizationID: f.orgID,
		Subjects:       []domain.ReportSubject{f.subject()},
		TransactionIDs: []uuid.UUID{uuid.New(), uuid.New()},
		TotalAmount:    amt("28500"),
		Currency:       "USD",
		Narrative: "Customer conducted a series of cash deposits just below the reporting " +
			"threshold across three branches within a 48 hour period, consistent with structuring.",
		ActivityTypes: []domain.SuspiciousActivityType{domain.ActivityStructuring},
		PreparedBy:    uuid.New(),
	}
}

// submitAndApprove walks a draft to APPROVED with two distinct reviewers.
func (f *regulatoryFixture) submitAndApprove(t *testing.T, reportID uuid.UUID) *domain.RegulatoryReport {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.SubmitForReview(ctx, reportID, uuid.New())
	require.NoError(t, err)
	_, err = f.svc.ApproveReport(ctx, reportID, uuid.New(), "first review")
	require.NoError(t, err)
	report, err := f.svc.ApproveReport(ctx, reportID, uuid.New(), "second review")
	require.NoError(t, err)
	require.Equal(t, domain.ReportApproved, report.Status)
	return report
}

func TestGenerateCTRAggregatesWindow(t *testing.T) {
	f := newRegulatoryFixture(t)

	report, err := f.svc.GenerateCTR(context.Background(), f.ctrInput())
	require.NoError(t, err)

	assert.Equal(t, domain.ReportCTR, report.ReportType)
	assert.Equal(t, domain.ReportDraft, report.Status)
	assert.True(t, report.TotalAmount.Equal(amt("57000")))
	assert.Len(t, report.TransactionIDs, 6)
	assert.NotEmpty(t, report.AggregationKey)
}

func TestGenerateCTRIdempotentPerWindow(t *testing.T) {
	f := newRegulatoryFixture(t)
	in := f.ctrInput()

	first, err := f.svc.GenerateCTR(context.Background(), in)
	require.NoError(t, err)
	second, err := f.svc.GenerateCTR(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.ReportID, second.ReportID)

	all, err := f.svc.ListReports(context.Background(), listAll(f.orgID))
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGenerateCTRRequiresTransactions(t *testing.T) {
	f := newRegulatoryFixture(t)
	in := f.ctrInput()
	in.Transactions = nil

	_, err := f.svc.GenerateCTR(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestCheckCTRRequiredSingleTransaction(t *testing.T) {
	f := newRegulatoryFixture(t)
	ctx := context.Background()
	customerID := uuid.New()
	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	required, err := f.svc.CheckCTRRequired(ctx, f.orgID, customerID, day, amt("10000"), "USD")
	require.NoError(t, err)
	assert.True(t, required, "the threshold is inclusive")

	required, err = f.svc.CheckCTRRequired(ctx, f.orgID, customerID, day, amt("9999.99"), "USD")
	require.NoError(t, err)
	assert.False(t, required)
}

func TestCheckCTRRequiredDayAggregate(t *testing.T) {
	f := newRegulatoryFixture(t)
	ctx := context.Background()
	customerID := uuid.New()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	record := func(amount string, at time.Time) {
		require.NoError(t, f.txns.Record(ctx, &domain.Transaction{
			TransactionID:  uuid.New(),
			OrganizationID: f.orgID,
			CustomerID:     customerID,
			AccountID:      uuid.New(),
			Amount:         amt(amount),
			Currency:       "USD",
			Type:           "DEPOSIT",
			OccurredAt:     at,
		}))
	}
	record("5000", day.Add(2*time.Hour))

	// 6000 alone is under the threshold but the day total reaches 11000.
	required, err := f.svc.CheckCTRRequired(ctx, f.orgID, customerID, day.Add(5*time.Hour), amt("6000"), "USD")
	require.NoError(t, err)
	assert.True(t, required)

	// The next day starts a fresh aggregate.
	required, err = f.svc.CheckCTRRequired(ctx, f.orgID, customerID, day.Add(30*time.Hour), amt("6000"), "USD")
	require.NoError(t, err)
	assert.False(t, required)

	// A different currency does not join the aggregate.
	required, err = f.svc.CheckCTRRequired(ctx, f.orgID, customerID, day.Add(5*time.Hour), amt("6000"), "EUR")
	require.NoError(t, err)
	assert.False(t, required)
}

func TestGenerateSARValidatesNarrative(t *testing.T) {
	f := newRegulatoryFixture(t)
	in := f.sarInput()
	in.Narrative = "too short"

	_, err := f.svc.GenerateSAR(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))

	in = f.sarInput()
	in.ActivityTypes = nil
	_, err = f.svc.GenerateSAR(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestReportLifecycleToFiled(t *testing.T) {
	f := newRegulatoryFixture(t)
	ctx := context.Background()

	draft, err := f.svc.GenerateSAR(ctx, f.sarInput())
	require.NoError(t, err)
	f.submitAndApprove(t, draft.ReportID)

	filed, err := f.svc.FileReport(ctx, draft.ReportID, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, domain.ReportFiled, filed.Status)
	assert.True(t, strings.HasPrefix(filed.FilingIdentifier, "BSA"))
	assert.Len(t, filed.FilingIdentifier, 19)
	assert.NotNil(t, filed.FiledAt)
	require.Len(t, f.archiver.archived, 1)
	assert.Equal(t, filed.FilingIdentifier, f.archiver.archived[0])

	// Every transition is on the audit trail.
	trail, err := f.audit.List(ctx, domain.AuditEntryFilter{EntityID: &draft.ReportID})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(trail), 5)
}

func TestFirstApprovalKeepsPendingReview(t *testing.T) {
	f := newRegulatoryFixture(t)
	ctx := context.Background()

	draft, err := f.svc.GenerateSAR(ctx, f.sarInput())
	require.NoError(t, err)
	_, err = f.svc.SubmitForReview(ctx, draft.ReportID, uuid.New())
	require.NoError(t, err)

	report, err := f.svc.ApproveReport(ctx, draft.ReportID, uuid.New(), "looks complete")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportPendingReview, report.Status)
	assert.Len(t, report.Approvals, 1)

	// Filing is impossible until the second approval lands.
	_, err = f.svc.FileReport(ctx, draft.ReportID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidStateTransition, domain.KindOf(err))
}

func TestPreparerCannotApproveOwnReport(t *testing.T) {
	f := newRegulatoryFixture(t)
	ctx := context.Background()
	in := f.sarInput()

	draft, err := f.svc.GenerateSAR(ctx, in)
	require.NoError(t, err)
	_, err = f.svc.SubmitForReview(ctx, draft.ReportID, in.PreparedBy)
	require.NoError(t, err)

	_, err = f.svc.ApproveReport(ctx, draft.ReportID, in.PreparedBy, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindPolicyViolation, domain.KindOf(err))
}

func TestSameReviewerCannotApproveTwice(t *testing.T) {
	f := newRegulatoryFixture(t)
	ctx := context.Background()

	draft, err := f.svc.GenerateSAR(ctx, f.sarInput())
	require.NoError(t, err)
	_, err = f.svc.SubmitForReview(ctx, draft.ReportID, uuid.New())
	require.NoError(t, err)

	reviewer := uuid.New()
	_, err = f.svc.ApproveReport(ctx, draft.ReportID, reviewer, "")
	require.NoError(t, err)
	_, err = f.svc.ApproveReport(ctx, draft.ReportID, reviewer, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindPolicyViolation, domain.KindOf(err))

	stored, err := f.svc.GetReport(ctx, draft.ReportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportPendingReview, stored.Status)
	assert.Len(t, stored.Approvals, 1)
}

func TestRejectReportRequiresReason(t *testing.T) {
	f := newRegulatoryFixture(t)
	ctx := context.Background()

	draft, err := f.svc.GenerateSAR(ctx, f.sarInput())
	require.NoError(t, err)
	_, err = f.svc.SubmitForReview(ctx, draft.ReportID, uuid.New())
	require.NoError(t, err)

	_, err = f.svc.RejectReport(ctx, draft.ReportID, uuid.New(), "  ")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))

	rejected, err := f.svc.RejectReport(ctx, draft.ReportID, uuid.New(), "narrative does not establish suspicion")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportRejected, rejected.Status)
	assert.Equal(t, "narrative does not establish suspicion", rejected.RejectionReason)

	// REJECTED is terminal.
	_, err = f.svc.SubmitForReview(ctx, draft.ReportID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidStateTransition, domain.KindOf(err))
}

func TestFileFromWrongStateLeavesReportUnchanged(t *testing.T) {
	f := newRegulatoryFixture(t)
	ctx := context.Background()

	draft, err := f.svc.GenerateSAR(ctx, f.sarInput())
	require.NoError(t, err)

	_, err = f.svc.FileReport(ctx, draft.ReportID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidStateTransition, domain.KindOf(err))

	stored, err := f.svc.GetReport(ctx, draft.ReportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportDraft, stored.Status)
	assert.Empty(t, stored.FilingIdentifier)
	assert.Empty(t, f.archiver.archived)
}

func TestArchiveFailureAbortsFiling(t *testing.T) {
	f := newRegulatoryFixture(t)
	ctx := context.Background()

	draft, err := f.svc.GenerateSAR(ctx, f.sarInput())
	require.NoError(t, err)
	f.submitAndApprove(t, draft.ReportID)

	f.archiver.fail = true
	_, err = f.svc.FileReport(ctx, draft.ReportID, uuid.New())
	require.Error(t, err)

	stored, err := f.svc.GetReport(ctx, draft.ReportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportApproved, stored.Status)
	assert.Empty(t, stored.FilingIdentifier)

	// The filing succeeds on retry once the archive recovers.
	f.archiver.fail = false
	filed, err := f.svc.FileReport(ctx, draft.ReportID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.ReportFiled, filed.Status)
}

func TestSingleApprovalSufficesWithoutDualControl(t *testing.T) {
	f := newRegulatoryFixture(t)
	ctx := context.Background()

	cfg := domain.DefaultReportingConfig(f.orgID)
	cfg.RequireDualApproval = false
	require.NoError(t, f.svc.PutReportingConfig(ctx, &cfg))

	draft, err := f.svc.GenerateSAR(ctx, f.sarInput())
	require.NoError(t, err)
	_, err = f.svc.SubmitForReview(ctx, draft.ReportID, uuid.New())
	require.NoError(t, err)

	report, err := f.svc.ApproveReport(ctx, draft.ReportID, uuid.New(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportApproved, report.Status)

	filed, err := f.svc.FileReport(ctx, draft.ReportID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.ReportFiled, filed.Status)
}

func TestDualControlTightenedAfterApprovalBlocksFiling(t *testing.T) {
	f := newRegulatoryFixture(t)
	ctx := context.Background()

	cfg := domain.DefaultReportingConfig(f.orgID)
	cfg.RequireDualApproval = false
	require.NoError(t, f.svc.PutReportingConfig(ctx, &cfg))

	draft, err := f.svc.GenerateSAR(ctx, f.sarInput())
	require.NoError(t, err)
	_, err = f.svc.SubmitForReview(ctx, draft.ReportID, uuid.New())
	require.NoError(t, err)
	report, err := f.svc.ApproveReport(ctx, draft.ReportID, uuid.New(), "")
	require.NoError(t, err)
	require.Equal(t, domain.ReportApproved, report.Status)

	cfg.RequireDualApproval = true
	require.NoError(t, f.svc.PutReportingConfig(ctx, &cfg))

	_, err = f.svc.FileReport(ctx, draft.ReportID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidStateTransition, domain.KindOf(err))

	stored, err := f.svc.GetReport(ctx, draft.ReportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportApproved, stored.Status)
	assert.Empty(t, stored.FilingIdentifier)
	assert.Empty(t, f.archiver.archived)
}

func listAll(orgID uuid.UUID) repository.ReportFilter {
	return repository.ReportFilter{OrganizationID: &orgID}
}
