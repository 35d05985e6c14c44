package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/repository"
	"github.com/banking/compliance-engine/internal/repository/memory"
	"github.com/banking/compliance-engine/internal/risk"
	"github.com/banking/compliance-engine/internal/rules"
	"github.com/banking/compliance-engine/internal/screening"
	"github.com/banking/compliance-engine/internal/velocity"
)

type downWatchlist struct{}

func (downWatchlist) Entries(context.Context) ([]screening.WatchlistEntry, error) {
	return nil, errors.New("list source down")
}

type complianceFixture struct {
	svc      *ComplianceService
	checks   *memory.CheckRepository
	ruleRepo *memory.RuleRepository
	settings *memory.SettingsRepository
	alerts   *memory.AlertRepository
	audit    *memory.AuditRepository
	txns     *memory.TransactionRepository
	orgID    uuid.UUID
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }
func amtPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newComplianceFixture(t *testing.T, provider screening.WatchlistProvider) *complianceFixture {
	t.Helper()
	f := &complianceFixture{
		checks:   memory.NewCheckRepository(),
		ruleRepo: memory.NewRuleRepository(),
		settings: memory.NewSettingsRepository(),
		alerts:   memory.NewAlertRepository(),
		audit:    memory.NewAuditRepository(),
		txns:     memory.NewTransactionRepository(),
		orgID:    uuid.New(),
	}

	if provider == nil {
		watchlist := memory.NewWatchlistRepository()
		require.NoError(t, watchlist.ReplaceList(context.Background(), domain.ListOFAC, []screening.WatchlistEntry{
			{EntryID: "OFAC-9001", ListSource: domain.ListOFAC, Name: "Viktor Petrov", Aliases: []string{"Victor Petroff"}, Program: "SDN"},
		}))
		provider = watchlist
	}

	logger := zap.NewNop()
	f.svc = NewComplianceService(
		f.checks, f.ruleRepo, f.settings, f.alerts, f.audit,
		screening.NewScreener(provider, screening.DefaultConfig(), logger),
		velocity.NewMonitor(f.txns, velocity.DefaultWindow, logger),
		rules.NewEngine(logger),
		risk.NewScorer(risk.DefaultWeights()),
		nil, nil, nil,
		DefaultComplianceOptions(), logger,
	)

	require.NoError(t, f.settings.PutOrganization(context.Background(), &domain.OrganizationComplianceSettings{
		OrganizationID:           f.orgID,
		Status:                   domain.OrgActive,
		Level:                    domain.LevelStandard,
		EnableSanctionsScreening: true,
		EnableVelocityMonitoring: true,
		MaxTransactionAmount:     amtPtr("50000"),
		ManualReviewAmount:       amtPtr("20000"),
		RestrictedCountries:      []string{"IR", "KP"},
		AllowInternational:       true,
		VelocityMaxCount:         10,
		VelocityMaxAmount:        amtPtr("100000"),
		RiskScoreThreshold:       75,
	}))
	return f
}

func (f *complianceFixture) request() domain.EvaluationRequest {
	return domain.EvaluationRequest{
		OrganizationID:  f.orgID,
		CustomerID:      uuid.New(),
		AccountID:       uuid.New(),
		Amount:          amt("100"),
		Currency:        "USD",
		TransactionType: "TRANSFER",
		CustomerName:    "Alice Johnson",
		KYCStatus:       domain.KYCVerified,
	}
}

func (f *complianceFixture) alertTypes(t *testing.T) []domain.AlertType {
	t.Helper()
	alerts, err := f.alerts.ListByOrganization(context.Background(), f.orgID, 100, 0)
	require.NoError(t, err)
	types := make([]domain.AlertType, 0, len(alerts))
	for _, a := range alerts {
		types = append(types, a.AlertType)
	}
	return types
}

func TestEvaluateCleanTransactionApproved(t *testing.T) {
	f := newComplianceFixture(t, nil)

	check, err := f.svc.EvaluateTransaction(context.Background(), f.request())
	require.NoError(t, err)

	assert.Equal(t, domain.CheckApproved, check.Status)
	assert.Equal(t, domain.RiskLow, check.RiskLevel)
	assert.Empty(t, check.SanctionsMatches)
	assert.Nil(t, check.ExpiresAt)

	// The decision is persisted and audited.
	stored, err := f.checks.GetByID(context.Background(), check.CheckID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckApproved, stored.Status)

	trail, err := f.svc.AuditTrail(context.Background(), check.CheckID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, string(domain.CheckPending), trail[0].FromState)
	assert.Equal(t, string(domain.CheckApproved), trail[0].ToState)
}

func TestEvaluateSanctionsMatchBlocked(t *testing.T) {
	f := newComplianceFixture(t, nil)
	req := f.request()
	req.CustomerName = "Viktor Petrov"

	check, err := f.svc.EvaluateTransaction(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.CheckBlocked, check.Status)
	assert.NotEmpty(t, check.Reason)
	require.NotEmpty(t, check.SanctionsMatches)
	assert.Equal(t, "OFAC-9001", check.SanctionsMatches[0].EntryID)

	types := f.alertTypes(t)
	assert.Contains(t, types, domain.AlertBlockedTransaction)
	assert.Contains(t, types, domain.AlertSanctionsMatch)
}

func TestEvaluateFuzzyMatchRoutesThroughScoring(t *testing.T) {
	f := newComplianceFixture(t, nil)
	req := f.request()
	req.CustomerName = "Viktor Petrovic"

	check, err := f.svc.EvaluateTransaction(context.Background(), req)
	require.NoError(t, err)

	// A near-miss on the watchlist is a lead, not a verdict. Only a match
	// at or above the block confidence blocks outright.
	assert.NotEqual(t, domain.CheckBlocked, check.Status)
	require.NotEmpty(t, check.SanctionsMatches)
	assert.Equal(t, "OFAC-9001", check.SanctionsMatches[0].EntryID)
	assert.Less(t, check.SanctionsMatches[0].Confidence, 0.95)
	assert.True(t, check.FlaggedForSAR)

	types := f.alertTypes(t)
	assert.Contains(t, types, domain.AlertSanctionsMatch)
	assert.NotContains(t, types, domain.AlertBlockedTransaction)
}

func TestEvaluateRiskScoreAtReviewThreshold(t *testing.T) {
	f := newComplianceFixture(t, nil)
	settings, err := f.settings.GetOrganization(context.Background(), f.orgID)
	require.NoError(t, err)
	settings.RiskScoreThreshold = 50
	require.NoError(t, f.settings.PutOrganization(context.Background(), settings))

	req := f.request()
	req.KYCStatus = domain.KYCUnverified
	req.DestinationCountry = "MM"
	req.Amount = amt("45000")

	check, err := f.svc.EvaluateTransaction(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.CheckReview, check.Status)
	assert.GreaterOrEqual(t, check.RiskScore, 50)
	// The score clause decided, not the manual review amount.
	assert.Contains(t, check.Reason, "risk score")
	require.NotNil(t, check.ExpiresAt)
	assert.True(t, check.ExpiresAt.After(check.CreatedAt))
}

func TestEvaluateSARThresholdFlagsApprovedCheck(t *testing.T) {
	f := newComplianceFixture(t, nil)
	cfg := domain.DefaultReportingConfig(f.orgID)
	cfg.SARRiskScoreThreshold = 30
	require.NoError(t, f.settings.PutReportingConfig(context.Background(), &cfg))

	req := f.request()
	req.KYCStatus = domain.KYCUnverified
	req.DestinationCountry = "MM"

	check, err := f.svc.EvaluateTransaction(context.Background(), req)
	require.NoError(t, err)

	// Under the review threshold the transaction proceeds, but the score
	// still marks the check as a SAR candidate.
	assert.Equal(t, domain.CheckApproved, check.Status)
	assert.GreaterOrEqual(t, check.RiskScore, 30)
	assert.True(t, check.FlaggedForSAR)
	assert.Contains(t, f.alertTypes(t), domain.AlertHighRiskScore)

	flagged := true
	candidates, err := f.checks.List(context.Background(), repository.CheckFilter{
		OrganizationID: &f.orgID,
		FlaggedForSAR:  &flagged,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, check.CheckID, candidates[0].CheckID)
}

func TestEvaluateScreeningUnavailableFailsClosed(t *testing.T) {
	f := newComplianceFixture(t, downWatchlist{})

	check, err := f.svc.EvaluateTransaction(context.Background(), f.request())
	require.NoError(t, err)

	// An unreachable watchlist is never a clean pass.
	assert.Equal(t, domain.CheckReview, check.Status)
	assert.NotEqual(t, domain.CheckApproved, check.Status)
	assert.NotEmpty(t, check.Reason)
	require.NotNil(t, check.ExpiresAt)
	assert.Contains(t, f.alertTypes(t), domain.AlertDependencyUnavailable)
}

func TestEvaluateRestrictedCountryBlocked(t *testing.T) {
	f := newComplianceFixture(t, nil)
	req := f.request()
	req.DestinationCountry = "IR"

	check, err := f.svc.EvaluateTransaction(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.CheckBlocked, check.Status)
	assert.Contains(t, check.Reason, "IR")
	assert.Equal(t, domain.RiskCritical, check.RiskLevel)
}

func TestEvaluateAmountOverMaximumBlocked(t *testing.T) {
	f := newComplianceFixture(t, nil)
	req := f.request()
	req.Amount = amt("60000")

	check, err := f.svc.EvaluateTransaction(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.CheckBlocked, check.Status)
	assert.NotEmpty(t, check.Reason)
}

func TestEvaluateSuspendedOrganizationBlocked(t *testing.T) {
	f := newComplianceFixture(t, nil)
	settings, err := f.settings.GetOrganization(context.Background(), f.orgID)
	require.NoError(t, err)
	settings.Status = domain.OrgSuspended
	require.NoError(t, f.settings.PutOrganization(context.Background(), settings))

	check, err := f.svc.EvaluateTransaction(context.Background(), f.request())
	require.NoError(t, err)

	assert.Equal(t, domain.CheckBlocked, check.Status)
	assert.Contains(t, check.Reason, "SUSPENDED")
}

func TestEvaluateManualReviewAmount(t *testing.T) {
	f := newComplianceFixture(t, nil)
	req := f.request()
	req.Amount = amt("25000")

	check, err := f.svc.EvaluateTransaction(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.CheckReview, check.Status)
	assert.NotEmpty(t, check.Reason)
	require.NotNil(t, check.ExpiresAt)
}

func TestEvaluateBlockRuleWins(t *testing.T) {
	f := newComplianceFixture(t, nil)
	rule := domain.UnverifiedKYCRule(f.orgID)
	require.NoError(t, f.svc.CreateRule(context.Background(), rule))

	req := f.request()
	req.KYCStatus = domain.KYCUnverified

	check, err := f.svc.EvaluateTransaction(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.CheckBlocked, check.Status)
	assert.Equal(t, "KYC verification required", check.Reason)
	assert.Contains(t, check.RulesEvaluated, rule.RuleID)
	assert.Contains(t, check.RulesTriggered, rule.RuleID)
}

func TestEvaluateUnknownOrganization(t *testing.T) {
	f := newComplianceFixture(t, nil)
	req := f.request()
	req.OrganizationID = uuid.New()

	_, err := f.svc.EvaluateTransaction(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestEvaluateRejectsInvalidRequest(t *testing.T) {
	f := newComplianceFixture(t, nil)
	req := f.request()
	req.Amount = decimal.Zero

	_, err := f.svc.EvaluateTransaction(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestApproveCheckFromReview(t *testing.T) {
	f := newComplianceFixture(t, nil)
	req := f.request()
	req.Amount = amt("25000")
	check, err := f.svc.EvaluateTransaction(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, domain.CheckReview, check.Status)

	reviewer := uuid.New()
	resolved, err := f.svc.ApproveCheck(context.Background(), check.CheckID, reviewer, "verified with branch manager")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckApproved, resolved.Status)
	require.NotNil(t, resolved.ReviewedBy)
	assert.Equal(t, reviewer, *resolved.ReviewedBy)
	assert.NotNil(t, resolved.ReviewedAt)

	// Resolving twice is an invalid transition, not a silent overwrite.
	_, err = f.svc.ApproveCheck(context.Background(), check.CheckID, reviewer, "again")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidStateTransition, domain.KindOf(err))

	trail, err := f.svc.AuditTrail(context.Background(), check.CheckID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, string(domain.CheckReview), trail[1].FromState)
	assert.Equal(t, string(domain.CheckApproved), trail[1].ToState)
	assert.Equal(t, reviewer, trail[1].ActorID)
}

func TestRejectCheckRequiresReason(t *testing.T) {
	f := newComplianceFixture(t, nil)
	req := f.request()
	req.Amount = amt("25000")
	check, err := f.svc.EvaluateTransaction(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.RejectCheck(context.Background(), check.CheckID, uuid.New(), "")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))

	resolved, err := f.svc.RejectCheck(context.Background(), check.CheckID, uuid.New(), "source of funds not established")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckBlocked, resolved.Status)
	assert.Equal(t, "source of funds not established", resolved.Reason)
}

func TestResolveNonReviewCheckFails(t *testing.T) {
	f := newComplianceFixture(t, nil)
	check, err := f.svc.EvaluateTransaction(context.Background(), f.request())
	require.NoError(t, err)
	require.Equal(t, domain.CheckApproved, check.Status)

	_, err = f.svc.ApproveCheck(context.Background(), check.CheckID, uuid.New(), "")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidStateTransition, domain.KindOf(err))
}

func TestBlockedChecksAlwaysCarryReason(t *testing.T) {
	f := newComplianceFixture(t, nil)

	blocked := []domain.EvaluationRequest{
		func() domain.EvaluationRequest {
			r := f.request()
			r.CustomerName = "Viktor Petrov"
			return r
		}(),
		func() domain.EvaluationRequest {
			r := f.request()
			r.DestinationCountry = "KP"
			return r
		}(),
		func() domain.EvaluationRequest {
			r := f.request()
			r.Amount = amt("99999")
			return r
		}(),
	}
	for _, req := range blocked {
		check, err := f.svc.EvaluateTransaction(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, domain.CheckBlocked, check.Status)
		assert.NotEmpty(t, check.Reason)
	}
}

func TestCreateRuleRejectsInvalid(t *testing.T) {
	f := newComplianceFixture(t, nil)
	rule := domain.HighValueReviewRule(f.orgID, amt("10000"))
	rule.Conditions = nil

	err := f.svc.CreateRule(context.Background(), rule)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestDeleteRuleRemovesFromActiveSet(t *testing.T) {
	f := newComplianceFixture(t, nil)
	rule := domain.HighValueReviewRule(f.orgID, amt("10000"))
	require.NoError(t, f.svc.CreateRule(context.Background(), rule))
	require.NoError(t, f.svc.DeleteRule(context.Background(), rule.RuleID))

	_, err := f.svc.GetRule(context.Background(), rule.RuleID)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestLedgerMetadataExposed(t *testing.T) {
	f := newComplianceFixture(t, nil)
	check, err := f.svc.EvaluateTransaction(context.Background(), f.request())
	require.NoError(t, err)

	meta := check.LedgerMetadata()
	assert.Equal(t, check.CheckID.String(), meta["compliance_check_id"])
	assert.Equal(t, string(check.Status), meta["status"])
}
