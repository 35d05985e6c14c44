package rules

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/domain"
)

func testContext(amount int64, country, kycStatus string) *domain.TransactionContext {
	return domain.NewTransactionContext(domain.EvaluationRequest{
		OrganizationID:     uuid.New(),
		CustomerID:         uuid.New(),
		AccountID:          uuid.New(),
		Amount:             decimal.NewFromInt(amount),
		Currency:           "USD",
		TransactionType:    "WIRE",
		DestinationCountry: country,
		KYCStatus:          domain.KYCStatus(kycStatus),
	})
}

func TestEvaluateTriggersAmountThreshold(t *testing.T) {
	e := NewEngine(zap.NewNop())
	orgID := uuid.New()
	rule := domain.HighValueReviewRule(orgID, decimal.NewFromInt(10000))

	outcome := e.Evaluate([]*domain.ComplianceRule{rule}, testContext(15000, "US", "VERIFIED"))

	require.Len(t, outcome.Results, 1)
	assert.True(t, outcome.Results[0].Triggered)
	assert.Equal(t, domain.ActionReview, outcome.ResolvedAction)
	assert.Equal(t, rule.RiskScoreImpact, outcome.RiskScoreImpact)
}

func TestEvaluateBoundaryIsExclusive(t *testing.T) {
	e := NewEngine(zap.NewNop())
	rule := domain.HighValueReviewRule(uuid.New(), decimal.NewFromInt(10000))

	outcome := e.Evaluate([]*domain.ComplianceRule{rule}, testContext(10000, "US", "VERIFIED"))

	assert.False(t, outcome.Results[0].Triggered)
	assert.Equal(t, domain.ActionAllow, outcome.ResolvedAction)
}

func TestEvaluateSkipsDisabledRules(t *testing.T) {
	e := NewEngine(zap.NewNop())
	rule := domain.HighValueReviewRule(uuid.New(), decimal.NewFromInt(100))
	rule.Enabled = false

	outcome := e.Evaluate([]*domain.ComplianceRule{rule}, testContext(15000, "US", "VERIFIED"))

	assert.Empty(t, outcome.Results)
	assert.Equal(t, domain.ActionAllow, outcome.ResolvedAction)
}

func TestEvaluateActionPrecedence(t *testing.T) {
	e := NewEngine(zap.NewNop())
	orgID := uuid.New()
	review := domain.HighValueReviewRule(orgID, decimal.NewFromInt(1000))
	block := domain.BlockedCountryRule(orgID, []string{"KP"})
	alert := domain.DailyVelocityRule(orgID, 0)

	ctx := testContext(5000, "KP", "VERIFIED")
	ctx.AttachVelocity(domain.VelocityResult{Count: 3})

	outcome := e.Evaluate([]*domain.ComplianceRule{review, alert, block}, ctx)

	assert.Equal(t, domain.ActionBlock, outcome.ResolvedAction)
	require.NotNil(t, outcome.ResolvedBy)
	assert.Equal(t, block.RuleID, outcome.ResolvedBy.RuleID)
}

func TestEvaluateTieBreakByPriority(t *testing.T) {
	e := NewEngine(zap.NewNop())
	orgID := uuid.New()

	first := domain.BlockedCountryRule(orgID, []string{"KP"})
	first.Priority = 5
	second := domain.BlockedCountryRule(orgID, []string{"KP"})
	second.Priority = 50

	outcome := e.Evaluate([]*domain.ComplianceRule{second, first}, testContext(100, "KP", "VERIFIED"))

	require.NotNil(t, outcome.ResolvedBy)
	assert.Equal(t, first.RuleID, outcome.ResolvedBy.RuleID, "equal severity resolves to the lower priority number")
}

func TestEvaluateOrLogic(t *testing.T) {
	e := NewEngine(zap.NewNop())
	currency := "EUR"
	rule := &domain.ComplianceRule{
		RuleID:         uuid.New(),
		OrganizationID: uuid.New(),
		Name:           "Either condition",
		RuleType:       domain.RuleTypeCustom,
		Conditions: []domain.RuleCondition{
			{Field: "currency", Operator: domain.OpEquals, ValueKind: domain.ValueString, StringValue: &currency},
			{Field: "destination_country", Operator: domain.OpIn, ValueKind: domain.ValueList, ListValue: []string{"PA"}},
		},
		ConditionLogic:  domain.LogicOr,
		Action:          domain.ActionAlert,
		Severity:        domain.SeverityLow,
		RiskScoreImpact: 5,
		Enabled:         true,
		Priority:        1,
	}

	// Currency does not match but destination does.
	outcome := e.Evaluate([]*domain.ComplianceRule{rule}, testContext(100, "PA", "VERIFIED"))
	assert.True(t, outcome.Results[0].Triggered)

	// Neither matches.
	outcome = e.Evaluate([]*domain.ComplianceRule{rule}, testContext(100, "US", "VERIFIED"))
	assert.False(t, outcome.Results[0].Triggered)
}

func TestEvaluateMissingFieldDoesNotTrigger(t *testing.T) {
	e := NewEngine(zap.NewNop())
	limit := decimal.NewFromInt(2)
	rule := &domain.ComplianceRule{
		RuleID:   uuid.New(),
		Name:     "Velocity without data",
		RuleType: domain.RuleTypeVelocity,
		Conditions: []domain.RuleCondition{
			{Field: "velocity.count", Operator: domain.OpGreaterThan, ValueKind: domain.ValueNumber, NumberValue: &limit},
		},
		ConditionLogic: domain.LogicAnd,
		Action:         domain.ActionBlock,
		Enabled:        true,
		Priority:       1,
	}

	outcome := e.Evaluate([]*domain.ComplianceRule{rule}, testContext(100, "US", "VERIFIED"))
	assert.False(t, outcome.Results[0].Triggered)
}

func TestEvaluateBrokenRegexDoesNotTrigger(t *testing.T) {
	e := NewEngine(zap.NewNop())
	pattern := "([unclosed"
	rule := &domain.ComplianceRule{
		RuleID:   uuid.New(),
		Name:     "Stored before pattern validation",
		RuleType: domain.RuleTypeCustom,
		Conditions: []domain.RuleCondition{
			{Field: "transaction_type", Operator: domain.OpRegexMatch, ValueKind: domain.ValueString, StringValue: &pattern},
		},
		ConditionLogic: domain.LogicAnd,
		Action:         domain.ActionBlock,
		Enabled:        true,
		Priority:       1,
	}

	outcome := e.Evaluate([]*domain.ComplianceRule{rule}, testContext(100, "US", "VERIFIED"))
	assert.False(t, outcome.Results[0].Triggered)
	assert.Equal(t, domain.ActionAllow, outcome.ResolvedAction)
}

func TestEvaluateRiskImpactCapped(t *testing.T) {
	e := NewEngine(zap.NewNop())
	orgID := uuid.New()
	a := domain.BlockedCountryRule(orgID, []string{"KP"})
	a.RiskScoreImpact = 80
	b := domain.UnverifiedKYCRule(orgID)
	b.RiskScoreImpact = 60

	outcome := e.Evaluate([]*domain.ComplianceRule{a, b}, testContext(100, "KP", "PENDING"))

	assert.Equal(t, 100, outcome.RiskScoreImpact)
}

func TestEvaluateMetadataFields(t *testing.T) {
	e := NewEngine(zap.NewNop())
	channel := "ATM"
	rule := &domain.ComplianceRule{
		RuleID:   uuid.New(),
		Name:     "ATM channel",
		RuleType: domain.RuleTypeCustom,
		Conditions: []domain.RuleCondition{
			{Field: "metadata.channel", Operator: domain.OpEquals, ValueKind: domain.ValueString, StringValue: &channel},
		},
		ConditionLogic: domain.LogicAnd,
		Action:         domain.ActionLog,
		Enabled:        true,
		Priority:       1,
	}

	ctx := domain.NewTransactionContext(domain.EvaluationRequest{
		OrganizationID:  uuid.New(),
		CustomerID:      uuid.New(),
		AccountID:       uuid.New(),
		Amount:          decimal.NewFromInt(50),
		Currency:        "USD",
		TransactionType: "WITHDRAWAL",
		Metadata:        map[string]string{"channel": "ATM"},
	})

	outcome := e.Evaluate([]*domain.ComplianceRule{rule}, ctx)
	assert.True(t, outcome.Results[0].Triggered)
	assert.Equal(t, domain.ActionLog, outcome.ResolvedAction)
}
