package risk

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/banking/compliance-engine/internal/domain"
)

func baseInput() Input {
	return Input{
		Request: domain.EvaluationRequest{
			OrganizationID:  uuid.New(),
			CustomerID:      uuid.New(),
			AccountID:       uuid.New(),
			Amount:          decimal.NewFromInt(100),
			Currency:        "USD",
			TransactionType: "TRANSFER",
			KYCStatus:       domain.KYCVerified,
		},
		Settings: domain.OrganizationComplianceSettings{},
	}
}

func TestScoreCleanTransactionIsLow(t *testing.T) {
	s := NewScorer(DefaultWeights())

	b := s.Score(baseInput())

	assert.Less(t, b.OverallScore, 25)
	assert.Equal(t, domain.RiskLow, b.Level)
	assert.Equal(t, 10, b.KYCScore)
	assert.Zero(t, b.SanctionsScore)
}

func TestScoreBoundsAlwaysHold(t *testing.T) {
	s := NewScorer(DefaultWeights())
	in := baseInput()
	in.Request.KYCStatus = domain.KYCUnverified
	in.Request.DestinationCountry = "KP"
	in.Sanctions = domain.SanctionsResult{HighestConfidence: 1.0, Matches: []domain.SanctionMatch{{Confidence: 1.0}}}
	in.Velocity = domain.VelocityResult{Breached: true}
	in.RuleImpact = 100

	b := s.Score(in)

	assert.Equal(t, 100, b.OverallScore)
	assert.Equal(t, domain.RiskCritical, b.Level)
	for _, sub := range []int{b.KYCScore, b.SanctionsScore, b.TransactionScore, b.GeographicScore, b.VelocityScore} {
		assert.GreaterOrEqual(t, sub, 0)
		assert.LessOrEqual(t, sub, 100)
	}
}

func TestScoreKYCStatusOrdering(t *testing.T) {
	s := NewScorer(DefaultWeights())

	in := baseInput()
	verified := s.Score(in).OverallScore

	in.Request.KYCStatus = domain.KYCPending
	pending := s.Score(in).OverallScore

	in.Request.KYCStatus = domain.KYCUnverified
	unverified := s.Score(in).OverallScore

	assert.Less(t, verified, pending)
	assert.Less(t, pending, unverified)
}

func TestScoreSanctionsUnavailableScoresWorst(t *testing.T) {
	s := NewScorer(DefaultWeights())
	in := baseInput()
	in.Sanctions = domain.SanctionsResult{Unavailable: true}

	b := s.Score(in)

	assert.Equal(t, 100, b.SanctionsScore)
	assert.Contains(t, b.RiskFactors, "sanctions_screening_unavailable")
}

func TestScoreVelocityUnknownIsPenaltyNotBlock(t *testing.T) {
	s := NewScorer(DefaultWeights())
	in := baseInput()
	in.Velocity = domain.VelocityResult{Unknown: true}

	b := s.Score(in)

	assert.Equal(t, 50, b.VelocityScore)
	assert.Contains(t, b.RiskFactors, "velocity_unknown")
}

func TestScoreRiskLevelBucketEdges(t *testing.T) {
	assert.Equal(t, domain.RiskLow, domain.RiskLevelForScore(24))
	assert.Equal(t, domain.RiskMedium, domain.RiskLevelForScore(25))
	assert.Equal(t, domain.RiskMedium, domain.RiskLevelForScore(49))
	assert.Equal(t, domain.RiskHigh, domain.RiskLevelForScore(50))
	assert.Equal(t, domain.RiskHigh, domain.RiskLevelForScore(74))
	assert.Equal(t, domain.RiskCritical, domain.RiskLevelForScore(75))
	assert.Equal(t, domain.RiskCritical, domain.RiskLevelForScore(100))
}

func TestScoreTransactionNearLimit(t *testing.T) {
	s := NewScorer(DefaultWeights())
	in := baseInput()
	limit := decimal.NewFromInt(10000)
	in.Settings.MaxTransactionAmount = &limit
	in.Request.Amount = decimal.NewFromInt(9000)

	b := s.Score(in)

	assert.Equal(t, 90, b.TransactionScore)
}

func TestScoreInvalidWeightsFallBackToDefaults(t *testing.T) {
	s := NewScorer(Weights{KYC: 0.9, Sanctions: 0.9})

	b := s.Score(baseInput())

	assert.Equal(t, domain.RiskLow, b.Level)
	assert.True(t, DefaultWeights().Valid())
}
