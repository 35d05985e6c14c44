package risk

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/screening"
	"github.com/banking/compliance-engine/internal/velocity"
)

// Weights distributes the overall score across the five sub-checks.
// Must sum to 1.0.
type Weights struct {
	KYC         float64 `json:"kyc"`
	Sanctions   float64 `json:"sanctions"`
	Transaction float64 `json:"transaction"`
	Geographic  float64 `json:"geographic"`
	Velocity    float64 `json:"velocity"`
}

// DefaultWeights are the production defaults.
func DefaultWeights() Weights {
	return Weights{
		KYC:         0.25,
		Sanctions:   0.30,
		Transaction: 0.20,
		Geographic:  0.15,
		Velocity:    0.10,
	}
}

// Valid checks the weights sum to 1 within rounding tolerance.
func (w Weights) Valid() bool {
	sum := w.KYC + w.Sanctions + w.Transaction + w.Geographic + w.Velocity
	return math.Abs(sum-1.0) < 0.001
}

// Input carries everything the scorer reads. The scorer itself is pure.
type Input struct {
	Request   domain.EvaluationRequest
	Settings  domain.OrganizationComplianceSettings
	Sanctions domain.SanctionsResult
	Velocity  domain.VelocityResult
	// RuleImpact is the capped sum of triggered rule risk impacts.
	RuleImpact int
}

// Scorer combines sub-check results into a weighted 0-100 risk score.
type Scorer struct {
	weights Weights
}

func NewScorer(weights Weights) *Scorer {
	if !weights.Valid() {
		weights = DefaultWeights()
	}
	return &Scorer{weights: weights}
}

// Score computes the weighted breakdown. Every sub-score and the overall
// score are clamped to [0,100].
func (s *Scorer) Score(in Input) domain.RiskBreakdown {
	b := domain.RiskBreakdown{
		KYCScore:         kycScore(in.Request.KYCStatus),
		SanctionsScore:   sanctionsScore(in.Sanctions),
		TransactionScore: transactionScore(in.Request.Amount, in.Settings, in.RuleImpact),
		GeographicScore:  screening.GeographicRiskScore(in.Request.DestinationCountry),
		VelocityScore:    velocityScore(in.Velocity, in.Settings),
	}

	weighted := float64(b.KYCScore)*s.weights.KYC +
		float64(b.SanctionsScore)*s.weights.Sanctions +
		float64(b.TransactionScore)*s.weights.Transaction +
		float64(b.GeographicScore)*s.weights.Geographic +
		float64(b.VelocityScore)*s.weights.Velocity

	b.OverallScore = clamp(int(math.Round(weighted)))
	b.Level = domain.RiskLevelForScore(b.OverallScore)
	b.RiskFactors = riskFactors(in, b)
	return b
}

func kycScore(status domain.KYCStatus) int {
	switch status {
	case domain.KYCVerified:
		return 10
	case domain.KYCPending:
		return 60
	default:
		// Unverified or unknown status scores worst.
		return 100
	}
}

func sanctionsScore(result domain.SanctionsResult) int {
	if result.Unavailable {
		// An unreachable watchlist cannot clear the customer.
		return 100
	}
	return clamp(int(math.Round(result.HighestConfidence * 100)))
}

// transactionScore reflects how close the amount sits to the organization's
// limits, lifted by triggered rule impacts.
func transactionScore(amount decimal.Decimal, settings domain.OrganizationComplianceSettings, ruleImpact int) int {
	score := 10
	if settings.MaxTransactionAmount != nil && settings.MaxTransactionAmount.IsPositive() {
		ratio, _ := amount.Div(*settings.MaxTransactionAmount).Float64()
		if ratio > 1 {
			ratio = 1
		}
		score = clamp(int(math.Round(ratio * 100)))
	} else if settings.ManualReviewAmount != nil && amount.GreaterThan(*settings.ManualReviewAmount) {
		score = 70
	}
	if ruleImpact > score {
		score = ruleImpact
	}
	return clamp(score)
}

func velocityScore(result domain.VelocityResult, settings domain.OrganizationComplianceSettings) int {
	if result.Unknown {
		// History outage is a penalty, not a block.
		return 50
	}
	if result.Breached {
		return 100
	}
	return clamp(int(math.Round(velocity.Utilization(result, settings) * 80)))
}

func riskFactors(in Input, b domain.RiskBreakdown) []string {
	var factors []string
	if in.Request.KYCStatus != domain.KYCVerified {
		factors = append(factors, "kyc_not_verified")
	}
	if in.Sanctions.Unavailable {
		factors = append(factors, "sanctions_screening_unavailable")
	} else if in.Sanctions.Matched() {
		factors = append(factors, "sanctions_match")
	}
	if in.Velocity.Unknown {
		factors = append(factors, "velocity_unknown")
	} else if in.Velocity.Breached {
		factors = append(factors, "velocity_breached")
	}
	if b.GeographicScore >= 60 {
		factors = append(factors, "high_risk_destination")
	}
	if in.RuleImpact > 0 {
		factors = append(factors, "rules_triggered")
	}
	return factors
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
