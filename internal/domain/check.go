package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckStatus is the decision state of a compliance check
type CheckStatus string

const (
	CheckPending  CheckStatus = "PENDING"
	CheckApproved CheckStatus = "APPROVED"
	CheckBlocked  CheckStatus = "BLOCKED"
	CheckReview   CheckStatus = "REVIEW"
	CheckExpired  CheckStatus = "EXPIRED"
)

// RiskLevel buckets a 0-100 risk score
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevelForScore buckets at 25/50/75.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score < 25:
		return RiskLow
	case score < 50:
		return RiskMedium
	case score < 75:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// SanctionListSource identifies the watchlist a match came from
type SanctionListSource string

const (
	ListOFAC SanctionListSource = "OFAC"
	ListUN   SanctionListSource = "UN"
	ListEU   SanctionListSource = "EU"
	ListUK   SanctionListSource = "UK"
)

// SanctionMatch is one watchlist hit attached to a compliance check
type SanctionMatch struct {
	ListSource  SanctionListSource `json:"list_source" db:"list_source"`
	EntryID     string             `json:"entry_id" db:"entry_id"`
	MatchedName string             `json:"matched_name" db:"matched_name"`
	Confidence  float64            `json:"confidence" db:"confidence"` // 0-1
	AliasMatch  bool               `json:"alias_match" db:"alias_match"`
	Program     string             `json:"program,omitempty" db:"program"`
}

// SanctionsResult is the screener output for one name
type SanctionsResult struct {
	Matches           []SanctionMatch `json:"matches"`
	HighestConfidence float64         `json:"highest_confidence"`
	// Unavailable means the watchlist source could not be reached and the
	// result must be treated as unscored/high-risk, never as a clean pass.
	Unavailable bool `json:"unavailable,omitempty"`
}

// Matched reports whether any entry exceeded the screening threshold.
func (r SanctionsResult) Matched() bool { return len(r.Matches) > 0 }

// VelocityResult is recomputed per evaluation, never persisted on its own
type VelocityResult struct {
	Window      time.Duration   `json:"window"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Breached    bool            `json:"breached"`
	// Unknown means the history source was unavailable; treated as a risk
	// penalty, not a hard block.
	Unknown bool `json:"unknown,omitempty"`
}

// RiskBreakdown records the weighted sub-scores behind an overall score
type RiskBreakdown struct {
	OverallScore     int       `json:"overall_score"`
	Level            RiskLevel `json:"level"`
	KYCScore         int       `json:"kyc_score"`
	SanctionsScore   int       `json:"sanctions_score"`
	TransactionScore int       `json:"transaction_score"`
	GeographicScore  int       `json:"geographic_score"`
	VelocityScore    int       `json:"velocity_score"`
	RiskFactors      []string  `json:"risk_factors,omitempty"`
}

// ComplianceCheck is the decision record for one transaction evaluation.
// Created once per request; status transitions only through the manual
// review state machine. Never deleted.
type ComplianceCheck struct {
	CheckID        uuid.UUID       `json:"check_id" db:"check_id"`
	OrganizationID uuid.UUID       `json:"organization_id" db:"organization_id"`
	BranchID       *uuid.UUID      `json:"branch_id,omitempty" db:"branch_id"`
	CustomerID     uuid.UUID       `json:"customer_id" db:"customer_id"`
	AccountID      uuid.UUID       `json:"account_id" db:"account_id"`
	TransactionID  *uuid.UUID      `json:"transaction_id,omitempty" db:"transaction_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Currency       string          `json:"currency" db:"currency"`
	TransactionType string         `json:"transaction_type" db:"transaction_type"`

	Status    CheckStatus `json:"status" db:"status"`
	Reason    string      `json:"reason,omitempty" db:"reason"`
	RiskScore int         `json:"risk_score" db:"risk_score"`
	RiskLevel RiskLevel   `json:"risk_level" db:"risk_level"`

	RulesEvaluated []uuid.UUID `json:"rules_evaluated" db:"rules_evaluated"`
	RulesTriggered []uuid.UUID `json:"rules_triggered" db:"rules_triggered"`

	SanctionsMatches []SanctionMatch `json:"sanctions_matches,omitempty" db:"sanctions_matches"`
	Velocity         *VelocityResult `json:"velocity,omitempty" db:"velocity"`
	Breakdown        *RiskBreakdown  `json:"breakdown,omitempty" db:"breakdown"`
	FlaggedForSAR    bool            `json:"flagged_for_sar" db:"flagged_for_sar"`

	ReviewedBy  *uuid.UUID `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNotes string     `json:"review_notes,omitempty" db:"review_notes"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// InReview reports whether the check is awaiting a manual decision.
func (c *ComplianceCheck) InReview() bool { return c.Status == CheckReview }

// Terminal reports whether no further transitions are allowed.
func (c *ComplianceCheck) Terminal() bool {
	return c.Status == CheckApproved || c.Status == CheckBlocked || c.Status == CheckExpired
}

// LedgerMetadata is the payload the caller attaches to its ledger posting.
func (c *ComplianceCheck) LedgerMetadata() map[string]string {
	evaluated := make([]byte, 0, len(c.RulesEvaluated)*37)
	for i, id := range c.RulesEvaluated {
		if i > 0 {
			evaluated = append(evaluated, ',')
		}
		evaluated = append(evaluated, id.String()...)
	}
	triggered := make([]byte, 0, len(c.RulesTriggered)*37)
	for i, id := range c.RulesTriggered {
		if i > 0 {
			triggered = append(triggered, ',')
		}
		triggered = append(triggered, id.String()...)
	}
	return map[string]string{
		"compliance_check_id": c.CheckID.String(),
		"status":              string(c.Status),
		"risk_score":          decimal.NewFromInt(int64(c.RiskScore)).String(),
		"risk_level":          string(c.RiskLevel),
		"rules_evaluated":     string(evaluated),
		"rules_triggered":     string(triggered),
	}
}
