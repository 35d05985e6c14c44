package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComplianceLevel orders organization policy strictness
type ComplianceLevel string

const (
	LevelBasic    ComplianceLevel = "BASIC"
	LevelStandard ComplianceLevel = "STANDARD"
	LevelStrict   ComplianceLevel = "STRICT"
)

var complianceLevelRank = map[ComplianceLevel]int{
	LevelBasic:    1,
	LevelStandard: 2,
	LevelStrict:   3,
}

// Stricter returns the stricter of two levels on the basic<standard<strict scale.
func Stricter(a, b ComplianceLevel) ComplianceLevel {
	if complianceLevelRank[b] > complianceLevelRank[a] {
		return b
	}
	return a
}

// OrganizationStatus gates whether an organization may transact at all
type OrganizationStatus string

const (
	OrgActive    OrganizationStatus = "ACTIVE"
	OrgSuspended OrganizationStatus = "SUSPENDED"
	OrgBlocked   OrganizationStatus = "BLOCKED"
)

// OrganizationComplianceSettings is the per-organization policy read by the
// orchestrator. Branch overrides may only tighten it, never loosen.
type OrganizationComplianceSettings struct {
	OrganizationID uuid.UUID          `json:"organization_id" db:"organization_id"`
	Status         OrganizationStatus `json:"status" db:"status"`
	Level          ComplianceLevel    `json:"level" db:"level"`

	EnableSanctionsScreening bool `json:"enable_sanctions_screening" db:"enable_sanctions_screening"`
	EnableVelocityMonitoring bool `json:"enable_velocity_monitoring" db:"enable_velocity_monitoring"`
	EnablePEPScreening       bool `json:"enable_pep_screening" db:"enable_pep_screening"`

	MaxTransactionAmount *decimal.Decimal `json:"max_transaction_amount,omitempty" db:"max_transaction_amount"`
	ManualReviewAmount   *decimal.Decimal `json:"manual_review_amount,omitempty" db:"manual_review_amount"`
	RestrictedCountries  []string         `json:"restricted_countries" db:"restricted_countries"`
	AllowedCurrencies    []string         `json:"allowed_currencies" db:"allowed_currencies"`
	AllowInternational   bool             `json:"allow_international" db:"allow_international"`

	VelocityMaxCount  int              `json:"velocity_max_count" db:"velocity_max_count"`
	VelocityMaxAmount *decimal.Decimal `json:"velocity_max_amount,omitempty" db:"velocity_max_amount"`

	AutoBlockHighRisk  bool `json:"auto_block_high_risk" db:"auto_block_high_risk"`
	RiskScoreThreshold int  `json:"risk_score_threshold" db:"risk_score_threshold"` // default 75
}

// BranchComplianceOverride carries the subset of settings a branch may tighten
type BranchComplianceOverride struct {
	BranchID             uuid.UUID        `json:"branch_id" db:"branch_id"`
	OrganizationID       uuid.UUID        `json:"organization_id" db:"organization_id"`
	Level                *ComplianceLevel `json:"level,omitempty" db:"level"`
	MaxTransactionAmount *decimal.Decimal `json:"max_transaction_amount,omitempty" db:"max_transaction_amount"`
	ManualReviewAmount   *decimal.Decimal `json:"manual_review_amount,omitempty" db:"manual_review_amount"`
	RestrictedCountries  []string         `json:"restricted_countries,omitempty" db:"restricted_countries"`
}

// EffectiveSettings merges branch overrides into organization settings as a
// pure function: limits become min(org, branch), restricted country lists are
// unioned, and the effective level is the stricter of the two. Computed once
// per evaluation and passed explicitly.
func EffectiveSettings(org OrganizationComplianceSettings, branch *BranchComplianceOverride) OrganizationComplianceSettings {
	eff := org
	if branch == nil {
		return eff
	}
	if branch.Level != nil {
		eff.Level = Stricter(org.Level, *branch.Level)
	}
	eff.MaxTransactionAmount = minAmount(org.MaxTransactionAmount, branch.MaxTransactionAmount)
	eff.ManualReviewAmount = minAmount(org.ManualReviewAmount, branch.ManualReviewAmount)
	if len(branch.RestrictedCountries) > 0 {
		seen := make(map[string]struct{}, len(org.RestrictedCountries))
		merged := make([]string, 0, len(org.RestrictedCountries)+len(branch.RestrictedCountries))
		for _, c := range org.RestrictedCountries {
			seen[c] = struct{}{}
			merged = append(merged, c)
		}
		for _, c := range branch.RestrictedCountries {
			if _, ok := seen[c]; !ok {
				merged = append(merged, c)
			}
		}
		eff.RestrictedCountries = merged
	}
	return eff
}

func minAmount(a, b *decimal.Decimal) *decimal.Decimal {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.LessThan(*a) {
		return b
	}
	return a
}

// IsCountryRestricted checks the effective restricted country list.
func (s OrganizationComplianceSettings) IsCountryRestricted(country string) bool {
	for _, c := range s.RestrictedCountries {
		if c == country {
			return true
		}
	}
	return false
}

// IsCurrencyAllowed checks the currency allow-list; an empty list allows all.
func (s OrganizationComplianceSettings) IsCurrencyAllowed(currency string) bool {
	if len(s.AllowedCurrencies) == 0 {
		return true
	}
	for _, c := range s.AllowedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}
