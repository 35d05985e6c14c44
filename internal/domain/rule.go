package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleType categorizes what a compliance rule monitors
type RuleType string

const (
	RuleTypeVelocity        RuleType = "VELOCITY"
	RuleTypeGeoFencing      RuleType = "GEO_FENCING"
	RuleTypeAmountThreshold RuleType = "AMOUNT_THRESHOLD"
	RuleTypeKYCGate         RuleType = "KYC_GATE"
	RuleTypeCustom          RuleType = "CUSTOM"
)

// RuleAction is the action taken when a rule fires
type RuleAction string

const (
	ActionAllow  RuleAction = "ALLOW"
	ActionBlock  RuleAction = "BLOCK"
	ActionReview RuleAction = "REVIEW"
	ActionAlert  RuleAction = "ALERT"
	ActionLog    RuleAction = "LOG"
)

// actionPrecedence orders conflicting actions from most to least severe.
// BLOCK > REVIEW > ALERT > LOG > ALLOW.
var actionPrecedence = map[RuleAction]int{
	ActionBlock:  5,
	ActionReview: 4,
	ActionAlert:  3,
	ActionLog:    2,
	ActionAllow:  1,
}

// Severity returns the precedence rank of an action; higher wins.
func (a RuleAction) Severity() int { return actionPrecedence[a] }

// RuleSeverity tags how serious a rule violation is
type RuleSeverity string

const (
	SeverityInfo     RuleSeverity = "INFO"
	SeverityLow      RuleSeverity = "LOW"
	SeverityMedium   RuleSeverity = "MEDIUM"
	SeverityHigh     RuleSeverity = "HIGH"
	SeverityCritical RuleSeverity = "CRITICAL"
)

// ConditionOperator is the enumerated comparison operator set
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "EQUALS"
	OpNotEquals   ConditionOperator = "NOT_EQUALS"
	OpGreaterThan ConditionOperator = "GREATER_THAN"
	OpLessThan    ConditionOperator = "LESS_THAN"
	OpIn          ConditionOperator = "IN"
	OpNotIn       ConditionOperator = "NOT_IN"
	OpContains    ConditionOperator = "CONTAINS"
	OpRegexMatch  ConditionOperator = "REGEX_MATCH"
)

// ValueKind tags the type of a condition's comparison value
type ValueKind string

const (
	ValueNumber ValueKind = "NUMBER"
	ValueString ValueKind = "STRING"
	ValueList   ValueKind = "LIST"
	ValueBool   ValueKind = "BOOL"
)

// ConditionLogic combines a rule's conditions
type ConditionLogic string

const (
	LogicAnd ConditionLogic = "AND"
	LogicOr  ConditionLogic = "OR"
)

// operatorKinds lists the value kinds each operator accepts. Incompatible
// pairs are rejected at rule creation, not at evaluation.
var operatorKinds = map[ConditionOperator][]ValueKind{
	OpEquals:      {ValueNumber, ValueString, ValueBool},
	OpNotEquals:   {ValueNumber, ValueString, ValueBool},
	OpGreaterThan: {ValueNumber},
	OpLessThan:    {ValueNumber},
	OpIn:          {ValueList},
	OpNotIn:       {ValueList},
	OpContains:    {ValueString},
	OpRegexMatch:  {ValueString},
}

// RuleCondition is one comparison against the transaction context.
// Field is a dot-path into the context (e.g. "amount", "customer.kyc_status").
type RuleCondition struct {
	Field       string            `json:"field" db:"field"`
	Operator    ConditionOperator `json:"operator" db:"operator"`
	ValueKind   ValueKind         `json:"value_kind" db:"value_kind"`
	NumberValue *decimal.Decimal  `json:"number_value,omitempty" db:"number_value"`
	StringValue *string           `json:"string_value,omitempty" db:"string_value"`
	ListValue   []string          `json:"list_value,omitempty" db:"list_value"`
	BoolValue   *bool             `json:"bool_value,omitempty" db:"bool_value"`
}

// Validate checks operator/value-kind compatibility and that the value slot
// matching the declared kind is populated.
func (c RuleCondition) Validate() error {
	if strings.TrimSpace(c.Field) == "" {
		return NewError(KindInvalidInput, "condition field is required")
	}
	kinds, ok := operatorKinds[c.Operator]
	if !ok {
		return NewError(KindInvalidInput, "unknown operator %q", c.Operator)
	}
	compatible := false
	for _, k := range kinds {
		if k == c.ValueKind {
			compatible = true
			break
		}
	}
	if !compatible {
		return NewError(KindInvalidInput, "operator %s is incompatible with value kind %s", c.Operator, c.ValueKind)
	}
	switch c.ValueKind {
	case ValueNumber:
		if c.NumberValue == nil {
			return NewError(KindInvalidInput, "number value required for field %s", c.Field)
		}
	case ValueString:
		if c.StringValue == nil {
			return NewError(KindInvalidInput, "string value required for field %s", c.Field)
		}
		if c.Operator == OpRegexMatch {
			if _, err := regexp.Compile(*c.StringValue); err != nil {
				return WrapError(KindInvalidInput, err, "invalid regex for field %s", c.Field)
			}
		}
	case ValueList:
		if len(c.ListValue) == 0 {
			return NewError(KindInvalidInput, "list value required for field %s", c.Field)
		}
	case ValueBool:
		if c.BoolValue == nil {
			return NewError(KindInvalidInput, "bool value required for field %s", c.Field)
		}
	default:
		return NewError(KindInvalidInput, "unknown value kind %q", c.ValueKind)
	}
	return nil
}

// ComplianceRule is an organization-scoped, versioned rule configuration.
// Rules are never mutated mid-evaluation; the engine reads a snapshot.
type ComplianceRule struct {
	RuleID          uuid.UUID       `json:"rule_id" db:"rule_id"`
	OrganizationID  uuid.UUID       `json:"organization_id" db:"organization_id"`
	Name            string          `json:"name" db:"name"`
	Description     string          `json:"description" db:"description"`
	RuleType        RuleType        `json:"rule_type" db:"rule_type"`
	Conditions      []RuleCondition `json:"conditions" db:"conditions"`
	ConditionLogic  ConditionLogic  `json:"condition_logic" db:"condition_logic"`
	Action          RuleAction      `json:"action" db:"action"`
	Severity        RuleSeverity    `json:"severity" db:"severity"`
	RiskScoreImpact int             `json:"risk_score_impact" db:"risk_score_impact"`
	Message         string          `json:"message" db:"message"`
	Enabled         bool            `json:"enabled" db:"enabled"`
	Priority        int             `json:"priority" db:"priority"` // lower = evaluated first, tie-break winner
	Version         int             `json:"version" db:"version"`
	CreatedBy       *uuid.UUID      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Validate checks the whole rule at creation/update time.
func (r *ComplianceRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewError(KindInvalidInput, "rule name is required")
	}
	switch r.RuleType {
	case RuleTypeVelocity, RuleTypeGeoFencing, RuleTypeAmountThreshold, RuleTypeKYCGate, RuleTypeCustom:
	default:
		return NewError(KindInvalidInput, "unknown rule type %q", r.RuleType)
	}
	if _, ok := actionPrecedence[r.Action]; !ok {
		return NewError(KindInvalidInput, "unknown rule action %q", r.Action)
	}
	if r.ConditionLogic != LogicAnd && r.ConditionLogic != LogicOr {
		return NewError(KindInvalidInput, "condition logic must be AND or OR")
	}
	if len(r.Conditions) == 0 {
		return NewError(KindInvalidInput, "rule requires at least one condition")
	}
	if r.RiskScoreImpact < 0 || r.RiskScoreImpact > 100 {
		return NewError(KindInvalidInput, "risk score impact must be in [0,100]")
	}
	if r.Priority < 1 {
		return NewError(KindInvalidInput, "priority must be >= 1")
	}
	for _, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RuleEvaluationResult is the per-rule outcome of an evaluation pass
type RuleEvaluationResult struct {
	RuleID          uuid.UUID    `json:"rule_id"`
	RuleName        string       `json:"rule_name"`
	Priority        int          `json:"priority"`
	Triggered       bool         `json:"triggered"`
	Action          RuleAction   `json:"action,omitempty"`
	Severity        RuleSeverity `json:"severity,omitempty"`
	Message         string       `json:"message,omitempty"`
	RiskScoreImpact int          `json:"risk_score_impact"`
	EvaluatedAt     time.Time    `json:"evaluated_at"`
}

func numberValue(d decimal.Decimal) *decimal.Decimal { return &d }
func stringValue(s string) *string                   { return &s }

// Prebuilt rule templates for seeding a new organization.

// HighValueReviewRule flags transactions above the amount for manual review.
func HighValueReviewRule(orgID uuid.UUID, amount decimal.Decimal) *ComplianceRule {
	return &ComplianceRule{
		RuleID:         uuid.New(),
		OrganizationID: orgID,
		Name:           "High Value Transaction",
		Description:    "Flag transactions above a threshold for review",
		RuleType:       RuleTypeAmountThreshold,
		Conditions: []RuleCondition{{
			Field: "amount", Operator: OpGreaterThan, ValueKind: ValueNumber, NumberValue: numberValue(amount),
		}},
		ConditionLogic:  LogicAnd,
		Action:          ActionReview,
		Severity:        SeverityHigh,
		RiskScoreImpact: 20,
		Message:         "Transaction amount requires manual review",
		Enabled:         true,
		Priority:        100,
		Version:         1,
		CreatedAt:       time.Now().UTC(),
	}
}

// BlockedCountryRule blocks transactions destined for the listed countries.
func BlockedCountryRule(orgID uuid.UUID, countries []string) *ComplianceRule {
	return &ComplianceRule{
		RuleID:         uuid.New(),
		OrganizationID: orgID,
		Name:           "Blocked Country",
		Description:    "Block transactions to sanctioned destinations",
		RuleType:       RuleTypeGeoFencing,
		Conditions: []RuleCondition{{
			Field: "destination_country", Operator: OpIn, ValueKind: ValueList, ListValue: countries,
		}},
		ConditionLogic:  LogicAnd,
		Action:          ActionBlock,
		Severity:        SeverityCritical,
		RiskScoreImpact: 50,
		Message:         "Destination country is blocked",
		Enabled:         true,
		Priority:        10,
		Version:         1,
		CreatedAt:       time.Now().UTC(),
	}
}

// UnverifiedKYCRule blocks transactions for customers without verified KYC.
func UnverifiedKYCRule(orgID uuid.UUID) *ComplianceRule {
	return &ComplianceRule{
		RuleID:         uuid.New(),
		OrganizationID: orgID,
		Name:           "Unverified KYC",
		Description:    "Block transactions for customers without verified KYC",
		RuleType:       RuleTypeKYCGate,
		Conditions: []RuleCondition{{
			Field: "kyc_status", Operator: OpNotEquals, ValueKind: ValueString, StringValue: stringValue(string(KYCVerified)),
		}},
		ConditionLogic:  LogicAnd,
		Action:          ActionBlock,
		Severity:        SeverityHigh,
		RiskScoreImpact: 40,
		Message:         "KYC verification required",
		Enabled:         true,
		Priority:        20,
		Version:         1,
		CreatedAt:       time.Now().UTC(),
	}
}

// DailyVelocityRule alerts when the trailing-day transaction count is exceeded.
func DailyVelocityRule(orgID uuid.UUID, maxCount int64) *ComplianceRule {
	limit := decimal.NewFromInt(maxCount)
	return &ComplianceRule{
		RuleID:         uuid.New(),
		OrganizationID: orgID,
		Name:           "Daily Transaction Limit",
		Description:    "Alert when a customer exceeds the daily transaction count",
		RuleType:       RuleTypeVelocity,
		Conditions: []RuleCondition{{
			Field: "velocity.count", Operator: OpGreaterThan, ValueKind: ValueNumber, NumberValue: &limit,
		}},
		ConditionLogic:  LogicAnd,
		Action:          ActionAlert,
		Severity:        SeverityMedium,
		RiskScoreImpact: 15,
		Message:         "Daily transaction count limit exceeded",
		Enabled:         true,
		Priority:        50,
		Version:         1,
		CreatedAt:       time.Now().UTC(),
	}
}
