package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportType distinguishes the statutory report variants
type ReportType string

const (
	ReportCTR ReportType = "CTR"
	ReportSAR ReportType = "SAR"
)

// ReportStatus is the lifecycle state of a regulatory report
type ReportStatus string

const (
	ReportDraft         ReportStatus = "DRAFT"
	ReportPendingReview ReportStatus = "PENDING_REVIEW"
	ReportApproved      ReportStatus = "APPROVED"
	ReportFiled         ReportStatus = "FILED"
	ReportRejected      ReportStatus = "REJECTED"
)

// ReportPriority is the urgency of a report
type ReportPriority string

const (
	PriorityLow      ReportPriority = "LOW"
	PriorityNormal   ReportPriority = "NORMAL"
	PriorityHigh     ReportPriority = "HIGH"
	PriorityCritical ReportPriority = "CRITICAL"
)

// SuspiciousActivityType classifies SAR activity
type SuspiciousActivityType string

const (
	ActivityStructuring        SuspiciousActivityType = "STRUCTURING"
	ActivityMoneyLaundering    SuspiciousActivityType = "MONEY_LAUNDERING"
	ActivityTerroristFinancing SuspiciousActivityType = "TERRORIST_FINANCING"
	ActivityFraud              SuspiciousActivityType = "FRAUD"
	ActivitySanctionsEvasion   SuspiciousActivityType = "SANCTIONS_EVASION"
	ActivityUnknownUnusual     SuspiciousActivityType = "UNKNOWN_UNUSUAL"
)

// SARNarrativeMinLength is the statutory minimum narrative length.
const SARNarrativeMinLength = 50

// ReportSubject is an identity snapshot of the customer the report covers.
// SSN/identification fields are encrypted at rest by the report repository.
type ReportSubject struct {
	CustomerID           uuid.UUID `json:"customer_id" db:"customer_id"`
	FirstName            string    `json:"first_name" db:"first_name"`
	LastName             string    `json:"last_name" db:"last_name"`
	EntityName           string    `json:"entity_name,omitempty" db:"entity_name"`
	Email                string    `json:"email,omitempty" db:"email"`
	Phone                string    `json:"phone,omitempty" db:"phone"`
	Country              string    `json:"country,omitempty" db:"country"`
	IdentificationNumber string    `json:"-" db:"identification_number"`
	PoliticallyExposed   bool      `json:"politically_exposed" db:"politically_exposed"`
}

// RegulatoryReport is the shared shape of CTRs and SARs.
// A filed report is immutable; only DRAFT and PENDING_REVIEW may be edited.
type RegulatoryReport struct {
	ReportID       uuid.UUID      `json:"report_id" db:"report_id"`
	OrganizationID uuid.UUID      `json:"organization_id" db:"organization_id"`
	BranchID       *uuid.UUID     `json:"branch_id,omitempty" db:"branch_id"`
	ReportType     ReportType     `json:"report_type" db:"report_type"`
	Status         ReportStatus   `json:"status" db:"status"`
	Priority       ReportPriority `json:"priority" db:"priority"`

	Subjects       []ReportSubject `json:"subjects" db:"subjects"`
	TransactionIDs []uuid.UUID     `json:"transaction_ids" db:"transaction_ids"`
	TotalAmount    decimal.Decimal `json:"total_amount" db:"total_amount"`
	Currency       string          `json:"currency" db:"currency"`

	// CTR aggregation key: org + customer + UTC day of the window start.
	// The repository enforces uniqueness on it so a sweep re-run never
	// creates a second draft for the same window.
	AggregationKey string     `json:"aggregation_key,omitempty" db:"aggregation_key"`
	WindowStart    *time.Time `json:"window_start,omitempty" db:"window_start"`
	WindowEnd      *time.Time `json:"window_end,omitempty" db:"window_end"`

	// SAR-only fields
	Narrative         string                   `json:"narrative,omitempty" db:"narrative"`
	ActivityTypes     []SuspiciousActivityType `json:"activity_types,omitempty" db:"activity_types"`
	ComplianceCheckID *uuid.UUID               `json:"compliance_check_id,omitempty" db:"compliance_check_id"`
	AlertIDs          []uuid.UUID              `json:"alert_ids,omitempty" db:"alert_ids"`

	PreparedBy uuid.UUID   `json:"prepared_by" db:"prepared_by"`
	Approvals  []uuid.UUID `json:"approvals,omitempty" db:"approvals"`
	ReviewedBy *uuid.UUID  `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt *time.Time  `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNotes string     `json:"review_notes,omitempty" db:"review_notes"`
	RejectionReason string `json:"rejection_reason,omitempty" db:"rejection_reason"`

	FiledBy          *uuid.UUID `json:"filed_by,omitempty" db:"filed_by"`
	FiledAt          *time.Time `json:"filed_at,omitempty" db:"filed_at"`
	FilingIdentifier string     `json:"filing_identifier,omitempty" db:"filing_identifier"`

	EscalatedAt *time.Time `json:"escalated_at,omitempty" db:"escalated_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Editable reports whether the report content may still change.
func (r *RegulatoryReport) Editable() bool {
	return r.Status == ReportDraft || r.Status == ReportPendingReview
}

// CanTransition checks the lifecycle graph:
// DRAFT → PENDING_REVIEW → APPROVED → FILED, PENDING_REVIEW → REJECTED.
func (r *RegulatoryReport) CanTransition(to ReportStatus) bool {
	switch r.Status {
	case ReportDraft:
		return to == ReportPendingReview
	case ReportPendingReview:
		return to == ReportApproved || to == ReportRejected
	case ReportApproved:
		return to == ReportFiled
	default:
		return false
	}
}

// ValidateForSubmission checks the constraints a report must meet before it
// leaves DRAFT.
func (r *RegulatoryReport) ValidateForSubmission() error {
	if len(r.TransactionIDs) == 0 {
		return NewError(KindInvalidInput, "report requires at least one contributing transaction")
	}
	if len(r.Subjects) == 0 {
		return NewError(KindInvalidInput, "report requires at least one subject")
	}
	if r.ReportType == ReportSAR {
		if len(strings.TrimSpace(r.Narrative)) < SARNarrativeMinLength {
			return NewError(KindInvalidInput, "SAR narrative must be at least %d characters", SARNarrativeMinLength)
		}
		if len(r.ActivityTypes) == 0 {
			return NewError(KindInvalidInput, "SAR requires at least one activity classification")
		}
	}
	return nil
}

// HasDualApproval reports whether two distinct reviewers approved.
func (r *RegulatoryReport) HasDualApproval() bool {
	seen := make(map[uuid.UUID]struct{}, len(r.Approvals))
	for _, id := range r.Approvals {
		seen[id] = struct{}{}
	}
	return len(seen) >= 2
}

// CTRAggregationKey builds the natural idempotence key for a CTR window.
func CTRAggregationKey(orgID, customerID uuid.UUID, windowStart time.Time) string {
	return orgID.String() + ":" + customerID.String() + ":" + windowStart.UTC().Format("2006-01-02")
}

// ReportingConfig is the per-organization regulatory reporting policy
type ReportingConfig struct {
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`

	CTREnabled              bool            `json:"ctr_enabled" db:"ctr_enabled"`
	CTRThreshold            decimal.Decimal `json:"ctr_threshold" db:"ctr_threshold"`
	CTRAutoGenerate         bool            `json:"ctr_auto_generate" db:"ctr_auto_generate"`
	CTRAggregationWindow    time.Duration   `json:"ctr_aggregation_window" db:"ctr_aggregation_window"`

	SAREnabled            bool `json:"sar_enabled" db:"sar_enabled"`
	SARAutoFlag           bool `json:"sar_auto_flag" db:"sar_auto_flag"`
	SARRiskScoreThreshold int  `json:"sar_risk_score_threshold" db:"sar_risk_score_threshold"`

	RequireDualApproval bool          `json:"require_dual_approval" db:"require_dual_approval"`
	AutoFileReports     bool          `json:"auto_file_reports" db:"auto_file_reports"`
	ReviewSLA           time.Duration `json:"review_sla" db:"review_sla"`
	RetentionDays       int           `json:"retention_days" db:"retention_days"`
}

// DefaultReportingConfig returns the reference-behavior defaults.
func DefaultReportingConfig(orgID uuid.UUID) ReportingConfig {
	return ReportingConfig{
		OrganizationID:       orgID,
		CTREnabled:           true,
		CTRThreshold:         decimal.NewFromInt(10000),
		CTRAutoGenerate:      true,
		CTRAggregationWindow: 24 * time.Hour,
		SAREnabled:           true,
		SARAutoFlag:          false,
		SARRiskScoreThreshold: 75,
		RequireDualApproval:  true,
		AutoFileReports:      false,
		ReviewSLA:            48 * time.Hour,
		RetentionDays:        1825,
	}
}
