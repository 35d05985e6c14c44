package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertType categorizes compliance alerts
type AlertType string

const (
	AlertBlockedTransaction    AlertType = "BLOCKED_TRANSACTION"
	AlertSanctionsMatch        AlertType = "SANCTIONS_MATCH"
	AlertHighRiskScore         AlertType = "HIGH_RISK_SCORE"
	AlertVelocityBreach        AlertType = "VELOCITY_BREACH"
	AlertDependencyUnavailable AlertType = "DEPENDENCY_UNAVAILABLE"
	AlertSARRequired           AlertType = "SAR_REQUIRED"
	AlertReviewOverdue         AlertType = "REVIEW_OVERDUE"
	AlertManual                AlertType = "MANUAL"
)

// ComplianceAlert is raised for operational visibility and as a SAR trigger.
// The description never carries the full sanctions-match rationale; that
// stays on the check record behind authorized access.
type ComplianceAlert struct {
	AlertID        uuid.UUID  `json:"alert_id" db:"alert_id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	CustomerID     *uuid.UUID `json:"customer_id,omitempty" db:"customer_id"`
	CheckID        *uuid.UUID `json:"check_id,omitempty" db:"check_id"`
	AlertType      AlertType  `json:"alert_type" db:"alert_type"`
	Severity       RiskLevel  `json:"severity" db:"severity"`
	Title          string     `json:"title" db:"title"`
	Description    string     `json:"description,omitempty" db:"description"`
	SARFlagged     bool       `json:"sar_flagged" db:"sar_flagged"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// NewComplianceAlert builds an alert with a fresh id and timestamp.
func NewComplianceAlert(orgID uuid.UUID, alertType AlertType, severity RiskLevel, title string) *ComplianceAlert {
	return &ComplianceAlert{
		AlertID:        uuid.New(),
		OrganizationID: orgID,
		AlertType:      alertType,
		Severity:       severity,
		Title:          title,
		CreatedAt:      time.Now().UTC(),
	}
}
