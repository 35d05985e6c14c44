package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/screening"
)

// RuleFilter narrows rule listings.
type RuleFilter struct {
	OrganizationID *uuid.UUID
	RuleType       *domain.RuleType
	EnabledOnly    bool
	Limit          int
	Offset         int
}

// RuleRepository persists compliance rule configurations.
type RuleRepository interface {
	Create(ctx context.Context, rule *domain.ComplianceRule) error
	GetByID(ctx context.Context, ruleID uuid.UUID) (*domain.ComplianceRule, error)
	// Update bumps Version and fails with KindNotFound if the rule is gone.
	Update(ctx context.Context, rule *domain.ComplianceRule) error
	Delete(ctx context.Context, ruleID uuid.UUID) error
	List(ctx context.Context, filter RuleFilter) ([]*domain.ComplianceRule, error)
	// ActiveForOrganization returns the enabled rules, ordered by priority.
	ActiveForOrganization(ctx context.Context, orgID uuid.UUID) ([]*domain.ComplianceRule, error)
}

// CheckFilter narrows check listings.
type CheckFilter struct {
	OrganizationID *uuid.UUID
	CustomerID     *uuid.UUID
	Status         *domain.CheckStatus
	FlaggedForSAR  *bool
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	Limit          int
	Offset         int
}

// CheckRepository persists compliance check decision records.
// Checks are never deleted.
type CheckRepository interface {
	Create(ctx context.Context, check *domain.ComplianceCheck) error
	GetByID(ctx context.Context, checkID uuid.UUID) (*domain.ComplianceCheck, error)
	List(ctx context.Context, filter CheckFilter) ([]*domain.ComplianceCheck, error)
	// UpdateStatus transitions the check only if it is currently in
	// expected; otherwise it fails with KindInvalidStateTransition.
	UpdateStatus(ctx context.Context, check *domain.ComplianceCheck, expected domain.CheckStatus) error
	// ExpireOlderThan moves stale REVIEW checks to EXPIRED, returning the
	// ids it transitioned.
	ExpireOlderThan(ctx context.Context, orgID uuid.UUID, cutoff time.Time) ([]uuid.UUID, error)
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	OrganizationID *uuid.UUID
	ReportType     *domain.ReportType
	Status         *domain.ReportStatus
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	Limit          int
	Offset         int
}

// ReportRepository persists regulatory reports.
type ReportRepository interface {
	// Create fails with KindPolicyViolation when a report with the same
	// aggregation key already exists.
	Create(ctx context.Context, report *domain.RegulatoryReport) error
	GetByID(ctx context.Context, reportID uuid.UUID) (*domain.RegulatoryReport, error)
	GetByAggregationKey(ctx context.Context, orgID uuid.UUID, key string) (*domain.RegulatoryReport, error)
	List(ctx context.Context, filter ReportFilter) ([]*domain.RegulatoryReport, error)
	// Update persists content changes for editable reports.
	Update(ctx context.Context, report *domain.RegulatoryReport) error
	// UpdateStatus transitions only from the expected status.
	UpdateStatus(ctx context.Context, report *domain.RegulatoryReport, expected domain.ReportStatus) error
	// PendingReviewOlderThan returns unescalated reports whose review SLA lapsed.
	PendingReviewOlderThan(ctx context.Context, orgID uuid.UUID, cutoff time.Time) ([]*domain.RegulatoryReport, error)
}

// TransactionRepository is the transaction-history read surface.
type TransactionRepository interface {
	Record(ctx context.Context, tx *domain.Transaction) error
	RecentByCustomer(ctx context.Context, orgID, customerID uuid.UUID, since time.Time) ([]domain.Transaction, error)
	// WindowByOrganization returns the organization's transactions in the
	// window, for the CTR sweep to group per customer.
	WindowByOrganization(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]domain.Transaction, error)
}

// SettingsRepository serves organization policy and branch overrides.
type SettingsRepository interface {
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*domain.OrganizationComplianceSettings, error)
	PutOrganization(ctx context.Context, settings *domain.OrganizationComplianceSettings) error
	GetBranchOverride(ctx context.Context, branchID uuid.UUID) (*domain.BranchComplianceOverride, error)
	PutBranchOverride(ctx context.Context, override *domain.BranchComplianceOverride) error
	GetReportingConfig(ctx context.Context, orgID uuid.UUID) (*domain.ReportingConfig, error)
	PutReportingConfig(ctx context.Context, cfg *domain.ReportingConfig) error
	ListOrganizations(ctx context.Context) ([]uuid.UUID, error)
}

// AlertRepository persists compliance alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *domain.ComplianceAlert) error
	GetByID(ctx context.Context, alertID uuid.UUID) (*domain.ComplianceAlert, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*domain.ComplianceAlert, error)
	// UnflaggedSARCandidates returns alerts eligible for SAR flagging.
	UnflaggedSARCandidates(ctx context.Context, orgID uuid.UUID) ([]*domain.ComplianceAlert, error)
	MarkSARFlagged(ctx context.Context, alertIDs []uuid.UUID) error
}

// AuditRepository is the append-only state-transition log.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, filter domain.AuditEntryFilter) ([]*domain.AuditEntry, error)
}

// WatchlistRepository stores sanctions watchlist entries and doubles as the
// screening provider.
type WatchlistRepository interface {
	screening.WatchlistProvider
	ReplaceList(ctx context.Context, source domain.SanctionListSource, entries []screening.WatchlistEntry) error
}
