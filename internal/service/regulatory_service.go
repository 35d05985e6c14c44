package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/metrics"
	"github.com/banking/compliance-engine/internal/repository"
)

// ReportArchiver writes an immutable copy of a filed report to object
// storage. Archiving happens before the FILED transition so a filing that
// cannot be archived never completes.
type ReportArchiver interface {
	ArchiveFiledReport(ctx context.Context, report *domain.RegulatoryReport) error
}

// ReportIndexer mirrors report metadata into the search index, best effort.
type ReportIndexer interface {
	IndexReport(ctx context.Context, report *domain.RegulatoryReport) error
}

// RegulatoryService runs the CTR/SAR lifecycle: generation, the review
// state machine with dual approval, and filing. Reports move only forward
// through DRAFT, PENDING_REVIEW, APPROVED, FILED; REJECTED is terminal.
type RegulatoryService struct {
	reports      repository.ReportRepository
	settingsRepo repository.SettingsRepository
	checks       repository.CheckRepository
	txns         repository.TransactionRepository
	alerts       repository.AlertRepository
	audit        repository.AuditRepository

	archiver ReportArchiver
	indexer  ReportIndexer

	logger *zap.Logger
}

func NewRegulatoryService(
	reports repository.ReportRepository,
	settingsRepo repository.SettingsRepository,
	checks repository.CheckRepository,
	txns repository.TransactionRepository,
	alerts repository.AlertRepository,
	audit repository.AuditRepository,
	archiver ReportArchiver,
	indexer ReportIndexer,
	logger *zap.Logger,
) *RegulatoryService {
	return &RegulatoryService{
		reports:      reports,
		settingsRepo: settingsRepo,
		checks:       checks,
		txns:         txns,
		alerts:       alerts,
		audit:        audit,
		archiver:     archiver,
		indexer:      indexer,
		logger:       logger,
	}
}

// ReportingConfig returns the organization's reporting policy, falling back
// to the statutory defaults when none is stored.
func (s *RegulatoryService) ReportingConfig(ctx context.Context, orgID uuid.UUID) (domain.ReportingConfig, error) {
	cfg, err := s.settingsRepo.GetReportingConfig(ctx, orgID)
	switch {
	case err == nil:
		return *cfg, nil
	case domain.KindOf(err) == domain.KindNotFound:
		return domain.DefaultReportingConfig(orgID), nil
	default:
		return domain.ReportingConfig{}, err
	}
}

// CheckCTRRequired reports whether a transaction obligates a CTR: either
// the single amount meets the threshold, or the customer's recorded
// same-currency transactions on that UTC day plus this amount do in
// aggregate. The threshold comparison is inclusive.
func (s *RegulatoryService) CheckCTRRequired(ctx context.Context, orgID, customerID uuid.UUID, date time.Time, amount decimal.Decimal, currency string) (bool, error) {
	cfg, err := s.ReportingConfig(ctx, orgID)
	if err != nil {
		return false, err
	}
	if !cfg.CTREnabled {
		return false, nil
	}
	if amount.GreaterThanOrEqual(cfg.CTRThreshold) {
		return true, nil
	}

	dayStart := date.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)
	history, err := s.txns.RecentByCustomer(ctx, orgID, customerID, dayStart)
	if err != nil {
		return false, fmt.Errorf("transaction history query failed: %w", err)
	}

	total := amount
	for _, tx := range history {
		if tx.OccurredAt.Before(dayEnd) && strings.EqualFold(tx.Currency, currency) {
			total = total.Add(tx.Amount)
		}
	}
	return total.GreaterThanOrEqual(cfg.CTRThreshold), nil
}

// GenerateCTRInput carries one customer's aggregation window.
type GenerateCTRInput struct {
	OrganizationID uuid.UUID
	BranchID       *uuid.UUID
	Subject        domain.ReportSubject
	WindowStart    time.Time
	WindowEnd      time.Time
	Transactions   []domain.Transaction
	PreparedBy     uuid.UUID
}

// GenerateCTR creates a draft currency transaction report for the window.
// Generation is idempotent per organization, customer and window day: a
// re-run returns the existing report instead of creating a duplicate.
func (s *RegulatoryService) GenerateCTR(ctx context.Context, in GenerateCTRInput) (*domain.RegulatoryReport, error) {
	if len(in.Transactions) == 0 {
		return nil, domain.NewError(domain.KindInvalidInput, "a CTR requires at least one contributing transaction")
	}

	key := domain.CTRAggregationKey(in.OrganizationID, in.Subject.CustomerID, in.WindowStart)
	if existing, err := s.reports.GetByAggregationKey(ctx, in.OrganizationID, key); err == nil {
		return existing, nil
	} else if domain.KindOf(err) != domain.KindNotFound {
		return nil, err
	}

	total := decimal.Zero
	txIDs := make([]uuid.UUID, 0, len(in.Transactions))
	currency := in.Transactions[0].Currency
	for _, tx := range in.Transactions {
		total = total.Add(tx.Amount)
		txIDs = append(txIDs, tx.TransactionID)
	}

	now := time.Now().UTC()
	windowStart := in.WindowStart.UTC()
	windowEnd := in.WindowEnd.UTC()
	report := &domain.RegulatoryReport{
		ReportID:       uuid.New(),
		OrganizationID: in.OrganizationID,
		BranchID:       in.BranchID,
		ReportType:     domain.ReportCTR,
		Status:         domain.ReportDraft,
		Priority:       domain.PriorityNormal,
		Subjects:       []domain.ReportSubject{in.Subject},
		TransactionIDs: txIDs,
		TotalAmount:    total,
		Currency:       currency,
		AggregationKey: key,
		WindowStart:    &windowStart,
		WindowEnd:      &windowEnd,
		PreparedBy:     in.PreparedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.reports.Create(ctx, report); err != nil {
		if domain.KindOf(err) == domain.KindPolicyViolation {
			// A concurrent sweep won the race; the stored report is the one.
			return s.reports.GetByAggregationKey(ctx, in.OrganizationID, key)
		}
		return nil, fmt.Errorf("report persistence failed: %w", err)
	}

	s.appendReportAudit(ctx, report.ReportID, in.PreparedBy, "", string(domain.ReportDraft), "CTR generated")
	metrics.ReportsGenerated.WithLabelValues(string(domain.ReportCTR)).Inc()
	s.logger.Info("ctr draft generated",
		zap.String("report_id", report.ReportID.String()),
		zap.String("organization_id", in.OrganizationID.String()),
		zap.String("aggregation_key", key))
	return report, nil
}

// GenerateSARInput carries the facts behind a suspicious activity report.
type GenerateSARInput struct {
	OrganizationID    uuid.UUID
	BranchID          *uuid.UUID
	Subjects          []domain.ReportSubject
	TransactionIDs    []uuid.UUID
	TotalAmount       decimal.Decimal
	Currency          string
	Narrative         string
	ActivityTypes     []domain.SuspiciousActivityType
	ComplianceCheckID *uuid.UUID
	AlertIDs          []uuid.UUID
	Priority          domain.ReportPriority
	PreparedBy        uuid.UUID
}

// GenerateSAR creates a draft suspicious activity report. The narrative and
// activity classification are validated up front so an unfileable draft is
// rejected at creation, not at submission.
func (s *RegulatoryService) GenerateSAR(ctx context.Context, in GenerateSARInput) (*domain.RegulatoryReport, error) {
	if len(strings.TrimSpace(in.Narrative)) < domain.SARNarrativeMinLength {
		return nil, domain.NewError(domain.KindInvalidInput,
			"SAR narrative must be at least %d characters", domain.SARNarrativeMinLength)
	}
	if len(in.ActivityTypes) == 0 {
		return nil, domain.NewError(domain.KindInvalidInput, "SAR requires at least one activity classification")
	}
	if len(in.Subjects) == 0 {
		return nil, domain.NewError(domain.KindInvalidInput, "SAR requires at least one subject")
	}

	if in.ComplianceCheckID != nil {
		if _, err := s.checks.GetByID(ctx, *in.ComplianceCheckID); err != nil {
			return nil, fmt.Errorf("linked compliance check: %w", err)
		}
	}

	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityHigh
	}

	now := time.Now().UTC()
	report := &domain.RegulatoryReport{
		ReportID:          uuid.New(),
		OrganizationID:    in.OrganizationID,
		BranchID:          in.BranchID,
		ReportType:        domain.ReportSAR,
		Status:            domain.ReportDraft,
		Priority:          priority,
		Subjects:          in.Subjects,
		TransactionIDs:    in.TransactionIDs,
		TotalAmount:       in.TotalAmount,
		Currency:          in.Currency,
		Narrative:         in.Narrative,
		ActivityTypes:     in.ActivityTypes,
		ComplianceCheckID: in.ComplianceCheckID,
		AlertIDs:          in.AlertIDs,
		PreparedBy:        in.PreparedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("report persistence failed: %w", err)
	}
	if len(in.AlertIDs) > 0 {
		if err := s.alerts.MarkSARFlagged(ctx, in.AlertIDs); err != nil {
			s.logger.Warn("failed to flag contributing alerts",
				zap.String("report_id", report.ReportID.String()),
				zap.Error(err))
		}
	}

	s.appendReportAudit(ctx, report.ReportID, in.PreparedBy, "", string(domain.ReportDraft), "SAR generated")
	metrics.ReportsGenerated.WithLabelValues(string(domain.ReportSAR)).Inc()
	// The narrative never reaches the log stream.
	s.logger.Info("sar draft generated",
		zap.String("report_id", report.ReportID.String()),
		zap.String("organization_id", in.OrganizationID.String()),
		zap.Int("subject_count", len(in.Subjects)))
	return report, nil
}

// UpdateDraft replaces the content of an editable report.
func (s *RegulatoryService) UpdateDraft(ctx context.Context, report *domain.RegulatoryReport) error {
	report.UpdatedAt = time.Now().UTC()
	return s.reports.Update(ctx, report)
}

// SubmitForReview moves a draft into the review queue after validating it
// is complete enough to file.
func (s *RegulatoryService) SubmitForReview(ctx context.Context, reportID, actorID uuid.UUID) (*domain.RegulatoryReport, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !report.CanTransition(domain.ReportPendingReview) {
		return nil, domain.NewError(domain.KindInvalidStateTransition,
			"report %s is %s, only DRAFT reports can be submitted", reportID, report.Status)
	}
	if err := report.ValidateForSubmission(); err != nil {
		return nil, err
	}

	report.Status = domain.ReportPendingReview
	report.UpdatedAt = time.Now().UTC()
	if err := s.reports.UpdateStatus(ctx, report, domain.ReportDraft); err != nil {
		return nil, err
	}
	s.appendReportAudit(ctx, reportID, actorID,
		string(domain.ReportDraft), string(domain.ReportPendingReview), "submitted for review")
	s.asyncIndexReport(report)
	return report, nil
}

// ApproveReport records one reviewer's approval. The report transitions to
// APPROVED only once the approval policy is satisfied; until then it stays
// in PENDING_REVIEW collecting approvals. The preparer cannot approve their
// own report, and a reviewer approving twice counts once.
func (s *RegulatoryService) ApproveReport(ctx context.Context, reportID, reviewerID uuid.UUID, notes string) (*domain.RegulatoryReport, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != domain.ReportPendingReview {
		return nil, domain.NewError(domain.KindInvalidStateTransition,
			"report %s is %s, only PENDING_REVIEW reports can be approved", reportID, report.Status)
	}
	if reviewerID == report.PreparedBy {
		return nil, domain.NewError(domain.KindPolicyViolation, "the preparer cannot approve their own report")
	}
	for _, id := range report.Approvals {
		if id == reviewerID {
			return nil, domain.NewError(domain.KindPolicyViolation, "reviewer has already approved this report")
		}
	}

	cfg, err := s.ReportingConfig(ctx, report.OrganizationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report.Approvals = append(report.Approvals, reviewerID)
	report.ReviewedBy = &reviewerID
	report.ReviewedAt = &now
	if notes != "" {
		report.ReviewNotes = notes
	}
	report.UpdatedAt = now

	approved := !cfg.RequireDualApproval || report.HasDualApproval()
	if !approved {
		if err := s.reports.Update(ctx, report); err != nil {
			return nil, err
		}
		s.appendReportAudit(ctx, reportID, reviewerID,
			string(domain.ReportPendingReview), string(domain.ReportPendingReview), "approval recorded, awaiting second approver")
		return report, nil
	}

	report.Status = domain.ReportApproved
	if err := s.reports.UpdateStatus(ctx, report, domain.ReportPendingReview); err != nil {
		return nil, err
	}
	s.appendReportAudit(ctx, reportID, reviewerID,
		string(domain.ReportPendingReview), string(domain.ReportApproved), notes)
	s.asyncIndexReport(report)
	s.logger.Info("report approved",
		zap.String("report_id", reportID.String()),
		zap.Int("approvals", len(report.Approvals)))
	return report, nil
}

// RejectReport returns a report to its preparer with a mandatory reason.
func (s *RegulatoryService) RejectReport(ctx context.Context, reportID, reviewerID uuid.UUID, reason string) (*domain.RegulatoryReport, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "a rejection reason is required")
	}
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != domain.ReportPendingReview {
		return nil, domain.NewError(domain.KindInvalidStateTransition,
			"report %s is %s, only PENDING_REVIEW reports can be rejected", reportID, report.Status)
	}

	now := time.Now().UTC()
	report.Status = domain.ReportRejected
	report.ReviewedBy = &reviewerID
	report.ReviewedAt = &now
	report.RejectionReason = reason
	report.UpdatedAt = now
	if err := s.reports.UpdateStatus(ctx, report, domain.ReportPendingReview); err != nil {
		return nil, err
	}
	s.appendReportAudit(ctx, reportID, reviewerID,
		string(domain.ReportPendingReview), string(domain.ReportRejected), reason)
	s.asyncIndexReport(report)
	return report, nil
}

// FileReport files an approved report with the regulator. The archive write
// happens before the FILED transition, so any failure leaves the report in
// APPROVED and the filing can be retried.
func (s *RegulatoryService) FileReport(ctx context.Context, reportID, filerID uuid.UUID) (*domain.RegulatoryReport, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != domain.ReportApproved {
		return nil, domain.NewError(domain.KindInvalidStateTransition,
			"report %s is %s, only APPROVED reports can be filed", reportID, report.Status)
	}

	cfg, err := s.ReportingConfig(ctx, report.OrganizationID)
	if err != nil {
		return nil, err
	}
	if cfg.RequireDualApproval && !report.HasDualApproval() {
		return nil, domain.NewError(domain.KindInvalidStateTransition,
			"report %s requires two distinct approvals before filing", reportID)
	}

	filingID, err := newFilingIdentifier()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	report.FilingIdentifier = filingID
	report.FiledBy = &filerID
	report.FiledAt = &now
	report.UpdatedAt = now

	if s.archiver != nil {
		if err := s.archiver.ArchiveFiledReport(ctx, report); err != nil {
			return nil, fmt.Errorf("report archive failed, filing aborted: %w", err)
		}
	}

	report.Status = domain.ReportFiled
	if err := s.reports.UpdateStatus(ctx, report, domain.ReportApproved); err != nil {
		return nil, err
	}

	s.appendReportAudit(ctx, reportID, filerID,
		string(domain.ReportApproved), string(domain.ReportFiled), "filed as "+filingID)
	s.asyncIndexReport(report)
	metrics.ReportsFiled.WithLabelValues(string(report.ReportType)).Inc()
	s.logger.Info("report filed",
		zap.String("report_id", reportID.String()),
		zap.String("report_type", string(report.ReportType)),
		zap.String("filing_identifier", filingID))
	return report, nil
}

// GetReport returns one report.
func (s *RegulatoryService) GetReport(ctx context.Context, reportID uuid.UUID) (*domain.RegulatoryReport, error) {
	return s.reports.GetByID(ctx, reportID)
}

// ListReports returns reports matching the filter.
func (s *RegulatoryService) ListReports(ctx context.Context, filter repository.ReportFilter) ([]*domain.RegulatoryReport, error) {
	return s.reports.List(ctx, filter)
}

// PutReportingConfig stores the organization's reporting policy.
func (s *RegulatoryService) PutReportingConfig(ctx context.Context, cfg *domain.ReportingConfig) error {
	return s.settingsRepo.PutReportingConfig(ctx, cfg)
}

// newFilingIdentifier builds a BSA-prefixed tracking identifier.
func newFilingIdentifier() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate filing identifier: %w", err)
	}
	return "BSA" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

func (s *RegulatoryService) appendReportAudit(ctx context.Context, reportID, actorID uuid.UUID, from, to, notes string) {
	entry := domain.NewAuditEntry(domain.AuditEntityReport, reportID, actorID, from, to, notes)
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append audit entry",
			zap.String("report_id", reportID.String()),
			zap.Error(err))
	}
}

func (s *RegulatoryService) asyncIndexReport(report *domain.RegulatoryReport) {
	if s.indexer == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in async report indexing", zap.Any("panic", r))
			}
		}()
		asyncCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.indexer.IndexReport(asyncCtx, report); err != nil {
			s.logger.Error("failed to index report",
				zap.String("report_id", report.ReportID.String()),
				zap.Error(err))
		}
	}()
}
