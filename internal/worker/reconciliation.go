package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/metrics"
	"github.com/banking/compliance-engine/internal/repository"
	"github.com/banking/compliance-engine/internal/service"
)

// Leaser serializes sweeps per organization across worker instances.
// Satisfied by the redis lease; nil runs unleased, for single-instance
// deployments and tests.
type Leaser interface {
	Acquire(ctx context.Context, orgID uuid.UUID) (bool, error)
	Release(ctx context.Context, orgID uuid.UUID) error
}

// Options tunes the reconciliation loop.
type Options struct {
	// Interval between sweep cycles.
	Interval time.Duration
	// SweepLookback is how far back the CTR sweep scans, so a cycle missed
	// during downtime is caught up on the next run.
	SweepLookback time.Duration
	// ReviewCheckTTL matches the orchestrator's REVIEW expiry window.
	ReviewCheckTTL time.Duration
}

func DefaultOptions() Options {
	return Options{
		Interval:       10 * time.Minute,
		SweepLookback:  48 * time.Hour,
		ReviewCheckTTL: 24 * time.Hour,
	}
}

// Reconciler is the background worker behind the decision engine: it
// generates the CTRs the evaluation path cannot see (aggregation across
// transactions), converts SAR-eligible alerts into drafts, escalates
// overdue reviews, and expires stale REVIEW checks. Every operation is
// idempotent so overlapping or repeated cycles are harmless.
type Reconciler struct {
	regulatory *service.RegulatoryService

	settingsRepo repository.SettingsRepository
	txns         repository.TransactionRepository
	checks       repository.CheckRepository
	reports      repository.ReportRepository
	alerts       repository.AlertRepository
	audit        repository.AuditRepository

	leaser Leaser
	opts   Options
	logger *zap.Logger
}

func NewReconciler(
	regulatory *service.RegulatoryService,
	settingsRepo repository.SettingsRepository,
	txns repository.TransactionRepository,
	checks repository.CheckRepository,
	reports repository.ReportRepository,
	alerts repository.AlertRepository,
	audit repository.AuditRepository,
	leaser Leaser,
	opts Options,
	logger *zap.Logger,
) *Reconciler {
	def := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.SweepLookback <= 0 {
		opts.SweepLookback = def.SweepLookback
	}
	if opts.ReviewCheckTTL <= 0 {
		opts.ReviewCheckTTL = def.ReviewCheckTTL
	}
	return &Reconciler{
		regulatory:   regulatory,
		settingsRepo: settingsRepo,
		txns:         txns,
		checks:       checks,
		reports:      reports,
		alerts:       alerts,
		audit:        audit,
		leaser:       leaser,
		opts:         opts,
		logger:       logger,
	}
}

// Run executes cycles until the context is canceled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	r.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

func (r *Reconciler) cycle(ctx context.Context) {
	orgs, err := r.settingsRepo.ListOrganizations(ctx)
	if err != nil {
		r.logger.Error("failed to list organizations for sweep", zap.Error(err))
		metrics.WorkerCycles.WithLabelValues("error").Inc()
		return
	}

	outcome := "success"
	for _, orgID := range orgs {
		if err := r.SweepOrganization(ctx, orgID); err != nil {
			r.logger.Error("organization sweep failed",
				zap.String("organization_id", orgID.String()),
				zap.Error(err))
			outcome = "partial"
		}
	}
	metrics.WorkerCycles.WithLabelValues(outcome).Inc()
}

// SweepOrganization runs all maintenance passes for one organization under
// its lease.
func (r *Reconciler) SweepOrganization(ctx context.Context, orgID uuid.UUID) error {
	if r.leaser != nil {
		ok, err := r.leaser.Acquire(ctx, orgID)
		if err != nil {
			return fmt.Errorf("lease acquisition failed: %w", err)
		}
		if !ok {
			// Another worker owns this organization this cycle.
			return nil
		}
		defer func() {
			if err := r.leaser.Release(ctx, orgID); err != nil {
				r.logger.Warn("lease release failed",
					zap.String("organization_id", orgID.String()),
					zap.Error(err))
			}
		}()
	}

	cfg, err := r.regulatory.ReportingConfig(ctx, orgID)
	if err != nil {
		return err
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(r.sweepCTR(ctx, orgID, cfg))
	record(r.flagSARCandidates(ctx, orgID, cfg))
	record(r.escalateOverdueReviews(ctx, orgID, cfg))
	record(r.expireStaleChecks(ctx, orgID))
	return firstErr
}

// sweepCTR groups the lookback window's transactions per customer per UTC
// day and generates a draft CTR for every day whose cash total reaches the
// threshold. Re-running the sweep is idempotent through the aggregation key.
func (r *Reconciler) sweepCTR(ctx context.Context, orgID uuid.UUID, cfg domain.ReportingConfig) error {
	if !cfg.CTREnabled || !cfg.CTRAutoGenerate {
		return nil
	}

	now := time.Now().UTC()
	from := now.Add(-r.opts.SweepLookback).Truncate(24 * time.Hour)
	txns, err := r.txns.WindowByOrganization(ctx, orgID, from, now)
	if err != nil {
		return fmt.Errorf("transaction window query failed: %w", err)
	}

	type bucket struct {
		customerID uuid.UUID
		day        time.Time
		txns       []domain.Transaction
		total      decimal.Decimal
	}
	buckets := make(map[string]*bucket)
	order := make([]string, 0)
	for _, tx := range txns {
		day := tx.OccurredAt.UTC().Truncate(24 * time.Hour)
		key := domain.CTRAggregationKey(orgID, tx.CustomerID, day)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{customerID: tx.CustomerID, day: day, total: decimal.Zero}
			buckets[key] = b
			order = append(order, key)
		}
		b.txns = append(b.txns, tx)
		b.total = b.total.Add(tx.Amount)
	}

	var firstErr error
	for _, key := range order {
		b := buckets[key]
		if b.total.LessThan(cfg.CTRThreshold) {
			continue
		}
		_, err := r.regulatory.GenerateCTR(ctx, service.GenerateCTRInput{
			OrganizationID: orgID,
			Subject:        domain.ReportSubject{CustomerID: b.customerID},
			WindowStart:    b.day,
			WindowEnd:      b.day.Add(24 * time.Hour),
			Transactions:   b.txns,
			PreparedBy:     uuid.Nil,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// flagSARCandidates turns eligible alerts into draft SARs, one per customer,
// when the organization opted into auto flagging.
func (r *Reconciler) flagSARCandidates(ctx context.Context, orgID uuid.UUID, cfg domain.ReportingConfig) error {
	if !cfg.SAREnabled || !cfg.SARAutoFlag {
		return nil
	}

	candidates, err := r.alerts.UnflaggedSARCandidates(ctx, orgID)
	if err != nil {
		return fmt.Errorf("sar candidate query failed: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	byCustomer := make(map[uuid.UUID][]*domain.ComplianceAlert)
	var unattributed []uuid.UUID
	for _, alert := range candidates {
		if alert.CustomerID == nil {
			unattributed = append(unattributed, alert.AlertID)
			continue
		}
		byCustomer[*alert.CustomerID] = append(byCustomer[*alert.CustomerID], alert)
	}
	// Alerts with no customer cannot seed a SAR; flag them so they stop
	// reappearing every cycle.
	if len(unattributed) > 0 {
		if err := r.alerts.MarkSARFlagged(ctx, unattributed); err != nil {
			r.logger.Warn("failed to flag unattributed alerts", zap.Error(err))
		}
	}

	var firstErr error
	for customerID, alerts := range byCustomer {
		alertIDs := make([]uuid.UUID, 0, len(alerts))
		var checkID *uuid.UUID
		for _, a := range alerts {
			alertIDs = append(alertIDs, a.AlertID)
			if checkID == nil && a.CheckID != nil {
				checkID = a.CheckID
			}
		}

		narrative := fmt.Sprintf(
			"Automated monitoring raised %d high-severity compliance alerts for this customer "+
				"within the review window. The flagged activity requires analyst investigation "+
				"and narrative completion before submission.", len(alerts))

		_, err := r.regulatory.GenerateSAR(ctx, service.GenerateSARInput{
			OrganizationID:    orgID,
			Subjects:          []domain.ReportSubject{{CustomerID: customerID}},
			Narrative:         narrative,
			ActivityTypes:     []domain.SuspiciousActivityType{domain.ActivityUnknownUnusual},
			ComplianceCheckID: checkID,
			AlertIDs:          alertIDs,
			Priority:          domain.PriorityHigh,
			PreparedBy:        uuid.Nil,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// escalateOverdueReviews raises the priority of reports that blew the
// review SLA and alerts on them, once per report.
func (r *Reconciler) escalateOverdueReviews(ctx context.Context, orgID uuid.UUID, cfg domain.ReportingConfig) error {
	if cfg.ReviewSLA <= 0 {
		return nil
	}

	cutoff := time.Now().UTC().Add(-cfg.ReviewSLA)
	overdue, err := r.reports.PendingReviewOlderThan(ctx, orgID, cutoff)
	if err != nil {
		return fmt.Errorf("overdue review query failed: %w", err)
	}

	var firstErr error
	for _, report := range overdue {
		now := time.Now().UTC()
		report.EscalatedAt = &now
		report.Priority = escalate(report.Priority)
		if err := r.reports.Update(ctx, report); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		alert := domain.NewComplianceAlert(orgID, domain.AlertReviewOverdue, domain.RiskHigh,
			fmt.Sprintf("%s review overdue", report.ReportType))
		if err := r.alerts.Create(ctx, alert); err != nil {
			r.logger.Warn("failed to raise overdue alert",
				zap.String("report_id", report.ReportID.String()),
				zap.Error(err))
		} else {
			metrics.AlertsRaised.WithLabelValues(string(domain.AlertReviewOverdue)).Inc()
		}

		entry := domain.NewAuditEntry(domain.AuditEntityReport, report.ReportID, uuid.Nil,
			string(domain.ReportPendingReview), string(domain.ReportPendingReview), "escalated: review SLA exceeded")
		if err := r.audit.Append(ctx, entry); err != nil {
			r.logger.Error("failed to append audit entry", zap.Error(err))
		}
	}
	return firstErr
}

// expireStaleChecks moves REVIEW checks past their TTL to EXPIRED.
func (r *Reconciler) expireStaleChecks(ctx context.Context, orgID uuid.UUID) error {
	cutoff := time.Now().UTC().Add(-r.opts.ReviewCheckTTL)
	expired, err := r.checks.ExpireOlderThan(ctx, orgID, cutoff)
	if err != nil {
		return fmt.Errorf("check expiry failed: %w", err)
	}
	for _, checkID := range expired {
		entry := domain.NewAuditEntry(domain.AuditEntityCheck, checkID, uuid.Nil,
			string(domain.CheckReview), string(domain.CheckExpired), "review window elapsed")
		if err := r.audit.Append(ctx, entry); err != nil {
			r.logger.Error("failed to append audit entry", zap.Error(err))
		}
	}
	if len(expired) > 0 {
		r.logger.Info("expired stale review checks",
			zap.String("organization_id", orgID.String()),
			zap.Int("count", len(expired)))
	}
	return nil
}

func escalate(p domain.ReportPriority) domain.ReportPriority {
	switch p {
	case domain.PriorityLow:
		return domain.PriorityNormal
	case domain.PriorityNormal:
		return domain.PriorityHigh
	default:
		return domain.PriorityCritical
	}
}
