package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/metrics"
	"github.com/banking/compliance-engine/internal/repository"
	"github.com/banking/compliance-engine/internal/risk"
	"github.com/banking/compliance-engine/internal/rules"
	"github.com/banking/compliance-engine/internal/screening"
	"github.com/banking/compliance-engine/internal/velocity"
)

// RuleCache is the optional read-through cache in front of rule and
// settings lookups. Satisfied by the redis cache; nil disables caching.
type RuleCache interface {
	GetRuleSet(ctx context.Context, orgID uuid.UUID) ([]*domain.ComplianceRule, bool)
	PutRuleSet(ctx context.Context, orgID uuid.UUID, ruleSet []*domain.ComplianceRule)
	InvalidateRuleSet(ctx context.Context, orgID uuid.UUID)
	GetSettings(ctx context.Context, orgID uuid.UUID) (*domain.OrganizationComplianceSettings, bool)
	PutSettings(ctx context.Context, settings *domain.OrganizationComplianceSettings)
	InvalidateSettings(ctx context.Context, orgID uuid.UUID)
}

// DecisionIndexer mirrors decisions into the search index, best effort.
type DecisionIndexer interface {
	IndexDecision(ctx context.Context, check *domain.ComplianceCheck) error
}

// AlertPublisher pushes alerts onto the alert topic, best effort.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert *domain.ComplianceAlert) error
}

// ComplianceOptions tunes the orchestrator.
type ComplianceOptions struct {
	// EvaluationTimeout bounds the sub-check fan-out.
	EvaluationTimeout time.Duration
	// ReviewCheckTTL is how long a REVIEW check waits before expiring.
	ReviewCheckTTL time.Duration
	// ReviewThreshold is the fallback risk score threshold when the
	// organization does not configure one.
	ReviewThreshold int
	// BlockMatchConfidence is the screening confidence at or above which a
	// watchlist match blocks outright. Lower-confidence matches contribute
	// to the risk score and flow to review instead, since fuzzy matching
	// produces false positives a human must be able to clear.
	BlockMatchConfidence float64
}

func DefaultComplianceOptions() ComplianceOptions {
	return ComplianceOptions{
		EvaluationTimeout:    5 * time.Second,
		ReviewCheckTTL:       24 * time.Hour,
		ReviewThreshold:      75,
		BlockMatchConfidence: 0.95,
	}
}

// ComplianceService orchestrates transaction evaluation: it fans out the
// sub-checks, combines their results into a decision record, and runs the
// manual review state machine. Dependency failures fail closed to REVIEW,
// never to APPROVED.
type ComplianceService struct {
	checks       repository.CheckRepository
	ruleRepo     repository.RuleRepository
	settingsRepo repository.SettingsRepository
	alerts       repository.AlertRepository
	audit        repository.AuditRepository

	screener *screening.Screener
	monitor  *velocity.Monitor
	engine   *rules.Engine
	scorer   *risk.Scorer

	cache     RuleCache
	indexer   DecisionIndexer
	publisher AlertPublisher

	opts   ComplianceOptions
	logger *zap.Logger
}

func NewComplianceService(
	checks repository.CheckRepository,
	ruleRepo repository.RuleRepository,
	settingsRepo repository.SettingsRepository,
	alerts repository.AlertRepository,
	audit repository.AuditRepository,
	screener *screening.Screener,
	monitor *velocity.Monitor,
	engine *rules.Engine,
	scorer *risk.Scorer,
	cache RuleCache,
	indexer DecisionIndexer,
	publisher AlertPublisher,
	opts ComplianceOptions,
	logger *zap.Logger,
) *ComplianceService {
	if opts.EvaluationTimeout <= 0 {
		opts.EvaluationTimeout = DefaultComplianceOptions().EvaluationTimeout
	}
	if opts.ReviewCheckTTL <= 0 {
		opts.ReviewCheckTTL = DefaultComplianceOptions().ReviewCheckTTL
	}
	if opts.ReviewThreshold <= 0 {
		opts.ReviewThreshold = DefaultComplianceOptions().ReviewThreshold
	}
	if opts.BlockMatchConfidence <= 0 || opts.BlockMatchConfidence > 1 {
		opts.BlockMatchConfidence = DefaultComplianceOptions().BlockMatchConfidence
	}
	return &ComplianceService{
		checks:       checks,
		ruleRepo:     ruleRepo,
		settingsRepo: settingsRepo,
		alerts:       alerts,
		audit:        audit,
		screener:     screener,
		monitor:      monitor,
		engine:       engine,
		scorer:       scorer,
		cache:        cache,
		indexer:      indexer,
		publisher:    publisher,
		opts:         opts,
		logger:       logger,
	}
}

// EvaluateTransaction runs the full decision pipeline and persists the
// resulting check. The returned check is the decision of record.
func (s *ComplianceService) EvaluateTransaction(ctx context.Context, req domain.EvaluationRequest) (*domain.ComplianceCheck, error) {
	started := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	check := &domain.ComplianceCheck{
		CheckID:         uuid.New(),
		OrganizationID:  req.OrganizationID,
		BranchID:        req.BranchID,
		CustomerID:      req.CustomerID,
		AccountID:       req.AccountID,
		TransactionID:   req.TransactionID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		TransactionType: req.TransactionType,
		Status:          domain.CheckPending,
		CreatedAt:       time.Now().UTC(),
	}

	settings, err := s.effectiveSettings(ctx, req)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, err
		}
		// Policy source down: fail closed to manual review.
		return s.failClosed(ctx, check, "compliance settings unavailable", err)
	}

	// Operational gate: suspended or blocked organizations do not transact.
	if settings.Status != domain.OrgActive {
		check.Status = domain.CheckBlocked
		check.Reason = fmt.Sprintf("organization is %s", settings.Status)
		check.RiskScore = 100
		check.RiskLevel = domain.RiskCritical
		return s.finalize(ctx, check, started, false)
	}

	// Hard policy gates that need no sub-check data.
	if blocked, reason := policyGate(req, settings); blocked {
		check.Status = domain.CheckBlocked
		check.Reason = reason
		check.RiskScore = 100
		check.RiskLevel = domain.RiskCritical
		return s.finalize(ctx, check, started, false)
	}

	ruleSet, err := s.ruleSet(ctx, req.OrganizationID)
	if err != nil {
		return s.failClosed(ctx, check, "rule configuration unavailable", err)
	}

	sanctions, velocityResult := s.fanOut(ctx, req, settings)
	check.SanctionsMatches = sanctions.Matches
	check.Velocity = &velocityResult

	txCtx := domain.NewTransactionContext(req)
	txCtx.AttachVelocity(velocityResult)
	outcome := s.engine.Evaluate(ruleSet, txCtx)
	for _, result := range outcome.Results {
		check.RulesEvaluated = append(check.RulesEvaluated, result.RuleID)
		if result.Triggered {
			check.RulesTriggered = append(check.RulesTriggered, result.RuleID)
		}
	}

	breakdown := s.scorer.Score(risk.Input{
		Request:    req,
		Settings:   settings,
		Sanctions:  sanctions,
		Velocity:   velocityResult,
		RuleImpact: outcome.RiskScoreImpact,
	})
	check.Breakdown = &breakdown
	check.RiskScore = breakdown.OverallScore
	check.RiskLevel = breakdown.Level

	s.decide(check, req, settings, sanctions, velocityResult, outcome)
	return s.finalize(ctx, check, started, sanctions.Unavailable)
}

// effectiveSettings loads organization settings (through the cache) and
// merges the branch override when one applies.
func (s *ComplianceService) effectiveSettings(ctx context.Context, req domain.EvaluationRequest) (domain.OrganizationComplianceSettings, error) {
	var org *domain.OrganizationComplianceSettings
	if s.cache != nil {
		if cached, ok := s.cache.GetSettings(ctx, req.OrganizationID); ok {
			org = cached
		}
	}
	if org == nil {
		loaded, err := s.settingsRepo.GetOrganization(ctx, req.OrganizationID)
		if err != nil {
			return domain.OrganizationComplianceSettings{}, err
		}
		org = loaded
		if s.cache != nil {
			s.cache.PutSettings(ctx, org)
		}
	}

	var branch *domain.BranchComplianceOverride
	if req.BranchID != nil {
		override, err := s.settingsRepo.GetBranchOverride(ctx, *req.BranchID)
		switch {
		case err == nil:
			branch = override
		case domain.KindOf(err) == domain.KindNotFound:
			// No override configured for this branch.
		default:
			return domain.OrganizationComplianceSettings{}, err
		}
	}
	return domain.EffectiveSettings(*org, branch), nil
}

func (s *ComplianceService) ruleSet(ctx context.Context, orgID uuid.UUID) ([]*domain.ComplianceRule, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetRuleSet(ctx, orgID); ok {
			return cached, nil
		}
	}
	ruleSet, err := s.ruleRepo.ActiveForOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.PutRuleSet(ctx, orgID, ruleSet)
	}
	return ruleSet, nil
}

// policyGate applies the absolute organization limits.
func policyGate(req domain.EvaluationRequest, settings domain.OrganizationComplianceSettings) (bool, string) {
	if !settings.IsCurrencyAllowed(req.Currency) {
		return true, fmt.Sprintf("currency %s is not permitted", req.Currency)
	}
	if settings.IsCountryRestricted(req.DestinationCountry) {
		return true, fmt.Sprintf("destination country %s is restricted", req.DestinationCountry)
	}
	if !settings.AllowInternational && req.DestinationCountry != "" {
		return true, "international transactions are not permitted"
	}
	if settings.MaxTransactionAmount != nil && req.Amount.GreaterThan(*settings.MaxTransactionAmount) {
		return true, fmt.Sprintf("amount exceeds the maximum of %s", settings.MaxTransactionAmount)
	}
	return false, ""
}

// fanOut runs sanctions screening and velocity monitoring concurrently
// under the evaluation timeout. Each sub-check degrades independently.
func (s *ComplianceService) fanOut(ctx context.Context, req domain.EvaluationRequest, settings domain.OrganizationComplianceSettings) (domain.SanctionsResult, domain.VelocityResult) {
	fanCtx, cancel := context.WithTimeout(ctx, s.opts.EvaluationTimeout)
	defer cancel()

	var sanctions domain.SanctionsResult
	var velocityResult domain.VelocityResult

	g, gCtx := errgroup.WithContext(fanCtx)
	g.Go(func() error {
		if !settings.EnableSanctionsScreening {
			return nil
		}
		result, err := s.screener.Screen(gCtx, req.CustomerName)
		if err != nil {
			metrics.SubCheckFailures.WithLabelValues("sanctions").Inc()
		}
		sanctions = result
		return nil
	})
	g.Go(func() error {
		if !settings.EnableVelocityMonitoring {
			return nil
		}
		result := s.monitor.Check(gCtx, req.OrganizationID, req.CustomerID, req.Amount, settings)
		if result.Unknown {
			metrics.SubCheckFailures.WithLabelValues("velocity").Inc()
		}
		velocityResult = result
		return nil
	})
	// Sub-checks record their own degradation instead of failing the group.
	_ = g.Wait()

	if fanCtx.Err() != nil && settings.EnableSanctionsScreening && !sanctions.Matched() && !sanctions.Unavailable {
		// The timeout cut screening short; an unfinished screen is not a pass.
		sanctions.Unavailable = true
		metrics.SubCheckFailures.WithLabelValues("timeout").Inc()
	}
	return sanctions, velocityResult
}

// decide derives the final status. Block causes are checked in priority
// order so the recorded reason names the most severe cause.
func (s *ComplianceService) decide(
	check *domain.ComplianceCheck,
	req domain.EvaluationRequest,
	settings domain.OrganizationComplianceSettings,
	sanctions domain.SanctionsResult,
	velocityResult domain.VelocityResult,
	outcome rules.Outcome,
) {
	threshold := settings.RiskScoreThreshold
	if threshold <= 0 {
		threshold = s.opts.ReviewThreshold
	}

	switch {
	case sanctions.Matched() && sanctions.HighestConfidence >= s.opts.BlockMatchConfidence:
		check.Status = domain.CheckBlocked
		check.Reason = "high confidence sanctions watchlist match"

	case outcome.ResolvedAction == domain.ActionBlock:
		check.Status = domain.CheckBlocked
		check.Reason = outcome.ResolvedBy.Message
		if check.Reason == "" {
			check.Reason = fmt.Sprintf("blocked by rule %s", outcome.ResolvedBy.RuleName)
		}

	case settings.AutoBlockHighRisk && check.RiskScore >= threshold && check.RiskLevel == domain.RiskCritical:
		check.Status = domain.CheckBlocked
		check.Reason = fmt.Sprintf("risk score %d exceeds the auto-block threshold", check.RiskScore)

	case sanctions.Unavailable:
		// Screening could not run; a human decides instead of a pass.
		check.Status = domain.CheckReview
		check.Reason = "sanctions screening unavailable"

	case check.RiskScore >= threshold:
		check.Status = domain.CheckReview
		check.Reason = fmt.Sprintf("risk score %d requires manual review", check.RiskScore)

	case outcome.ResolvedAction == domain.ActionReview:
		check.Status = domain.CheckReview
		check.Reason = outcome.ResolvedBy.Message

	case settings.ManualReviewAmount != nil && req.Amount.GreaterThan(*settings.ManualReviewAmount):
		check.Status = domain.CheckReview
		check.Reason = "amount exceeds the manual review threshold"

	default:
		check.Status = domain.CheckApproved
	}

	if check.Status == domain.CheckReview {
		expires := check.CreatedAt.Add(s.opts.ReviewCheckTTL)
		check.ExpiresAt = &expires
	}
}

// failClosed records a REVIEW decision when a dependency prevented a full
// evaluation, and raises an operational alert.
func (s *ComplianceService) failClosed(ctx context.Context, check *domain.ComplianceCheck, reason string, cause error) (*domain.ComplianceCheck, error) {
	s.logger.Error("evaluation degraded, failing closed to review",
		zap.String("check_id", check.CheckID.String()),
		zap.String("reason", reason),
		zap.Error(cause))

	check.Status = domain.CheckReview
	check.Reason = reason
	check.RiskScore = 100
	check.RiskLevel = domain.RiskCritical
	expires := check.CreatedAt.Add(s.opts.ReviewCheckTTL)
	check.ExpiresAt = &expires

	if err := s.checks.Create(ctx, check); err != nil {
		return nil, fmt.Errorf("decision persistence failed: %w", err)
	}
	s.raiseAlert(ctx, check, domain.AlertDependencyUnavailable, domain.RiskCritical,
		"Evaluation degraded: "+reason)
	s.appendAudit(ctx, domain.AuditEntityCheck, check.CheckID, uuid.Nil,
		string(domain.CheckPending), string(check.Status), reason)
	metrics.EvaluationsTotal.WithLabelValues(string(check.Status)).Inc()
	return check, nil
}

// finalize persists the decision, raises alerts, and mirrors the record to
// the search index. SAR candidacy is marked here, before the write, so the
// stored record already carries the flag.
func (s *ComplianceService) finalize(ctx context.Context, check *domain.ComplianceCheck, started time.Time, degraded bool) (*domain.ComplianceCheck, error) {
	policy := s.reportingPolicy(ctx, check.OrganizationID)
	if policy.SAREnabled {
		if len(check.SanctionsMatches) > 0 {
			check.FlaggedForSAR = true
		}
		if policy.SARRiskScoreThreshold > 0 && check.RiskScore >= policy.SARRiskScoreThreshold {
			check.FlaggedForSAR = true
		}
	}

	if err := s.checks.Create(ctx, check); err != nil {
		return nil, fmt.Errorf("decision persistence failed: %w", err)
	}
	s.appendAudit(ctx, domain.AuditEntityCheck, check.CheckID, uuid.Nil,
		string(domain.CheckPending), string(check.Status), check.Reason)

	if degraded {
		s.raiseAlert(ctx, check, domain.AlertDependencyUnavailable, domain.RiskHigh,
			"Sanctions screening unavailable during evaluation")
	}

	if check.Status == domain.CheckBlocked {
		s.raiseAlert(ctx, check, domain.AlertBlockedTransaction, check.RiskLevel, "Transaction blocked")
	}
	if len(check.SanctionsMatches) > 0 {
		metrics.SanctionsMatches.Inc()
		s.raiseAlert(ctx, check, domain.AlertSanctionsMatch, domain.RiskCritical, "Sanctions watchlist match")
	} else if check.FlaggedForSAR {
		// Flagged on the score alone: surface it so the reconciliation
		// worker can turn the alert into a draft. At least HIGH severity
		// or the worker's candidate scan would never see it.
		severity := check.RiskLevel
		if severity != domain.RiskCritical {
			severity = domain.RiskHigh
		}
		s.raiseAlert(ctx, check, domain.AlertHighRiskScore, severity, "Risk score at or above the SAR threshold")
	}
	if check.Velocity != nil && check.Velocity.Breached {
		s.raiseAlert(ctx, check, domain.AlertVelocityBreach, domain.RiskHigh, "Velocity limit breached")
	}

	s.asyncIndexDecision(check)

	metrics.EvaluationsTotal.WithLabelValues(string(check.Status)).Inc()
	metrics.EvaluationDuration.Observe(time.Since(started).Seconds())

	s.logger.Info("transaction evaluated",
		zap.String("check_id", check.CheckID.String()),
		zap.String("organization_id", check.OrganizationID.String()),
		zap.String("status", string(check.Status)),
		zap.Int("risk_score", check.RiskScore),
		zap.Int("rules_triggered", len(check.RulesTriggered)))
	return check, nil
}

// asyncIndexDecision mirrors the decision into the search index without
// blocking the caller.
func (s *ComplianceService) asyncIndexDecision(check *domain.ComplianceCheck) {
	if s.indexer == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in async decision indexing", zap.Any("panic", r))
			}
		}()
		asyncCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.indexer.IndexDecision(asyncCtx, check); err != nil {
			s.logger.Error("failed to index decision",
				zap.String("check_id", check.CheckID.String()),
				zap.Error(err))
		}
	}()
}

// reportingPolicy loads the organization's reporting policy for SAR
// candidacy. Flagging is a detection aid, so a policy-store outage falls
// back to the statutory defaults instead of failing the evaluation.
func (s *ComplianceService) reportingPolicy(ctx context.Context, orgID uuid.UUID) domain.ReportingConfig {
	cfg, err := s.settingsRepo.GetReportingConfig(ctx, orgID)
	if err != nil {
		if domain.KindOf(err) != domain.KindNotFound {
			s.logger.Warn("reporting policy unavailable, using defaults",
				zap.String("organization_id", orgID.String()),
				zap.Error(err))
		}
		return domain.DefaultReportingConfig(orgID)
	}
	return *cfg
}

func (s *ComplianceService) raiseAlert(ctx context.Context, check *domain.ComplianceCheck, alertType domain.AlertType, severity domain.RiskLevel, title string) {
	alert := domain.NewComplianceAlert(check.OrganizationID, alertType, severity, title)
	alert.CustomerID = &check.CustomerID
	alert.CheckID = &check.CheckID
	if err := s.alerts.Create(ctx, alert); err != nil {
		s.logger.Error("failed to persist alert",
			zap.String("check_id", check.CheckID.String()),
			zap.Error(err))
		return
	}
	metrics.AlertsRaised.WithLabelValues(string(alertType)).Inc()
	if s.publisher != nil {
		if err := s.publisher.PublishAlert(ctx, alert); err != nil {
			s.logger.Warn("failed to publish alert",
				zap.String("alert_id", alert.AlertID.String()),
				zap.Error(err))
		}
	}
}

func (s *ComplianceService) appendAudit(ctx context.Context, entityType domain.AuditEntityType, entityID, actorID uuid.UUID, from, to, notes string) {
	entry := domain.NewAuditEntry(entityType, entityID, actorID, from, to, notes)
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append audit entry",
			zap.String("entity_id", entityID.String()),
			zap.Error(err))
	}
}

// GetCheck returns a single decision record.
func (s *ComplianceService) GetCheck(ctx context.Context, checkID uuid.UUID) (*domain.ComplianceCheck, error) {
	return s.checks.GetByID(ctx, checkID)
}

// ListChecks returns decision records matching the filter.
func (s *ComplianceService) ListChecks(ctx context.Context, filter repository.CheckFilter) ([]*domain.ComplianceCheck, error) {
	return s.checks.List(ctx, filter)
}

// ApproveCheck resolves a REVIEW check as approved. Only checks currently
// in REVIEW may transition; anything else is an invalid transition.
func (s *ComplianceService) ApproveCheck(ctx context.Context, checkID, reviewerID uuid.UUID, notes string) (*domain.ComplianceCheck, error) {
	return s.resolveReview(ctx, checkID, reviewerID, notes, domain.CheckApproved, "")
}

// RejectCheck resolves a REVIEW check as blocked. A rejection reason is
// required since every BLOCKED check carries its cause.
func (s *ComplianceService) RejectCheck(ctx context.Context, checkID, reviewerID uuid.UUID, reason string) (*domain.ComplianceCheck, error) {
	if reason == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "a rejection reason is required")
	}
	return s.resolveReview(ctx, checkID, reviewerID, "", domain.CheckBlocked, reason)
}

func (s *ComplianceService) resolveReview(ctx context.Context, checkID, reviewerID uuid.UUID, notes string, to domain.CheckStatus, reason string) (*domain.ComplianceCheck, error) {
	check, err := s.checks.GetByID(ctx, checkID)
	if err != nil {
		return nil, err
	}
	if !check.InReview() {
		return nil, domain.NewError(domain.KindInvalidStateTransition,
			"check %s is %s, only REVIEW checks can be resolved", checkID, check.Status)
	}

	now := time.Now().UTC()
	check.Status = to
	check.ReviewedBy = &reviewerID
	check.ReviewedAt = &now
	check.ReviewNotes = notes
	if reason != "" {
		check.Reason = reason
	}

	if err := s.checks.UpdateStatus(ctx, check, domain.CheckReview); err != nil {
		return nil, err
	}
	s.appendAudit(ctx, domain.AuditEntityCheck, check.CheckID, reviewerID,
		string(domain.CheckReview), string(to), notes+reason)
	s.asyncIndexDecision(check)

	s.logger.Info("review resolved",
		zap.String("check_id", checkID.String()),
		zap.String("resolution", string(to)))
	return check, nil
}

// CreateRule validates and stores a new rule, invalidating the cached set.
func (s *ComplianceService) CreateRule(ctx context.Context, rule *domain.ComplianceRule) error {
	if rule.RuleID == uuid.Nil {
		rule.RuleID = uuid.New()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	rule.UpdatedAt = rule.CreatedAt
	if rule.Version == 0 {
		rule.Version = 1
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateRuleSet(ctx, rule.OrganizationID)
	}
	actor := uuid.Nil
	if rule.CreatedBy != nil {
		actor = *rule.CreatedBy
	}
	s.appendAudit(ctx, domain.AuditEntityRule, rule.RuleID, actor, "", "CREATED", rule.Name)
	return nil
}

// UpdateRule validates and stores a rule revision.
func (s *ComplianceService) UpdateRule(ctx context.Context, rule *domain.ComplianceRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateRuleSet(ctx, rule.OrganizationID)
	}
	s.appendAudit(ctx, domain.AuditEntityRule, rule.RuleID, uuid.Nil, "", "UPDATED", rule.Name)
	return nil
}

// DeleteRule removes a rule from the active configuration.
func (s *ComplianceService) DeleteRule(ctx context.Context, ruleID uuid.UUID) error {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return err
	}
	if err := s.ruleRepo.Delete(ctx, ruleID); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateRuleSet(ctx, rule.OrganizationID)
	}
	s.appendAudit(ctx, domain.AuditEntityRule, ruleID, uuid.Nil, "", "DELETED", rule.Name)
	return nil
}

// GetRule returns one rule.
func (s *ComplianceService) GetRule(ctx context.Context, ruleID uuid.UUID) (*domain.ComplianceRule, error) {
	return s.ruleRepo.GetByID(ctx, ruleID)
}

// ListRules returns rules matching the filter.
func (s *ComplianceService) ListRules(ctx context.Context, filter repository.RuleFilter) ([]*domain.ComplianceRule, error) {
	return s.ruleRepo.List(ctx, filter)
}

// PutOrganizationSettings stores policy and drops the cached copy.
func (s *ComplianceService) PutOrganizationSettings(ctx context.Context, settings *domain.OrganizationComplianceSettings) error {
	if err := s.settingsRepo.PutOrganization(ctx, settings); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateSettings(ctx, settings.OrganizationID)
	}
	return nil
}

// AuditTrail returns the transition history of an entity.
func (s *ComplianceService) AuditTrail(ctx context.Context, entityID uuid.UUID) ([]*domain.AuditEntry, error) {
	return s.audit.List(ctx, domain.AuditEntryFilter{EntityID: &entityID})
}
