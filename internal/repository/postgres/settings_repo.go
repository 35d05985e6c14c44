package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/compliance-engine/internal/domain"
)

// SettingsRepository serves organization compliance policy, branch overrides
// and per-organization reporting configuration.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

func (r *SettingsRepository) GetOrganization(ctx context.Context, orgID uuid.UUID) (*domain.OrganizationComplianceSettings, error) {
	const query = `
		SELECT organization_id, status, level,
			enable_sanctions_screening, enable_velocity_monitoring, enable_pep_screening,
			max_transaction_amount, manual_review_amount, restricted_countries,
			allowed_currencies, allow_international,
			velocity_max_count, velocity_max_amount,
			auto_block_high_risk, risk_score_threshold
		FROM organization_compliance_settings
		WHERE organization_id = $1
	`
	var s domain.OrganizationComplianceSettings
	err := r.pool.QueryRow(ctx, query, orgID).Scan(
		&s.OrganizationID, &s.Status, &s.Level,
		&s.EnableSanctionsScreening, &s.EnableVelocityMonitoring, &s.EnablePEPScreening,
		&s.MaxTransactionAmount, &s.ManualReviewAmount, &s.RestrictedCountries,
		&s.AllowedCurrencies, &s.AllowInternational,
		&s.VelocityMaxCount, &s.VelocityMaxAmount,
		&s.AutoBlockHighRisk, &s.RiskScoreThreshold,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.KindNotFound, "no compliance settings for organization %s", orgID)
		}
		return nil, fmt.Errorf("failed to query organization settings: %w", err)
	}
	return &s, nil
}

func (r *SettingsRepository) PutOrganization(ctx context.Context, s *domain.OrganizationComplianceSettings) error {
	const query = `
		INSERT INTO organization_compliance_settings (
			organization_id, status, level,
			enable_sanctions_screening, enable_velocity_monitoring, enable_pep_screening,
			max_transaction_amount, manual_review_amount, restricted_countries,
			allowed_currencies, allow_international,
			velocity_max_count, velocity_max_amount,
			auto_block_high_risk, risk_score_threshold
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (organization_id) DO UPDATE SET
			status = EXCLUDED.status, level = EXCLUDED.level,
			enable_sanctions_screening = EXCLUDED.enable_sanctions_screening,
			enable_velocity_monitoring = EXCLUDED.enable_velocity_monitoring,
			enable_pep_screening = EXCLUDED.enable_pep_screening,
			max_transaction_amount = EXCLUDED.max_transaction_amount,
			manual_review_amount = EXCLUDED.manual_review_amount,
			restricted_countries = EXCLUDED.restricted_countries,
			allowed_currencies = EXCLUDED.allowed_currencies,
			allow_international = EXCLUDED.allow_international,
			velocity_max_count = EXCLUDED.velocity_max_count,
			velocity_max_amount = EXCLUDED.velocity_max_amount,
			auto_block_high_risk = EXCLUDED.auto_block_high_risk,
			risk_score_threshold = EXCLUDED.risk_score_threshold
	`
	_, err := r.pool.Exec(ctx, query,
		s.OrganizationID, s.Status, s.Level,
		s.EnableSanctionsScreening, s.EnableVelocityMonitoring, s.EnablePEPScreening,
		s.MaxTransactionAmount, s.ManualReviewAmount, s.RestrictedCountries,
		s.AllowedCurrencies, s.AllowInternational,
		s.VelocityMaxCount, s.VelocityMaxAmount,
		s.AutoBlockHighRisk, s.RiskScoreThreshold,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert organization settings: %w", err)
	}
	return nil
}

func (r *SettingsRepository) GetBranchOverride(ctx context.Context, branchID uuid.UUID) (*domain.BranchComplianceOverride, error) {
	const query = `
		SELECT branch_id, organization_id, level,
			max_transaction_amount, manual_review_amount, restricted_countries
		FROM branch_compliance_overrides
		WHERE branch_id = $1
	`
	var o domain.BranchComplianceOverride
	err := r.pool.QueryRow(ctx, query, branchID).Scan(
		&o.BranchID, &o.OrganizationID, &o.Level,
		&o.MaxTransactionAmount, &o.ManualReviewAmount, &o.RestrictedCountries,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.KindNotFound, "no override for branch %s", branchID)
		}
		return nil, fmt.Errorf("failed to query branch override: %w", err)
	}
	return &o, nil
}

func (r *SettingsRepository) PutBranchOverride(ctx context.Context, o *domain.BranchComplianceOverride) error {
	const query = `
		INSERT INTO branch_compliance_overrides (
			branch_id, organization_id, level,
			max_transaction_amount, manual_review_amount, restricted_countries
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (branch_id) DO UPDATE SET
			level = EXCLUDED.level,
			max_transaction_amount = EXCLUDED.max_transaction_amount,
			manual_review_amount = EXCLUDED.manual_review_amount,
			restricted_countries = EXCLUDED.restricted_countries
	`
	_, err := r.pool.Exec(ctx, query,
		o.BranchID, o.OrganizationID, o.Level,
		o.MaxTransactionAmount, o.ManualReviewAmount, o.RestrictedCountries,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert branch override: %w", err)
	}
	return nil
}

func (r *SettingsRepository) GetReportingConfig(ctx context.Context, orgID uuid.UUID) (*domain.ReportingConfig, error) {
	const query = `
		SELECT organization_id, ctr_enabled, ctr_threshold, ctr_auto_generate,
			ctr_aggregation_window, sar_enabled, sar_auto_flag,
			sar_risk_score_threshold, require_dual_approval, auto_file_reports,
			review_sla, retention_days
		FROM reporting_configs
		WHERE organization_id = $1
	`
	var c domain.ReportingConfig
	err := r.pool.QueryRow(ctx, query, orgID).Scan(
		&c.OrganizationID, &c.CTREnabled, &c.CTRThreshold, &c.CTRAutoGenerate,
		&c.CTRAggregationWindow, &c.SAREnabled, &c.SARAutoFlag,
		&c.SARRiskScoreThreshold, &c.RequireDualApproval, &c.AutoFileReports,
		&c.ReviewSLA, &c.RetentionDays,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.KindNotFound, "no reporting config for organization %s", orgID)
		}
		return nil, fmt.Errorf("failed to query reporting config: %w", err)
	}
	return &c, nil
}

func (r *SettingsRepository) PutReportingConfig(ctx context.Context, c *domain.ReportingConfig) error {
	const query = `
		INSERT INTO reporting_configs (
			organization_id, ctr_enabled, ctr_threshold, ctr_auto_generate,
			ctr_aggregation_window, sar_enabled, sar_auto_flag,
			sar_risk_score_threshold, require_dual_approval, auto_file_reports,
			review_sla, retention_days
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (organization_id) DO UPDATE SET
			ctr_enabled = EXCLUDED.ctr_enabled,
			ctr_threshold = EXCLUDED.ctr_threshold,
			ctr_auto_generate = EXCLUDED.ctr_auto_generate,
			ctr_aggregation_window = EXCLUDED.ctr_aggregation_window,
			sar_enabled = EXCLUDED.sar_enabled,
			sar_auto_flag = EXCLUDED.sar_auto_flag,
			sar_risk_score_threshold = EXCLUDED.sar_risk_score_threshold,
			require_dual_approval = EXCLUDED.require_dual_approval,
			auto_file_reports = EXCLUDED.auto_file_reports,
			review_sla = EXCLUDED.review_sla,
			retention_days = EXCLUDED.retention_days
	`
	_, err := r.pool.Exec(ctx, query,
		c.OrganizationID, c.CTREnabled, c.CTRThreshold, c.CTRAutoGenerate,
		c.CTRAggregationWindow, c.SAREnabled, c.SARAutoFlag,
		c.SARRiskScoreThreshold, c.RequireDualApproval, c.AutoFileReports,
		c.ReviewSLA, c.RetentionDays,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reporting config: %w", err)
	}
	return nil
}

func (r *SettingsRepository) ListOrganizations(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT organization_id FROM organization_compliance_settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan organization id: %w", err)
		}
		orgs = append(orgs, id)
	}
	return orgs, rows.Err()
}
