package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/repository"
)

// RuleRepository persists compliance rules. Conditions are stored as JSONB.
type RuleRepository struct {
	pool *pgxpool.Pool
}

func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

func (r *RuleRepository) Create(ctx context.Context, rule *domain.ComplianceRule) error {
	const query = `
		INSERT INTO compliance_rules (
			rule_id, organization_id, name, description, rule_type,
			conditions, condition_logic, action, severity, risk_score_impact,
			message, enabled, priority, version, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17
		)
	`
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		rule.RuleID, rule.OrganizationID, rule.Name, rule.Description, rule.RuleType,
		conditions, rule.ConditionLogic, rule.Action, rule.Severity, rule.RiskScoreImpact,
		rule.Message, rule.Enabled, rule.Priority, rule.Version, rule.CreatedBy,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

func (r *RuleRepository) GetByID(ctx context.Context, ruleID uuid.UUID) (*domain.ComplianceRule, error) {
	const query = ruleColumns + ` WHERE rule_id = $1`
	rule, err := scanRule(r.pool.QueryRow(ctx, query, ruleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.KindNotFound, "rule %s not found", ruleID)
		}
		return nil, fmt.Errorf("failed to query rule: %w", err)
	}
	return rule, nil
}

// Update replaces the rule content and bumps the stored version.
func (r *RuleRepository) Update(ctx context.Context, rule *domain.ComplianceRule) error {
	const query = `
		UPDATE compliance_rules SET
			name = $2, description = $3, rule_type = $4, conditions = $5,
			condition_logic = $6, action = $7, severity = $8,
			risk_score_impact = $9, message = $10, enabled = $11,
			priority = $12, version = version + 1, updated_at = NOW()
		WHERE rule_id = $1
		RETURNING version, updated_at
	`
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	err = r.pool.QueryRow(ctx, query,
		rule.RuleID, rule.Name, rule.Description, rule.RuleType, conditions,
		rule.ConditionLogic, rule.Action, rule.Severity,
		rule.RiskScoreImpact, rule.Message, rule.Enabled, rule.Priority,
	).Scan(&rule.Version, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewError(domain.KindNotFound, "rule %s not found", rule.RuleID)
		}
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return nil
}

func (r *RuleRepository) Delete(ctx context.Context, ruleID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM compliance_rules WHERE rule_id = $1`, ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewError(domain.KindNotFound, "rule %s not found", ruleID)
	}
	return nil
}

func (r *RuleRepository) List(ctx context.Context, filter repository.RuleFilter) ([]*domain.ComplianceRule, error) {
	query := ruleColumns + ` WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.OrganizationID != nil {
		query += fmt.Sprintf(" AND organization_id = $%d", argIdx)
		args = append(args, *filter.OrganizationID)
		argIdx++
	}
	if filter.RuleType != nil {
		query += fmt.Sprintf(" AND rule_type = $%d", argIdx)
		args = append(args, *filter.RuleType)
		argIdx++
	}
	if filter.EnabledOnly {
		query += " AND enabled = true"
	}

	query += " ORDER BY priority ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.ComplianceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *RuleRepository) ActiveForOrganization(ctx context.Context, orgID uuid.UUID) ([]*domain.ComplianceRule, error) {
	return r.List(ctx, repository.RuleFilter{OrganizationID: &orgID, EnabledOnly: true})
}

const ruleColumns = `
	SELECT rule_id, organization_id, name, description, rule_type,
		conditions, condition_logic, action, severity, risk_score_impact,
		message, enabled, priority, version, created_by, created_at, updated_at
	FROM compliance_rules
`

func scanRule(row pgx.Row) (*domain.ComplianceRule, error) {
	var rule domain.ComplianceRule
	var conditions []byte
	err := row.Scan(
		&rule.RuleID, &rule.OrganizationID, &rule.Name, &rule.Description, &rule.RuleType,
		&conditions, &rule.ConditionLogic, &rule.Action, &rule.Severity, &rule.RiskScoreImpact,
		&rule.Message, &rule.Enabled, &rule.Priority, &rule.Version, &rule.CreatedBy,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
	}
	return &rule, nil
}
