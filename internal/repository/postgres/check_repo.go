package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/repository"
)

// CheckRepository persists compliance check decision records. Rows are
// append-plus-transition only; nothing ever deletes a check.
type CheckRepository struct {
	pool *pgxpool.Pool
}

func NewCheckRepository(pool *pgxpool.Pool) *CheckRepository {
	return &CheckRepository{pool: pool}
}

func (r *CheckRepository) Create(ctx context.Context, check *domain.ComplianceCheck) error {
	const query = `
		INSERT INTO compliance_checks (
			check_id, organization_id, branch_id, customer_id, account_id,
			transaction_id, amount, currency, transaction_type, status,
			reason, risk_score, risk_level, rules_evaluated, rules_triggered,
			sanctions_matches, velocity, breakdown, flagged_for_sar,
			created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19,
			$20, $21
		)
	`
	matches, velocityJSON, breakdown, err := marshalCheckBlobs(check)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		check.CheckID, check.OrganizationID, check.BranchID, check.CustomerID, check.AccountID,
		check.TransactionID, check.Amount, check.Currency, check.TransactionType, check.Status,
		check.Reason, check.RiskScore, check.RiskLevel, check.RulesEvaluated, check.RulesTriggered,
		matches, velocityJSON, breakdown, check.FlaggedForSAR,
		check.CreatedAt, check.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert check: %w", err)
	}
	return nil
}

func (r *CheckRepository) GetByID(ctx context.Context, checkID uuid.UUID) (*domain.ComplianceCheck, error) {
	const query = checkColumns + ` WHERE check_id = $1`
	check, err := scanCheck(r.pool.QueryRow(ctx, query, checkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.KindNotFound, "check %s not found", checkID)
		}
		return nil, fmt.Errorf("failed to query check: %w", err)
	}
	return check, nil
}

func (r *CheckRepository) List(ctx context.Context, filter repository.CheckFilter) ([]*domain.ComplianceCheck, error) {
	query := checkColumns + ` WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.OrganizationID != nil {
		query += fmt.Sprintf(" AND organization_id = $%d", argIdx)
		args = append(args, *filter.OrganizationID)
		argIdx++
	}
	if filter.CustomerID != nil {
		query += fmt.Sprintf(" AND customer_id = $%d", argIdx)
		args = append(args, *filter.CustomerID)
		argIdx++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.FlaggedForSAR != nil {
		query += fmt.Sprintf(" AND flagged_for_sar = $%d", argIdx)
		args = append(args, *filter.FlaggedForSAR)
		argIdx++
	}
	if filter.CreatedAfter != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filter.CreatedAfter)
		argIdx++
	}
	if filter.CreatedBefore != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filter.CreatedBefore)
		argIdx++
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query checks: %w", err)
	}
	defer rows.Close()

	var checks []*domain.ComplianceCheck
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

// UpdateStatus transitions the check only when it is still in the expected
// status. The conditional WHERE makes concurrent reviews lose cleanly.
func (r *CheckRepository) UpdateStatus(ctx context.Context, check *domain.ComplianceCheck, expected domain.CheckStatus) error {
	const query = `
		UPDATE compliance_checks SET
			status = $3, reason = $4, reviewed_by = $5, reviewed_at = $6, review_notes = $7
		WHERE check_id = $1 AND status = $2
	`
	tag, err := r.pool.Exec(ctx, query,
		check.CheckID, expected,
		check.Status, check.Reason, check.ReviewedBy, check.ReviewedAt, check.ReviewNotes,
	)
	if err != nil {
		return fmt.Errorf("failed to update check status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, getErr := r.GetByID(ctx, check.CheckID)
		if getErr != nil {
			return getErr
		}
		return domain.NewError(domain.KindInvalidStateTransition,
			"check %s is %s, expected %s", check.CheckID, current.Status, expected)
	}
	return nil
}

func (r *CheckRepository) ExpireOlderThan(ctx context.Context, orgID uuid.UUID, cutoff time.Time) ([]uuid.UUID, error) {
	const query = `
		UPDATE compliance_checks
		SET status = $1
		WHERE organization_id = $2 AND status = $3 AND created_at < $4
		RETURNING check_id
	`
	rows, err := r.pool.Query(ctx, query, domain.CheckExpired, orgID, domain.CheckReview, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to expire checks: %w", err)
	}
	defer rows.Close()

	var expired []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan check id: %w", err)
		}
		expired = append(expired, id)
	}
	return expired, rows.Err()
}

const checkColumns = `
	SELECT check_id, organization_id, branch_id, customer_id, account_id,
		transaction_id, amount, currency, transaction_type, status,
		reason, risk_score, risk_level, rules_evaluated, rules_triggered,
		sanctions_matches, velocity, breakdown, flagged_for_sar,
		reviewed_by, reviewed_at, review_notes, created_at, expires_at
	FROM compliance_checks
`

func scanCheck(row pgx.Row) (*domain.ComplianceCheck, error) {
	var check domain.ComplianceCheck
	var matches, velocityJSON, breakdown []byte
	err := row.Scan(
		&check.CheckID, &check.OrganizationID, &check.BranchID, &check.CustomerID, &check.AccountID,
		&check.TransactionID, &check.Amount, &check.Currency, &check.TransactionType, &check.Status,
		&check.Reason, &check.RiskScore, &check.RiskLevel, &check.RulesEvaluated, &check.RulesTriggered,
		&matches, &velocityJSON, &breakdown, &check.FlaggedForSAR,
		&check.ReviewedBy, &check.ReviewedAt, &check.ReviewNotes, &check.CreatedAt, &check.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		if err := json.Unmarshal(matches, &check.SanctionsMatches); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sanctions matches: %w", err)
		}
	}
	if len(velocityJSON) > 0 {
		if err := json.Unmarshal(velocityJSON, &check.Velocity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal velocity: %w", err)
		}
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &check.Breakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal breakdown: %w", err)
		}
	}
	return &check, nil
}

func marshalCheckBlobs(check *domain.ComplianceCheck) (matches, velocityJSON, breakdown []byte, err error) {
	if check.SanctionsMatches != nil {
		if matches, err = json.Marshal(check.SanctionsMatches); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal sanctions matches: %w", err)
		}
	}
	if check.Velocity != nil {
		if velocityJSON, err = json.Marshal(check.Velocity); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal velocity: %w", err)
		}
	}
	if check.Breakdown != nil {
		if breakdown, err = json.Marshal(check.Breakdown); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal breakdown: %w", err)
		}
	}
	return matches, velocityJSON, breakdown, nil
}
