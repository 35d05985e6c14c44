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

type AlertRepository struct {
	pool *pgxpool.Pool
}

func NewAlertRepository(pool *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{pool: pool}
}

func (r *AlertRepository) Create(ctx context.Context, alert *domain.ComplianceAlert) error {
	const query = `
		INSERT INTO compliance_alerts (
			alert_id, organization_id, customer_id, check_id, alert_type,
			severity, title, description, sar_flagged, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		alert.AlertID, alert.OrganizationID, alert.CustomerID, alert.CheckID, alert.AlertType,
		alert.Severity, alert.Title, alert.Description, alert.SARFlagged, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, alertID uuid.UUID) (*domain.ComplianceAlert, error) {
	const query = alertColumns + ` WHERE alert_id = $1`
	alert, err := scanAlert(r.pool.QueryRow(ctx, query, alertID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.KindNotFound, "alert %s not found", alertID)
		}
		return nil, fmt.Errorf("failed to query alert: %w", err)
	}
	return alert, nil
}

func (r *AlertRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*domain.ComplianceAlert, error) {
	query := alertColumns + ` WHERE organization_id = $1 ORDER BY created_at DESC`
	args := []interface{}{orgID}
	if limit > 0 {
		query += " LIMIT $2 OFFSET $3"
		args = append(args, limit, offset)
	}
	return r.queryAlerts(ctx, query, args...)
}

func (r *AlertRepository) UnflaggedSARCandidates(ctx context.Context, orgID uuid.UUID) ([]*domain.ComplianceAlert, error) {
	const query = alertColumns + `
		WHERE organization_id = $1 AND sar_flagged = false AND severity IN ($2, $3)
		ORDER BY created_at ASC
	`
	return r.queryAlerts(ctx, query, orgID, domain.RiskHigh, domain.RiskCritical)
}

func (r *AlertRepository) MarkSARFlagged(ctx context.Context, alertIDs []uuid.UUID) error {
	if len(alertIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE compliance_alerts SET sar_flagged = true WHERE alert_id = ANY($1)`, alertIDs)
	if err != nil {
		return fmt.Errorf("failed to flag alerts: %w", err)
	}
	return nil
}

const alertColumns = `
	SELECT alert_id, organization_id, customer_id, check_id, alert_type,
		severity, title, description, sar_flagged, created_at
	FROM compliance_alerts
`

func scanAlert(row pgx.Row) (*domain.ComplianceAlert, error) {
	var alert domain.ComplianceAlert
	err := row.Scan(
		&alert.AlertID, &alert.OrganizationID, &alert.CustomerID, &alert.CheckID, &alert.AlertType,
		&alert.Severity, &alert.Title, &alert.Description, &alert.SARFlagged, &alert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *AlertRepository) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*domain.ComplianceAlert, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.ComplianceAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}
