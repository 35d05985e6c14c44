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

	"github.com/banking/compliance-engine/internal/crypto"
	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/repository"
)

// ReportRepository persists regulatory reports. Subject identification
// numbers are encrypted before they touch the database; a unique index on
// (organization_id, aggregation_key) makes CTR generation idempotent.
type ReportRepository struct {
	pool      *pgxpool.Pool
	encryptor *crypto.FieldEncryptor
}

func NewReportRepository(pool *pgxpool.Pool, encryptor *crypto.FieldEncryptor) *ReportRepository {
	return &ReportRepository{pool: pool, encryptor: encryptor}
}

// storedSubject is the at-rest shape of a report subject.
type storedSubject struct {
	domain.ReportSubject
	EncryptedIdentification string `json:"encrypted_identification,omitempty"`
	EncryptionKeyVersion    int    `json:"encryption_key_version,omitempty"`
}

func (r *ReportRepository) Create(ctx context.Context, report *domain.RegulatoryReport) error {
	const query = `
		INSERT INTO regulatory_reports (
			report_id, organization_id, branch_id, report_type, status, priority,
			subjects, transaction_ids, total_amount, currency,
			aggregation_key, window_start, window_end,
			narrative, activity_types, compliance_check_id, alert_ids,
			prepared_by, approvals, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			NULLIF($11, ''), $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21
		)
	`
	subjects, err := r.encryptSubjects(report.Subjects)
	if err != nil {
		return err
	}
	activityTypes, err := json.Marshal(report.ActivityTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal activity types: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		report.ReportID, report.OrganizationID, report.BranchID, report.ReportType, report.Status, report.Priority,
		subjects, report.TransactionIDs, report.TotalAmount, report.Currency,
		report.AggregationKey, report.WindowStart, report.WindowEnd,
		report.Narrative, activityTypes, report.ComplianceCheckID, report.AlertIDs,
		report.PreparedBy, report.Approvals, report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.KindPolicyViolation, err,
				"a report already covers aggregation key %s", report.AggregationKey)
		}
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, reportID uuid.UUID) (*domain.RegulatoryReport, error) {
	const query = reportColumns + ` WHERE report_id = $1`
	report, err := r.scanReport(r.pool.QueryRow(ctx, query, reportID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.KindNotFound, "report %s not found", reportID)
		}
		return nil, fmt.Errorf("failed to query report: %w", err)
	}
	return report, nil
}

func (r *ReportRepository) GetByAggregationKey(ctx context.Context, orgID uuid.UUID, key string) (*domain.RegulatoryReport, error) {
	const query = reportColumns + ` WHERE organization_id = $1 AND aggregation_key = $2`
	report, err := r.scanReport(r.pool.QueryRow(ctx, query, orgID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.KindNotFound, "no report for aggregation key %s", key)
		}
		return nil, fmt.Errorf("failed to query report: %w", err)
	}
	return report, nil
}

func (r *ReportRepository) List(ctx context.Context, filter repository.ReportFilter) ([]*domain.RegulatoryReport, error) {
	query := reportColumns + ` WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.OrganizationID != nil {
		query += fmt.Sprintf(" AND organization_id = $%d", argIdx)
		args = append(args, *filter.OrganizationID)
		argIdx++
	}
	if filter.ReportType != nil {
		query += fmt.Sprintf(" AND report_type = $%d", argIdx)
		args = append(args, *filter.ReportType)
		argIdx++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
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
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.RegulatoryReport
	for rows.Next() {
		report, err := r.scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// Update replaces the editable content of a DRAFT or PENDING_REVIEW report.
func (r *ReportRepository) Update(ctx context.Context, report *domain.RegulatoryReport) error {
	const query = `
		UPDATE regulatory_reports SET
			subjects = $2, transaction_ids = $3, total_amount = $4, currency = $5,
			narrative = $6, activity_types = $7, alert_ids = $8, priority = $9,
			updated_at = NOW()
		WHERE report_id = $1 AND status IN ($10, $11)
		RETURNING updated_at
	`
	subjects, err := r.encryptSubjects(report.Subjects)
	if err != nil {
		return err
	}
	activityTypes, err := json.Marshal(report.ActivityTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal activity types: %w", err)
	}

	err = r.pool.QueryRow(ctx, query,
		report.ReportID, subjects, report.TransactionIDs, report.TotalAmount, report.Currency,
		report.Narrative, activityTypes, report.AlertIDs, report.Priority,
		domain.ReportDraft, domain.ReportPendingReview,
	).Scan(&report.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			current, getErr := r.GetByID(ctx, report.ReportID)
			if getErr != nil {
				return getErr
			}
			return domain.NewError(domain.KindInvalidStateTransition,
				"report %s is %s and cannot be edited", report.ReportID, current.Status)
		}
		return fmt.Errorf("failed to update report: %w", err)
	}
	return nil
}

// UpdateStatus transitions the report only when it is still in the expected
// status, so concurrent reviewers cannot double-apply a transition.
func (r *ReportRepository) UpdateStatus(ctx context.Context, report *domain.RegulatoryReport, expected domain.ReportStatus) error {
	const query = `
		UPDATE regulatory_reports SET
			status = $3, approvals = $4, reviewed_by = $5, reviewed_at = $6,
			review_notes = $7, rejection_reason = $8,
			filed_by = $9, filed_at = $10, filing_identifier = $11,
			escalated_at = $12, priority = $13, updated_at = NOW()
		WHERE report_id = $1 AND status = $2
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		report.ReportID, expected,
		report.Status, report.Approvals, report.ReviewedBy, report.ReviewedAt,
		report.ReviewNotes, report.RejectionReason,
		report.FiledBy, report.FiledAt, report.FilingIdentifier,
		report.EscalatedAt, report.Priority,
	).Scan(&report.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			current, getErr := r.GetByID(ctx, report.ReportID)
			if getErr != nil {
				return getErr
			}
			return domain.NewError(domain.KindInvalidStateTransition,
				"report %s is %s, expected %s", report.ReportID, current.Status, expected)
		}
		return fmt.Errorf("failed to update report status: %w", err)
	}
	return nil
}

func (r *ReportRepository) PendingReviewOlderThan(ctx context.Context, orgID uuid.UUID, cutoff time.Time) ([]*domain.RegulatoryReport, error) {
	const query = reportColumns + `
		WHERE organization_id = $1 AND status = $2
			AND escalated_at IS NULL AND updated_at < $3
	`
	rows, err := r.pool.Query(ctx, query, orgID, domain.ReportPendingReview, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.RegulatoryReport
	for rows.Next() {
		report, err := r.scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

const reportColumns = `
	SELECT report_id, organization_id, branch_id, report_type, status, priority,
		subjects, transaction_ids, total_amount, currency,
		COALESCE(aggregation_key, ''), window_start, window_end,
		narrative, activity_types, compliance_check_id, alert_ids,
		prepared_by, approvals, reviewed_by, reviewed_at, review_notes,
		rejection_reason, filed_by, filed_at, filing_identifier,
		escalated_at, created_at, updated_at
	FROM regulatory_reports
`

func (r *ReportRepository) scanReport(row pgx.Row) (*domain.RegulatoryReport, error) {
	var report domain.RegulatoryReport
	var subjects, activityTypes []byte
	err := row.Scan(
		&report.ReportID, &report.OrganizationID, &report.BranchID, &report.ReportType, &report.Status, &report.Priority,
		&subjects, &report.TransactionIDs, &report.TotalAmount, &report.Currency,
		&report.AggregationKey, &report.WindowStart, &report.WindowEnd,
		&report.Narrative, &activityTypes, &report.ComplianceCheckID, &report.AlertIDs,
		&report.PreparedBy, &report.Approvals, &report.ReviewedBy, &report.ReviewedAt, &report.ReviewNotes,
		&report.RejectionReason, &report.FiledBy, &report.FiledAt, &report.FilingIdentifier,
		&report.EscalatedAt, &report.CreatedAt, &report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if report.Subjects, err = r.decryptSubjects(subjects); err != nil {
		return nil, err
	}
	if len(activityTypes) > 0 {
		if err := json.Unmarshal(activityTypes, &report.ActivityTypes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity types: %w", err)
		}
	}
	return &report, nil
}

func (r *ReportRepository) encryptSubjects(subjects []domain.ReportSubject) ([]byte, error) {
	stored := make([]storedSubject, 0, len(subjects))
	for _, s := range subjects {
		ss := storedSubject{ReportSubject: s}
		if s.IdentificationNumber != "" {
			ciphertext, version, err := r.encryptor.Encrypt(s.IdentificationNumber)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt subject identification: %w", err)
			}
			ss.IdentificationNumber = ""
			ss.EncryptedIdentification = ciphertext
			ss.EncryptionKeyVersion = version
		}
		stored = append(stored, ss)
	}
	blob, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subjects: %w", err)
	}
	return blob, nil
}

func (r *ReportRepository) decryptSubjects(blob []byte) ([]domain.ReportSubject, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var stored []storedSubject
	if err := json.Unmarshal(blob, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subjects: %w", err)
	}
	subjects := make([]domain.ReportSubject, 0, len(stored))
	for _, ss := range stored {
		subject := ss.ReportSubject
		if ss.EncryptedIdentification != "" {
			plaintext, err := r.encryptor.Decrypt(ss.EncryptedIdentification, ss.EncryptionKeyVersion)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt subject identification: %w", err)
			}
			subject.IdentificationNumber = plaintext
		}
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

// isUniqueViolation checks for the postgres unique_violation SQLSTATE.
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
