package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/compliance-engine/internal/domain"
)

// TransactionRepository is the transaction-history store backing velocity
// monitoring and the CTR sweep.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) Record(ctx context.Context, tx *domain.Transaction) error {
	const query = `
		INSERT INTO transactions (
			transaction_id, organization_id, customer_id, account_id,
			amount, currency, type, country, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		tx.TransactionID, tx.OrganizationID, tx.CustomerID, tx.AccountID,
		tx.Amount, tx.Currency, tx.Type, tx.Country, tx.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) RecentByCustomer(ctx context.Context, orgID, customerID uuid.UUID, since time.Time) ([]domain.Transaction, error) {
	const query = txColumns + `
		WHERE organization_id = $1 AND customer_id = $2 AND occurred_at >= $3
		ORDER BY occurred_at DESC
	`
	return r.queryTransactions(ctx, query, orgID, customerID, since)
}

func (r *TransactionRepository) WindowByOrganization(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]domain.Transaction, error) {
	const query = txColumns + `
		WHERE organization_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at ASC
	`
	return r.queryTransactions(ctx, query, orgID, from, to)
}

const txColumns = `
	SELECT transaction_id, organization_id, customer_id, account_id,
		amount, currency, type, country, occurred_at
	FROM transactions
`

func (r *TransactionRepository) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(
			&tx.TransactionID, &tx.OrganizationID, &tx.CustomerID, &tx.AccountID,
			&tx.Amount, &tx.Currency, &tx.Type, &tx.Country, &tx.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, tx)
	}
	return txns, rows.Err()
}
