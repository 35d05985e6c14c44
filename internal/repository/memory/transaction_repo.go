package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banking/compliance-engine/internal/domain"
)

type TransactionRepository struct {
	mu   sync.RWMutex
	txns []domain.Transaction
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

func (r *TransactionRepository) Record(_ context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns = append(r.txns, *tx)
	return nil
}

func (r *TransactionRepository) RecentByCustomer(_ context.Context, orgID, customerID uuid.UUID, since time.Time) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Transaction
	for _, tx := range r.txns {
		if tx.OrganizationID == orgID && tx.CustomerID == customerID && !tx.OccurredAt.Before(since) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out, nil
}

func (r *TransactionRepository) WindowByOrganization(_ context.Context, orgID uuid.UUID, from, to time.Time) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Transaction
	for _, tx := range r.txns {
		if tx.OrganizationID != orgID {
			continue
		}
		if tx.OccurredAt.Before(from) || !tx.OccurredAt.Before(to) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}
