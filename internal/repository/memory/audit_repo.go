package memory

import (
	"context"
	"sync"

	"github.com/banking/compliance-engine/internal/domain"
)

type AuditRepository struct {
	mu      sync.RWMutex
	entries []*domain.AuditEntry
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Append(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *entry
	r.entries = append(r.entries, &clone)
	return nil
}

func (r *AuditRepository) List(_ context.Context, filter domain.AuditEntryFilter) ([]*domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.AuditEntry
	for _, entry := range r.entries {
		if filter.EntityType != nil && entry.EntityType != *filter.EntityType {
			continue
		}
		if filter.EntityID != nil && entry.EntityID != *filter.EntityID {
			continue
		}
		if filter.ActorID != nil && entry.ActorID != *filter.ActorID {
			continue
		}
		if filter.StartTime != nil && entry.Timestamp.Before(*filter.StartTime) {
			continue
		}
		if filter.EndTime != nil && entry.Timestamp.After(*filter.EndTime) {
			continue
		}
		clone := *entry
		out = append(out, &clone)
	}
	return paginate(out, filter.Limit, filter.Offset), nil
}
