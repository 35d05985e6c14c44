package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/repository"
)

type CheckRepository struct {
	mu     sync.RWMutex
	checks map[uuid.UUID]*domain.ComplianceCheck
}

func NewCheckRepository() *CheckRepository {
	return &CheckRepository{checks: make(map[uuid.UUID]*domain.ComplianceCheck)}
}

func (r *CheckRepository) Create(_ context.Context, check *domain.ComplianceCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.checks[check.CheckID]; exists {
		return domain.NewError(domain.KindInvalidInput, "check %s already exists", check.CheckID)
	}
	clone := *check
	r.checks[check.CheckID] = &clone
	return nil
}

func (r *CheckRepository) GetByID(_ context.Context, checkID uuid.UUID) (*domain.ComplianceCheck, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	check, ok := r.checks[checkID]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "check %s not found", checkID)
	}
	clone := *check
	return &clone, nil
}

func (r *CheckRepository) List(_ context.Context, filter repository.CheckFilter) ([]*domain.ComplianceCheck, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.ComplianceCheck
	for _, check := range r.checks {
		if filter.OrganizationID != nil && check.OrganizationID != *filter.OrganizationID {
			continue
		}
		if filter.CustomerID != nil && check.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && check.Status != *filter.Status {
			continue
		}
		if filter.FlaggedForSAR != nil && check.FlaggedForSAR != *filter.FlaggedForSAR {
			continue
		}
		if filter.CreatedAfter != nil && check.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && check.CreatedAt.After(*filter.CreatedBefore) {
			continue
		}
		clone := *check
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

// UpdateStatus applies the transition only when the stored check is still in
// the expected status, mirroring the SQL conditional update.
func (r *CheckRepository) UpdateStatus(_ context.Context, check *domain.ComplianceCheck, expected domain.CheckStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.checks[check.CheckID]
	if !ok {
		return domain.NewError(domain.KindNotFound, "check %s not found", check.CheckID)
	}
	if current.Status != expected {
		return domain.NewError(domain.KindInvalidStateTransition,
			"check %s is %s, expected %s", check.CheckID, current.Status, expected)
	}
	clone := *check
	r.checks[check.CheckID] = &clone
	return nil
}

func (r *CheckRepository) ExpireOlderThan(_ context.Context, orgID uuid.UUID, cutoff time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []uuid.UUID
	for id, check := range r.checks {
		if check.OrganizationID != orgID || check.Status != domain.CheckReview {
			continue
		}
		if check.CreatedAt.Before(cutoff) {
			clone := *check
			clone.Status = domain.CheckExpired
			r.checks[id] = &clone
			expired = append(expired, id)
		}
	}
	return expired, nil
}
