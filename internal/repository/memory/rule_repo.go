// Package memory provides in-memory repository implementations backed by
// maps and mutexes. Used by the test suites and for local development
// without external services.
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

type RuleRepository struct {
	mu    sync.RWMutex
	rules map[uuid.UUID]*domain.ComplianceRule
}

func NewRuleRepository() *RuleRepository {
	return &RuleRepository{rules: make(map[uuid.UUID]*domain.ComplianceRule)}
}

func (r *RuleRepository) Create(_ context.Context, rule *domain.ComplianceRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[rule.RuleID]; exists {
		return domain.NewError(domain.KindInvalidInput, "rule %s already exists", rule.RuleID)
	}
	clone := *rule
	r.rules[rule.RuleID] = &clone
	return nil
}

func (r *RuleRepository) GetByID(_ context.Context, ruleID uuid.UUID) (*domain.ComplianceRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[ruleID]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "rule %s not found", ruleID)
	}
	clone := *rule
	return &clone, nil
}

func (r *RuleRepository) Update(_ context.Context, rule *domain.ComplianceRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rules[rule.RuleID]
	if !ok {
		return domain.NewError(domain.KindNotFound, "rule %s not found", rule.RuleID)
	}
	clone := *rule
	clone.Version = current.Version + 1
	clone.UpdatedAt = time.Now().UTC()
	r.rules[rule.RuleID] = &clone
	rule.Version = clone.Version
	rule.UpdatedAt = clone.UpdatedAt
	return nil
}

func (r *RuleRepository) Delete(_ context.Context, ruleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[ruleID]; !ok {
		return domain.NewError(domain.KindNotFound, "rule %s not found", ruleID)
	}
	delete(r.rules, ruleID)
	return nil
}

func (r *RuleRepository) List(_ context.Context, filter repository.RuleFilter) ([]*domain.ComplianceRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.ComplianceRule
	for _, rule := range r.rules {
		if filter.OrganizationID != nil && rule.OrganizationID != *filter.OrganizationID {
			continue
		}
		if filter.RuleType != nil && rule.RuleType != *filter.RuleType {
			continue
		}
		if filter.EnabledOnly && !rule.Enabled {
			continue
		}
		clone := *rule
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *RuleRepository) ActiveForOrganization(ctx context.Context, orgID uuid.UUID) ([]*domain.ComplianceRule, error) {
	return r.List(ctx, repository.RuleFilter{OrganizationID: &orgID, EnabledOnly: true})
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
