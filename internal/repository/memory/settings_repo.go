package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/banking/compliance-engine/internal/domain"
)

type SettingsRepository struct {
	mu        sync.RWMutex
	orgs      map[uuid.UUID]*domain.OrganizationComplianceSettings
	branches  map[uuid.UUID]*domain.BranchComplianceOverride
	reporting map[uuid.UUID]*domain.ReportingConfig
}

func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{
		orgs:      make(map[uuid.UUID]*domain.OrganizationComplianceSettings),
		branches:  make(map[uuid.UUID]*domain.BranchComplianceOverride),
		reporting: make(map[uuid.UUID]*domain.ReportingConfig),
	}
}

func (r *SettingsRepository) GetOrganization(_ context.Context, orgID uuid.UUID) (*domain.OrganizationComplianceSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	settings, ok := r.orgs[orgID]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "no compliance settings for organization %s", orgID)
	}
	clone := *settings
	return &clone, nil
}

func (r *SettingsRepository) PutOrganization(_ context.Context, settings *domain.OrganizationComplianceSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *settings
	r.orgs[settings.OrganizationID] = &clone
	return nil
}

func (r *SettingsRepository) GetBranchOverride(_ context.Context, branchID uuid.UUID) (*domain.BranchComplianceOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	override, ok := r.branches[branchID]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "no override for branch %s", branchID)
	}
	clone := *override
	return &clone, nil
}

func (r *SettingsRepository) PutBranchOverride(_ context.Context, override *domain.BranchComplianceOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *override
	r.branches[override.BranchID] = &clone
	return nil
}

func (r *SettingsRepository) GetReportingConfig(_ context.Context, orgID uuid.UUID) (*domain.ReportingConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.reporting[orgID]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "no reporting config for organization %s", orgID)
	}
	clone := *cfg
	return &clone, nil
}

func (r *SettingsRepository) PutReportingConfig(_ context.Context, cfg *domain.ReportingConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *cfg
	r.reporting[cfg.OrganizationID] = &clone
	return nil
}

func (r *SettingsRepository) ListOrganizations(_ context.Context) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(r.orgs))
	for id := range r.orgs {
		out = append(out, id)
	}
	return out, nil
}
