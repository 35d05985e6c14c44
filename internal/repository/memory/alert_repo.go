package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/banking/compliance-engine/internal/domain"
)

type AlertRepository struct {
	mu     sync.RWMutex
	alerts map[uuid.UUID]*domain.ComplianceAlert
}

func NewAlertRepository() *AlertRepository {
	return &AlertRepository{alerts: make(map[uuid.UUID]*domain.ComplianceAlert)}
}

func (r *AlertRepository) Create(_ context.Context, alert *domain.ComplianceAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *alert
	r.alerts[alert.AlertID] = &clone
	return nil
}

func (r *AlertRepository) GetByID(_ context.Context, alertID uuid.UUID) (*domain.ComplianceAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	alert, ok := r.alerts[alertID]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "alert %s not found", alertID)
	}
	clone := *alert
	return &clone, nil
}

func (r *AlertRepository) ListByOrganization(_ context.Context, orgID uuid.UUID, limit, offset int) ([]*domain.ComplianceAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.ComplianceAlert
	for _, alert := range r.alerts {
		if alert.OrganizationID != orgID {
			continue
		}
		clone := *alert
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

// UnflaggedSARCandidates returns high-severity alerts not yet attached to a
// SAR. The reconciliation worker consumes these.
func (r *AlertRepository) UnflaggedSARCandidates(_ context.Context, orgID uuid.UUID) ([]*domain.ComplianceAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.ComplianceAlert
	for _, alert := range r.alerts {
		if alert.OrganizationID != orgID || alert.SARFlagged {
			continue
		}
		if alert.Severity != domain.RiskHigh && alert.Severity != domain.RiskCritical {
			continue
		}
		clone := *alert
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *AlertRepository) MarkSARFlagged(_ context.Context, alertIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range alertIDs {
		if alert, ok := r.alerts[id]; ok {
			clone := *alert
			clone.SARFlagged = true
			r.alerts[id] = &clone
		}
	}
	return nil
}
