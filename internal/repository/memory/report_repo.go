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

type ReportRepository struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]*domain.RegulatoryReport
	// byAggKey enforces the per-organization aggregation-key uniqueness the
	// SQL schema carries as a partial unique index.
	byAggKey map[string]uuid.UUID
}

func NewReportRepository() *ReportRepository {
	return &ReportRepository{
		reports:  make(map[uuid.UUID]*domain.RegulatoryReport),
		byAggKey: make(map[string]uuid.UUID),
	}
}

func aggIndexKey(orgID uuid.UUID, key string) string {
	return orgID.String() + "|" + key
}

func (r *ReportRepository) Create(_ context.Context, report *domain.RegulatoryReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.reports[report.ReportID]; exists {
		return domain.NewError(domain.KindInvalidInput, "report %s already exists", report.ReportID)
	}
	if report.AggregationKey != "" {
		idx := aggIndexKey(report.OrganizationID, report.AggregationKey)
		if existing, taken := r.byAggKey[idx]; taken {
			return domain.NewError(domain.KindPolicyViolation,
				"report %s already covers aggregation key %s", existing, report.AggregationKey)
		}
		r.byAggKey[idx] = report.ReportID
	}
	clone := cloneReport(report)
	r.reports[report.ReportID] = clone
	return nil
}

func (r *ReportRepository) GetByID(_ context.Context, reportID uuid.UUID) (*domain.RegulatoryReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[reportID]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "report %s not found", reportID)
	}
	return cloneReport(report), nil
}

func (r *ReportRepository) GetByAggregationKey(_ context.Context, orgID uuid.UUID, key string) (*domain.RegulatoryReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAggKey[aggIndexKey(orgID, key)]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "no report for aggregation key %s", key)
	}
	return cloneReport(r.reports[id]), nil
}

func (r *ReportRepository) List(_ context.Context, filter repository.ReportFilter) ([]*domain.RegulatoryReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.RegulatoryReport
	for _, report := range r.reports {
		if filter.OrganizationID != nil && report.OrganizationID != *filter.OrganizationID {
			continue
		}
		if filter.ReportType != nil && report.ReportType != *filter.ReportType {
			continue
		}
		if filter.Status != nil && report.Status != *filter.Status {
			continue
		}
		if filter.CreatedAfter != nil && report.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && report.CreatedAt.After(*filter.CreatedBefore) {
			continue
		}
		out = append(out, cloneReport(report))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *ReportRepository) Update(_ context.Context, report *domain.RegulatoryReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.reports[report.ReportID]
	if !ok {
		return domain.NewError(domain.KindNotFound, "report %s not found", report.ReportID)
	}
	if !current.Editable() {
		return domain.NewError(domain.KindInvalidStateTransition,
			"report %s is %s and cannot be edited", report.ReportID, current.Status)
	}
	clone := cloneReport(report)
	clone.Status = current.Status
	clone.UpdatedAt = time.Now().UTC()
	r.reports[report.ReportID] = clone
	report.UpdatedAt = clone.UpdatedAt
	return nil
}

func (r *ReportRepository) UpdateStatus(_ context.Context, report *domain.RegulatoryReport, expected domain.ReportStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.reports[report.ReportID]
	if !ok {
		return domain.NewError(domain.KindNotFound, "report %s not found", report.ReportID)
	}
	if current.Status != expected {
		return domain.NewError(domain.KindInvalidStateTransition,
			"report %s is %s, expected %s", report.ReportID, current.Status, expected)
	}
	clone := cloneReport(report)
	clone.UpdatedAt = time.Now().UTC()
	r.reports[report.ReportID] = clone
	report.UpdatedAt = clone.UpdatedAt
	return nil
}

func (r *ReportRepository) PendingReviewOlderThan(_ context.Context, orgID uuid.UUID, cutoff time.Time) ([]*domain.RegulatoryReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.RegulatoryReport
	for _, report := range r.reports {
		if report.OrganizationID != orgID || report.Status != domain.ReportPendingReview {
			continue
		}
		if report.EscalatedAt != nil {
			continue
		}
		if report.UpdatedAt.Before(cutoff) {
			out = append(out, cloneReport(report))
		}
	}
	return out, nil
}

// cloneReport deep-copies the slices so callers cannot mutate stored state.
func cloneReport(report *domain.RegulatoryReport) *domain.RegulatoryReport {
	clone := *report
	clone.Subjects = append([]domain.ReportSubject(nil), report.Subjects...)
	clone.TransactionIDs = append([]uuid.UUID(nil), report.TransactionIDs...)
	clone.ActivityTypes = append([]domain.SuspiciousActivityType(nil), report.ActivityTypes...)
	clone.AlertIDs = append([]uuid.UUID(nil), report.AlertIDs...)
	clone.Approvals = append([]uuid.UUID(nil), report.Approvals...)
	return &clone
}
