package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/banking/compliance-engine/internal/config"
	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/repository/postgres"
	"github.com/banking/compliance-engine/internal/risk"
	"github.com/banking/compliance-engine/internal/rules"
	"github.com/banking/compliance-engine/internal/screening"
	"github.com/banking/compliance-engine/internal/service"
	"github.com/banking/compliance-engine/internal/velocity"
)

// TestEvaluationFlow requires the Docker Compose environment running.
func TestEvaluationFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	logger, _ := zap.NewDevelopment()
	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	require.NoError(t, err)
	defer pool.Close()

	checkRepo := postgres.NewCheckRepository(pool)
	ruleRepo := postgres.NewRuleRepository(pool)
	txRepo := postgres.NewTransactionRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)
	alertRepo := postgres.NewAlertRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	watchlistRepo := postgres.NewWatchlistRepository(pool)

	screener := screening.NewScreener(watchlistRepo, screening.DefaultConfig(), logger)
	monitor := velocity.NewMonitor(txRepo, cfg.Velocity.Window, logger)
	scorer := risk.NewScorer(risk.DefaultWeights())

	svc := service.NewComplianceService(
		checkRepo, ruleRepo, settingsRepo, alertRepo, auditRepo,
		screener, monitor, rules.NewEngine(logger), scorer,
		nil, nil, nil,
		service.DefaultComplianceOptions(), logger)

	// Seed an active organization.
	orgID := uuid.New()
	maxAmount := decimal.RequireFromString("50000")
	require.NoError(t, settingsRepo.PutOrganization(ctx, &domain.OrganizationComplianceSettings{
		OrganizationID:           orgID,
		Status:                   domain.OrgActive,
		Level:                    domain.LevelStandard,
		EnableSanctionsScreening: true,
		EnableVelocityMonitoring: true,
		MaxTransactionAmount:     &maxAmount,
		AllowInternational:       true,
		VelocityMaxCount:         100,
		RiskScoreThreshold:       75,
	}))

	check, err := svc.EvaluateTransaction(ctx, domain.EvaluationRequest{
		OrganizationID:  orgID,
		CustomerID:      uuid.New(),
		AccountID:       uuid.New(),
		Amount:          decimal.RequireFromString("250"),
		Currency:        "USD",
		TransactionType: "TRANSFER",
		CustomerName:    "Jordan Michaels",
		KYCStatus:       domain.KYCVerified,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CheckApproved, check.Status)

	// The decision is durable and carries its transition history.
	stored, err := checkRepo.GetByID(ctx, check.CheckID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckApproved, stored.Status)
	assert.Equal(t, check.RiskScore, stored.RiskScore)

	trail, err := auditRepo.List(ctx, domain.AuditEntryFilter{EntityID: &check.CheckID})
	require.NoError(t, err)
	require.NotEmpty(t, trail)
	assert.Equal(t, string(domain.CheckApproved), trail[len(trail)-1].ToState)

	t.Log("Evaluation flow integration test passed")
}
