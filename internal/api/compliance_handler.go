package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/repository"
	"github.com/banking/compliance-engine/internal/service"
)

// DecisionSearcher is the free-text search surface over indexed decisions.
type DecisionSearcher interface {
	SearchDecisions(ctx context.Context, query string, from, size int) ([]map[string]interface{}, int64, error)
}

type ComplianceHandler struct {
	compliance *service.ComplianceService
	search     DecisionSearcher
}

func NewComplianceHandler(compliance *service.ComplianceService, search DecisionSearcher) *ComplianceHandler {
	return &ComplianceHandler{
		compliance: compliance,
		search:     search,
	}
}

// Evaluate handles POST /compliance/evaluate
func (h *ComplianceHandler) Evaluate(c echo.Context) error {
	var req domain.EvaluationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	check, err := h.compliance.EvaluateTransaction(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, check)
}

// GetCheck handles GET /compliance/checks/:check_id
func (h *ComplianceHandler) GetCheck(c echo.Context) error {
	checkID, err := uuid.Parse(c.Param("check_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid check_id"})
	}

	check, err := h.compliance.GetCheck(c.Request().Context(), checkID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, check)
}

// ListChecks handles GET /compliance/checks
func (h *ComplianceHandler) ListChecks(c echo.Context) error {
	filter := repository.CheckFilter{Limit: 100}
	if v := c.QueryParam("organization_id"); v != "" {
		orgID, err := uuid.Parse(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid organization_id"})
		}
		filter.OrganizationID = &orgID
	}
	if v := c.QueryParam("customer_id"); v != "" {
		customerID, err := uuid.Parse(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid customer_id"})
		}
		filter.CustomerID = &customerID
	}
	if v := c.QueryParam("status"); v != "" {
		status := domain.CheckStatus(v)
		filter.Status = &status
	}
	if v := c.QueryParam("flagged_for_sar"); v != "" {
		flagged := v == "true"
		filter.FlaggedForSAR = &flagged
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v > 0 {
		filter.Offset = v
	}

	checks, err := h.compliance.ListChecks(c.Request().Context(), filter)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"checks": checks, "count": len(checks)})
}

type reviewRequest struct {
	ReviewerID uuid.UUID `json:"reviewer_id"`
	Notes      string    `json:"notes,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// ApproveCheck handles POST /compliance/checks/:check_id/approve
func (h *ComplianceHandler) ApproveCheck(c echo.Context) error {
	checkID, err := uuid.Parse(c.Param("check_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid check_id"})
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ReviewerID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "reviewer_id is required"})
	}

	check, err := h.compliance.ApproveCheck(c.Request().Context(), checkID, req.ReviewerID, req.Notes)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, check)
}

// RejectCheck handles POST /compliance/checks/:check_id/reject
func (h *ComplianceHandler) RejectCheck(c echo.Context) error {
	checkID, err := uuid.Parse(c.Param("check_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid check_id"})
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ReviewerID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "reviewer_id is required"})
	}

	check, err := h.compliance.RejectCheck(c.Request().Context(), checkID, req.ReviewerID, req.Reason)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, check)
}

// GetCheckAuditTrail handles GET /compliance/checks/:check_id/audit
func (h *ComplianceHandler) GetCheckAuditTrail(c echo.Context) error {
	checkID, err := uuid.Parse(c.Param("check_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid check_id"})
	}

	trail, err := h.compliance.AuditTrail(c.Request().Context(), checkID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"entries": trail, "count": len(trail)})
}

// CreateRule handles POST /compliance/rules
func (h *ComplianceHandler) CreateRule(c echo.Context) error {
	var rule domain.ComplianceRule
	if err := c.Bind(&rule); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.compliance.CreateRule(c.Request().Context(), &rule); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, rule)
}

// GetRule handles GET /compliance/rules/:rule_id
func (h *ComplianceHandler) GetRule(c echo.Context) error {
	ruleID, err := uuid.Parse(c.Param("rule_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid rule_id"})
	}

	rule, err := h.compliance.GetRule(c.Request().Context(), ruleID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, rule)
}

// UpdateRule handles PUT /compliance/rules/:rule_id
func (h *ComplianceHandler) UpdateRule(c echo.Context) error {
	ruleID, err := uuid.Parse(c.Param("rule_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid rule_id"})
	}
	var rule domain.ComplianceRule
	if err := c.Bind(&rule); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	rule.RuleID = ruleID

	if err := h.compliance.UpdateRule(c.Request().Context(), &rule); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, rule)
}

// DeleteRule handles DELETE /compliance/rules/:rule_id
func (h *ComplianceHandler) DeleteRule(c echo.Context) error {
	ruleID, err := uuid.Parse(c.Param("rule_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid rule_id"})
	}

	if err := h.compliance.DeleteRule(c.Request().Context(), ruleID); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListRules handles GET /compliance/rules
func (h *ComplianceHandler) ListRules(c echo.Context) error {
	filter := repository.RuleFilter{Limit: 100}
	if v := c.QueryParam("organization_id"); v != "" {
		orgID, err := uuid.Parse(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid organization_id"})
		}
		filter.OrganizationID = &orgID
	}
	if c.QueryParam("enabled") == "true" {
		filter.EnabledOnly = true
	}

	rules, err := h.compliance.ListRules(c.Request().Context(), filter)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"rules": rules, "count": len(rules)})
}

// PutSettings handles PUT /compliance/settings/:organization_id
func (h *ComplianceHandler) PutSettings(c echo.Context) error {
	orgID, err := uuid.Parse(c.Param("organization_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid organization_id"})
	}
	var settings domain.OrganizationComplianceSettings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	settings.OrganizationID = orgID

	if err := h.compliance.PutOrganizationSettings(c.Request().Context(), &settings); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

// SearchDecisions handles GET /compliance/search
func (h *ComplianceHandler) SearchDecisions(c echo.Context) error {
	if h.search == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "search is not configured"})
	}
	query := c.QueryParam("q")
	if query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing query parameter 'q'"})
	}
	from, _ := strconv.Atoi(c.QueryParam("from"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size == 0 {
		size = 20
	}

	hits, total, err := h.search.SearchDecisions(c.Request().Context(), query, from, size)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "search failed"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"hits": hits, "total": total})
}

// RegisterRoutes registers the compliance API routes
func (h *ComplianceHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/evaluate", h.Evaluate)
	g.GET("/checks", h.ListChecks)
	g.GET("/checks/:check_id", h.GetCheck)
	g.POST("/checks/:check_id/approve", h.ApproveCheck)
	g.POST("/checks/:check_id/reject", h.RejectCheck)
	g.GET("/checks/:check_id/audit", h.GetCheckAuditTrail)
	g.POST("/rules", h.CreateRule)
	g.GET("/rules", h.ListRules)
	g.GET("/rules/:rule_id", h.GetRule)
	g.PUT("/rules/:rule_id", h.UpdateRule)
	g.DELETE("/rules/:rule_id", h.DeleteRule)
	g.PUT("/settings/:organization_id", h.PutSettings)
	g.GET("/search", h.SearchDecisions)
}
