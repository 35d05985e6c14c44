package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/repository"
	"github.com/banking/compliance-engine/internal/service"
)

type RegulatoryHandler struct {
	regulatory *service.RegulatoryService
}

func NewRegulatoryHandler(regulatory *service.RegulatoryService) *RegulatoryHandler {
	return &RegulatoryHandler{regulatory: regulatory}
}

// GenerateCTR handles POST /reports/ctr
func (h *RegulatoryHandler) GenerateCTR(c echo.Context) error {
	var in service.GenerateCTRInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	report, err := h.regulatory.GenerateCTR(c.Request().Context(), in)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, report)
}

// GenerateSAR handles POST /reports/sar
func (h *RegulatoryHandler) GenerateSAR(c echo.Context) error {
	var in service.GenerateSARInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	report, err := h.regulatory.GenerateSAR(c.Request().Context(), in)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, report)
}

// CheckCTRRequired handles GET /reports/ctr/required
func (h *RegulatoryHandler) CheckCTRRequired(c echo.Context) error {
	orgID, err := uuid.Parse(c.QueryParam("organization_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid organization_id"})
	}
	customerID, err := uuid.Parse(c.QueryParam("customer_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid customer_id"})
	}
	amount, err := decimal.NewFromString(c.QueryParam("amount"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid amount"})
	}
	date := time.Now().UTC()
	if v := c.QueryParam("date"); v != "" {
		date, err = time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid date, expected YYYY-MM-DD"})
		}
	}
	currency := c.QueryParam("currency")
	if currency == "" {
		currency = "USD"
	}

	required, err := h.regulatory.CheckCTRRequired(c.Request().Context(), orgID, customerID, date, amount, currency)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"required": required, "amount": amount, "currency": currency})
}

// GetReport handles GET /reports/:report_id
func (h *RegulatoryHandler) GetReport(c echo.Context) error {
	reportID, err := uuid.Parse(c.Param("report_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid report_id"})
	}

	report, err := h.regulatory.GetReport(c.Request().Context(), reportID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// ListReports handles GET /reports
func (h *RegulatoryHandler) ListReports(c echo.Context) error {
	filter := repository.ReportFilter{Limit: 100}
	if v := c.QueryParam("organization_id"); v != "" {
		orgID, err := uuid.Parse(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid organization_id"})
		}
		filter.OrganizationID = &orgID
	}
	if v := c.QueryParam("type"); v != "" {
		reportType := domain.ReportType(v)
		filter.ReportType = &reportType
	}
	if v := c.QueryParam("status"); v != "" {
		status := domain.ReportStatus(v)
		filter.Status = &status
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v > 0 {
		filter.Offset = v
	}

	reports, err := h.regulatory.ListReports(c.Request().Context(), filter)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"reports": reports, "count": len(reports)})
}

type reportActionRequest struct {
	ActorID uuid.UUID `json:"actor_id"`
	Notes   string    `json:"notes,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

func bindReportAction(c echo.Context) (uuid.UUID, reportActionRequest, error) {
	reportID, err := uuid.Parse(c.Param("report_id"))
	if err != nil {
		return uuid.Nil, reportActionRequest{}, domain.NewError(domain.KindInvalidInput, "invalid report_id")
	}
	var req reportActionRequest
	if err := c.Bind(&req); err != nil {
		return uuid.Nil, reportActionRequest{}, domain.NewError(domain.KindInvalidInput, "invalid request body")
	}
	if req.ActorID == uuid.Nil {
		return uuid.Nil, reportActionRequest{}, domain.NewError(domain.KindInvalidInput, "actor_id is required")
	}
	return reportID, req, nil
}

// SubmitReport handles POST /reports/:report_id/submit
func (h *RegulatoryHandler) SubmitReport(c echo.Context) error {
	reportID, req, err := bindReportAction(c)
	if err != nil {
		return errorResponse(c, err)
	}

	report, err := h.regulatory.SubmitForReview(c.Request().Context(), reportID, req.ActorID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// ApproveReport handles POST /reports/:report_id/approve
func (h *RegulatoryHandler) ApproveReport(c echo.Context) error {
	reportID, req, err := bindReportAction(c)
	if err != nil {
		return errorResponse(c, err)
	}

	report, err := h.regulatory.ApproveReport(c.Request().Context(), reportID, req.ActorID, req.Notes)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// RejectReport handles POST /reports/:report_id/reject
func (h *RegulatoryHandler) RejectReport(c echo.Context) error {
	reportID, req, err := bindReportAction(c)
	if err != nil {
		return errorResponse(c, err)
	}

	report, err := h.regulatory.RejectReport(c.Request().Context(), reportID, req.ActorID, req.Reason)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// FileReport handles POST /reports/:report_id/file
func (h *RegulatoryHandler) FileReport(c echo.Context) error {
	reportID, req, err := bindReportAction(c)
	if err != nil {
		return errorResponse(c, err)
	}

	report, err := h.regulatory.FileReport(c.Request().Context(), reportID, req.ActorID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// PutReportingConfig handles PUT /reports/config/:organization_id
func (h *RegulatoryHandler) PutReportingConfig(c echo.Context) error {
	orgID, err := uuid.Parse(c.Param("organization_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid organization_id"})
	}
	var cfg domain.ReportingConfig
	if err := c.Bind(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	cfg.OrganizationID = orgID

	if err := h.regulatory.PutReportingConfig(c.Request().Context(), &cfg); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// RegisterRoutes registers the regulatory reporting API routes
func (h *RegulatoryHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/ctr", h.GenerateCTR)
	g.GET("/ctr/required", h.CheckCTRRequired)
	g.POST("/sar", h.GenerateSAR)
	g.GET("", h.ListReports)
	g.GET("/:report_id", h.GetReport)
	g.POST("/:report_id/submit", h.SubmitReport)
	g.POST("/:report_id/approve", h.ApproveReport)
	g.POST("/:report_id/reject", h.RejectReport)
	g.POST("/:report_id/file", h.FileReport)
	g.PUT("/config/:organization_id", h.PutReportingConfig)
}
