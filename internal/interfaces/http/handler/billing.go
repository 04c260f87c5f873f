package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/revalya/tenantaccess/internal/application/access"
	"github.com/revalya/tenantaccess/internal/domain/billing"
	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"github.com/revalya/tenantaccess/internal/interfaces/http/dto"
	"github.com/revalya/tenantaccess/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of billing dates
const DateLayout = "2006-01-02"

// PeriodManager creates and lists billing periods for the session tenant
type PeriodManager interface {
	Create(ctx context.Context, sess tenant.Session, in billing.NewBillingPeriod) (*billing.BillingPeriod, error)
	List(ctx context.Context, sess tenant.Session, contractID uuid.UUID, opts ...access.Option) access.QueryResult[[]billing.BillingPeriod]
}

// BillingHandler handles contract billing period endpoints
type BillingHandler struct {
	BaseHandler
	periods PeriodManager
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(periods PeriodManager) *BillingHandler {
	return &BillingHandler{periods: periods}
}

// CreateBillingPeriodRequest is the body of a billing period creation
type CreateBillingPeriodRequest struct {
	PeriodStart   string          `json:"period_start" binding:"required" example:"2026-01-01"`
	PeriodEnd     string          `json:"period_end" binding:"required" example:"2026-01-31"`
	BillDate      string          `json:"bill_date" binding:"required" example:"2026-02-05"`
	AmountPlanned decimal.Decimal `json:"amount_planned" example:"199.90"`
}

// BillingPeriodResponse is a billing period as returned by the API
type BillingPeriodResponse struct {
	ID            string `json:"id"`
	ContractID    string `json:"contract_id"`
	OrderNumber   int64  `json:"order_number"`
	PeriodStart   string `json:"period_start"`
	PeriodEnd     string `json:"period_end"`
	BillDate      string `json:"bill_date"`
	AmountPlanned string `json:"amount_planned"`
	Status        string `json:"status"`
}

func toBillingPeriodResponse(p billing.BillingPeriod) BillingPeriodResponse {
	return BillingPeriodResponse{
		ID:            p.ID.String(),
		ContractID:    p.ContractID.String(),
		OrderNumber:   p.OrderNumber,
		PeriodStart:   p.PeriodStart.Format(DateLayout),
		PeriodEnd:     p.PeriodEnd.Format(DateLayout),
		BillDate:      p.BillDate.Format(DateLayout),
		AmountPlanned: p.AmountPlanned.StringFixed(2),
		Status:        string(p.Status),
	}
}

// RegisterRoutes mounts the billing period routes
func (h *BillingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	periods := rg.Group("/contracts/:contract_id/billing-periods")
	periods.GET("", h.List)
	periods.POST("", h.Create)
}

func (h *BillingHandler) contractID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("contract_id"))
	if err != nil {
		h.BadRequest(c, "Invalid contract ID format")
		return uuid.Nil, false
	}
	return id, true
}

// Create godoc
// @Summary      Create a billing period
// @Description  Create the next billing period of a contract. The order number is assigned by the store.
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        contract_id path string true "Contract ID"
// @Param        request body CreateBillingPeriodRequest true "Billing period"
// @Success      201 {object} dto.Response{data=BillingPeriodResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /contracts/{contract_id}/billing-periods [post]
func (h *BillingHandler) Create(c *gin.Context) {
	contractID, ok := h.contractID(c)
	if !ok {
		return
	}

	var req CreateBillingPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	in := billing.NewBillingPeriod{ContractID: contractID, AmountPlanned: req.AmountPlanned}
	var err error
	if in.PeriodStart, err = time.Parse(DateLayout, req.PeriodStart); err != nil {
		h.BadRequest(c, "period_start must be a date (YYYY-MM-DD)")
		return
	}
	if in.PeriodEnd, err = time.Parse(DateLayout, req.PeriodEnd); err != nil {
		h.BadRequest(c, "period_end must be a date (YYYY-MM-DD)")
		return
	}
	if in.BillDate, err = time.Parse(DateLayout, req.BillDate); err != nil {
		h.BadRequest(c, "bill_date must be a date (YYYY-MM-DD)")
		return
	}

	period, err := h.periods.Create(c.Request.Context(), middleware.GetSession(c), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toBillingPeriodResponse(*period))
}

// List godoc
// @Summary      List billing periods
// @Description  List the billing periods of a contract ordered by order number
// @Tags         billing
// @Produce      json
// @Param        contract_id path string true "Contract ID"
// @Success      200 {object} dto.Response{data=[]BillingPeriodResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /contracts/{contract_id}/billing-periods [get]
func (h *BillingHandler) List(c *gin.Context) {
	contractID, ok := h.contractID(c)
	if !ok {
		return
	}

	res := h.periods.List(c.Request.Context(), middleware.GetSession(c), contractID)
	switch {
	case !res.Decision.Allowed:
		h.Denied(c, res.Decision)
		return
	case res.Err != nil:
		h.HandleError(c, res.Err)
		return
	}

	items := make([]BillingPeriodResponse, 0, len(res.Data))
	for _, p := range res.Data {
		items = append(items, toBillingPeriodResponse(p))
	}
	c.Header(CacheHeaderKey, cacheHeader(res.FromCache))
	c.JSON(http.StatusOK, dto.NewListResponse(items, len(items), res.FromCache))
}
