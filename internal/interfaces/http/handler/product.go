package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/revalya/tenantaccess/internal/application/access"
	"github.com/revalya/tenantaccess/internal/domain/catalog"
	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"github.com/revalya/tenantaccess/internal/interfaces/http/dto"
	"github.com/revalya/tenantaccess/internal/interfaces/http/middleware"
)

// Listing limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// CacheHeaderKey reports whether a listing was served from the query cache
const CacheHeaderKey = "X-Cache"

// ProductLister lists the session tenant's products
type ProductLister interface {
	List(ctx context.Context, sess tenant.Session, filter catalog.ProductFilter, opts ...access.Option) access.QueryResult[[]catalog.Product]
}

// ProductHandler handles product API endpoints
type ProductHandler struct {
	BaseHandler
	products ProductLister
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products ProductLister) *ProductHandler {
	return &ProductHandler{products: products}
}

// ProductResponse is a product as returned by the API
type ProductResponse struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	SellingPrice string    `json:"selling_price"`
	Status       string    `json:"status"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toProductResponse(p catalog.Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID.String(),
		Code:         p.Code,
		Name:         p.Name,
		Unit:         p.Unit,
		SellingPrice: p.SellingPrice.StringFixed(2),
		Status:       string(p.Status),
		UpdatedAt:    p.UpdatedAt,
	}
}

// RegisterRoutes mounts the product routes
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/products", h.List)
}

// List godoc
// @Summary      List products
// @Description  List the products of the caller's tenant
// @Tags         products
// @Produce      json
// @Param        active query bool false "Only active products" default(true)
// @Param        search query string false "Name or code search"
// @Param        limit query int false "Maximum number of products" default(50)
// @Success      200 {object} dto.Response{data=[]ProductResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /products [get]
func (h *ProductHandler) List(c *gin.Context) {
	filter := catalog.ProductFilter{
		ActiveOnly: true,
		Search:     c.Query("search"),
		Limit:      DefaultListLimit,
	}
	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			h.BadRequest(c, "active must be a boolean")
			return
		}
		filter.ActiveOnly = active
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > MaxListLimit {
			h.BadRequest(c, "limit must be between 1 and "+strconv.Itoa(MaxListLimit))
			return
		}
		filter.Limit = limit
	}

	res := h.products.List(c.Request.Context(), middleware.GetSession(c), filter)
	switch {
	case !res.Decision.Allowed:
		h.Denied(c, res.Decision)
		return
	case res.Err != nil:
		h.HandleError(c, res.Err)
		return
	}

	items := make([]ProductResponse, 0, len(res.Data))
	for _, p := range res.Data {
		items = append(items, toProductResponse(p))
	}
	c.Header(CacheHeaderKey, cacheHeader(res.FromCache))
	c.JSON(http.StatusOK, dto.NewListResponse(items, len(items), res.FromCache))
}

func cacheHeader(fromCache bool) string {
	if fromCache {
		return "HIT"
	}
	return "MISS"
}
