package routing

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sankofa/delivery-geo/pkg/common"
)

// Handler exposes routing over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates a routing handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the routing endpoints.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/route", h.GetRoute)
	router.GET("/regions", h.ListRegions)
}

// GetRoute handles GET /route?pickup_lat=..&pickup_lng=..&drop_lat=..&drop_lng=..&alternatives=..
func (h *Handler) GetRoute(c *gin.Context) {
	pickupLat, ok := h.floatQuery(c, "pickup_lat")
	if !ok {
		return
	}
	pickupLng, ok := h.floatQuery(c, "pickup_lng")
	if !ok {
		return
	}
	dropLat, ok := h.floatQuery(c, "drop_lat")
	if !ok {
		return
	}
	dropLng, ok := h.floatQuery(c, "drop_lng")
	if !ok {
		return
	}

	alternatives := 1
	if raw := c.Query("alternatives"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > MaxAlternatives {
			common.AppErrorResponse(c, common.NewValidationError("alternatives must be an integer between 1 and 5"))
			return
		}
		alternatives = parsed
	}

	resp, err := h.service.Route(c.Request.Context(), pickupLat, pickupLng, dropLat, dropLng, alternatives)
	if err != nil {
		common.HandleServiceError(c, err, "failed to compute route")
		return
	}
	common.SuccessResponse(c, resp)
}

// ListRegions handles GET /regions
func (h *Handler) ListRegions(c *gin.Context) {
	regions := h.service.Regions()
	common.SuccessResponse(c, gin.H{
		"count":   len(regions),
		"regions": regions,
	})
}

func (h *Handler) floatQuery(c *gin.Context, name string) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		common.AppErrorResponse(c, common.NewValidationError(name+" is required"))
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		common.AppErrorResponse(c, common.NewValidationError(name+" must be a number"))
		return 0, false
	}
	return value, true
}
