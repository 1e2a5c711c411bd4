package tracking

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sankofa/delivery-geo/pkg/common"
	"github.com/sankofa/delivery-geo/pkg/logger"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks belong to the edge proxy.
		return true
	},
}

// Handler exposes the live-location hub over websocket and HTTP.
type Handler struct {
	hub *Hub
}

// NewHandler creates a tracking handler.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes registers the tracking endpoints.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws/driver/:driver_id", h.DriverSocket)
	router.GET("/ws/monitor", h.MonitorSocket)
	router.POST("/location", h.PostLocation)
	router.GET("/locations", h.ListLocations)
	router.GET("/locations/:driver_id", h.GetLocation)
}

// DriverSocket handles GET /ws/driver/:driver_id
func (h *Handler) DriverSocket(c *gin.Context) {
	driverID := c.Param("driver_id")
	if driverID == "" {
		common.AppErrorResponse(c, common.NewValidationError("driver_id is required"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WarnContext(c.Request.Context(), "Websocket upgrade failed",
			zap.String("driver_id", driverID),
			zap.Error(err),
		)
		return
	}

	client := NewDriverClient(h.hub, conn, driverID)
	h.hub.RegisterDriver(driverID, client)

	go client.WritePump()
	go client.ReadPump()
}

// MonitorSocket handles GET /ws/monitor?filter_driver=...
func (h *Handler) MonitorSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WarnContext(c.Request.Context(), "Websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewObserverClient(h.hub, conn, c.Query("filter_driver"))
	h.hub.RegisterObserver(client)
	h.sendInitialSnapshot(client)

	go client.WritePump()
	go client.ReadPump()
}

// sendInitialSnapshot primes a fresh observer with the current last-known
// state so it does not have to wait for the next update.
func (h *Handler) sendInitialSnapshot(client *Client) {
	if client.filterDriver != "" {
		if record, ok := h.hub.LastKnown(client.filterDriver); ok {
			if b, err := json.Marshal(record); err == nil {
				_ = client.sendBytes(b)
			}
		}
		return
	}
	snapshot := h.hub.Snapshot()
	if len(snapshot) == 0 {
		return
	}
	payload, err := json.Marshal(gin.H{"type": "snapshot", "locations": snapshot})
	if err != nil {
		return
	}
	_ = client.sendBytes(payload)
}

type postLocationRequest struct {
	DriverID string                 `json:"driver_id" binding:"required"`
	Lat      *float64               `json:"lat" binding:"required"`
	Lng      *float64               `json:"lng" binding:"required"`
	TS       *float64               `json:"ts"`
	Meta     map[string]interface{} `json:"meta"`
}

// PostLocation handles POST /location, the HTTP fallback for drivers without
// a socket.
func (h *Handler) PostLocation(c *gin.Context) {
	var req postLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.AppErrorResponse(c, common.NewValidationError("driver_id and numeric lat/lng are required"))
		return
	}

	h.hub.Ingest(req.DriverID, *req.Lat, *req.Lng, req.TS, req.Meta)
	common.SuccessResponse(c, gin.H{"ok": true})
}

// ListLocations handles GET /locations. Locations are keyed by driver id.
func (h *Handler) ListLocations(c *gin.Context) {
	snapshot := h.hub.Snapshot()
	locations := make(map[string]Record, len(snapshot))
	for _, record := range snapshot {
		locations[record.DriverID] = record
	}
	common.SuccessResponse(c, gin.H{
		"count":     len(locations),
		"locations": locations,
	})
}

// GetLocation handles GET /locations/:driver_id
func (h *Handler) GetLocation(c *gin.Context) {
	driverID := c.Param("driver_id")
	record, ok := h.hub.LastKnown(driverID)
	if !ok {
		common.AppErrorResponse(c, common.NewNotFoundError("no known location for driver", nil))
		return
	}
	common.SuccessResponse(c, record)
}
