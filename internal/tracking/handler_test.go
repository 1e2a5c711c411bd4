package tracking

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (*gin.Engine, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := testHub()
	router := gin.New()
	NewHandler(hub).RegisterRoutes(router)
	return router, hub
}

func postJSON(router *gin.Engine, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func getJSON(router *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_PostLocation(t *testing.T) {
	router, hub := setupRouter(t)

	w := postJSON(router, "/location", `{"driver_id": "driver-1", "lat": 5.55, "lng": -0.2, "meta": {"bearing": 45}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			OK bool `json:"ok"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.True(t, body.Data.OK)

	record, ok := hub.LastKnown("driver-1")
	require.True(t, ok)
	assert.Equal(t, 5.55, record.Lat)
	assert.Equal(t, 45.0, record.Meta["bearing"])
}

func TestHandler_PostLocation_Validation(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing driver_id", `{"lat": 5.55, "lng": -0.2}`},
		{"missing lat", `{"driver_id": "d", "lng": -0.2}`},
		{"missing lng", `{"driver_id": "d", "lat": 5.55}`},
		{"non numeric lat", `{"driver_id": "d", "lat": "x", "lng": -0.2}`},
		{"not json", `hello`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/location", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandler_ListLocations(t *testing.T) {
	router, hub := setupRouter(t)
	hub.Ingest("driver-1", 5.55, -0.2, nil, nil)
	hub.Ingest("driver-2", 6.66, -1.61, nil, nil)

	w := getJSON(router, "/locations")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Count     int               `json:"count"`
			Locations map[string]Record `json:"locations"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.Count)
	require.Len(t, body.Data.Locations, 2)
	require.Contains(t, body.Data.Locations, "driver-1")
	require.Contains(t, body.Data.Locations, "driver-2")
	assert.Equal(t, 5.55, body.Data.Locations["driver-1"].Lat)
}

func TestHandler_GetLocation(t *testing.T) {
	router, hub := setupRouter(t)
	hub.Ingest("driver-1", 5.55, -0.2, nil, nil)

	w := getJSON(router, "/locations/driver-1")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "driver-1", body.Data.DriverID)
	assert.Equal(t, 5.55, body.Data.Lat)

	w = getJSON(router, "/locations/ghost")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
