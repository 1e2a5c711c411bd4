package routing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(fixtureService(t)).RegisterRoutes(router)
	return router
}

func doRequest(router *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_GetRoute_Success(t *testing.T) {
	router := setupRouter(t)

	w := doRequest(router, "/route?pickup_lat=5.55&pickup_lng=-0.2&drop_lat=5.6&drop_lng=-0.15")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			FromCache   bool          `json:"from_cache"`
			RouteCoords [][2]float64  `json:"route_coords"`
			ETAMin      *float64      `json:"eta_min"`
			AltRoutes   [][][2]float64 `json:"alt_routes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.False(t, body.Data.FromCache)
	assert.Len(t, body.Data.RouteCoords, 2)
	require.NotNil(t, body.Data.ETAMin)
	assert.InDelta(t, 6.0, *body.Data.ETAMin, 1e-9)
	assert.NotNil(t, body.Data.AltRoutes)

	// The identical request is answered from the cache.
	w = doRequest(router, "/route?pickup_lat=5.55&pickup_lng=-0.2&drop_lat=5.6&drop_lng=-0.15")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Data.FromCache)
}

func TestHandler_GetRoute_MissingParameter(t *testing.T) {
	router := setupRouter(t)

	w := doRequest(router, "/route?pickup_lat=5.55&pickup_lng=-0.2&drop_lat=5.6")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetRoute_UnparsableCoordinate(t *testing.T) {
	router := setupRouter(t)

	w := doRequest(router, "/route?pickup_lat=abc&pickup_lng=-0.2&drop_lat=5.6&drop_lng=-0.15")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetRoute_AlternativesOutOfRange(t *testing.T) {
	router := setupRouter(t)

	for _, raw := range []string{"0", "6", "-1", "abc"} {
		w := doRequest(router, "/route?pickup_lat=5.55&pickup_lng=-0.2&drop_lat=5.6&drop_lng=-0.15&alternatives="+raw)
		assert.Equal(t, http.StatusBadRequest, w.Code, "alternatives=%s", raw)
	}
}

func TestHandler_ListRegions(t *testing.T) {
	router := setupRouter(t)

	w := doRequest(router, "/regions")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Count   int `json:"count"`
			Regions []struct {
				Name string     `json:"name"`
				BBox [4]float64 `json:"bbox"`
			} `json:"regions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Data.Count)
	require.Len(t, body.Data.Regions, 1)
	assert.Equal(t, "accra.graphml", body.Data.Regions[0].Name)
}
