package rpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pv/attrengine/internal/sensorconfig"
)

func mustParseSensorConfig(t *testing.T) *sensorconfig.SensorConfig {
	cfg, err := sensorconfig.Parse([]byte(`<?xml version="1.0" encoding="utf-8"?>
<Configure>
  <ObjectsMap>
    <sensors>
      <item id="100" name="AI100_AS" textname="Test Sensor 1" iotype="AI"/>
      <item id="101" name="DI101_S" textname="Test Sensor 2" iotype="DI"/>
    </sensors>
    <objects>
      <item id="1" name="TestProc"/>
    </objects>
    <services>
      <item id="2" name="InfoServer"/>
    </services>
  </ObjectsMap>
</Configure>`))
	require.NoError(t, err)
	return cfg
}

func TestHandlers_CatalogueSensorsNoConfigIsEmpty(t *testing.T) {
	e := newTestEngine(t)
	router := NewHandlers(e, nil).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalogue/sensors", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(0), resp["count"])
}

func TestHandlers_CatalogueSensorsWithConfig(t *testing.T) {
	e := newTestEngine(t)
	router := NewHandlers(e, mustParseSensorConfig(t)).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalogue/sensors", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(2), resp["count"])
}

func TestHandlers_CatalogueSensorsFiltersByIOType(t *testing.T) {
	e := newTestEngine(t)
	router := NewHandlers(e, mustParseSensorConfig(t)).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalogue/sensors?iotype=discrete", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["count"])
}

func TestHandlers_CatalogueSensorNames(t *testing.T) {
	e := newTestEngine(t)
	router := NewHandlers(e, mustParseSensorConfig(t)).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalogue/sensors/names", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var names []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &names))
	assert.ElementsMatch(t, []string{"AI100_AS", "DI101_S"}, names)
}

func TestHandlers_CatalogueSensorByNameFound(t *testing.T) {
	e := newTestEngine(t)
	router := NewHandlers(e, mustParseSensorConfig(t)).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalogue/sensors/by-name/AI100_AS", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var info sensorconfig.SensorInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "AI100_AS", info.Name)
	assert.False(t, info.IsDiscrete)
}

func TestHandlers_CatalogueSensorByNameNotFound(t *testing.T) {
	e := newTestEngine(t)
	router := NewHandlers(e, mustParseSensorConfig(t)).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalogue/sensors/by-name/NonExistent", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_CatalogueStats(t *testing.T) {
	e := newTestEngine(t)
	router := NewHandlers(e, mustParseSensorConfig(t)).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalogue/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var stats map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats["sensors"])
	assert.Equal(t, 1, stats["objects"])
	assert.Equal(t, 1, stats["services"])
}

func TestHandlers_CatalogueHasObjectOrService(t *testing.T) {
	e := newTestEngine(t)
	router := NewHandlers(e, mustParseSensorConfig(t)).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalogue/objects/TestProc", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp["exists"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalogue/objects/NonExistent", nil))
	var resp2 map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp2))
	assert.False(t, resp2["exists"])
}
