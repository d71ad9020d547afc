package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pv/attrengine/internal/attribute"
	"github.com/pv/attrengine/internal/config"
	"github.com/pv/attrengine/internal/device"
	"github.com/pv/attrengine/internal/engine"
	"github.com/pv/attrengine/internal/metrics"
	"github.com/pv/attrengine/internal/sink"
	"github.com/pv/attrengine/internal/ts"
)

// stubClient is a device.Client that always returns a fixed reading,
// used so the rpc handlers can be exercised against a real Engine
// without a network-backed device transport.
type stubClient struct {
	kind attribute.Kind
	raw  any
}

func (c *stubClient) AttributeClass(ctx context.Context, attributeName string) (attribute.Kind, error) {
	return c.kind, nil
}
func (c *stubClient) Read(ctx context.Context, attributeName string) (device.Reading, error) {
	return device.Reading{Raw: c.raw}, nil
}
func (c *stubClient) Subscribe(ctx context.Context, attributeName, eventType string, cb device.EventCallback) (device.Subscription, error) {
	return nil, nil
}
func (c *stubClient) Close() error { return nil }

type stubFactory struct{ client device.Client }

func (f stubFactory) NewClient(ctx context.Context, deviceName string, cfg map[string]string) (device.Client, error) {
	return f.client, nil
}

func newTestEngine(t *testing.T) *engine.Engine {
	registry := device.NewRegistry()
	registry.Register("stub", stubFactory{client: &stubClient{kind: attribute.KindNumeric, raw: "21.5"}})

	builder := &engine.Builder{
		Registry: registry,
		Sink:     sink.NewMemory(),
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Clock:    &ts.Clock{},
	}

	devices := []config.DeviceSpec{
		{
			Name:      "dev1",
			Transport: "stub",
			URL:       "http://stub",
			Attributes: []config.AttributeSpec{
				{Name: "temperature", Kind: "numeric"},
			},
		},
	}

	e, err := builder.Build(context.Background(), devices)
	require.NoError(t, err)
	return e
}

func TestHandlers_ControlStartStopStatus(t *testing.T) {
	e := newTestEngine(t)
	router := NewHandlers(e, nil).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/control/start", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/control/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "collecting:light_poll", status["state"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/control/stop", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandlers_ControlUseAliasesRejectsBadValue(t *testing.T) {
	e := newTestEngine(t)
	router := NewHandlers(e, nil).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/control/use-aliases?enabled=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/control/use-aliases?enabled=true", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandlers_SnapshotLatestAfterAdmit(t *testing.T) {
	e := newTestEngine(t)
	attr, ok := e.Attribute("dev1/temperature")
	require.True(t, ok)

	clock := &ts.Clock{}
	_, err := attr.Add(clock.Now(), clock.Now(), "21.5", 0, "dev1")
	require.NoError(t, err)

	router := NewHandlers(e, nil).Router()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/snapshot/latest", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var snapshot map[string]wireValue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	require.Contains(t, snapshot, "dev1/temperature")
	assert.Equal(t, "21.5", snapshot["dev1/temperature"].Value)
}

func TestHandlers_SnapshotRangeUnknownAttribute(t *testing.T) {
	e := newTestEngine(t)
	router := NewHandlers(e, nil).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/snapshot/range?attribute=nope/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_SnapshotRangeWithoutAttributeReturnsEngineWideMap(t *testing.T) {
	e := newTestEngine(t)
	attr, ok := e.Attribute("dev1/temperature")
	require.True(t, ok)

	clock := &ts.Clock{}
	_, err := attr.Add(clock.Now(), clock.Now(), "21.5", 0, "dev1")
	require.NoError(t, err)

	router := NewHandlers(e, nil).Router()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/snapshot/range", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var byName map[string][]wireValue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &byName))
	require.Contains(t, byName, "dev1/temperature")
	assert.Len(t, byName["dev1/temperature"], 1)
}

func TestHandlers_SnapshotRangeWithoutToIncludesEverything(t *testing.T) {
	e := newTestEngine(t)
	attr, ok := e.Attribute("dev1/temperature")
	require.True(t, ok)

	clock := &ts.Clock{}
	_, err := attr.Add(clock.Now(), clock.Now(), "1", 0, "dev1")
	require.NoError(t, err)
	_, err = attr.Add(clock.Now(), clock.Now(), "2", 0, "dev1")
	require.NoError(t, err)

	router := NewHandlers(e, nil).Router()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/snapshot/range?attribute=dev1/temperature", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var values []wireValue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &values))
	assert.Len(t, values, 2, "omitting to= must not exclude every value newer than the zero timestamp")
}

func TestHandlers_SnapshotAtWithoutAttributeReturnsEngineWideMap(t *testing.T) {
	e := newTestEngine(t)
	attr, ok := e.Attribute("dev1/temperature")
	require.True(t, ok)

	clock := &ts.Clock{}
	_, err := attr.Add(clock.Now(), clock.Now(), "21.5", 0, "dev1")
	require.NoError(t, err)

	router := NewHandlers(e, nil).Router()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/snapshot/at?at=%d", clock.Now().UnixMilli()), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var byName map[string]wireValue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &byName))
	require.Contains(t, byName, "dev1/temperature")
	assert.Equal(t, "21.5", byName["dev1/temperature"].Value)
}

func TestHandlers_SnapshotAtWithAttributeUnknown(t *testing.T) {
	e := newTestEngine(t)
	router := NewHandlers(e, nil).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/snapshot/at?attribute=nope/nope&at=0", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
