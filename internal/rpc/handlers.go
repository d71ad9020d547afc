// Package rpc exposes the Engine's control and snapshot operations over
// HTTP, grounded on the teacher's internal/api.Handlers (writeJSON/
// writeError helpers, one handler method per operation), routed with
// github.com/gorilla/mux and logged with github.com/gorilla/handlers
// instead of the teacher's bare net/http.ServeMux — the only pack repos
// wiring those two packages together are GVCUTV-NRG-CHAMP's aggregator
// and services/mape/execute services.
package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pv/attrengine/internal/engine"
	"github.com/pv/attrengine/internal/sensorconfig"
	"github.com/pv/attrengine/internal/ts"
)

// Handlers binds the control surface to a single running Engine, plus
// an optional sensor catalogue loaded from a UniSet ObjectsMap XML file.
type Handlers struct {
	engine  *engine.Engine
	sensors *sensorconfig.SensorConfig
}

// NewHandlers builds Handlers for e, matching the teacher's
// api.NewHandlers constructor shape. sensors may be nil, matching the
// teacher's own NewHandlers(client, store, p, sensorCfg, timeout) tests
// exercising a nil sensor config — every SensorConfig accessor is
// nil-receiver safe, so the catalogue routes just report empty.
func NewHandlers(e *engine.Engine, sensors *sensorconfig.SensorConfig) *Handlers {
	return &Handlers{engine: e, sensors: sensors}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// Router builds the full mux.Router for the control surface.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/control/start", h.ControlStart).Methods(http.MethodPost)
	r.HandleFunc("/control/stop", h.ControlStop).Methods(http.MethodPost)
	r.HandleFunc("/control/status", h.ControlStatus).Methods(http.MethodGet)
	r.HandleFunc("/control/use-aliases", h.ControlUseAliases).Methods(http.MethodPost)

	r.HandleFunc("/snapshot/latest", h.SnapshotLatest).Methods(http.MethodGet)
	r.HandleFunc("/snapshot/range", h.SnapshotRange).Methods(http.MethodGet)
	r.HandleFunc("/snapshot/at", h.SnapshotAt).Methods(http.MethodGet)

	r.HandleFunc("/catalogue/sensors", h.CatalogueSensors).Methods(http.MethodGet)
	r.HandleFunc("/catalogue/sensors/names", h.CatalogueSensorNames).Methods(http.MethodGet)
	r.HandleFunc("/catalogue/sensors/by-name/{name}", h.CatalogueSensorByName).Methods(http.MethodGet)
	r.HandleFunc("/catalogue/stats", h.CatalogueStats).Methods(http.MethodGet)
	r.HandleFunc("/catalogue/objects/{name}", h.CatalogueHasObjectOrService).Methods(http.MethodGet)

	return r
}

// POST /control/start?mode=light|heavy
func (h *Handlers) ControlStart(w http.ResponseWriter, r *http.Request) {
	mode := engine.ModeLightPoll
	if r.URL.Query().Get("mode") == "heavy" {
		mode = engine.ModeHeavyDuty
	}

	if err := h.engine.Start(r.Context(), mode); err != nil {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"state": h.engine.State().String()})
}

// POST /control/stop
func (h *Handlers) ControlStop(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Stop(r.Context()); err != nil {
		h.writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"state": h.engine.State().String()})
}

// GET /control/status
func (h *Handlers) ControlStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"state":             h.engine.State().String(),
		"failed_attributes": h.engine.FailedAttributes(),
	})
}

// POST /control/use-aliases?enabled=true|false
func (h *Handlers) ControlUseAliases(w http.ResponseWriter, r *http.Request) {
	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "enabled must be true or false")
		return
	}
	h.engine.UseAliases(enabled)
	h.writeJSON(w, http.StatusOK, map[string]bool{"use_aliases": enabled})
}

// GET /snapshot/latest
func (h *Handlers) SnapshotLatest(w http.ResponseWriter, r *http.Request) {
	snapshot := h.engine.GetLatestSnapshot()

	out := make(map[string]any, len(snapshot))
	for name, v := range snapshot {
		out[name] = toWireValue(*v)
	}
	h.writeJSON(w, http.StatusOK, out)
}

// GET /snapshot/range?from=<unixmilli>&to=<unixmilli>[&attribute=dev/attr]
//
// With no attribute parameter this is the engine-wide
// map<name,array> operation spec.md §4.4/§6 defines; attribute narrows
// the response to a single attribute's array as a convenience.
func (h *Handlers) SnapshotRange(w http.ResponseWriter, r *http.Request) {
	from, err := parseMilliParam(r, "from", ts.Zero)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseMilliParam(r, "to", ts.Max)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attr := r.URL.Query().Get("attribute")
	if attr == "" {
		byName := h.engine.GetDataRange(from, to)
		out := make(map[string][]any, len(byName))
		for name, values := range byName {
			wire := make([]any, len(values))
			for i, v := range values {
				wire[i] = toWireValue(v)
			}
			out[name] = wire
		}
		h.writeJSON(w, http.StatusOK, out)
		return
	}

	values, err := h.engine.AttributeDataRange(attr, from, to)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	out := make([]any, len(values))
	for i, v := range values {
		out[i] = toWireValue(v)
	}
	h.writeJSON(w, http.StatusOK, out)
}

// GET /snapshot/at?at=<unixmilli>[&attribute=dev/attr]
//
// With no attribute parameter this is the engine-wide map<name,value>
// operation spec.md §4.4/§6 defines; attribute narrows the response to
// a single attribute's value as a convenience.
func (h *Handlers) SnapshotAt(w http.ResponseWriter, r *http.Request) {
	at, err := parseMilliParam(r, "at", ts.Zero)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attr := r.URL.Query().Get("attribute")
	if attr == "" {
		byName := h.engine.GetSnapshotAt(at)
		out := make(map[string]wireValue, len(byName))
		for name, v := range byName {
			out[name] = toWireValue(*v)
		}
		h.writeJSON(w, http.StatusOK, out)
		return
	}

	v, err := h.engine.AttributeSnapshotAt(attr, at)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if v == nil {
		h.writeError(w, http.StatusNotFound, "no value available at or before the requested time")
		return
	}
	h.writeJSON(w, http.StatusOK, toWireValue(*v))
}

func parseMilliParam(r *http.Request, name string, def ts.Timestamp) (ts.Timestamp, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ts.Timestamp{}, err
	}
	return ts.FromUnixMilli(ms), nil
}
