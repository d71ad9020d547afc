package rpc

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pv/attrengine/internal/sensorconfig"
)

// GET /catalogue/sensors[?iotype=discrete|analog]
//
// With no iotype filter this is the XML ObjectsMap's full sensor
// catalogue (SensorConfig.GetAllInfo); iotype narrows it to the
// discrete (DI/DO) or analog (AI/AO) subset. h.sensors may be nil when
// no sensor config file was loaded, in which case every SensorConfig
// method degrades to its zero value and this reports an empty catalogue
// rather than erroring.
func (h *Handlers) CatalogueSensors(w http.ResponseWriter, r *http.Request) {
	var infos []sensorconfig.SensorInfo

	switch r.URL.Query().Get("iotype") {
	case "discrete":
		for _, s := range h.sensors.GetDiscrete() {
			infos = append(infos, s.ToInfo())
		}
	case "analog":
		for _, s := range h.sensors.GetAnalog() {
			infos = append(infos, s.ToInfo())
		}
	default:
		infos = h.sensors.GetAllInfo()
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(infos),
		"sensors": infos,
	})
}

// GET /catalogue/sensors/names
//
// A lighter-weight listing than CatalogueSensors: just the raw
// catalogue names, for callers that don't need iotype/textname detail.
func (h *Handlers) CatalogueSensorNames(w http.ResponseWriter, r *http.Request) {
	sensors := h.sensors.GetAll()
	names := make([]string, len(sensors))
	for i, s := range sensors {
		names[i] = s.Name
	}
	h.writeJSON(w, http.StatusOK, names)
}

// GET /catalogue/sensors/by-name/{name}
func (h *Handlers) CatalogueSensorByName(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "sensor name required")
		return
	}

	sensor := h.sensors.GetByName(name)
	if sensor == nil {
		h.writeError(w, http.StatusNotFound, "sensor not found: "+name)
		return
	}
	h.writeJSON(w, http.StatusOK, sensor.ToInfo())
}

// GET /catalogue/stats
func (h *Handlers) CatalogueStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]int{
		"sensors":  h.sensors.Count(),
		"objects":  h.sensors.ObjectCount(),
		"services": h.sensors.ServiceCount(),
	})
}

// GET /catalogue/objects/{name}
//
// Reports whether name is a registered UniSet object or service,
// matching SensorConfig.HasObjectOrService.
func (h *Handlers) CatalogueHasObjectOrService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	h.writeJSON(w, http.StatusOK, map[string]bool{"exists": h.sensors.HasObjectOrService(name)})
}
