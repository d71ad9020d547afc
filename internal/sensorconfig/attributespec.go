package sensorconfig

import (
	"github.com/pv/attrengine/internal/config"
)

// ToAttributeSpecs projects every parsed sensor into the engine's
// config.AttributeSpec shape, so an XML ObjectsMap catalogue can
// supplement a YAML device's attribute list (SPEC_FULL.md §6/§9): the
// original system resolves its attribute catalogue from an XML
// ObjectsMap rather than a flat YAML list, and this is the bridge that
// lets both forms feed the same EngineBuilder. Discrete (DI/DO)
// sensors decode as boolean, analog (AI/AO) as numeric.
func (c *SensorConfig) ToAttributeSpecs() []config.AttributeSpec {
	if c == nil {
		return nil
	}

	specs := make([]config.AttributeSpec, 0, len(c.allSensors))
	for _, s := range c.allSensors {
		kind := "numeric"
		if s.IOType.IsDiscrete() {
			kind = "boolean"
		}

		method := "poll"
		if s.IOType.IsOutput() {
			method = "event"
		}

		specs = append(specs, config.AttributeSpec{
			Name:   s.Name,
			Alias:  s.TextName,
			Kind:   kind,
			Method: method,
		})
	}
	return specs
}
