package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AttributeSpec is one monitored attribute as declared in the YAML
// device catalogue.
type AttributeSpec struct {
	Name          string        `yaml:"name"`
	Alias         string        `yaml:"alias"`
	Kind          string        `yaml:"kind"` // numeric|boolean|string|array
	Interpolation string        `yaml:"interpolation"`
	Method        string        `yaml:"method"` // poll|event
	EventType     string        `yaml:"event_type"`
	Delay         time.Duration `yaml:"delay"`
	Precision     string        `yaml:"precision"` // decimal string, numeric attributes only
}

// DeviceSpec is one device and its attributes, as declared in the YAML
// device catalogue — the successor to the teacher's ServerConfig
// (referenced by internal/config/yaml.go but never defined in the
// retrieved pack), expanded to carry a transport selector and a nested
// attribute list instead of a bare URL.
type DeviceSpec struct {
	Name       string          `yaml:"name"`
	Transport  string          `yaml:"transport"` // sm|uwsgate
	URL        string          `yaml:"url"`
	Attributes []AttributeSpec `yaml:"attributes"`
}

type devicesConfigFile struct {
	Devices []DeviceSpec `yaml:"devices"`
}

// LoadDevicesFromYAML loads and validates the device catalogue, matching
// the teacher's LoadServersFromYAML shape: read, unmarshal, then reject
// anything missing a required field.
func LoadDevicesFromYAML(path string) ([]DeviceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read devices file: %w", err)
	}

	var file devicesConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse devices YAML: %w", err)
	}

	for i, dev := range file.Devices {
		if dev.Name == "" {
			return nil, fmt.Errorf("device at index %d has no name", i)
		}
		if dev.URL == "" {
			return nil, fmt.Errorf("device %q has no url", dev.Name)
		}
		if dev.Transport == "" {
			return nil, fmt.Errorf("device %q has no transport", dev.Name)
		}
		for j, attr := range dev.Attributes {
			if attr.Name == "" {
				return nil, fmt.Errorf("device %q attribute at index %d has no name", dev.Name, j)
			}
		}
	}

	return file.Devices, nil
}

// MergeSensorConfig appends attributes from an XML ObjectsMap catalogue
// (internal/sensorconfig) onto a device's YAML-declared attributes,
// supplementing rather than overriding: an attribute name already
// present in devices wins over one carried in from sensors.
func MergeSensorConfig(devices []DeviceSpec, deviceName string, sensorAttrs []AttributeSpec) []DeviceSpec {
	for i := range devices {
		if devices[i].Name != deviceName {
			continue
		}
		existing := make(map[string]bool, len(devices[i].Attributes))
		for _, a := range devices[i].Attributes {
			existing[a.Name] = true
		}
		for _, a := range sensorAttrs {
			if !existing[a.Name] {
				devices[i].Attributes = append(devices[i].Attributes, a)
			}
		}
	}
	return devices
}
