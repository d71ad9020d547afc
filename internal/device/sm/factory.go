package sm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pv/attrengine/internal/device"
)

// Factory builds a poll Client per device from its "url" config entry,
// grounded on EngineFactory.java's CompositeClientFactory.createClient
// being called once per configured Device.
type Factory struct {
	Timeout time.Duration
}

var _ device.Factory = Factory{}

func (f Factory) NewClient(ctx context.Context, deviceName string, config map[string]string) (device.Client, error) {
	url, ok := config["url"]
	if !ok || url == "" {
		return nil, fmt.Errorf("sm: device %s missing required \"url\" config entry", deviceName)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return NewClient(url, &http.Client{Timeout: timeout}), nil
}
