package uwsgate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pv/attrengine/internal/device"
)

// Factory builds and connects an event Client per device from its
// "url" config entry.
type Factory struct {
	Logger *slog.Logger
}

var _ device.Factory = Factory{}

func (f Factory) NewClient(ctx context.Context, deviceName string, config map[string]string) (device.Client, error) {
	url, ok := config["url"]
	if !ok || url == "" {
		return nil, fmt.Errorf("uwsgate: device %s missing required \"url\" config entry", deviceName)
	}

	c := NewClient(url, f.Logger)
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("uwsgate: connect device %s: %w", deviceName, err)
	}
	return c, nil
}
