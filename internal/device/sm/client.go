// Package sm adapts the teacher's internal/sm HTTP SharedMemory client
// into a device.Client: the poll-transport half of the engine's device
// layer. It keeps the original's endpoint shape (SharedMemory/get via
// api/v2) and its http.Client{Timeout: 10s} policy, generalized to a
// context deadline so the per-call timeout composes with caller
// cancellation instead of being baked into the client.
package sm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/pv/attrengine/internal/attribute"
	"github.com/pv/attrengine/internal/device"
	"github.com/pv/attrengine/internal/errs"
)

// SensorValue is a single SharedMemory reading, grounded verbatim on
// the teacher's internal/sm.SensorValue.
type SensorValue struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Value     int64   `json:"value"`
	RealValue float64 `json:"real_value"`
	TVSec     int64   `json:"tv_sec"`
	TVNsec    int64   `json:"tv_nsec"`
	Error     string  `json:"error,omitempty"`
}

type getResponse struct {
	Object  json.RawMessage `json:"object"`
	Sensors []SensorValue   `json:"sensors"`
}

// Client polls a UniSet2 SharedMemory endpoint for attribute values.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	kinds map[string]attribute.Kind // pre-registered via RegisterKind
}

var _ device.Client = (*Client)(nil)

// NewClient builds a poll Client against baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		kinds:      make(map[string]attribute.Kind),
	}
}

// RegisterKind records the decode kind for an attribute, since the SM
// protocol reports raw numeric/string fields without a type tag of its
// own. EngineBuilder calls this from the attribute catalogue while
// wiring devices to clients.
func (c *Client) RegisterKind(attributeName string, kind attribute.Kind) {
	c.mu.Lock()
	c.kinds[attributeName] = kind
	c.mu.Unlock()
}

func (c *Client) AttributeClass(ctx context.Context, attributeName string) (attribute.Kind, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kind, ok := c.kinds[attributeName]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errs.ErrAttributeUnknown, attributeName)
	}
	return kind, nil
}

func (c *Client) Read(ctx context.Context, attributeName string) (device.Reading, error) {
	values, err := c.getValues(ctx, []string{attributeName})
	if err != nil {
		return device.Reading{}, fmt.Errorf("%w: %v", errs.ErrRead, err)
	}

	v, ok := values[attributeName]
	if !ok {
		return device.Reading{}, fmt.Errorf("%w: sensor %s not present in response", errs.ErrRead, attributeName)
	}

	return device.Reading{Raw: sensorRaw(v), Quality: 0, SourceID: c.baseURL}, nil
}

// Subscribe is not supported: SM is a pure poll transport, matching the
// teacher's internal/sm package, which exposes no push mechanism.
func (c *Client) Subscribe(ctx context.Context, attributeName, eventType string, cb device.EventCallback) (device.Subscription, error) {
	return nil, fmt.Errorf("sm: client is poll-only, cannot subscribe to %s", attributeName)
}

func (c *Client) Close() error { return nil }

func sensorRaw(v SensorValue) any {
	if v.RealValue != 0 {
		return v.RealValue
	}
	return v.Value
}

// getValues mirrors the teacher's Client.GetValues, generalized to take
// a context deadline instead of relying solely on the http.Client's own
// fixed timeout.
func (c *Client) getValues(ctx context.Context, sensors []string) (map[string]SensorValue, error) {
	if len(sensors) == 0 {
		return map[string]SensorValue{}, nil
	}

	query := strings.Join(sensors, ",")
	path := fmt.Sprintf("SharedMemory/get?%s&shortInfo", query)

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	var result getResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal SM response failed: %w", err)
	}

	values := make(map[string]SensorValue, len(result.Sensors))
	for _, s := range result.Sensors {
		if s.Error == "" {
			values[s.Name] = s
		}
	}
	return values, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/api/v2/%s", c.baseURL, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s failed: %w", url, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("read response from %s failed: %w", url, readErr)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d (%s)", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

// IsAvailable checks reachability, grounded on the teacher's
// Client.IsAvailable.
func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.doGet(ctx, "SharedMemory/")
	return err == nil
}

// ParseID is exposed for configuration loaders that key sensors by
// numeric SM id rather than name.
func ParseID(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
