package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pv/attrengine/internal/attribute"
)

type stubFactory struct {
	client Client
	err    error
}

func (f stubFactory) NewClient(ctx context.Context, deviceName string, config map[string]string) (Client, error) {
	return f.client, f.err
}

type stubClient struct{}

func (stubClient) AttributeClass(ctx context.Context, attributeName string) (attribute.Kind, error) {
	return attribute.KindNumeric, nil
}
func (stubClient) Read(ctx context.Context, attributeName string) (Reading, error) { return Reading{}, nil }
func (stubClient) Subscribe(ctx context.Context, attributeName, eventType string, cb EventCallback) (Subscription, error) {
	return nil, nil
}
func (stubClient) Close() error { return nil }

func TestRegistry_NewClientUnknownTransport(t *testing.T) {
	r := NewRegistry()
	_, err := r.NewClient(context.Background(), "unknown", "dev1", nil)
	assert.Error(t, err)
}

func TestRegistry_NewClientDispatchesToFactory(t *testing.T) {
	r := NewRegistry()
	want := stubClient{}
	r.Register("sm", stubFactory{client: want})

	got, err := r.NewClient(context.Background(), "sm", "dev1", map[string]string{"url": "x"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
