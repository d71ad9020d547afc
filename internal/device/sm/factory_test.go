package sm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_NewClientRequiresURL(t *testing.T) {
	f := Factory{}
	_, err := f.NewClient(context.Background(), "dev1", map[string]string{})
	assert.Error(t, err)
}

func TestFactory_NewClientBuildsClient(t *testing.T) {
	f := Factory{}
	c, err := f.NewClient(context.Background(), "dev1", map[string]string{"url": "http://localhost:8080"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
