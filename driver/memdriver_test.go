package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDriverLifecycle(t *testing.T) {
	d := NewMemDriver()

	c1, err := d.Connect(context.Background())
	require.NoError(t, err)
	c2, err := d.Connect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, d.Connects())
	assert.Equal(t, 2, d.Open())
	assert.NoError(t, c1.Probe(context.Background()))

	require.NoError(t, c1.Close(context.Background()))
	require.NoError(t, c1.Close(context.Background())) // idempotent
	assert.Equal(t, 1, d.Open())

	mc := c2.(*MemConn)
	mc.SetProbeErr(errors.New("reset"))
	assert.Error(t, c2.Probe(context.Background()))
}

func TestMemDriverFailConnects(t *testing.T) {
	d := NewMemDriver()
	d.FailConnects(errors.New("refused"))

	_, err := d.Connect(context.Background())
	assert.Error(t, err)

	d.FailConnects(nil)
	_, err = d.Connect(context.Background())
	assert.NoError(t, err)
}
