package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilClientFailsSafe(t *testing.T) {
	var c *Client
	ctx := context.Background()

	v, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, v)
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.Close())
}

func TestNilClientCounterReportsDisabled(t *testing.T) {
	var c *Client
	ctx := context.Background()

	_, err := c.IncrBy(ctx, "k", 1, time.Minute)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = c.GetInt64(ctx, "k")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, c.Ping(ctx), ErrDisabled)
}
