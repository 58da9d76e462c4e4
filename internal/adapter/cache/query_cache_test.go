package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	model string
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *countingEmbedder) Available() bool   { return true }
func (e *countingEmbedder) Dimension() int    { return 2 }
func (e *countingEmbedder) ModelName() string { return e.model }

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewQueryCache(2, time.Minute)

	c.Put("m", "a", []float32{1})
	c.Put("m", "b", []float32{2})
	_, ok := c.Get("m", "a")
	require.True(t, ok)

	c.Put("m", "c", []float32{3})

	_, ok = c.Get("m", "b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("m", "a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestQueryCache_Expires(t *testing.T) {
	c := NewQueryCache(4, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("m", "q", []float32{1})
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("m", "q")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestQueryCache_KeyedByModel(t *testing.T) {
	c := NewQueryCache(4, time.Minute)
	c.Put("model-a", "q", []float32{1})

	_, ok := c.Get("model-b", "q")
	assert.False(t, ok)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{model: "m"}
	e := NewCachedEmbedder(inner, NewQueryCache(8, time.Minute))
	ctx := context.Background()

	first, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := e.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.True(t, e.Available())
	assert.Equal(t, 2, e.Dimension())
}

func TestCachedEmbedder_DoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{model: "m", err: errors.New("boom")}
	e := NewCachedEmbedder(inner, NewQueryCache(8, time.Minute))

	_, err := e.Embed(context.Background(), "q")
	require.Error(t, err)
	_, err = e.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}
