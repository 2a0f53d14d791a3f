package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedPeer(t *testing.T, keys ...string) *Context {
	t.Helper()
	c, _ := newPeer(t, "p", keys...)
	_, err := c.StartSession(1234)
	require.NoError(t, err)
	return c
}

func TestRand_EveryCallConsumesOneUnit(t *testing.T) {
	c := startedPeer(t, "K")

	require.NoError(t, c.Execute("cmd", func() error {
		if _, err := c.Chance("K", 0.5); err != nil {
			return err
		}
		if _, err := c.Range("K", 0, 10); err != nil {
			return err
		}
		if _, err := c.IntRange("K", 5, 5); err != nil {
			return err
		}
		if _, err := c.IntRange("K", 9, 1); err != nil {
			return err
		}
		if _, err := c.MTBEventOccurs("K", math.Inf(1), 1, 1); err != nil {
			return err
		}
		_, err := c.MTBEventOccurs("K", 0, 1, 1)
		return err
	}))

	pos, _ := c.StreamPos("K")
	assert.Equal(t, int64(6), pos)
}

func TestRand_Bounds(t *testing.T) {
	c := startedPeer(t, "K")

	require.NoError(t, c.Execute("cmd", func() error {
		for i := 0; i < 500; i++ {
			f, err := c.Range("K", -2, 3)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, f, -2.0)
			assert.Less(t, f, 3.0)

			n, err := c.IntRange("K", 1, 6)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, 1)
			assert.LessOrEqual(t, n, 6)
		}
		return nil
	}))
}

func TestRand_ChanceExtremes(t *testing.T) {
	c := startedPeer(t, "K")

	require.NoError(t, c.Execute("cmd", func() error {
		for i := 0; i < 100; i++ {
			never, err := c.Chance("K", 0)
			require.NoError(t, err)
			assert.False(t, never)

			always, err := c.Chance("K", 1)
			require.NoError(t, err)
			assert.True(t, always)
		}
		return nil
	}))
}

func TestRand_IntRangeDegenerate(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi int
		exact  bool // result must equal lo
	}{
		{name: "single value", lo: 7, hi: 7, exact: true},
		{name: "inverted", lo: 7, hi: 3, exact: true},
		{name: "full int range", lo: math.MinInt, hi: math.MaxInt},
		{name: "wider than MaxInt", lo: -1, hi: math.MaxInt},
		{name: "negative half", lo: math.MinInt, hi: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := startedPeer(t, "K")

			require.NoError(t, c.Execute("cmd", func() error {
				for i := 0; i < 50; i++ {
					n, err := c.IntRange("K", tt.lo, tt.hi)
					require.NoError(t, err)
					if tt.exact {
						assert.Equal(t, tt.lo, n)
						continue
					}
					assert.GreaterOrEqual(t, n, tt.lo)
					assert.LessOrEqual(t, n, tt.hi)
				}
				return nil
			}))

			pos, ok := c.StreamPos("K")
			require.True(t, ok)
			assert.Equal(t, int64(50), pos)
		})
	}
}

func TestRand_ReduceWideSpans(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), reduce(math.MaxUint64, math.MinInt, math.MaxInt))
	assert.Equal(t, uint64(12345), reduce(12345, math.MinInt, math.MaxInt))

	// Span is 2^63+1.
	off := reduce(math.MaxUint64, -1, math.MaxInt)
	assert.Equal(t, uint64(math.MaxInt64-1), off)
	assert.Equal(t, math.MaxInt-2, -1+int(off))

	assert.Equal(t, uint64(2), reduce(7, 1, 5))
}

func TestRand_MTBEventOccurs(t *testing.T) {
	c := startedPeer(t, "K")

	require.NoError(t, c.Execute("cmd", func() error {
		never, err := c.MTBEventOccurs("K", math.Inf(1), 60000, 250)
		require.NoError(t, err)
		assert.False(t, never)

		always, err := c.MTBEventOccurs("K", 0, 60000, 250)
		require.NoError(t, err)
		assert.True(t, always)

		// Check duration longer than the mean: always fires.
		certain, err := c.MTBEventOccurs("K", 1, 1, 2)
		require.NoError(t, err)
		assert.True(t, certain)
		return nil
	}))
}

func TestRand_ChanceDistribution(t *testing.T) {
	c := startedPeer(t, "K")

	hits := 0
	const n = 4000
	require.NoError(t, c.Execute("cmd", func() error {
		for i := 0; i < n; i++ {
			ok, err := c.Chance("K", 0.25)
			if err != nil {
				return err
			}
			if ok {
				hits++
			}
		}
		return nil
	}))
	assert.InDelta(t, 0.25, float64(hits)/n, 0.05)
}
