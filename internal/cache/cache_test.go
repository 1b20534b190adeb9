package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konsi/campaign-filter/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLRU(size int) (*LRUCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	c := NewLRUCache(size)
	c.now = clock.Now
	return c, clock
}

func TestLRUCache(t *testing.T) {
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		c, _ := newTestLRU(10)
		require.NoError(t, c.Set(ctx, "rules:govsp:novo", []byte("v1"), time.Minute))

		val, err := c.Get(ctx, "rules:govsp:novo")
		require.NoError(t, err)
		assert.Equal(t, "v1", string(val))
	})

	t.Run("GetMiss", func(t *testing.T) {
		c, _ := newTestLRU(10)
		val, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("Overwrite", func(t *testing.T) {
		c, _ := newTestLRU(10)
		_ = c.Set(ctx, "k", []byte("old"), time.Minute)
		_ = c.Set(ctx, "k", []byte("new"), time.Minute)

		val, _ := c.Get(ctx, "k")
		assert.Equal(t, "new", string(val))
		size, _ := c.Stats()
		assert.Equal(t, 1, size)
	})

	t.Run("Delete", func(t *testing.T) {
		c, _ := newTestLRU(10)
		_ = c.Set(ctx, "k", []byte("v"), time.Minute)
		require.NoError(t, c.Delete(ctx, "k"))

		val, _ := c.Get(ctx, "k")
		assert.Nil(t, val)
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		c, clock := newTestLRU(10)
		_ = c.Set(ctx, "k", []byte("v"), time.Minute)

		clock.Advance(59 * time.Second)
		val, _ := c.Get(ctx, "k")
		assert.NotNil(t, val)

		clock.Advance(2 * time.Second)
		val, _ = c.Get(ctx, "k")
		assert.Nil(t, val)
		size, _ := c.Stats()
		assert.Zero(t, size, "expired entries are removed on read")
	})

	t.Run("LRUEviction", func(t *testing.T) {
		c, _ := newTestLRU(3)
		_ = c.Set(ctx, "a", []byte("1"), time.Minute)
		_ = c.Set(ctx, "b", []byte("2"), time.Minute)
		_ = c.Set(ctx, "c", []byte("3"), time.Minute)

		// Touch "a" so "b" becomes the oldest.
		_, _ = c.Get(ctx, "a")
		_ = c.Set(ctx, "d", []byte("4"), time.Minute)

		val, _ := c.Get(ctx, "b")
		assert.Nil(t, val)
		val, _ = c.Get(ctx, "a")
		assert.NotNil(t, val)

		size, capacity := c.Stats()
		assert.Equal(t, 3, size)
		assert.Equal(t, 3, capacity)
	})

	t.Run("Close", func(t *testing.T) {
		c, _ := newTestLRU(10)
		_ = c.Set(ctx, "k", []byte("v"), time.Minute)
		require.NoError(t, c.Close())

		val, _ := c.Get(ctx, "k")
		assert.Nil(t, val)
	})
}

func TestTwoPhaseCache(t *testing.T) {
	ctx := context.Background()
	local, clock := newTestLRU(10)
	remote, _ := newTestLRU(10)
	remote.now = clock.Now
	c := NewTwoPhaseCache(local, remote, time.Minute)

	t.Run("ReadThroughPopulatesL1", func(t *testing.T) {
		_ = remote.Set(ctx, "k", []byte("from-l2"), time.Hour)

		val, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "from-l2", string(val))

		l1, _ := local.Get(ctx, "k")
		assert.Equal(t, "from-l2", string(l1))
	})

	t.Run("SetCapsL1TTL", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Hour))

		clock.Advance(2 * time.Minute)
		l1, _ := local.Get(ctx, "short")
		assert.Nil(t, l1)

		val, _ := c.Get(ctx, "short")
		assert.Equal(t, "v", string(val), "L2 keeps the full TTL")
	})

	t.Run("DeleteBoth", func(t *testing.T) {
		_ = c.Set(ctx, "gone", []byte("v"), time.Hour)
		require.NoError(t, c.Delete(ctx, "gone"))

		val, _ := c.Get(ctx, "gone")
		assert.Nil(t, val)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, c.Ping(ctx))
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		require.NoError(t, err)
		defer c.Close()

		assert.IsType(t, &LRUCache{}, c)
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		_, err := New(domain.CacheConfig{Type: "memcached"})
		assert.Error(t, err)
	})
}

type countingSource struct {
	calls int
	rules map[string]*domain.ExclusionRules
	err   error
}

func (s *countingSource) GetExclusionRules(_ context.Context, agreement, campaign string) (*domain.ExclusionRules, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.rules[agreement+"/"+campaign]; ok {
		return r, nil
	}
	return &domain.ExclusionRules{Agreement: agreement, Campaign: campaign}, nil
}

func TestRuleSource(t *testing.T) {
	ctx := context.Background()
	next := &countingSource{rules: map[string]*domain.ExclusionRules{
		"govsp/novo": {Agreement: "govsp", Campaign: "novo", Lotacoes: []string{"ALESP"}},
	}}
	lru, _ := newTestLRU(10)
	src := NewRuleSource(next, lru, time.Minute)

	first, err := src.GetExclusionRules(ctx, "govsp", "novo")
	require.NoError(t, err)
	second, err := src.GetExclusionRules(ctx, "govsp", "novo")
	require.NoError(t, err)

	assert.Equal(t, []string{"ALESP"}, second.Lotacoes)
	assert.Equal(t, first.Lotacoes, second.Lotacoes)
	assert.Equal(t, 1, next.calls)

	next.rules["govsp/novo"].Lotacoes = []string{"SEDUC"}
	require.NoError(t, src.Invalidate(ctx, "govsp", "novo"))

	third, err := src.GetExclusionRules(ctx, "govsp", "novo")
	require.NoError(t, err)
	assert.Equal(t, []string{"SEDUC"}, third.Lotacoes)
	assert.Equal(t, 2, next.calls)
}

func TestRuleSourcePropagatesSourceErrors(t *testing.T) {
	boom := errors.New("database is down")
	lru, _ := newTestLRU(10)
	src := NewRuleSource(&countingSource{err: boom}, lru, 0)

	_, err := src.GetExclusionRules(context.Background(), "govsp", "novo")
	assert.ErrorIs(t, err, boom)

	size, _ := lru.Stats()
	assert.Zero(t, size, "failures are not cached")
}
