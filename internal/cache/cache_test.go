package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/linkforty/linkforty/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLinkKey(t *testing.T) {
	require.Equal(t, "link:abc", LinkKey("", "abc"))
	require.Equal(t, "link:promo:abc", LinkKey("promo", "abc"))
}

func newMiniredisCache(t *testing.T) LinkCache {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLinkCache(client, zap.NewNop())
}

func TestRedisLinkCache_SetThenGet(t *testing.T) {
	c := newMiniredisCache(t)
	ctx := context.Background()

	link := &domain.Link{ID: "link1", ShortCode: "abc", OriginURL: "https://example.com"}
	c.Set(ctx, LinkKey("", "abc"), link)

	got, ok := c.Get(ctx, LinkKey("", "abc"))
	require.True(t, ok)
	require.Equal(t, link.ID, got.ID)
	require.Equal(t, link.OriginURL, got.OriginURL)
}

func TestRedisLinkCache_MissReturnsFalse(t *testing.T) {
	c := newMiniredisCache(t)
	_, ok := c.Get(context.Background(), LinkKey("", "missing"))
	require.False(t, ok)
}

func TestRedisLinkCache_Invalidate(t *testing.T) {
	c := newMiniredisCache(t)
	ctx := context.Background()

	link := &domain.Link{ID: "link1", ShortCode: "abc"}
	c.Set(ctx, LinkKey("", "abc"), link)
	c.Set(ctx, LinkKey("promo", "abc"), link)

	c.Invalidate(ctx, "abc", "promo")

	_, ok := c.Get(ctx, LinkKey("", "abc"))
	require.False(t, ok)
	_, ok = c.Get(ctx, LinkKey("promo", "abc"))
	require.False(t, ok)
}

func TestRedisLinkCache_NilClientIsNoopMiss(t *testing.T) {
	c := NewRedisLinkCache(nil, zap.NewNop())
	ctx := context.Background()

	c.Set(ctx, "link:abc", &domain.Link{ID: "link1"}) // must not panic
	_, ok := c.Get(ctx, "link:abc")
	require.False(t, ok)
	c.Invalidate(ctx, "abc", "") // must not panic
}

func TestShortCodeFilter_AddAndMightContain(t *testing.T) {
	f := NewShortCodeFilter(1000)

	require.False(t, f.MightContain("abc"))
	f.Add("abc")
	require.True(t, f.MightContain("abc"))
}

func TestShortCodeFilter_Rebuild(t *testing.T) {
	f := NewShortCodeFilter(1000)
	f.Add("stale")
	require.True(t, f.MightContain("stale"))

	f.Rebuild([]string{"fresh1", "fresh2"}, 1000)

	require.True(t, f.MightContain("fresh1"))
	require.True(t, f.MightContain("fresh2"))
	// "stale" is not guaranteed false after rebuild (bloom filters never
	// guarantee negatives aren't false positives), but a never-added,
	// distinct value should be.
	require.False(t, f.MightContain("definitely-never-added"))
}
