package rediscache

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway/memory"
	"github.com/wuzhiguocarter/Aletheia/internal/observability"
)

// fakeRedis implements the three commands the cache issues. Any other
// command panics through the nil embedded interface.
type fakeRedis struct {
	goredis.Cmdable
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return goredis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.([]byte)
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

type fixture struct {
	inner   *memory.Gateway
	rdb     *fakeRedis
	cache   *Cache
	metrics *observability.Collector
	project project.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{inner: memory.New(), rdb: newFakeRedis(), metrics: observability.NewCollector("test")}
	f.cache = New(f.inner, f.rdb, Options{Metrics: f.metrics})

	p, err := project.New("owner-1", "Thesis", "", time.Time{})
	require.NoError(t, err)
	f.project, err = f.inner.CreateProject(context.Background(), p)
	require.NoError(t, err)
	return f
}

func (f *fixture) insertBlock(t *testing.T) block.Block {
	t.Helper()
	b, err := block.New(f.project.ID, "owner-1", block.TypeEvidence, shared.Position{}, time.Time{})
	require.NoError(t, err)
	b, err = f.cache.InsertBlock(context.Background(), b)
	require.NoError(t, err)
	return b
}

func TestListBlocksReadThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.insertBlock(t)

	first, err := f.cache.ListBlocks(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, f.rdb.has(f.cache.BlocksKey(f.project.ID)))

	second, err := f.cache.ListBlocks(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, b.ID, second[0].ID)
	assert.Equal(t, b.Content, second[0].Content)

	assert.Equal(t, 1, f.inner.Calls("ListBlocks"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheMisses))
}

func TestWritesInvalidate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.insertBlock(t)
	b := f.insertBlock(t)

	_, err := f.cache.ListBlocks(ctx, f.project.ID)
	require.NoError(t, err)
	_, err = f.cache.ListRelationships(ctx, f.project.ID)
	require.NoError(t, err)

	rel, err := relationship.New(f.project.ID, a.ID, b.ID, relationship.TypeSupports, time.Time{})
	require.NoError(t, err)
	_, err = f.cache.InsertRelationship(ctx, rel)
	require.NoError(t, err)
	assert.False(t, f.rdb.has(f.cache.RelationshipsKey(f.project.ID)))
	assert.True(t, f.rdb.has(f.cache.BlocksKey(f.project.ID)))

	a.Content = "edited"
	a.Version = 2
	_, err = f.cache.UpdateBlock(ctx, a, 1)
	require.NoError(t, err)
	assert.False(t, f.rdb.has(f.cache.BlocksKey(f.project.ID)))

	list, err := f.cache.ListBlocks(ctx, f.project.ID)
	require.NoError(t, err)
	for _, got := range list {
		if got.ID == a.ID {
			assert.Equal(t, "edited", got.Content)
		}
	}
}

func TestRedisDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.insertBlock(t)
	f.rdb.getErr = stderrors.New("connection refused")

	list, err := f.cache.ListBlocks(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.cache.ListBlocks(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.inner.Calls("ListBlocks"))
}

func TestInnerErrorNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.inner.SetError("ListRelationships", stderrors.New("down"))

	_, err := f.cache.ListRelationships(ctx, f.project.ID)
	require.Error(t, err)
	assert.False(t, f.rdb.has(f.cache.RelationshipsKey(f.project.ID)))
}
