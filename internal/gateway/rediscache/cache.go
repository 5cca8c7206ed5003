// Package rediscache keeps a read-through copy of project listings in Redis.
//
// Only the two listings read on every project open are cached: blocks and
// relationships. Any write that can change one of them deletes the key, and
// Redis errors degrade to a direct read instead of failing the call.
package rediscache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway"
	"github.com/wuzhiguocarter/Aletheia/internal/observability"
)

// DefaultTTL bounds how long a listing may outlive a write made by another process.
const DefaultTTL = 5 * time.Minute

// Options configures the cache.
type Options struct {
	Prefix  string
	TTL     time.Duration
	Logger  *zap.Logger
	Metrics *observability.Collector
}

// Cache decorates a Gateway. Methods it does not override go straight to
// the embedded gateway.
type Cache struct {
	gateway.Gateway
	rdb     goredis.Cmdable
	prefix  string
	ttl     time.Duration
	logger  *zap.Logger
	metrics *observability.Collector
}

var _ gateway.Gateway = (*Cache)(nil)

// New wraps inner with a cache backed by rdb.
func New(inner gateway.Gateway, rdb goredis.Cmdable, opts Options) *Cache {
	if opts.Prefix == "" {
		opts.Prefix = "aletheia:"
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{
		Gateway: inner,
		rdb:     rdb,
		prefix:  opts.Prefix,
		ttl:     opts.TTL,
		logger:  opts.Logger.Named("rediscache"),
		metrics: opts.Metrics,
	}
}

// NewClient dials addr and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// BlocksKey is the key holding a project's block listing.
func (c *Cache) BlocksKey(projectID shared.ProjectID) string {
	return c.prefix + "blocks:" + projectID.String()
}

// RelationshipsKey is the key holding a project's relationship listing.
func (c *Cache) RelationshipsKey(projectID shared.ProjectID) string {
	return c.prefix + "relationships:" + projectID.String()
}

func (c *Cache) ListBlocks(ctx context.Context, projectID shared.ProjectID) ([]block.Block, error) {
	return readThrough(c, ctx, c.BlocksKey(projectID), func() ([]block.Block, error) {
		return c.Gateway.ListBlocks(ctx, projectID)
	})
}

func (c *Cache) ListRelationships(ctx context.Context, projectID shared.ProjectID) ([]relationship.Relationship, error) {
	return readThrough(c, ctx, c.RelationshipsKey(projectID), func() ([]relationship.Relationship, error) {
		return c.Gateway.ListRelationships(ctx, projectID)
	})
}

func (c *Cache) DeleteProject(ctx context.Context, id shared.ProjectID) error {
	err := c.Gateway.DeleteProject(ctx, id)
	c.invalidate(ctx, c.BlocksKey(id), c.RelationshipsKey(id))
	return err
}

func (c *Cache) InsertBlock(ctx context.Context, b block.Block) (block.Block, error) {
	out, err := c.Gateway.InsertBlock(ctx, b)
	c.invalidate(ctx, c.BlocksKey(b.ProjectID))
	return out, err
}

func (c *Cache) UpdateBlock(ctx context.Context, b block.Block, expectedVersion int) (block.Block, error) {
	out, err := c.Gateway.UpdateBlock(ctx, b, expectedVersion)
	c.invalidate(ctx, c.BlocksKey(b.ProjectID))
	return out, err
}

func (c *Cache) ReviseBlock(ctx context.Context, b block.Block, prior block.Version) (block.Block, error) {
	out, err := c.Gateway.ReviseBlock(ctx, b, prior)
	c.invalidate(ctx, c.BlocksKey(b.ProjectID))
	return out, err
}

func (c *Cache) DeleteBlock(ctx context.Context, projectID shared.ProjectID, id shared.BlockID) error {
	err := c.Gateway.DeleteBlock(ctx, projectID, id)
	c.invalidate(ctx, c.BlocksKey(projectID))
	return err
}

func (c *Cache) InsertRelationship(ctx context.Context, rel relationship.Relationship) (relationship.Relationship, error) {
	out, err := c.Gateway.InsertRelationship(ctx, rel)
	c.invalidate(ctx, c.RelationshipsKey(rel.ProjectID))
	return out, err
}

func (c *Cache) DeleteRelationship(ctx context.Context, projectID shared.ProjectID, id shared.RelationshipID) error {
	err := c.Gateway.DeleteRelationship(ctx, projectID, id)
	c.invalidate(ctx, c.RelationshipsKey(projectID))
	return err
}

func (c *Cache) DeleteRelationshipsForBlock(ctx context.Context, projectID shared.ProjectID, blockID shared.BlockID) ([]shared.RelationshipID, error) {
	out, err := c.Gateway.DeleteRelationshipsForBlock(ctx, projectID, blockID)
	c.invalidate(ctx, c.RelationshipsKey(projectID))
	return out, err
}

func readThrough[T any](c *Cache, ctx context.Context, key string, load func() ([]T, error)) ([]T, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []T
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			c.hit()
			return cached, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	case stderrors.Is(err, goredis.Nil):
	default:
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	c.miss()

	out, err := load()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return out, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

// invalidate runs whether or not the write succeeded.
func (c *Cache) invalidate(ctx context.Context, keys ...string) {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (c *Cache) hit() {
	if c.metrics != nil {
		c.metrics.CacheHits.Inc()
	}
}

func (c *Cache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
}
