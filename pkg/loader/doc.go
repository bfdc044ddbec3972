// Package loader provides Tier-1 bootstrap sources for the cache manager.
//
// Static serves a fixed in-memory list. RedisLoader reads summaries stored
// under a key prefix in Redis, which lets a fleet of cache processes boot
// from the same summary set:
//
//	loader := loader.NewRedisLoader(redisClient, "tc:summary:", cache.JSONCodec[Profile]{}, logger)
//	loaded, err := manager.Reload(ctx, loader)
//
// Redis is only a bootstrap source; it is never consulted on the request path.
package loader
