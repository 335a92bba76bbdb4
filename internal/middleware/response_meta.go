package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const metaContextKey = "response_meta"

// Envelope meta keys written by handlers and middleware.
const (
	MetaCacheHit         = "cache_hit"
	MetaProcessingTimeMS = "processing_time_ms"
)

// WithResponseMeta seeds a metadata map on the request context and
// records the total handler time unless a handler already stored a
// narrower measurement of its own.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Set(metaContextKey, map[string]interface{}{})
		c.Next()
		meta := Meta(c)
		if _, ok := meta[MetaProcessingTimeMS]; !ok {
			meta[MetaProcessingTimeMS] = time.Since(started).Milliseconds()
		}
	}
}

// MarkCacheHit records whether the response was served from cache.
func MarkCacheHit(c *gin.Context, hit bool) {
	Meta(c)[MetaCacheHit] = hit
}

// Meta returns the metadata map for the current request. A map is
// created on the fly when the seeding middleware did not run, so
// handlers can write meta unconditionally.
func Meta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if v, ok := c.Get(metaContextKey); ok {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	m := map[string]interface{}{}
	c.Set(metaContextKey, m)
	return m
}
