package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opsgrid-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "response_meta"
	requestStartKey = "request_start"
	cacheHitKey     = "cache_hit"
)

// WithResponseMeta initialises response metadata storage on the request context.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether the response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)[cacheHitKey] = hit
}

// ResponseMeta returns a copy of the collected metadata with processing time and request ID filled in.
func ResponseMeta(c *gin.Context) map[string]interface{} {
	out := map[string]interface{}{}
	if c == nil {
		return out
	}
	for k, v := range ensureMeta(c) {
		out[k] = v
	}
	if v, ok := c.Get(requestStartKey); ok {
		if start, ok := v.(time.Time); ok {
			out["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	if id := requestid.Value(c); id != "" {
		out["request_id"] = id
	}
	return out
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
