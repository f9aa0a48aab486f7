package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// ListingCache holds rendered responses of listings that every caller sees the
// same way, such as the rooms open for check-in. Entries live for the TTL or
// until a request that changes availability succeeds.
type ListingCache struct {
	entries *cache.Cache
	ttl     time.Duration
}

type listingSnapshot struct {
	status  int
	headers http.Header
	body    []byte
}

// recordingWriter copies the body as it is written to the client.
type recordingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// NewListingCache creates a ListingCache with the given TTL.
func NewListingCache(ttl time.Duration) *ListingCache {
	return &ListingCache{entries: cache.New(ttl, 2*ttl), ttl: ttl}
}

// Serve answers GET requests from the cache, keyed by request URI. A client
// sending Cache-Control: no-cache always reaches the handler. Only 2xx
// responses are stored.
func (l *ListingCache) Serve() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || c.GetHeader("Cache-Control") == "no-cache" {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if v, found := l.entries.Get(key); found {
			snap := v.(listingSnapshot)
			for k, vals := range snap.headers {
				c.Writer.Header()[k] = vals
			}
			c.Header("X-Cache", "HIT")
			c.Writer.WriteHeader(snap.status)
			c.Writer.Write(snap.body)
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		w := &recordingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w
		c.Next()

		if status := w.Status(); status >= 200 && status < 300 {
			headers := w.Header().Clone()
			headers.Del("X-Cache")
			headers.Del("X-Request-ID")
			l.entries.Set(key, listingSnapshot{status: status, headers: headers, body: w.body.Bytes()}, l.ttl)
		}
	}
}

// InvalidateOnSuccess drops every cached listing once the wrapped request
// succeeds. Mount it on routes that occupy, release or retire a room.
func (l *ListingCache) InvalidateOnSuccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if status := c.Writer.Status(); status >= 200 && status < 300 {
			l.Invalidate()
		}
	}
}

// Invalidate drops every cached listing.
func (l *ListingCache) Invalidate() {
	l.entries.Flush()
}

// Len is the number of cached listings.
func (l *ListingCache) Len() int {
	return l.entries.ItemCount()
}
