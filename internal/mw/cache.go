package mw

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// snapshotEntry is a stored 2xx answer.
type snapshotEntry struct {
	status int
	header http.Header
	body   []byte
	etag   string
}

// recordingWriter copies everything written through it.
type recordingWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache answers repeated GETs of slow-changing data, such as the menu, from
// memory for ttl. Entries carry an ETag; a client presenting it in
// If-None-Match gets 304 with no body. Only 2xx answers are stored.
func Cache(entries *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if v, ok := entries.Get(key); ok {
			e := v.(snapshotEntry)
			h := c.Writer.Header()
			for k, vals := range e.header {
				h[k] = vals
			}
			h.Set("ETag", e.etag)
			h.Set("X-Cache", "HIT")
			if c.GetHeader("If-None-Match") == e.etag {
				c.AbortWithStatus(http.StatusNotModified)
				return
			}
			c.Writer.WriteHeader(e.status)
			c.Writer.Write(e.body)
			c.Abort()
			return
		}

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < 200 || status >= 300 {
			return
		}
		body := bytes.Clone(rec.buf.Bytes())
		sum := sha256.Sum256(body)
		entries.Set(key, snapshotEntry{
			status: status,
			header: rec.Header().Clone(),
			body:   body,
			etag:   `"` + hex.EncodeToString(sum[:8]) + `"`,
		}, ttl)
	}
}
