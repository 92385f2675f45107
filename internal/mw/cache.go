package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedPage struct {
	status  int
	headers http.Header
	body    []byte
}

// pageWriter tees the response body so it can be stored after the handler ran.
type pageWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w pageWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w pageWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache is a middleware for in-memory caching of GET responses, keyed by
// request URI. Only successful responses are cached; the query endpoints it
// fronts are read-mostly, so a short TTL keeps results fresh enough.
func Cache(pages *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if hit, found := pages.Get(key); found {
			page := hit.(cachedPage)
			for k, v := range page.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.WriteHeader(page.status)
			c.Writer.Write(page.body)
			c.Abort()
			return
		}

		pw := &pageWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = pw

		c.Next()

		if pw.Status() >= 200 && pw.Status() < 300 {
			pages.Set(key, cachedPage{
				status:  pw.Status(),
				headers: pw.Header().Clone(),
				body:    pw.body.Bytes(),
			}, ttl)
		}
	}
}
