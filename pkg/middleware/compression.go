package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Gzip compression levels
const (
	GzipBestSpeed       = gzip.BestSpeed
	GzipBestCompression = gzip.BestCompression
	GzipDefaultLevel    = gzip.DefaultCompression
)

// Writers are pooled; a fresh gzip.Writer allocates a ~200KB window.
var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, GzipDefaultLevel)
		return w
	},
}

type gzipResponseWriter struct {
	http.ResponseWriter
	gzipWriter *gzip.Writer
	statusCode int
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	return w.gzipWriter.Write(b)
}

// GzipHandler compresses responses for clients that advertise gzip support.
// Responses with a non-compressible Content-Type pass through untouched.
func GzipHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			contentType := w.Header().Get("Content-Type")
			if contentType != "" && !CompressibleContentType(contentType) {
				next.ServeHTTP(w, r)
				return
			}

			gz := gzipWriterPool.Get().(*gzip.Writer)
			defer func() {
				gz.Close()
				gzipWriterPool.Put(gz)
			}()
			gz.Reset(w)

			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Set("Vary", "Accept-Encoding")
			// Content-Length would be wrong after compression
			w.Header().Del("Content-Length")

			gzipW := &gzipResponseWriter{
				ResponseWriter: w,
				gzipWriter:     gz,
			}
			next.ServeHTTP(gzipW, r)

			if logger != nil {
				logger.Debug("Response compressed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", gzipW.statusCode),
				)
			}
		})
	}
}

// CompressibleContentType returns true if the content type benefits from gzip
func CompressibleContentType(contentType string) bool {
	compressible := []string{
		"text/",
		"application/json",
		"application/xml",
		"application/x-ndjson",
	}
	for _, prefix := range compressible {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
