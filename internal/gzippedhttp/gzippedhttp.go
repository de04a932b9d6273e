// Package gzippedhttp provides a middleware that gzip-compresses HTTP
// responses for clients that advertise support. Request bodies here are
// small browser form submissions and are never compressed, so only the
// response side is handled.
package gzippedhttp

import (
	"compress/gzip"
	"net/http"
	"strings"
	"sync"
)

// CompressedHTTPResponseWriter wraps http.ResponseWriter and compresses
// the response body using gzip.
type CompressedHTTPResponseWriter struct {
	w  http.ResponseWriter
	zw *gzip.Writer
}

// NewCompressedHTTPResponseWriter returns a new CompressedHTTPResponseWriter
// that writes gzip-compressed responses to the provided http.ResponseWriter.
func NewCompressedHTTPResponseWriter(w http.ResponseWriter) *CompressedHTTPResponseWriter {
	zw := gzipWriterPool.Get().(*gzip.Writer)
	zw.Reset(w)
	return &CompressedHTTPResponseWriter{
		w:  w,
		zw: zw,
	}
}

// Close flushes the gzip stream and returns the writer to the pool.
func (c *CompressedHTTPResponseWriter) Close() error {
	err := c.zw.Close()
	if err != nil {
		return err
	}
	gzipWriterPool.Put(c.zw)
	return nil
}

// WriteHeader sets the HTTP status code for the response.
func (c *CompressedHTTPResponseWriter) WriteHeader(statusCode int) {
	if statusCode < 300 {
		c.w.Header().Set("Content-Encoding", "gzip")
	}
	c.w.WriteHeader(statusCode)
}

// Write writes gzip-compressed data to the response body.
func (c *CompressedHTTPResponseWriter) Write(p []byte) (int, error) {
	return c.zw.Write(p)
}

// Header returns the HTTP headers associated with the response.
func (c *CompressedHTTPResponseWriter) Header() http.Header {
	return c.w.Header()
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// GzipResponse is the middleware that determines whether a response should be compressed based
// on the request's "Accept-Encoding" header.
func GzipResponse(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		finalResponse := response

		acceptEncoding := request.Header.Get("Accept-Encoding")
		clientAcceptsGzip := strings.Contains(acceptEncoding, "gzip")
		if clientAcceptsGzip {
			responseWithCompression := NewCompressedHTTPResponseWriter(response)
			finalResponse = responseWithCompression
			defer responseWithCompression.Close()
		}

		h.ServeHTTP(finalResponse, request)
	}

	return http.HandlerFunc(middleware)
}
