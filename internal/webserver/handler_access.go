package webserver

import (
	"net/http"
	"time"

	"github.com/franz/albumhound/internal/util"
)

// AccessHandler is an http.Handler which wraps around another handler and
// logs every request
type AccessHandler struct {
	wrapped http.Handler
}

// NewAccessHandler returns an AccessHandler which will call `h` and then log
// information about the request and response.
func NewAccessHandler(h http.Handler) *AccessHandler {
	return &AccessHandler{wrapped: h}
}

// ServeHTTP implements the http.Handler interface.
func (h *AccessHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	started := time.Now()
	ww := newLoggedResponseWriter(w)
	h.wrapped.ServeHTTP(ww, req)

	util.DebugLog("%s %s dur=%s status=%d userAgent=%q remoteAddr=%s",
		req.Method, req.URL.Path, time.Since(started).Round(time.Microsecond), ww.code,
		req.Header.Get("User-Agent"), req.RemoteAddr)
}

type loggedResponseWriter struct {
	http.ResponseWriter
	code int
}

func newLoggedResponseWriter(w http.ResponseWriter) *loggedResponseWriter {
	return &loggedResponseWriter{
		ResponseWriter: w,
		code:           http.StatusOK,
	}
}

func (w *loggedResponseWriter) WriteHeader(status int) {
	w.code = status
	w.ResponseWriter.WriteHeader(status)
}
