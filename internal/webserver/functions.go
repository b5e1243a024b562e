package webserver

import (
	"errors"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/franz/albumhound/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HandlerFuncWithError is similar to http.HandlerFunc but returns an error when
// the handling of the request failed.
type HandlerFuncWithError func(http.ResponseWriter, *http.Request) error

// statusError carries the HTTP status a handler error should produce
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &statusError{code: http.StatusBadRequest, err: err}
}

func conflict(err error) error {
	return &statusError{code: http.StatusConflict, err: err}
}

// InternalErrorOnErrorHandler is used to wrap around handler-like functions which
// just return an error. The error is written to the client as JSON.
func InternalErrorOnErrorHandler(writer http.ResponseWriter, req *http.Request,
	fnc HandlerFuncWithError) {
	WithInternalError(fnc)(writer, req)
}

// WithInternalError converts HandlerFuncWithError to http.HandlerFunc. Errors
// become 500 responses unless they carry a more specific status.
func WithInternalError(fnc HandlerFuncWithError) http.HandlerFunc {
	return func(writer http.ResponseWriter, req *http.Request) {
		err := fnc(writer, req)
		if err == nil {
			return
		}

		code := http.StatusInternalServerError
		var se *statusError
		switch {
		case errors.As(err, &se):
			code = se.code
		case errors.Is(err, util.ErrNotFound):
			code = http.StatusNotFound
		case errors.Is(err, util.ErrNoProviders), errors.Is(err, util.ErrNoClient):
			code = http.StatusServiceUnavailable
		}
		if code == http.StatusInternalServerError {
			util.ErrorLog("%s %s: %v", req.Method, req.URL.Path, err)
		}
		writeJSON(writer, code, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.DebugLog("error writing response: %v", err)
	}
	return nil
}

func decodeJSON(req *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
	if err != nil {
		return badRequest(err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest(err)
	}
	return nil
}
