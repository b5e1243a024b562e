package webserver

import (
	"crypto/subtle"
	"errors"
	"net/http"
)

// BasicAuthHandler checks HTTP basic credentials before passing the request
// to the handler it wraps
type BasicAuthHandler struct {
	wrapped  http.Handler
	username string
	password string
}

func (hl BasicAuthHandler) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	user, pass, ok := req.BasicAuth()
	if !ok || !hl.authenticate(user, pass) {
		InternalErrorOnErrorHandler(writer, req, hl.challengeAuthentication)
		return
	}
	hl.wrapped.ServeHTTP(writer, req)
}

func (hl BasicAuthHandler) challengeAuthentication(writer http.ResponseWriter, req *http.Request) error {
	writer.Header().Set("WWW-Authenticate", `Basic realm="albumhound"`)
	return &statusError{code: http.StatusUnauthorized, err: errors.New("unauthorized")}
}

func (hl BasicAuthHandler) authenticate(user, pass string) bool {
	u := subtle.ConstantTimeCompare([]byte(user), []byte(hl.username))
	p := subtle.ConstantTimeCompare([]byte(pass), []byte(hl.password))
	return u&p == 1
}
