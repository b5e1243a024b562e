// Package webserver serves the HTML status page and the JSON API used to
// manage artists, albums and jobs.
package webserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/importer"
	"github.com/franz/albumhound/internal/metrics"
	"github.com/franz/albumhound/internal/scheduler"
	"github.com/franz/albumhound/internal/searcher"
	"github.com/franz/albumhound/internal/store"
	"github.com/franz/albumhound/internal/util"
)

// Artists manages followed artists
type Artists interface {
	Resolve(ctx context.Context, arg string) (string, error)
	AddArtist(ctx context.Context, mbid string) (*importer.Result, error)
	RefreshArtist(ctx context.Context, artistID string) (*importer.Result, error)
	DeleteArtist(artistID string) error
}

// Searcher runs a search for one album
type Searcher interface {
	SearchAlbum(ctx context.Context, albumID string, opts searcher.Options) (*searcher.Outcome, error)
}

// Jobs exposes the scheduler
type Jobs interface {
	Status() []scheduler.Status
	RunNow(name string) error
}

// Config holds what the server needs to answer requests
type Config struct {
	Settings *config.Live
	Store    *store.Store
	Artists  Artists
	Searcher Searcher
	Jobs     Jobs
	Metrics  *metrics.Metrics
}

// Server is the HTTP front end
type Server struct {
	cfg *Config

	// background work started by requests outlives the request
	baseCtx context.Context
}

// New creates a Server
func New(cfg *Config) *Server {
	return &Server{cfg: cfg, baseCtx: context.Background()}
}

// Handler builds the router with every middleware applied
func (srv *Server) Handler() http.Handler {
	web := srv.cfg.Settings.Get().Web

	router := mux.NewRouter()
	router.Handle("/", WithInternalError(srv.index)).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Handle("/artists", WithInternalError(srv.listArtists)).Methods(http.MethodGet)
	api.Handle("/artists", WithInternalError(srv.addArtist)).Methods(http.MethodPost)
	api.Handle("/artists/{id}", WithInternalError(srv.deleteArtist)).Methods(http.MethodDelete)
	api.Handle("/artists/{id}/refresh", WithInternalError(srv.refreshArtist)).Methods(http.MethodPost)
	api.Handle("/albums", WithInternalError(srv.listAlbums)).Methods(http.MethodGet)
	api.Handle("/albums/{id}", WithInternalError(srv.getAlbum)).Methods(http.MethodGet)
	api.Handle("/albums/{id}/status", WithInternalError(srv.setAlbumStatus)).Methods(http.MethodPost)
	api.Handle("/albums/{id}/search", WithInternalError(srv.searchAlbum)).Methods(http.MethodPost)
	api.Handle("/snatched", WithInternalError(srv.listSnatched)).Methods(http.MethodGet)
	api.Handle("/jobs", WithInternalError(srv.listJobs)).Methods(http.MethodGet)
	api.Handle("/jobs/{name}/run", WithInternalError(srv.runJob)).Methods(http.MethodPost)
	api.Handle("/stats", WithInternalError(srv.stats)).Methods(http.MethodGet)

	if web.Metrics && srv.cfg.Metrics != nil {
		router.Handle("/metrics", srv.cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	var handler http.Handler = router
	if web.Username != "" {
		handler = BasicAuthHandler{
			wrapped:  handler,
			username: web.Username,
			password: web.Password,
		}
	}
	return NewAccessHandler(handler)
}

// ListenAndServe serves on the configured address until ctx is canceled
func (srv *Server) ListenAndServe(ctx context.Context) error {
	addr := srv.cfg.Settings.Get().Web.Listen
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return srv.Serve(ctx, ln)
}

// Serve answers requests on ln until ctx is canceled, then shuts down
// gracefully
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv.baseCtx = ctx
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			util.WarnLog("Web server shutdown: %v", err)
		}
	}()

	util.InfoLog("Web interface listening on http://%s", ln.Addr())
	err := httpSrv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}
