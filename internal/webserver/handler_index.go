package webserver

import (
	"bytes"
	"net/http"

	"github.com/franz/albumhound/internal/scheduler"
	"github.com/franz/albumhound/internal/store"
)

type indexPage struct {
	Stats    *store.Stats
	Artists  []store.Artist
	Wanted   []store.Album
	Snatched []store.Snatched
	Jobs     []scheduler.Status
}

func (srv *Server) index(w http.ResponseWriter, req *http.Request) error {
	st, err := srv.cfg.Store.Stats()
	if err != nil {
		return err
	}
	artists, err := srv.cfg.Store.ListArtists()
	if err != nil {
		return err
	}
	wanted, err := srv.cfg.Store.ListAlbumsByStatus(store.StatusWanted, store.StatusWantedLossless)
	if err != nil {
		return err
	}
	snatched, err := srv.cfg.Store.ListSnatched(20)
	if err != nil {
		return err
	}

	page := indexPage{Stats: st, Artists: artists, Wanted: wanted, Snatched: snatched}
	if srv.cfg.Jobs != nil {
		page.Jobs = srv.cfg.Jobs.Status()
	}

	// rendered into a buffer so a failed template still gives a 500
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, page); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = buf.WriteTo(w)
	return err
}
