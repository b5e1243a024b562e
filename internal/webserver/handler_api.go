package webserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/franz/albumhound/internal/searcher"
	"github.com/franz/albumhound/internal/store"
	"github.com/franz/albumhound/internal/util"
)

func (srv *Server) listArtists(w http.ResponseWriter, req *http.Request) error {
	artists, err := srv.cfg.Store.ListArtists()
	if err != nil {
		return err
	}
	if artists == nil {
		artists = []store.Artist{}
	}
	return writeJSON(w, http.StatusOK, artists)
}

type addArtistRequest struct {
	MBID string `json:"mbid"`
	Name string `json:"name"`
}

// addArtist resolves the artist and imports it in the background. An
// import takes one MusicBrainz request per release group.
func (srv *Server) addArtist(w http.ResponseWriter, req *http.Request) error {
	var body addArtistRequest
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	arg := strings.TrimSpace(body.MBID)
	if arg == "" {
		arg = strings.TrimSpace(body.Name)
	}
	if arg == "" {
		return badRequest(errors.New("mbid or name is required"))
	}

	id, err := srv.cfg.Artists.Resolve(req.Context(), arg)
	if err != nil {
		return err
	}

	ctx := srv.baseCtx
	go func() {
		if _, err := srv.cfg.Artists.AddArtist(ctx, id); err != nil {
			util.ErrorLog("Adding artist %s failed: %v", id, err)
		}
	}()
	return writeJSON(w, http.StatusAccepted, map[string]string{"artist_id": id})
}

func (srv *Server) deleteArtist(w http.ResponseWriter, req *http.Request) error {
	id := mux.Vars(req)["id"]
	if _, err := srv.cfg.Store.GetArtist(id); err != nil {
		return err
	}
	if err := srv.cfg.Artists.DeleteArtist(id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (srv *Server) refreshArtist(w http.ResponseWriter, req *http.Request) error {
	res, err := srv.cfg.Artists.RefreshArtist(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

func (srv *Server) listAlbums(w http.ResponseWriter, req *http.Request) error {
	var statuses []string
	for _, s := range req.URL.Query()["status"] {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !store.ValidAlbumStatus(part) {
				return badRequest(fmt.Errorf("unknown status %q", part))
			}
			statuses = append(statuses, part)
		}
	}

	var (
		albums []store.Album
		err    error
	)
	if artist := req.URL.Query().Get("artist"); artist != "" {
		albums, err = srv.cfg.Store.ListAlbumsByArtist(artist)
	} else {
		albums, err = srv.cfg.Store.ListAlbumsByStatus(statuses...)
	}
	if err != nil {
		return err
	}
	if albums == nil {
		albums = []store.Album{}
	}
	return writeJSON(w, http.StatusOK, albums)
}

type albumDetail struct {
	*store.Album
	Tracks   []store.Track    `json:"tracks"`
	Snatched []store.Snatched `json:"snatched"`
}

func (srv *Server) getAlbum(w http.ResponseWriter, req *http.Request) error {
	id := mux.Vars(req)["id"]
	album, err := srv.cfg.Store.GetAlbum(id)
	if err != nil {
		return err
	}
	tracks, err := srv.cfg.Store.ListTracks(id)
	if err != nil {
		return err
	}
	snatched, err := srv.cfg.Store.SnatchedForAlbum(id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, albumDetail{Album: album, Tracks: tracks, Snatched: snatched})
}

type albumStatusRequest struct {
	Status     string `json:"status"`
	Quality    string `json:"quality"`
	SearchTerm string `json:"search_term"`
}

func (srv *Server) setAlbumStatus(w http.ResponseWriter, req *http.Request) error {
	id := mux.Vars(req)["id"]
	var body albumStatusRequest
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	if !store.ValidAlbumStatus(body.Status) {
		return badRequest(fmt.Errorf("unknown status %q", body.Status))
	}

	album, err := srv.cfg.Store.GetAlbum(id)
	if err != nil {
		return err
	}
	if err := srv.cfg.Store.SetAlbumStatus(id, body.Status); err != nil {
		return err
	}
	if body.Quality != "" || body.SearchTerm != "" {
		quality, term := album.Quality, album.SearchTerm
		if body.Quality != "" {
			quality = body.Quality
		}
		if body.SearchTerm != "" {
			term = body.SearchTerm
		}
		if err := srv.cfg.Store.SetAlbumPreferences(id, term, quality); err != nil {
			return err
		}
	}

	album, err = srv.cfg.Store.GetAlbum(id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, album)
}

func (srv *Server) searchAlbum(w http.ResponseWriter, req *http.Request) error {
	dry, _ := strconv.ParseBool(req.URL.Query().Get("dry_run"))
	out, err := srv.cfg.Searcher.SearchAlbum(req.Context(), mux.Vars(req)["id"], searcher.Options{
		DryRun: dry,
		Manual: true,
	})
	if errors.Is(err, searcher.ErrNotWanted) {
		return conflict(err)
	}
	if err != nil && out == nil {
		return err
	}
	code := http.StatusOK
	if err != nil {
		code = http.StatusBadGateway
	}
	return writeJSON(w, code, out)
}

func (srv *Server) listSnatched(w http.ResponseWriter, req *http.Request) error {
	limit := 100
	if l := req.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			return badRequest(fmt.Errorf("invalid limit %q", l))
		}
		limit = n
	}
	rows, err := srv.cfg.Store.ListSnatched(limit)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []store.Snatched{}
	}
	return writeJSON(w, http.StatusOK, rows)
}

func (srv *Server) listJobs(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, srv.cfg.Jobs.Status())
}

func (srv *Server) runJob(w http.ResponseWriter, req *http.Request) error {
	name := mux.Vars(req)["name"]
	if err := srv.cfg.Jobs.RunNow(name); err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return err
		}
		return conflict(err)
	}
	return writeJSON(w, http.StatusAccepted, map[string]string{"job": name})
}

func (srv *Server) stats(w http.ResponseWriter, req *http.Request) error {
	st, err := srv.cfg.Store.Stats()
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, st)
}
