// Package importer copies artist discographies and album track lists from
// MusicBrainz into the library database.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/musicbrainz"
	"github.com/franz/albumhound/internal/report"
	"github.com/franz/albumhound/internal/store"
	"github.com/franz/albumhound/internal/util"
)

// Source is the metadata service; *musicbrainz.Client implements it
type Source interface {
	SearchArtists(ctx context.Context, name string, limit int) ([]musicbrainz.Artist, error)
	LookupArtist(ctx context.Context, mbid string) (*musicbrainz.Artist, error)
	BrowseReleaseGroups(ctx context.Context, artistMBID string, types []string) ([]musicbrainz.ReleaseGroup, error)
	LookupReleaseGroup(ctx context.Context, mbid string) (*musicbrainz.ReleaseGroup, error)
	LookupRelease(ctx context.Context, mbid string) (*musicbrainz.Release, error)
}

// Config holds the collaborators of an Importer
type Config struct {
	Settings *config.Live
	Store    *store.Store
	Source   Source
	Events   *report.EventLogger
}

// Importer adds and refreshes artists
type Importer struct {
	cfg    *Config
	flight singleflight.Group
	now    func() time.Time
}

// Result summarizes one artist import
type Result struct {
	ArtistID string `json:"artist_id"`
	Name     string `json:"name"`
	Albums   int    `json:"albums"`
	New      int    `json:"new"`
	Wanted   int    `json:"wanted"`
	Failed   int    `json:"failed"`
}

// New creates an Importer
func New(cfg *Config) *Importer {
	return &Importer{cfg: cfg, now: time.Now}
}

// FindArtist searches MusicBrainz for artists by name, best match first
func (im *Importer) FindArtist(ctx context.Context, name string) ([]musicbrainz.Artist, error) {
	return im.cfg.Source.SearchArtists(ctx, name, 10)
}

// Resolve turns an MBID or an artist name into an MBID, taking the best
// search match for names
func (im *Importer) Resolve(ctx context.Context, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if musicbrainz.ValidMBID(arg) {
		return arg, nil
	}
	artists, err := im.FindArtist(ctx, arg)
	if err != nil {
		return "", err
	}
	if len(artists) == 0 {
		return "", fmt.Errorf("artist %q: %w", arg, util.ErrNotFound)
	}
	util.InfoLog("Resolved %q to %s (%s)", arg, artists[0].Name, artists[0].ID)
	return artists[0].ID, nil
}

// AddArtist imports an artist and its release groups
func (im *Importer) AddArtist(ctx context.Context, mbid string) (*Result, error) {
	return im.importArtist(ctx, mbid)
}

// RefreshArtist re-reads an already tracked artist. User-set album
// statuses are kept.
func (im *Importer) RefreshArtist(ctx context.Context, artistID string) (*Result, error) {
	if _, err := im.cfg.Store.GetArtist(artistID); err != nil {
		return nil, err
	}
	return im.importArtist(ctx, artistID)
}

// RefreshAll refreshes every artist that is not paused. Failures are
// logged and joined into the returned error.
func (im *Importer) RefreshAll(ctx context.Context) (int, error) {
	artists, err := im.cfg.Store.ListArtists()
	if err != nil {
		return 0, err
	}

	var (
		refreshed int
		errs      []error
	)
	for _, a := range artists {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if a.Status == store.ArtistPaused {
			util.DebugLog("Skipping paused artist %s", a.Name)
			continue
		}
		if _, err := im.importArtist(ctx, a.ID); err != nil {
			util.ErrorLog("Refreshing %s failed: %v", a.Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", a.Name, err))
			continue
		}
		refreshed++
	}
	util.InfoLog("Refreshed %d of %d artists", refreshed, len(artists))
	return refreshed, errors.Join(errs...)
}

// DeleteArtist removes an artist with its albums and tracks
func (im *Importer) DeleteArtist(artistID string) error {
	if err := im.cfg.Store.DeleteArtist(artistID); err != nil {
		return err
	}
	util.InfoLog("Deleted artist %s", artistID)
	return nil
}

func (im *Importer) importArtist(ctx context.Context, mbid string) (*Result, error) {
	v, err, _ := im.flight.Do(mbid, func() (interface{}, error) {
		res, err := im.runImport(ctx, mbid)
		if res != nil {
			im.cfg.Events.LogImport(mbid, res.Name, res.Albums, err)
		} else {
			im.cfg.Events.LogImport(mbid, "", 0, err)
		}
		return res, err
	})
	res, _ := v.(*Result)
	return res, err
}

func (im *Importer) runImport(ctx context.Context, mbid string) (*Result, error) {
	settings := im.cfg.Settings.Get().Import

	artist, err := im.cfg.Source.LookupArtist(ctx, mbid)
	if err != nil {
		return nil, fmt.Errorf("failed to look up artist: %w", err)
	}
	util.InfoLog("Importing %s (%s)", artist.Name, artist.ID)

	if err := im.cfg.Store.UpsertArtist(&store.Artist{
		ID:            artist.ID,
		Name:          artist.Name,
		SortName:      artist.SortName,
		Status:        store.ArtistLoading,
		IncludeExtras: settings.IncludeExtras,
	}); err != nil {
		return nil, err
	}
	existing, err := im.cfg.Store.GetArtist(artist.ID)
	if err != nil {
		return nil, err
	}
	prevStatus := existing.Status
	if err := im.cfg.Store.SetArtistStatus(artist.ID, store.ArtistLoading); err != nil {
		return nil, err
	}
	finalStatus := store.ArtistActive
	if prevStatus == store.ArtistPaused {
		finalStatus = store.ArtistPaused
	}
	defer func() {
		if err := im.cfg.Store.SetArtistStatus(artist.ID, finalStatus); err != nil {
			util.WarnLog("Failed to set status of %s: %v", artist.Name, err)
		}
	}()

	groups, err := im.cfg.Source.BrowseReleaseGroups(ctx, artist.ID, settings.ReleaseTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to browse release groups: %w", err)
	}

	res := &Result{ArtistID: artist.ID, Name: artist.Name}
	extras := settings.IncludeExtras || existing.IncludeExtras
	for i := range groups {
		rg := &groups[i]
		if !extras && len(rg.SecondaryTypes) > 0 {
			util.DebugLog("Skipping %s (%s)", rg.Title, strings.Join(rg.SecondaryTypes, ", "))
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		created, status, err := im.importAlbum(ctx, artist, rg, settings)
		if err != nil {
			util.WarnLog("Failed to import %s - %s: %v", artist.Name, rg.Title, err)
			res.Failed++
			continue
		}
		res.Albums++
		if created {
			res.New++
			if status == store.StatusWanted {
				res.Wanted++
			}
		}
	}

	if err := im.cfg.Store.TouchArtist(artist.ID); err != nil {
		return res, err
	}
	util.SuccessLog("Imported %s: %d albums (%d new, %d wanted, %d failed)", artist.Name, res.Albums, res.New, res.Wanted, res.Failed)
	return res, nil
}

// importAlbum stores one release group with the tracks of its picked
// release
func (im *Importer) importAlbum(ctx context.Context, artist *musicbrainz.Artist, rg *musicbrainz.ReleaseGroup, settings config.ImportSettings) (bool, string, error) {
	full, err := im.cfg.Source.LookupReleaseGroup(ctx, rg.ID)
	if err != nil {
		return false, "", err
	}

	name := full.ArtistName()
	if name == "" {
		name = artist.Name
	}
	album := &store.Album{
		ID:          rg.ID,
		ArtistID:    artist.ID,
		ArtistName:  name,
		Title:       rg.Title,
		ReleaseDate: rg.FirstReleaseDate,
		Type:        rg.Type(),
		Status:      NewAlbumStatus(rg.FirstReleaseDate, settings, im.now()),
	}

	var tracks []store.Track
	if picked := musicbrainz.PickRelease(full); picked != nil {
		rel, err := im.cfg.Source.LookupRelease(ctx, picked.ID)
		if err != nil {
			return false, "", err
		}
		album.ReleaseID = rel.ID
		for _, t := range musicbrainz.FlattenTracks(rel) {
			tracks = append(tracks, store.Track{
				TrackID:    t.ID,
				Title:      t.Title,
				Number:     t.Number,
				Disc:       t.Disc,
				DurationMs: t.DurationMs,
			})
		}
	}

	created, err := im.cfg.Store.UpsertAlbum(album)
	if err != nil {
		return false, "", err
	}
	if album.ReleaseID != "" {
		if err := im.cfg.Store.ReplaceTracks(album.ID, album.ReleaseID, tracks); err != nil {
			return created, "", err
		}
	}
	return created, album.Status, nil
}

// NewAlbumStatus is the status of a freshly imported album: Wanted when
// autowant_all is set, or when autowant_upcoming is set and the album is
// not released yet; Skipped otherwise
func NewAlbumStatus(releaseDate string, s config.ImportSettings, now time.Time) string {
	if s.AutowantAll {
		return store.StatusWanted
	}
	if s.AutowantUpcoming && isUpcoming(releaseDate, now) {
		return store.StatusWanted
	}
	return store.StatusSkipped
}

// isUpcoming reports whether a YYYY, YYYY-MM or YYYY-MM-DD date lies
// after now. Partial dates count as released once their period began.
func isUpcoming(date string, now time.Time) bool {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.After(now)
		}
	}
	return false
}
