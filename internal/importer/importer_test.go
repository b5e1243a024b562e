package importer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/musicbrainz"
	"github.com/franz/albumhound/internal/store"
	"github.com/franz/albumhound/internal/util"
)

const (
	lowID      = "b2b7a5f5-6f5f-4b5b-8d31-1d2f2e6d8c01"
	fireID     = "0a1b2c3d-0000-4000-8000-000000000001"
	liveID     = "0a1b2c3d-0000-4000-8000-000000000002"
	upcomingID = "0a1b2c3d-0000-4000-8000-000000000003"
	brokenID   = "0a1b2c3d-0000-4000-8000-000000000004"
)

type fakeSource struct {
	artists  map[string]*musicbrainz.Artist
	groups   map[string][]musicbrainz.ReleaseGroup
	full     map[string]*musicbrainz.ReleaseGroup
	releases map[string]*musicbrainz.Release
	browsed  [][]string
}

func (f *fakeSource) SearchArtists(ctx context.Context, name string, limit int) ([]musicbrainz.Artist, error) {
	var out []musicbrainz.Artist
	for _, a := range f.artists {
		if a.Name == name {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeSource) LookupArtist(ctx context.Context, mbid string) (*musicbrainz.Artist, error) {
	a, ok := f.artists[mbid]
	if !ok {
		return nil, util.ErrNotFound
	}
	return a, nil
}

func (f *fakeSource) BrowseReleaseGroups(ctx context.Context, artistMBID string, types []string) ([]musicbrainz.ReleaseGroup, error) {
	f.browsed = append(f.browsed, types)
	return f.groups[artistMBID], nil
}

func (f *fakeSource) LookupReleaseGroup(ctx context.Context, mbid string) (*musicbrainz.ReleaseGroup, error) {
	rg, ok := f.full[mbid]
	if !ok {
		return nil, errors.New("lookup failed")
	}
	return rg, nil
}

func (f *fakeSource) LookupRelease(ctx context.Context, mbid string) (*musicbrainz.Release, error) {
	r, ok := f.releases[mbid]
	if !ok {
		return nil, util.ErrNotFound
	}
	return r, nil
}

func newSource() *fakeSource {
	credit := []musicbrainz.ArtistCredit{{Name: "Low"}}
	return &fakeSource{
		artists: map[string]*musicbrainz.Artist{
			lowID: {ID: lowID, Name: "Low", SortName: "Low"},
		},
		groups: map[string][]musicbrainz.ReleaseGroup{
			lowID: {
				{ID: fireID, Title: "Things We Lost in the Fire", PrimaryType: "Album", FirstReleaseDate: "2001-01-22"},
				{ID: liveID, Title: "Live at Rock City", PrimaryType: "Album", SecondaryTypes: []string{"Live"}, FirstReleaseDate: "2004"},
				{ID: upcomingID, Title: "Next Record", PrimaryType: "Album", FirstReleaseDate: "2031-03-01"},
				{ID: brokenID, Title: "Broken", PrimaryType: "Album"},
			},
		},
		full: map[string]*musicbrainz.ReleaseGroup{
			fireID: {ID: fireID, Title: "Things We Lost in the Fire", ArtistCredit: credit, Releases: []musicbrainz.Release{
				{ID: "rel-us", Status: "Official", Date: "2001-01-22", Media: []musicbrainz.Medium{{TrackCount: 2}}},
				{ID: "rel-jp", Status: "Official", Date: "2001-03-01", Media: []musicbrainz.Medium{{TrackCount: 3}}},
				{ID: "rel-eu", Status: "Official", Date: "2001-02-01", Media: []musicbrainz.Medium{{TrackCount: 2}}},
			}},
			liveID:     {ID: liveID, Title: "Live at Rock City", ArtistCredit: credit},
			upcomingID: {ID: upcomingID, Title: "Next Record", ArtistCredit: credit},
		},
		releases: map[string]*musicbrainz.Release{
			"rel-us": {ID: "rel-us", Media: []musicbrainz.Medium{{Position: 1, TrackCount: 2, Tracks: []musicbrainz.Track{
				{ID: "t1", Position: 1, Title: "Sunflower", Length: 275000},
				{ID: "t2", Position: 2, Recording: musicbrainz.Recording{Title: "Whitetail", Length: 200000}},
			}}}},
		},
	}
}

func newImporter(t *testing.T, src Source, imp config.ImportSettings) (*Importer, *store.Store) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "hound.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	im := New(&Config{
		Settings: config.NewLive(&config.Settings{Import: imp}),
		Store:    db,
		Source:   src,
	})
	im.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return im, db
}

func TestAddArtist(t *testing.T) {
	src := newSource()
	im, db := newImporter(t, src, config.ImportSettings{ReleaseTypes: []string{"Album"}, AutowantUpcoming: true})

	res, err := im.AddArtist(context.Background(), lowID)
	require.NoError(t, err)
	assert.Equal(t, &Result{ArtistID: lowID, Name: "Low", Albums: 2, New: 2, Wanted: 1, Failed: 1}, res)
	assert.Equal(t, [][]string{{"Album"}}, src.browsed)

	artist, err := db.GetArtist(lowID)
	require.NoError(t, err)
	assert.Equal(t, store.ArtistActive, artist.Status)

	fire, err := db.GetAlbum(fireID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusSkipped, fire.Status)
	assert.Equal(t, "rel-us", fire.ReleaseID)
	assert.Equal(t, "Low", fire.ArtistName)

	tracks, err := db.ListTracks(fireID)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "Whitetail", tracks[1].Title)
	assert.Equal(t, int64(200000), tracks[1].DurationMs)

	upcoming, err := db.GetAlbum(upcomingID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusWanted, upcoming.Status)
	assert.Empty(t, upcoming.ReleaseID)

	_, err = db.GetAlbum(liveID)
	assert.ErrorIs(t, err, util.ErrNotFound, "extras are skipped by default")
}

func TestAddArtistWithExtras(t *testing.T) {
	im, db := newImporter(t, newSource(), config.ImportSettings{IncludeExtras: true})

	res, err := im.AddArtist(context.Background(), lowID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Albums)

	live, err := db.GetAlbum(liveID)
	require.NoError(t, err)
	assert.Equal(t, "Live", live.Type)
}

func TestRefreshKeepsUserStatus(t *testing.T) {
	im, db := newImporter(t, newSource(), config.ImportSettings{AutowantAll: true})

	_, err := im.AddArtist(context.Background(), lowID)
	require.NoError(t, err)
	require.NoError(t, db.SetAlbumStatus(fireID, store.StatusIgnored))

	res, err := im.RefreshArtist(context.Background(), lowID)
	require.NoError(t, err)
	assert.Zero(t, res.New)

	fire, err := db.GetAlbum(fireID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusIgnored, fire.Status)
}

func TestRefreshUnknownArtist(t *testing.T) {
	im, _ := newImporter(t, newSource(), config.ImportSettings{})
	_, err := im.RefreshArtist(context.Background(), lowID)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestRefreshAllSkipsPaused(t *testing.T) {
	src := newSource()
	im, db := newImporter(t, src, config.ImportSettings{})

	_, err := im.AddArtist(context.Background(), lowID)
	require.NoError(t, err)
	require.NoError(t, db.SetArtistStatus(lowID, store.ArtistPaused))

	n, err := im.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, src.browsed, 1)
}

func TestRefreshAllCollectsErrors(t *testing.T) {
	src := newSource()
	im, db := newImporter(t, src, config.ImportSettings{})

	_, err := im.AddArtist(context.Background(), lowID)
	require.NoError(t, err)
	delete(src.artists, lowID)

	n, err := im.RefreshAll(context.Background())
	assert.Zero(t, n)
	assert.ErrorIs(t, err, util.ErrNotFound)

	artist, err := db.GetArtist(lowID)
	require.NoError(t, err)
	assert.Equal(t, store.ArtistActive, artist.Status)
}

func TestDeleteArtist(t *testing.T) {
	im, db := newImporter(t, newSource(), config.ImportSettings{})
	_, err := im.AddArtist(context.Background(), lowID)
	require.NoError(t, err)

	require.NoError(t, im.DeleteArtist(lowID))
	_, err = db.GetAlbum(fireID)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestResolve(t *testing.T) {
	im, _ := newImporter(t, newSource(), config.ImportSettings{})

	id, err := im.Resolve(context.Background(), lowID)
	require.NoError(t, err)
	assert.Equal(t, lowID, id)

	id, err = im.Resolve(context.Background(), " Low ")
	require.NoError(t, err)
	assert.Equal(t, lowID, id)

	_, err = im.Resolve(context.Background(), "Nobody")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestNewAlbumStatus(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	upcoming := config.ImportSettings{AutowantUpcoming: true}

	assert.Equal(t, store.StatusWanted, NewAlbumStatus("1999", config.ImportSettings{AutowantAll: true}, now))
	assert.Equal(t, store.StatusWanted, NewAlbumStatus("2024-06-02", upcoming, now))
	assert.Equal(t, store.StatusWanted, NewAlbumStatus("2025", upcoming, now))
	assert.Equal(t, store.StatusSkipped, NewAlbumStatus("2024-06", upcoming, now))
	assert.Equal(t, store.StatusSkipped, NewAlbumStatus("", upcoming, now))
	assert.Equal(t, store.StatusSkipped, NewAlbumStatus("2030-01-01", config.ImportSettings{}, now))
}
