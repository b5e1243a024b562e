package postprocess

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/library"
	"github.com/franz/albumhound/internal/store"
)

const (
	artistID  = "69158f97-4c07-4c4e-baf8-4e4ab1ed666e"
	albumID   = "c5b7ffa3-a8b8-3dbc-9e1f-3ee8f2c4f6ab"
	releaseID = "9f6ccb5e-0e0b-4a4f-a5b4-1d7e0ba7e8a4"
	folder    = "Boards of Canada - Music Has the Right to Children (1998)"
)

type fakeCovers struct {
	data  []byte
	calls int
}

func (f *fakeCovers) Front(ctx context.Context, id string) ([]byte, error) {
	f.calls++
	return f.data, nil
}

type fixture struct {
	db        *store.Store
	proc      *Processor
	covers    *fakeCovers
	settings  *config.Settings
	downloads string
	music     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	db, err := store.Open(filepath.Join(root, "hound.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.UpsertArtist(&store.Artist{ID: artistID, Name: "Boards of Canada", Status: store.ArtistActive}))
	_, err = db.UpsertAlbum(&store.Album{
		ID:          albumID,
		ArtistID:    artistID,
		ArtistName:  "Boards of Canada",
		Title:       "Music Has the Right to Children",
		ReleaseDate: "1998-04-20",
		Type:        "Album",
		Status:      store.StatusSnatched,
	})
	require.NoError(t, err)
	require.NoError(t, db.SetAlbumStatus(albumID, store.StatusSnatched))
	require.NoError(t, db.SetAlbumRelease(albumID, releaseID))
	require.NoError(t, db.ReplaceTracks(albumID, releaseID, []store.Track{
		{TrackID: "t1", Title: "Wildlife Analysis", Number: 1, Disc: 1, DurationMs: 77000},
		{TrackID: "t2", Title: "An Eagle in Your Mind", Number: 2, Disc: 1, DurationMs: 383000},
	}))

	f := &fixture{
		db:        db,
		covers:    &fakeCovers{data: []byte("cover")},
		downloads: filepath.Join(root, "downloads"),
		music:     filepath.Join(root, "music"),
	}
	f.settings = &config.Settings{Library: config.LibrarySettings{
		MusicDir:     f.music,
		DownloadDir:  f.downloads,
		FolderFormat: "$Artist/$Album ($Year)",
		FileFormat:   "$Track - $Title",
		Move:         true,
		SaveArt:      true,
	}}
	f.proc = New(&Config{
		Settings: config.NewLive(f.settings),
		Store:    db,
		Covers:   f.covers,
	})
	return f
}

func (f *fixture) download(t *testing.T, names ...string) string {
	t.Helper()
	dir := filepath.Join(f.downloads, folder)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("audio "+n), 0644))
	}
	return dir
}

func (f *fixture) snatch(t *testing.T, kind, name string) *store.Snatched {
	t.Helper()
	sn := &store.Snatched{
		AlbumID:    albumID,
		Title:      name,
		URL:        "https://indexer.example/get/" + kind,
		Provider:   "indexer",
		Kind:       kind,
		Client:     "fake",
		FolderName: name,
	}
	require.NoError(t, f.db.InsertSnatched(sn))
	return sn
}

func (f *fixture) snatchStatus(t *testing.T) string {
	t.Helper()
	rows, err := f.db.SnatchedForAlbum(albumID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0].Status
}

func (f *fixture) albumStatus(t *testing.T) string {
	t.Helper()
	a, err := f.db.GetAlbum(albumID)
	require.NoError(t, err)
	return a.Status
}

func TestRunMovesCompletedDownload(t *testing.T) {
	f := newFixture(t)
	src := f.download(t, "02 - An Eagle in Your Mind.mp3", "01 - Wildlife Analysis.mp3")
	f.snatch(t, "nzb", folder)

	res, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &RunResult{Processed: 1}, res)

	albumDir := filepath.Join(f.music, "Boards of Canada", "Music Has the Right to Children (1998)")
	data, err := os.ReadFile(filepath.Join(albumDir, "01 - Wildlife Analysis.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "audio 01 - Wildlife Analysis.mp3", string(data))
	assert.FileExists(t, filepath.Join(albumDir, "02 - An Eagle in Your Mind.mp3"))

	cover, err := os.ReadFile(filepath.Join(albumDir, "folder.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "cover", string(cover))

	assert.NoDirExists(t, src)
	assert.Equal(t, store.SnatchProcessed, f.snatchStatus(t))
	assert.Equal(t, store.StatusDownloaded, f.albumStatus(t))
}

func TestRunCopiesTorrents(t *testing.T) {
	f := newFixture(t)
	src := f.download(t, "01 - Wildlife Analysis.flac", "02 - An Eagle in Your Mind.flac")
	f.snatch(t, "torrent", folder)

	res, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	assert.FileExists(t, filepath.Join(src, "01 - Wildlife Analysis.flac"))
	assert.FileExists(t, filepath.Join(f.music, "Boards of Canada", "Music Has the Right to Children (1998)", "01 - Wildlife Analysis.flac"))
	assert.Equal(t, store.SnatchSeeding, f.snatchStatus(t))
}

func TestRunFindsNormalizedFolder(t *testing.T) {
	f := newFixture(t)
	f.download(t, "01 - Wildlife Analysis.mp3", "02 - An Eagle in Your Mind.mp3")
	f.snatch(t, "nzb", "Boards.of.Canada-Music.Has.the.Right.to.Children.(1998)")

	res, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
}

func TestRunLeavesPendingDownloads(t *testing.T) {
	f := newFixture(t)
	f.snatch(t, "nzb", folder)

	res, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &RunResult{Pending: 1}, res)
	assert.Equal(t, store.SnatchSnatched, f.snatchStatus(t))
	assert.Equal(t, store.StatusSnatched, f.albumStatus(t))
}

func TestRunIncompleteDownloadIsBlacklisted(t *testing.T) {
	f := newFixture(t)
	f.settings.Library.BlacklistFailed = true
	f.download(t, "01 - Wildlife Analysis.mp3", "cover.jpg")
	sn := f.snatch(t, "nzb", folder)

	res, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &RunResult{Failed: 1}, res)

	assert.Equal(t, store.SnatchUnprocessed, f.snatchStatus(t))
	listed, err := f.db.IsBlacklisted(sn.URL)
	require.NoError(t, err)
	assert.True(t, listed)
	assert.Equal(t, store.StatusWanted, f.albumStatus(t))
}

func TestRunIncompleteWithoutBlacklist(t *testing.T) {
	f := newFixture(t)
	f.download(t, "01 - Wildlife Analysis.mp3")
	sn := f.snatch(t, "nzb", folder)

	_, err := f.proc.Run(context.Background())
	require.NoError(t, err)

	listed, err := f.db.IsBlacklisted(sn.URL)
	require.NoError(t, err)
	assert.False(t, listed)
	assert.Equal(t, store.StatusSnatched, f.albumStatus(t))
}

func TestRunBusy(t *testing.T) {
	f := newFixture(t)
	f.proc.mu.Lock()
	defer f.proc.mu.Unlock()

	_, err := f.proc.Run(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
}

func TestProcessFolderIdentifiesAlbum(t *testing.T) {
	f := newFixture(t)
	f.settings.Library.KeepOriginal = true
	f.settings.Library.SaveArt = false
	src := f.download(t, "01 - Wildlife Analysis.mp3", "02 - An Eagle in Your Mind.mp3")

	out, err := f.proc.ProcessFolder(context.Background(), src, "")
	require.NoError(t, err)
	assert.Equal(t, albumID, out.AlbumID)
	assert.Equal(t, 2, out.Files)
	assert.False(t, out.Copied)
	assert.Equal(t, 0, f.covers.calls)

	assert.DirExists(t, src)
	assert.Equal(t, store.StatusDownloaded, f.albumStatus(t))
}

func TestProcessFolderMarksOpenSnatch(t *testing.T) {
	f := newFixture(t)
	src := f.download(t, "01 - Wildlife Analysis.mp3", "02 - An Eagle in Your Mind.mp3")
	f.snatch(t, "soulseek", "somewhere else")

	_, err := f.proc.ProcessFolder(context.Background(), src, albumID)
	require.NoError(t, err)
	assert.Equal(t, store.SnatchProcessed, f.snatchStatus(t))
}

func TestProcessFolderRescansLibrary(t *testing.T) {
	f := newFixture(t)
	f.proc.cfg.Scanner = library.New(&library.Config{Store: f.db, Concurrency: 2})
	src := f.download(t, "01 - Wildlife Analysis.mp3", "02 - An Eagle in Your Mind.mp3")

	_, err := f.proc.ProcessFolder(context.Background(), src, albumID)
	require.NoError(t, err)

	tracks, err := f.db.ListTracks(albumID)
	require.NoError(t, err)
	for _, tr := range tracks {
		assert.NotEmpty(t, tr.Location, tr.Title)
	}
}

func TestPlanFiles(t *testing.T) {
	dir := t.TempDir()
	album := &store.Album{ID: albumID, ArtistName: "Low", Title: "Double Negative", ReleaseDate: "2018"}
	tracks := []store.Track{
		{Title: "Quorum", Number: 1, Disc: 1},
		{Title: "Dancing and Blood", Number: 2, Disc: 1},
		{Title: "Fly", Number: 1, Disc: 2},
	}

	var files []string
	for _, n := range []string{"a.mp3", "b.mp3", "c.mp3", "d.mp3"} {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte(n), 0644))
		files = append(files, p)
	}

	plan := planFiles(files, tracks, album, "/music/Low", "$Artist/$Album$Track - $Title", "$Track - $Title")
	require.Len(t, plan, 4)
	assert.Equal(t, filepath.Join("/music/Low", "Disc 1", "01 - Quorum.mp3"), plan[0].dest)
	assert.Equal(t, filepath.Join("/music/Low", "Disc 1", "02 - Dancing and Blood.mp3"), plan[1].dest)
	assert.Equal(t, filepath.Join("/music/Low", "Disc 2", "01 - Fly.mp3"), plan[2].dest)
	assert.Equal(t, filepath.Join("/music/Low", "d.mp3"), plan[3].dest)
	assert.Nil(t, plan[3].track)
}

func TestFindFolder(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Sigur Rós - Ágætis byrjun"), 0755))

	assert.Equal(t, filepath.Join(root, "Sigur Rós - Ágætis byrjun"), findFolder([]string{root}, "Sigur Rós - Ágætis byrjun"))
	assert.Equal(t, filepath.Join(root, "Sigur Rós - Ágætis byrjun"), findFolder([]string{"/nonexistent", root}, "Sigur.Ros-Agaetis.Byrjun"))
	assert.Empty(t, findFolder([]string{root}, "Something Else"))
	assert.Empty(t, findFolder([]string{root}, ""))
}

func TestDownloadDirs(t *testing.T) {
	s := &config.Settings{}
	s.Library.DownloadDir = "/downloads"
	s.Downloaders.SABnzbd.DownloadDir = "/downloads"
	s.Downloaders.QBittorrent.DownloadDir = "/torrents"
	assert.Equal(t, []string{"/downloads", "/torrents"}, downloadDirs(s))
}
