// Package postprocess turns finished downloads into library albums: it
// finds the download folder of a snatch, checks it is complete, renames
// and tags the files and moves them into the music directory.
package postprocess

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/library"
	"github.com/franz/albumhound/internal/meta"
	"github.com/franz/albumhound/internal/metrics"
	"github.com/franz/albumhound/internal/notify"
	"github.com/franz/albumhound/internal/provider"
	"github.com/franz/albumhound/internal/report"
	"github.com/franz/albumhound/internal/store"
	"github.com/franz/albumhound/internal/util"
)

// ErrBusy is returned by Run while another run is in progress
var ErrBusy = errors.New("post-processing already running")

const transferWorkers = 4

// Config holds the collaborators of a Processor
type Config struct {
	Settings *config.Live
	Store    *store.Store
	Scanner  *library.Scanner
	Covers   CoverSource
	Events   *report.EventLogger
	Notifier *notify.Dispatcher
	Metrics  *metrics.Metrics
}

// Processor post-processes completed downloads
type Processor struct {
	cfg   *Config
	mu    sync.Mutex
	retry *util.RetryConfig
}

// New creates a Processor
func New(cfg *Config) *Processor {
	return &Processor{cfg: cfg, retry: util.DefaultRetryConfig()}
}

// RunResult summarizes one pass over the open snatches
type RunResult struct {
	Processed int `json:"processed"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

// Album is the outcome of processing one folder
type Album struct {
	AlbumID string
	Source  string
	Dest    string
	Files   int
	Copied  bool
}

// Run processes every snatch whose download folder has shown up. Snatches
// without a folder yet are left alone.
func (p *Processor) Run(ctx context.Context) (*RunResult, error) {
	if !p.mu.TryLock() {
		return nil, ErrBusy
	}
	defer p.mu.Unlock()

	open, err := p.cfg.Store.ListSnatchedByStatus(store.SnatchSnatched)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}
	settings := p.cfg.Settings.Get()
	for i := range open {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sn := &open[i]
		dir := findFolder(downloadDirs(settings), sn.FolderName)
		if dir == "" {
			util.DebugLog("Download for %s not finished yet (%s)", sn.AlbumID, sn.FolderName)
			result.Pending++
			continue
		}

		if _, err := p.process(ctx, dir, sn.AlbumID, sn); err != nil {
			util.ErrorLog("Post-processing %s failed: %v", dir, err)
			result.Failed++
			continue
		}
		result.Processed++
	}

	if result.Processed > 0 || result.Failed > 0 {
		util.InfoLog("Post-processing: %d processed, %d failed, %d pending",
			result.Processed, result.Failed, result.Pending)
	}
	return result, nil
}

// ProcessFolder processes dir as the download of albumID. When albumID
// is empty the album is identified from the files' tags.
func (p *Processor) ProcessFolder(ctx context.Context, dir, albumID string) (*Album, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if stat, err := os.Stat(dir); err != nil {
		return nil, err
	} else if !stat.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	if albumID == "" {
		id, err := p.identify(dir)
		if err != nil {
			return nil, err
		}
		albumID = id
	}

	var sn *store.Snatched
	rows, err := p.cfg.Store.SnatchedForAlbum(albumID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Status == store.SnatchSnatched || rows[i].Status == store.SnatchUnprocessed {
			sn = &rows[i]
			break
		}
	}
	return p.process(ctx, dir, albumID, sn)
}

// identify finds the album a folder belongs to from the tags of its first
// audio file
func (p *Processor) identify(dir string) (string, error) {
	files, err := audioFiles(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no audio files in %s", dir)
	}
	tags, err := meta.ReadTags(files[0])
	if err != nil {
		return "", err
	}
	albums, err := p.cfg.Store.FindAlbums(tags.ArtistForPath(), tags.Album)
	if err != nil {
		return "", err
	}
	want := meta.NormalizeAlbum(tags.Album)
	for _, a := range albums {
		if meta.NormalizeAlbum(a.Title) == want {
			return a.ID, nil
		}
	}
	if len(albums) == 1 {
		return albums[0].ID, nil
	}
	return "", fmt.Errorf("cannot identify album for %s (%s - %s): %w",
		dir, tags.ArtistForPath(), tags.Album, util.ErrNotFound)
}

func (p *Processor) process(ctx context.Context, dir, albumID string, sn *store.Snatched) (*Album, error) {
	start := time.Now()
	out, err := p.importFolder(ctx, dir, albumID, sn)
	dest := ""
	files := 0
	if out != nil {
		dest, files = out.Dest, out.Files
	}
	p.cfg.Events.LogPostProcess(albumID, dir, dest, files, time.Since(start), err)

	if err != nil {
		p.fail(ctx, albumID, sn, err)
		return nil, err
	}

	if sn != nil {
		status := store.SnatchProcessed
		if out.Copied && sn.Kind == string(provider.KindTorrent) {
			status = store.SnatchSeeding
		}
		if err := p.cfg.Store.SetSnatchedStatus(sn.ID, status); err != nil {
			util.WarnLog("Failed to update snatch %d: %v", sn.ID, err)
		}
	}
	p.cfg.Metrics.PostProcess("ok")

	title := albumID
	if a, err := p.cfg.Store.GetAlbum(albumID); err == nil {
		title = a.ArtistName + " - " + a.Title
	}
	util.SuccessLog("Imported %s into %s (%d files)", title, dest, files)
	p.cfg.Notifier.Send(ctx, notify.Event{
		Kind:    notify.KindDownload,
		Title:   "Downloaded",
		Message: title,
		AlbumID: albumID,
	})
	return out, nil
}

func (p *Processor) fail(ctx context.Context, albumID string, sn *store.Snatched, cause error) {
	p.cfg.Metrics.PostProcess("failed")
	settings := p.cfg.Settings.Get()

	if sn != nil {
		if err := p.cfg.Store.SetSnatchedStatus(sn.ID, store.SnatchUnprocessed); err != nil {
			util.WarnLog("Failed to update snatch %d: %v", sn.ID, err)
		}
		if settings.Library.BlacklistFailed {
			if err := p.cfg.Store.AddBlacklist(sn.URL, albumID, cause.Error()); err != nil {
				util.WarnLog("Failed to blacklist %s: %v", sn.URL, err)
			}
			if _, err := p.cfg.Store.SetAlbumStatusIf(albumID, store.StatusWanted, store.StatusSnatched); err != nil {
				util.WarnLog("Failed to reset album %s: %v", albumID, err)
			}
		}
	}

	p.cfg.Notifier.Send(ctx, notify.Event{
		Kind:    notify.KindFailure,
		Title:   "Post-processing failed",
		Message: cause.Error(),
		AlbumID: albumID,
	})
}

// plannedFile is one source file and where it goes
type plannedFile struct {
	src   string
	dest  string
	track *store.Track
}

func (p *Processor) importFolder(ctx context.Context, dir, albumID string, sn *store.Snatched) (*Album, error) {
	settings := p.cfg.Settings.Get()
	lib := settings.Library

	album, err := p.cfg.Store.GetAlbum(albumID)
	if err != nil {
		return nil, err
	}
	tracks, err := p.cfg.Store.ListTracks(albumID)
	if err != nil {
		return nil, err
	}

	files, err := audioFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) < len(tracks) {
		return nil, fmt.Errorf("found %d audio files in %s, expected %d", len(files), dir, len(tracks))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no audio files in %s", dir)
	}

	albumDir := filepath.Join(lib.MusicDir, RenderPath(lib.FolderFormat, PathValues{
		Artist: album.ArtistName,
		Album:  album.Title,
		Year:   album.Year(),
		Type:   album.Type,
	}))
	plan := planFiles(files, tracks, album, albumDir, lib.FolderFormat+lib.FileFormat, lib.FileFormat)

	copyOnly := !lib.Move || (sn != nil && sn.Kind == string(provider.KindTorrent))

	var cover []byte
	g, gctx := errgroup.WithContext(ctx)
	if (lib.EmbedArt || lib.SaveArt) && album.ReleaseID != "" && p.cfg.Covers != nil {
		g.Go(func() error {
			data, err := p.cfg.Covers.Front(gctx, album.ReleaseID)
			switch {
			case errors.Is(err, util.ErrNotFound):
				util.DebugLog("No cover art for %s", album.Title)
			case err != nil:
				util.WarnLog("Cover art for %s: %v", album.Title, err)
			default:
				cover = data
			}
			return nil
		})
	}

	transfers, tctx := errgroup.WithContext(gctx)
	transfers.SetLimit(transferWorkers)
	for _, f := range plan {
		transfers.Go(func() error {
			var err error
			if copyOnly {
				_, err = copyFile(tctx, f.src, f.dest, p.retry)
			} else {
				_, err = moveFile(tctx, f.src, f.dest, p.retry)
			}
			return err
		})
	}
	g.Go(transfers.Wait)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if lib.WriteTags {
		embed := cover
		if !lib.EmbedArt {
			embed = nil
		}
		writeTags(plan, tracks, album, embed)
	}

	if lib.SaveArt && len(cover) > 0 {
		if err := os.WriteFile(filepath.Join(albumDir, "folder.jpg"), cover, 0644); err != nil {
			util.WarnLog("Failed to save cover for %s: %v", album.Title, err)
		}
	}

	if !copyOnly && !lib.KeepOriginal {
		if err := os.RemoveAll(dir); err != nil {
			util.WarnLog("Failed to remove %s: %v", dir, err)
		}
	}

	if p.cfg.Scanner != nil {
		if _, err := p.cfg.Scanner.Scan(ctx, albumDir); err != nil {
			util.WarnLog("Rescan of %s failed: %v", albumDir, err)
		}
	}
	if err := p.cfg.Store.SetAlbumStatus(albumID, store.StatusDownloaded); err != nil {
		return nil, err
	}

	return &Album{
		AlbumID: albumID,
		Source:  dir,
		Dest:    albumDir,
		Files:   len(plan),
		Copied:  copyOnly,
	}, nil
}

// planFiles assigns audio files to tracks by disc and number, then by
// title, then in order. Files left over keep their own name.
func planFiles(files []string, tracks []store.Track, album *store.Album, albumDir, formats, fileFormat string) []plannedFile {
	tags := make([]*meta.Tags, len(files))
	for i, f := range files {
		t, err := meta.ReadTags(f)
		if err != nil {
			t = &meta.Tags{}
		}
		tags[i] = t
	}

	assigned := make([]int, len(tracks))
	for i := range assigned {
		assigned[i] = -1
	}
	used := make([]bool, len(files))

	assign := func(match func(f int, t *store.Track) bool) {
		for ti := range tracks {
			if assigned[ti] >= 0 {
				continue
			}
			for fi := range files {
				if !used[fi] && match(fi, &tracks[ti]) {
					assigned[ti] = fi
					used[fi] = true
					break
				}
			}
		}
	}
	assign(func(f int, t *store.Track) bool {
		disc := tags[f].Disc
		if disc == 0 {
			disc = 1
		}
		return tags[f].Track > 0 && tags[f].Track == t.Number && disc == t.Disc
	})
	assign(func(f int, t *store.Track) bool {
		return tags[f].Title != "" && meta.NormalizeTitle(tags[f].Title) == meta.NormalizeTitle(t.Title)
	})
	assign(func(int, *store.Track) bool { return true })

	discs := 1
	for _, t := range tracks {
		if t.Disc > discs {
			discs = t.Disc
		}
	}
	discFolders := discs > 1 && !strings.Contains(formats, "$Disc")

	var plan []plannedFile
	for ti, fi := range assigned {
		if fi < 0 {
			continue
		}
		t := &tracks[ti]
		name := RenderPath(fileFormat, PathValues{
			Artist: album.ArtistName,
			Album:  album.Title,
			Year:   album.Year(),
			Type:   album.Type,
			Title:  t.Title,
			Track:  t.Number,
			Disc:   t.Disc,
		})
		if name == "" {
			name = fmt.Sprintf("%02d", t.Number)
		}
		dest := filepath.Join(albumDir, name+strings.ToLower(filepath.Ext(files[fi])))
		if discFolders {
			dest = filepath.Join(albumDir, fmt.Sprintf("Disc %d", t.Disc), name+strings.ToLower(filepath.Ext(files[fi])))
		}
		plan = append(plan, plannedFile{src: files[fi], dest: dest, track: t})
	}
	for fi, f := range files {
		if !used[fi] {
			plan = append(plan, plannedFile{src: f, dest: filepath.Join(albumDir, filepath.Base(f))})
		}
	}
	return plan
}

func writeTags(plan []plannedFile, tracks []store.Track, album *store.Album, cover []byte) {
	discs := 1
	perDisc := map[int]int{}
	for _, t := range tracks {
		perDisc[t.Disc]++
		if t.Disc > discs {
			discs = t.Disc
		}
	}

	for _, f := range plan {
		if f.track == nil || !meta.CanWriteTags(f.dest) {
			continue
		}
		t := f.track
		err := meta.WriteTags(f.dest, &meta.TrackTags{
			Artist:      album.ArtistName,
			AlbumArtist: album.ArtistName,
			Album:       album.Title,
			Title:       t.Title,
			Year:        album.Year(),
			Track:       t.Number,
			TrackTotal:  perDisc[t.Disc],
			Disc:        t.Disc,
			DiscTotal:   discs,
			Type:        album.Type,
			ArtistID:    album.ArtistID,
			AlbumID:     album.ID,
			ReleaseID:   album.ReleaseID,
			RecordingID: t.TrackID,
		}, cover)
		if err != nil {
			util.WarnLog("Failed to tag %s: %v", f.dest, err)
		}
	}
}

// audioFiles lists the audio files below dir in path order
func audioFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && meta.IsAudioFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// downloadDirs lists every directory a finished download may land in
func downloadDirs(s *config.Settings) []string {
	d := s.Downloaders
	candidates := []string{
		s.Library.DownloadDir,
		d.SABnzbd.DownloadDir,
		d.NZBGet.DownloadDir,
		d.Transmission.DownloadDir,
		d.QBittorrent.DownloadDir,
		d.Deluge.DownloadDir,
	}
	seen := map[string]bool{}
	var dirs []string
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		dirs = append(dirs, c)
	}
	return dirs
}

// findFolder looks for name in dirs, first by exact name and then by
// comparing normalized tokens
func findFolder(dirs []string, name string) string {
	if name == "" {
		return ""
	}
	for _, d := range dirs {
		path := filepath.Join(d, name)
		if stat, err := os.Stat(path); err == nil && stat.IsDir() {
			return path
		}
	}

	want := strings.Join(meta.Tokens(name), " ")
	if want == "" {
		return ""
	}
	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() && strings.Join(meta.Tokens(e.Name()), " ") == want {
				return filepath.Join(d, e.Name())
			}
		}
	}
	return ""
}
