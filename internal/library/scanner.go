// Package library scans the music directory, records every audio file it
// finds and links those files to the tracks of known albums.
package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/albumhound/internal/meta"
	"github.com/franz/albumhound/internal/provider"
	"github.com/franz/albumhound/internal/report"
	"github.com/franz/albumhound/internal/store"
	"github.com/franz/albumhound/internal/util"
)

// Scanner discovers audio files and matches them against the database
type Scanner struct {
	store       *store.Store
	concurrency int
	logger      *report.EventLogger

	// one scan at a time; an album rescan waits for a running full scan
	mu sync.Mutex
}

// Config holds scanner configuration
type Config struct {
	Store       *store.Store
	Concurrency int
	Logger      *report.EventLogger
}

// New creates a new Scanner
func New(cfg *Config) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Scanner{
		store:       cfg.Store,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// Result represents a scan result
type Result struct {
	Files     int
	Matched   int
	Unmatched int
	// Completed lists albums that became Downloaded during this scan
	Completed []string
	Errors    []error
}

type scannedFile struct {
	have store.Have
	size int64
}

// Scan walks root, replaces the have rows below it and links the files
// to album tracks
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("cannot scan %s: %w", root, err)
	}
	util.InfoLog("Starting scan of: %s", root)

	files, errs, err := s.walk(ctx, root)
	if err != nil {
		return nil, err
	}

	rows := make([]store.Have, len(files))
	for i := range files {
		rows[i] = files[i].have
	}
	if err := s.store.ReplaceHave(root+string(filepath.Separator), rows); err != nil {
		return nil, err
	}

	result := &Result{Files: len(files), Errors: errs}
	if err := s.match(files, result); err != nil {
		return result, err
	}
	result.Unmatched = result.Files - result.Matched

	s.logger.LogScan(root, result.Files, result.Matched, time.Since(start))
	util.SuccessLog("Scan complete: %d files, %d matched, %d albums completed, %d errors",
		result.Files, result.Matched, len(result.Completed), len(result.Errors))
	return result, nil
}

// walk reads the tags of every audio file below root with a worker pool
func (s *Scanner) walk(ctx context.Context, root string) ([]scannedFile, []error, error) {
	var (
		paths     = make(chan string, 100)
		wg        sync.WaitGroup
		mu        sync.Mutex
		files     []scannedFile
		errs      []error
		found     atomic.Int64
		processed atomic.Int64
	)

	addErr := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetWidth(progressWidth(util.GetTerminalWidth())),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				if ctx.Err() != nil {
					continue
				}
				f, err := readFile(path)
				processed.Add(1)
				if bar != nil {
					bar.Add(1)
				}
				if err != nil {
					util.WarnLog("Failed to read %s: %v", path, err)
					addErr(err)
					continue
				}
				mu.Lock()
				files = append(files, *f)
				mu.Unlock()
			}
		}()
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			addErr(fmt.Errorf("access error: %s: %w", path, err))
			return nil
		}
		if d.IsDir() || !meta.IsAudioFile(path) {
			return nil
		}
		found.Add(1)
		select {
		case paths <- path:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
	close(paths)
	wg.Wait()

	if bar != nil {
		bar.Finish()
	}
	if walkErr != nil {
		return nil, nil, fmt.Errorf("walk error: %w", walkErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	util.DebugLog("Read %d of %d audio files", processed.Load(), found.Load())

	sort.Slice(files, func(i, j int) bool { return files[i].have.Location < files[j].have.Location })
	return files, errs, nil
}

func readFile(path string) (*scannedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	t, err := meta.ReadTags(path)
	if err != nil {
		return nil, err
	}
	return &scannedFile{
		size: info.Size(),
		have: store.Have{
			Location:    path,
			ArtistName:  t.ArtistForPath(),
			AlbumTitle:  t.Album,
			TrackTitle:  t.Title,
			TrackNumber: t.Track,
			Disc:        t.Disc,
			Format:      t.Format,
		},
	}, nil
}

type albumKey struct{ artist, album string }

func keyFor(artist, album string) albumKey {
	return albumKey{meta.NormalizeArtist(artist), meta.NormalizeAlbum(album)}
}

// match links files to tracks by normalized artist, album and title,
// falling back to disc and track number
func (s *Scanner) match(files []scannedFile, result *Result) error {
	albums, err := s.store.ListAlbumsByStatus()
	if err != nil {
		return err
	}
	index := make(map[albumKey]*store.Album, len(albums))
	for i := range albums {
		a := &albums[i]
		if a.Status == store.StatusIgnored {
			continue
		}
		index[keyFor(a.ArtistName, a.Title)] = a
	}

	tracksByAlbum := make(map[string][]store.Track)
	touched := make(map[string]*store.Album)
	lossless := make(map[string]bool)

	for _, f := range files {
		h := f.have
		album, ok := index[keyFor(h.ArtistName, h.AlbumTitle)]
		if !ok {
			continue
		}
		tracks, ok := tracksByAlbum[album.ID]
		if !ok {
			if tracks, err = s.store.ListTracks(album.ID); err != nil {
				return err
			}
			tracksByAlbum[album.ID] = tracks
		}
		t := matchTrack(tracks, &h)
		if t == nil {
			util.DebugLog("No track of %s - %s matches %s", album.ArtistName, album.Title, h.Location)
			continue
		}

		bitrate := 0
		if t.DurationMs > 0 {
			// bytes * 8 / ms = kbit/s
			bitrate = int(f.size * 8 / t.DurationMs)
		}
		if err := s.store.SetTrackLocation(album.ID, t.TrackID, h.Location, bitrate, h.Format); err != nil {
			return err
		}
		if err := s.store.MatchHave(h.Location, album.ID); err != nil {
			return err
		}
		result.Matched++

		if _, seen := touched[album.ID]; !seen {
			lossless[album.ID] = true
		}
		touched[album.ID] = album
		lossless[album.ID] = lossless[album.ID] && provider.IsLosslessFormat(h.Format)
	}

	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		done, err := s.completeAlbum(touched[id], lossless[id])
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if done {
			result.Completed = append(result.Completed, id)
		}
	}
	return nil
}

// completeAlbum moves an album whose tracks are all present to
// Downloaded. Wanted Lossless albums only complete with lossless files.
func (s *Scanner) completeAlbum(a *store.Album, lossless bool) (bool, error) {
	total, owned, err := s.store.CountTracks(a.ID)
	if err != nil {
		return false, err
	}
	if total == 0 || owned < total {
		return false, nil
	}

	from := []string{store.StatusWanted, store.StatusSkipped, store.StatusSnatched}
	if lossless {
		from = append(from, store.StatusWantedLossless)
	}
	changed, err := s.store.SetAlbumStatusIf(a.ID, store.StatusDownloaded, from...)
	if err != nil {
		return false, err
	}
	if changed {
		util.InfoLog("All %d tracks of %s - %s are present", total, a.ArtistName, a.Title)
	}
	return changed, nil
}

func matchTrack(tracks []store.Track, h *store.Have) *store.Track {
	title := meta.NormalizeTitle(h.TrackTitle)
	if title != "" {
		for i := range tracks {
			if meta.NormalizeTitle(tracks[i].Title) == title {
				return &tracks[i]
			}
		}
	}
	if h.TrackNumber > 0 {
		disc := max(h.Disc, 1)
		for i := range tracks {
			if tracks[i].Number == h.TrackNumber && max(tracks[i].Disc, 1) == disc {
				return &tracks[i]
			}
		}
	}
	return nil
}

// progressWidth leaves room for the description and counters next to the bar
func progressWidth(termWidth int) int {
	return min(40, max(10, termWidth-60))
}
