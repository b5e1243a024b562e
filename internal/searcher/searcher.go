// Package searcher finds and snatches wanted albums: it fans a search out
// to every usable provider, filters and ranks the combined results and
// hands the best one to a download client.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/downloader"
	"github.com/franz/albumhound/internal/meta"
	"github.com/franz/albumhound/internal/metrics"
	"github.com/franz/albumhound/internal/notify"
	"github.com/franz/albumhound/internal/provider"
	"github.com/franz/albumhound/internal/report"
	"github.com/franz/albumhound/internal/score"
	"github.com/franz/albumhound/internal/store"
	"github.com/franz/albumhound/internal/util"
)

// Config holds the collaborators of a Searcher
type Config struct {
	Settings  *config.Live
	Store     *store.Store
	Providers *provider.Registry
	Router    *downloader.Router
	Events    *report.EventLogger
	Notifier  *notify.Dispatcher
	Metrics   *metrics.Metrics
}

// Searcher runs album searches
type Searcher struct {
	cfg    *Config
	flight singleflight.Group
	now    func() time.Time
}

// Options modify a single search
type Options struct {
	// DryRun ranks results without snatching
	DryRun bool
	// Manual searches also snatch skipped, downloaded or snatched albums
	Manual bool
}

// ProviderReport summarizes one provider's answer
type ProviderReport struct {
	Name     string        `json:"name"`
	Kind     provider.Kind `json:"kind"`
	Results  int           `json:"results"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Outcome describes what a search found and did
type Outcome struct {
	AlbumID   string            `json:"album_id"`
	Artist    string            `json:"artist"`
	Album     string            `json:"album"`
	Term      string            `json:"term"`
	Quality   string            `json:"quality"`
	Providers []ProviderReport  `json:"providers"`
	Accepted  []provider.Result `json:"accepted"`
	Rejected  []Rejection       `json:"rejected"`
	Snatched  *store.Snatched   `json:"snatched,omitempty"`
	Client    string            `json:"client,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// Found is the number of results returned by all providers
func (o *Outcome) Found() int {
	return len(o.Accepted) + len(o.Rejected)
}

// New creates a Searcher
func New(cfg *Config) *Searcher {
	return &Searcher{cfg: cfg, now: time.Now}
}

// wantedStatuses are the album statuses searched by SearchWanted
var wantedStatuses = []string{store.StatusWanted, store.StatusWantedLossless}

// ErrNotWanted is returned when an album's status does not allow a snatch
var ErrNotWanted = errors.New("album is not wanted")

// snatchableFrom lists the statuses an album may be snatched from. Manual
// searches may also re-snatch skipped or finished albums.
func snatchableFrom(manual bool) []string {
	if !manual {
		return wantedStatuses
	}
	return append(append([]string{}, wantedStatuses...), store.StatusSkipped, store.StatusDownloaded, store.StatusSnatched)
}

// SearchAlbum searches for one album and snatches the best result.
// Concurrent calls for the same album and mode share one search, which
// keeps running when a caller gives up waiting.
func (s *Searcher) SearchAlbum(ctx context.Context, albumID string, opts Options) (*Outcome, error) {
	key := albumID
	if opts.Manual {
		key = "manual:" + key
	}
	if opts.DryRun {
		key = "dry:" + key
	}
	shared := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (interface{}, error) {
		return s.searchAlbum(shared, albumID, opts)
	})

	select {
	case res := <-ch:
		if res.Shared {
			util.DebugLog("Joined running search for album %s", albumID)
		}
		out, _ := res.Val.(*Outcome)
		return out, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Searcher) searchAlbum(ctx context.Context, albumID string, opts Options) (*Outcome, error) {
	start := s.now()
	settings := s.cfg.Settings.Get()

	album, err := s.cfg.Store.GetAlbum(albumID)
	if err != nil {
		return nil, err
	}
	if !opts.DryRun && !slices.Contains(snatchableFrom(opts.Manual), album.Status) {
		return nil, fmt.Errorf("%s - %s is %s: %w", album.ArtistName, album.Title, album.Status, ErrNotWanted)
	}

	usable := s.cfg.Providers.Filter(s.cfg.Router.Supports)
	if len(usable) == 0 {
		return nil, fmt.Errorf("%w: none of %d providers has a download client", util.ErrNoProviders, s.cfg.Providers.Len())
	}

	quality := QualityFor(album, settings.Search.PreferredQuality)
	out := &Outcome{
		AlbumID: album.ID,
		Artist:  album.ArtistName,
		Album:   album.Title,
		Term:    BuildTerm(album.ArtistName, album.Title, album.Year(), settings.Search.IncludeYear, album.SearchTerm),
		Quality: quality,
	}
	util.InfoLog("Searching %d providers for %s - %s (%s) using %q", len(usable), album.ArtistName, album.Title, quality, out.Term)

	q := provider.Query{
		Artist:   album.ArtistName,
		Album:    album.Title,
		Year:     album.Year(),
		Term:     out.Term,
		Lossless: quality == config.QualityLossless,
	}
	results, reports := s.fanOut(ctx, usable, q, settings.Search)
	out.Providers = reports
	if err := ctx.Err(); err != nil {
		return out, err
	}

	length, err := s.cfg.Store.AlbumTotalLength(album.ID)
	if err != nil {
		return out, err
	}
	crit := &Criteria{
		Artist:        album.ArtistName,
		Album:         album.Title,
		Quality:       quality,
		TotalLengthMs: length,
		Search:        settings.Search,
		Now:           s.now(),
		Exclude:       s.exclude,
	}
	accepted, rejected := Filter(results, crit)
	for _, r := range rejected {
		s.cfg.Metrics.Reject(reasonLabel(r.Reason))
		s.cfg.Events.LogReject(album.ID, r.Result.Title, r.Result.URL, r.Result.Provider, r.Reason)
		util.DebugLog("  rejected %q from %s: %s", r.Result.Title, r.Result.Provider, r.Reason)
	}

	out.Accepted = score.ScoreAll(accepted, &score.Wanted{
		Artist:         album.ArtistName,
		Album:          album.Title,
		Quality:        quality,
		TargetSize:     crit.TargetSize(),
		PreferredWords: settings.Search.PreferredWords,
		ProviderCount:  s.cfg.Providers.Len(),
	})
	out.Rejected = rejected
	out.Duration = s.now().Sub(start)
	s.cfg.Events.LogSearch(album.ID, out.Term, out.Found(), len(out.Accepted), out.Duration)

	if len(out.Accepted) == 0 {
		util.InfoLog("No acceptable results for %s - %s (%d found)", album.ArtistName, album.Title, out.Found())
		s.cfg.Metrics.Search("no_results")
		return out, nil
	}
	if opts.DryRun {
		s.cfg.Metrics.Search("dry_run")
		return out, nil
	}

	if err := s.dispatch(ctx, album, out, settings.Search.MaxAttempts, opts); err != nil {
		s.cfg.Metrics.Search("failed")
		return out, err
	}
	s.cfg.Metrics.Search("snatched")
	return out, nil
}

type answer struct {
	order   int
	results []provider.Result
	report  ProviderReport
}

// fanOut queries every provider concurrently. Provider failures are
// recorded in the reports and never fail the search.
func (s *Searcher) fanOut(ctx context.Context, providers []provider.Provider, q provider.Query, cfg config.SearchSettings) ([]provider.Result, []ProviderReport) {
	p := pool.NewWithResults[answer]().WithContext(ctx).WithMaxGoroutines(max(cfg.MaxConcurrency, 1))
	for _, pr := range providers {
		order := s.cfg.Providers.Position(pr.Name())
		p.Go(func(ctx context.Context) (answer, error) {
			if cfg.ProviderTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.ProviderTimeout)
				defer cancel()
			}

			start := time.Now()
			results, err := pr.Search(ctx, q)
			took := time.Since(start)
			s.cfg.Metrics.ProviderDone(pr.Name(), len(results), took, err)

			a := answer{order: order, report: ProviderReport{Name: pr.Name(), Kind: pr.Kind(), Duration: took}}
			if err != nil {
				util.WarnLog("Provider %s failed: %v", pr.Name(), err)
				a.report.Error = err.Error()
				return a, nil
			}
			for i := range results {
				if results[i].Provider == "" {
					results[i].Provider = pr.Name()
				}
				if results[i].Kind == "" {
					results[i].Kind = pr.Kind()
				}
				results[i].Order = order
			}
			util.DebugLog("Provider %s returned %d results in %s", pr.Name(), len(results), took.Round(time.Millisecond))
			a.results = results
			a.report.Results = len(results)
			return a, nil
		})
	}

	answers, _ := p.Wait()
	sort.SliceStable(answers, func(i, j int) bool {
		if answers[i].order != answers[j].order {
			return answers[i].order < answers[j].order
		}
		return answers[i].report.Name < answers[j].report.Name
	})

	var (
		all     []provider.Result
		reports = make([]ProviderReport, 0, len(answers))
	)
	for _, a := range answers {
		all = append(all, a.results...)
		reports = append(reports, a.report)
	}
	return all, reports
}

// exclude rejects URLs that were snatched or blacklisted before. Lookup
// failures exclude the URL too.
func (s *Searcher) exclude(url string) string {
	blacklisted, err := s.cfg.Store.IsBlacklisted(url)
	if err != nil {
		util.WarnLog("Blacklist lookup failed for %s: %v", url, err)
		return ReasonBlacklisted
	}
	if blacklisted {
		return ReasonBlacklisted
	}
	snatched, err := s.cfg.Store.IsSnatched(url)
	if err != nil {
		util.WarnLog("Snatch lookup failed for %s: %v", url, err)
		return ReasonSnatched
	}
	if snatched {
		return ReasonSnatched
	}
	return ""
}

// dispatch hands the ranked results to the download client, trying the
// next one when a client refuses, up to attempts results
func (s *Searcher) dispatch(ctx context.Context, album *store.Album, out *Outcome, attempts int, opts Options) error {
	var errs []error
	for i := 0; i < len(out.Accepted) && i < max(attempts, 1); i++ {
		r := out.Accepted[i]
		req := &downloader.Request{Result: r, AlbumID: album.ID, Name: r.Title}

		client, id, err := s.cfg.Router.Add(ctx, req)
		if err != nil {
			util.WarnLog("Could not snatch %q via %s: %v", r.Title, r.Provider, err)
			s.cfg.Events.LogSnatch(album.ID, r.Title, r.URL, r.Provider, client, r.Score, err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		sn := &store.Snatched{
			AlbumID:    album.ID,
			Title:      r.Title,
			Size:       r.Size,
			URL:        r.URL,
			Provider:   r.Provider,
			Kind:       string(r.Kind),
			Client:     client,
			FolderName: FolderName(&r),
			DownloadID: id,
		}
		ok, err := s.cfg.Store.RecordSnatch(sn, snatchableFrom(opts.Manual)...)
		if err != nil {
			return fmt.Errorf("snatched %q but failed to record it: %w", r.Title, err)
		}
		if !ok {
			util.WarnLog("%s - %s changed status while %q was sent to %s; not recording it", album.ArtistName, album.Title, r.Title, client)
			return fmt.Errorf("%s - %s: %w", album.ArtistName, album.Title, ErrNotWanted)
		}

		out.Snatched = sn
		out.Client = client
		s.cfg.Events.LogSnatch(album.ID, r.Title, r.URL, r.Provider, client, r.Score, nil)
		s.cfg.Metrics.Snatch(string(r.Kind))
		s.cfg.Notifier.Send(ctx, notify.Event{
			Kind:    notify.KindSnatch,
			Title:   "Snatched " + album.ArtistName + " - " + album.Title,
			Message: fmt.Sprintf("%s (%s) from %s via %s", r.Title, util.FormatBytes(r.Size), r.Provider, client),
			AlbumID: album.ID,
		})
		util.SuccessLog("Snatched %q (%s, score %.1f) from %s via %s", r.Title, util.FormatBytes(r.Size), r.Score, r.Provider, client)
		return nil
	}
	return fmt.Errorf("all download attempts failed: %w", errors.Join(errs...))
}

// SearchWanted searches every wanted album of active artists one after
// another. Per-album failures are logged and counted.
func (s *Searcher) SearchWanted(ctx context.Context) (*Summary, error) {
	albums, err := s.cfg.Store.ListAlbumsByStatus(wantedStatuses...)
	if err != nil {
		return nil, err
	}
	paused, err := s.pausedArtists()
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	for _, a := range albums {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if paused[a.ArtistID] {
			continue
		}
		sum.Searched++
		out, err := s.SearchAlbum(ctx, a.ID, Options{})
		switch {
		case errors.Is(err, util.ErrNoProviders):
			return sum, err
		case errors.Is(err, ErrNotWanted):
			sum.Skipped++
			util.DebugLog("Skipping %s - %s: %v", a.ArtistName, a.Title, err)
		case err != nil:
			sum.Failed++
			util.ErrorLog("Search for %s - %s failed: %v", a.ArtistName, a.Title, err)
			s.cfg.Events.LogError(report.EventSearch, a.ID, err)
		case out.Snatched != nil:
			sum.Snatched++
		}
	}
	util.InfoLog("Searched %d wanted albums: %d snatched, %d failed", sum.Searched, sum.Snatched, sum.Failed)
	return sum, nil
}

// Summary counts the albums handled by SearchWanted
type Summary struct {
	Searched int `json:"searched"`
	Snatched int `json:"snatched"`
	Failed   int `json:"failed"`
	// Skipped albums left the wanted statuses before their turn
	Skipped int `json:"skipped,omitempty"`
}

func (s *Searcher) pausedArtists() (map[string]bool, error) {
	artists, err := s.cfg.Store.ListArtists()
	if err != nil {
		return nil, err
	}
	paused := make(map[string]bool)
	for _, a := range artists {
		if a.Status == store.ArtistPaused {
			paused[a.ID] = true
		}
	}
	return paused, nil
}

// QualityFor resolves the quality mode of an album: its own override,
// lossless for Wanted Lossless, else the global preference
func QualityFor(a *store.Album, global string) string {
	switch {
	case a.Quality != "":
		return a.Quality
	case a.Status == store.StatusWantedLossless:
		return config.QualityLossless
	case global != "":
		return global
	}
	return config.QualityLossy
}

// FolderName is the directory a download is expected to land in
func FolderName(r *provider.Result) string {
	if r.Kind == provider.KindSoulseek {
		dir := strings.TrimPrefix(r.URL, "slsk://")
		if i := strings.Index(dir, "/"); i >= 0 {
			dir = dir[i+1:]
		}
		return path.Base(strings.ReplaceAll(dir, "\\", "/"))
	}
	return meta.SanitizeFilename(r.Title)
}

// reasonLabel drops the quoted word from word-rule reasons
func reasonLabel(reason string) string {
	if i := strings.Index(reason, ` "`); i > 0 {
		return reason[:i]
	}
	return reason
}
