package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/downloader"
	"github.com/franz/albumhound/internal/importer"
	"github.com/franz/albumhound/internal/library"
	"github.com/franz/albumhound/internal/metrics"
	"github.com/franz/albumhound/internal/musicbrainz"
	"github.com/franz/albumhound/internal/notify"
	"github.com/franz/albumhound/internal/postprocess"
	"github.com/franz/albumhound/internal/provider"
	"github.com/franz/albumhound/internal/report"
	"github.com/franz/albumhound/internal/scheduler"
	"github.com/franz/albumhound/internal/searcher"
	"github.com/franz/albumhound/internal/store"
	"github.com/franz/albumhound/internal/util"
)

// app wires every component from the loaded settings
type app struct {
	settings  *config.Live
	store     *store.Store
	events    *report.EventLogger
	metrics   *metrics.Metrics
	mb        *musicbrainz.Client
	providers *provider.Registry
	router    *downloader.Router
	notifier  *notify.Dispatcher
	importer  *importer.Importer
	searcher  *searcher.Searcher
	scanner   *library.Scanner
	processor *postprocess.Processor
}

func loadSettings() (*config.Settings, error) {
	return config.Load(viper.GetViper())
}

func newApp() (*app, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(s.DB), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.Open(s.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	util.DebugLog("Database: %s", s.DB)

	events := report.NullLogger()
	if s.EventLog != "" {
		events, err = report.NewEventLogger(s.EventLog, report.LevelInfo)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	hc := &http.Client{Timeout: 60 * time.Second}
	live := config.NewLive(s)

	router, err := downloader.NewRouter(s, hc, afero.NewOsFs())
	if err != nil {
		events.Close()
		db.Close()
		return nil, err
	}

	mb := musicbrainz.NewClient(&musicbrainz.Config{
		BaseURL:   s.MusicBrainz.URL,
		UserAgent: s.MusicBrainz.UserAgent,
		RateLimit: s.MusicBrainz.RateLimit,
	})
	if s.MusicBrainz.CacheTTL > 0 {
		mb.SetCache(musicbrainz.NewCache(db.DB(), s.MusicBrainz.CacheTTL))
	}

	a := &app{
		settings:  live,
		store:     db,
		events:    events,
		metrics:   metrics.New(),
		mb:        mb,
		providers: provider.NewRegistry(s.Providers, s.Search.ProviderOrder, hc),
		router:    router,
		notifier:  notify.New(s.Notify, hc),
	}
	a.importer = importer.New(&importer.Config{
		Settings: live,
		Store:    db,
		Source:   mb,
		Events:   events,
	})
	a.searcher = searcher.New(&searcher.Config{
		Settings:  live,
		Store:     db,
		Providers: a.providers,
		Router:    router,
		Events:    events,
		Notifier:  a.notifier,
		Metrics:   a.metrics,
	})
	a.scanner = library.New(&library.Config{
		Store:       db,
		Concurrency: s.Library.ScanWorkers,
		Logger:      events,
	})
	a.processor = postprocess.New(&postprocess.Config{
		Settings: live,
		Store:    db,
		Scanner:  a.scanner,
		Covers:   postprocess.NewCoverArtArchive(s.MusicBrainz.UserAgent),
		Events:   events,
		Notifier: a.notifier,
		Metrics:  a.metrics,
	})
	return a, nil
}

// jobs registers the periodic jobs on a new scheduler
func (a *app) jobs() (*scheduler.Scheduler, error) {
	s := a.settings.Get().Scheduler
	sched := scheduler.New()

	jobs := []scheduler.Job{
		{
			Name:     "search",
			Interval: s.Search,
			Run: func(ctx context.Context) error {
				sum, err := a.searcher.SearchWanted(ctx)
				if sum != nil && sum.Searched > 0 {
					util.InfoLog("Searched %d wanted albums, snatched %d", sum.Searched, sum.Snatched)
				}
				return err
			},
		},
		{
			Name:     "refresh",
			Interval: s.Refresh,
			Run: func(ctx context.Context) error {
				_, err := a.importer.RefreshAll(ctx)
				return err
			},
		},
		{
			Name:     "scan",
			Interval: s.Scan,
			Run: func(ctx context.Context) error {
				_, err := a.scanner.Scan(ctx, a.settings.Get().Library.MusicDir)
				return err
			},
		},
		{
			Name:      "postprocess",
			Interval:  s.PostProcess,
			Immediate: true,
			Run: func(ctx context.Context) error {
				_, err := a.processor.Run(ctx)
				if errors.Is(err, postprocess.ErrBusy) {
					return nil
				}
				return err
			},
		},
	}
	for _, j := range jobs {
		if err := sched.Add(j); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		util.WarnLog("Failed to close event log: %v", err)
	}
	if err := a.store.Close(); err != nil {
		util.WarnLog("Failed to close database: %v", err)
	}
}
