// Package config loads albumhound settings from flags, HOUND_* environment
// variables, a YAML file and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/franz/albumhound/internal/util"
)

// AppName is used for config/data directory names
const AppName = "albumhound"

// Quality modes
const (
	QualityLossy    = "lossy"
	QualityLossless = "lossless"
	QualityAny      = "any"
)

// Settings is the full application configuration
type Settings struct {
	DB          string              `mapstructure:"db"`
	EventLog    string              `mapstructure:"event_log"`
	Library     LibrarySettings     `mapstructure:"library"`
	Import      ImportSettings      `mapstructure:"import"`
	Search      SearchSettings      `mapstructure:"search"`
	Providers   ProviderSettings    `mapstructure:"providers"`
	Downloaders DownloaderSettings  `mapstructure:"downloaders"`
	MusicBrainz MusicBrainzSettings `mapstructure:"musicbrainz"`
	Web         WebSettings         `mapstructure:"web"`
	Scheduler   SchedulerSettings   `mapstructure:"scheduler"`
	Notify      NotifySettings      `mapstructure:"notify"`
}

// LibrarySettings control where files live and how they are renamed
type LibrarySettings struct {
	MusicDir        string `mapstructure:"music_dir"`
	DownloadDir     string `mapstructure:"download_dir"`
	FolderFormat    string `mapstructure:"folder_format"`
	FileFormat      string `mapstructure:"file_format"`
	Move            bool   `mapstructure:"move"`
	KeepOriginal    bool   `mapstructure:"keep_original_folder"`
	WriteTags       bool   `mapstructure:"write_tags"`
	EmbedArt        bool   `mapstructure:"embed_art"`
	SaveArt         bool   `mapstructure:"save_art"`
	BlacklistFailed bool   `mapstructure:"blacklist_failed"`
	ScanWorkers     int    `mapstructure:"scan_workers"`
}

// ImportSettings control which release groups are imported for an artist
type ImportSettings struct {
	ReleaseTypes     []string `mapstructure:"release_types"`
	IncludeExtras    bool     `mapstructure:"include_extras"`
	AutowantUpcoming bool     `mapstructure:"autowant_upcoming"`
	AutowantAll      bool     `mapstructure:"autowant_all"`
}

// SearchSettings drive filtering and ranking of provider results
type SearchSettings struct {
	PreferredQuality   string        `mapstructure:"preferred_quality"`
	PreferredBitrate   int           `mapstructure:"preferred_bitrate"`
	BitrateLowPercent  int           `mapstructure:"bitrate_low_percent"`
	BitrateHighPercent int           `mapstructure:"bitrate_high_percent"`
	MinSizeMB          int           `mapstructure:"min_size_mb"`
	MaxSizeMB          int           `mapstructure:"max_size_mb"`
	IgnoredWords       []string      `mapstructure:"ignored_words"`
	RequiredWords      []string      `mapstructure:"required_words"`
	PreferredWords     []string      `mapstructure:"preferred_words"`
	MinSeeders         int           `mapstructure:"min_seeders"`
	UsenetRetention    int           `mapstructure:"usenet_retention"`
	IncludeYear        bool          `mapstructure:"include_year"`
	ProviderOrder      []string      `mapstructure:"provider_order"`
	MaxConcurrency     int           `mapstructure:"max_concurrency"`
	ProviderTimeout    time.Duration `mapstructure:"provider_timeout"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
}

// IndexerSettings describe a Newznab or Torznab endpoint
type IndexerSettings struct {
	Name       string `mapstructure:"name"`
	URL        string `mapstructure:"url"`
	APIKey     string `mapstructure:"apikey"`
	Categories []int  `mapstructure:"categories"`
	Enabled    bool   `mapstructure:"enabled"`
}

// GazelleSettings describe an Orpheus/Redacted style tracker
type GazelleSettings struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"apikey"`
	Enabled bool   `mapstructure:"enabled"`
}

// PirateBaySettings configure the HTML scraper
type PirateBaySettings struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// SlskdSettings configure the Soulseek daemon used for search and download
type SlskdSettings struct {
	URL           string        `mapstructure:"url"`
	APIKey        string        `mapstructure:"apikey"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	Enabled       bool          `mapstructure:"enabled"`
}

// ProviderSettings groups all search backends
type ProviderSettings struct {
	Newznab   []IndexerSettings `mapstructure:"newznab"`
	Torznab   []IndexerSettings `mapstructure:"torznab"`
	Gazelle   []GazelleSettings `mapstructure:"gazelle"`
	PirateBay PirateBaySettings `mapstructure:"piratebay"`
	Slskd     SlskdSettings     `mapstructure:"slskd"`
}

// ClientSettings is the connection block shared by download clients
type ClientSettings struct {
	URL         string `mapstructure:"url"`
	APIKey      string `mapstructure:"apikey"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	Category    string `mapstructure:"category"`
	Priority    int    `mapstructure:"priority"`
	DownloadDir string `mapstructure:"download_dir"`
}

// DownloaderSettings select one client per result kind
type DownloaderSettings struct {
	Usenet       string         `mapstructure:"usenet"`
	Torrent      string         `mapstructure:"torrent"`
	BlackholeDir string         `mapstructure:"blackhole_dir"`
	SABnzbd      ClientSettings `mapstructure:"sabnzbd"`
	NZBGet       ClientSettings `mapstructure:"nzbget"`
	Transmission ClientSettings `mapstructure:"transmission"`
	QBittorrent  ClientSettings `mapstructure:"qbittorrent"`
	Deluge       ClientSettings `mapstructure:"deluge"`
}

// MusicBrainzSettings configure the metadata client
type MusicBrainzSettings struct {
	URL       string        `mapstructure:"url"`
	UserAgent string        `mapstructure:"user_agent"`
	RateLimit float64       `mapstructure:"rate_limit"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// WebSettings configure the HTTP server
type WebSettings struct {
	Listen   string `mapstructure:"listen"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Metrics  bool   `mapstructure:"metrics"`
}

// SchedulerSettings hold job intervals; zero disables a job
type SchedulerSettings struct {
	Search      time.Duration `mapstructure:"search"`
	Refresh     time.Duration `mapstructure:"refresh"`
	Scan        time.Duration `mapstructure:"scan"`
	PostProcess time.Duration `mapstructure:"postprocess"`
}

// NotifySettings configure notification backends
type NotifySettings struct {
	WebhookURL    string `mapstructure:"webhook_url"`
	PushoverToken string `mapstructure:"pushover_token"`
	PushoverUser  string `mapstructure:"pushover_user"`
	PushoverURL   string `mapstructure:"pushover_url"`
	OnSnatch      bool   `mapstructure:"on_snatch"`
	OnDownload    bool   `mapstructure:"on_download"`
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/albumhound
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultDBPath returns $XDG_DATA_HOME/albumhound/hound.db
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, AppName, "hound.db")
}

// SetDefaults registers every default value on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db", DefaultDBPath())
	v.SetDefault("event_log", "")

	v.SetDefault("library.music_dir", xdg.UserDirs.Music)
	v.SetDefault("library.download_dir", filepath.Join(xdg.UserDirs.Download, AppName))
	v.SetDefault("library.folder_format", "$Artist/$Album ($Year)")
	v.SetDefault("library.file_format", "$Track - $Title")
	v.SetDefault("library.move", true)
	v.SetDefault("library.keep_original_folder", false)
	v.SetDefault("library.write_tags", true)
	v.SetDefault("library.embed_art", false)
	v.SetDefault("library.save_art", true)
	v.SetDefault("library.blacklist_failed", true)
	v.SetDefault("library.scan_workers", 4)

	v.SetDefault("import.release_types", []string{"Album"})
	v.SetDefault("import.include_extras", false)
	v.SetDefault("import.autowant_upcoming", true)
	v.SetDefault("import.autowant_all", false)

	v.SetDefault("search.preferred_quality", QualityLossy)
	v.SetDefault("search.preferred_bitrate", 0)
	v.SetDefault("search.bitrate_low_percent", 25)
	v.SetDefault("search.bitrate_high_percent", 25)
	v.SetDefault("search.min_size_mb", 20)
	v.SetDefault("search.max_size_mb", 0)
	v.SetDefault("search.ignored_words", []string{})
	v.SetDefault("search.required_words", []string{})
	v.SetDefault("search.preferred_words", []string{})
	v.SetDefault("search.min_seeders", 1)
	v.SetDefault("search.usenet_retention", 0)
	v.SetDefault("search.include_year", false)
	v.SetDefault("search.provider_order", []string{})
	v.SetDefault("search.max_concurrency", 4)
	v.SetDefault("search.provider_timeout", 60*time.Second)
	v.SetDefault("search.max_attempts", 3)

	v.SetDefault("providers.piratebay.url", "https://thepiratebay.org")
	v.SetDefault("providers.slskd.search_timeout", 45*time.Second)

	v.SetDefault("downloaders.usenet", "sabnzbd")
	v.SetDefault("downloaders.torrent", "transmission")
	v.SetDefault("downloaders.sabnzbd.category", "music")
	v.SetDefault("downloaders.nzbget.category", "music")
	v.SetDefault("downloaders.qbittorrent.category", "music")

	v.SetDefault("musicbrainz.url", "https://musicbrainz.org")
	v.SetDefault("musicbrainz.user_agent", AppName+"/dev ( https://github.com/franz/albumhound )")
	v.SetDefault("musicbrainz.rate_limit", 1.0)
	v.SetDefault("musicbrainz.cache_ttl", 7*24*time.Hour)

	v.SetDefault("web.listen", "127.0.0.1:8181")
	v.SetDefault("web.metrics", true)

	v.SetDefault("scheduler.search", 6*time.Hour)
	v.SetDefault("scheduler.refresh", 24*time.Hour)
	v.SetDefault("scheduler.scan", 0)
	v.SetDefault("scheduler.postprocess", 5*time.Minute)

	v.SetDefault("notify.pushover_url", "https://api.pushover.net/1/messages.json")
	v.SetDefault("notify.on_snatch", true)
	v.SetDefault("notify.on_download", true)
}

// Init prepares v with defaults, env binding and the config file location.
// cfgFile may be empty, in which case the XDG config dir and the working
// directory are searched for hound.yaml.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix("HOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath(".")
		v.SetConfigName("hound")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			util.DebugLog("No config file found, using defaults")
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	util.DebugLog("Using config file: %s", v.ConfigFileUsed())
	return nil
}

// Load decodes and validates the settings currently held by v
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	s.applyFallbacks()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) applyFallbacks() {
	s.Search.PreferredQuality = strings.ToLower(strings.TrimSpace(s.Search.PreferredQuality))
	if s.Search.MaxConcurrency < 1 {
		s.Search.MaxConcurrency = 1
	}
	if s.Search.MaxAttempts < 1 {
		s.Search.MaxAttempts = 1
	}
	if s.Library.ScanWorkers < 1 {
		s.Library.ScanWorkers = 1
	}
	if s.Downloaders.BlackholeDir == "" {
		s.Downloaders.BlackholeDir = s.Library.DownloadDir
	}
}

// Validate checks the settings for values that cannot work
func (s *Settings) Validate() error {
	switch s.Search.PreferredQuality {
	case QualityLossy, QualityLossless, QualityAny:
	default:
		return fmt.Errorf("%w: search.preferred_quality must be lossy, lossless or any (got %q)",
			util.ErrInvalidConfig, s.Search.PreferredQuality)
	}
	if s.Search.PreferredBitrate < 0 || s.Search.BitrateLowPercent < 0 || s.Search.BitrateHighPercent < 0 {
		return fmt.Errorf("%w: bitrate settings must not be negative", util.ErrInvalidConfig)
	}
	if s.Search.MaxSizeMB > 0 && s.Search.MaxSizeMB < s.Search.MinSizeMB {
		return fmt.Errorf("%w: search.max_size_mb (%d) is below search.min_size_mb (%d)",
			util.ErrInvalidConfig, s.Search.MaxSizeMB, s.Search.MinSizeMB)
	}
	if s.MusicBrainz.UserAgent == "" {
		return fmt.Errorf("%w: musicbrainz.user_agent is required", util.ErrInvalidConfig)
	}
	if s.MusicBrainz.RateLimit <= 0 {
		return fmt.Errorf("%w: musicbrainz.rate_limit must be positive", util.ErrInvalidConfig)
	}

	for _, ix := range append(append([]IndexerSettings{}, s.Providers.Newznab...), s.Providers.Torznab...) {
		if ix.Enabled && ix.URL == "" {
			return fmt.Errorf("%w: indexer %q has no url", util.ErrInvalidConfig, ix.Name)
		}
	}
	for _, g := range s.Providers.Gazelle {
		if g.Enabled && (g.URL == "" || g.APIKey == "") {
			return fmt.Errorf("%w: gazelle tracker %q needs url and apikey", util.ErrInvalidConfig, g.Name)
		}
	}
	if s.Providers.Slskd.Enabled && s.Providers.Slskd.URL == "" {
		return fmt.Errorf("%w: providers.slskd.url is required", util.ErrInvalidConfig)
	}

	switch s.Downloaders.Usenet {
	case "", "sabnzbd", "nzbget", "blackhole":
	default:
		return fmt.Errorf("%w: unknown usenet client %q", util.ErrInvalidConfig, s.Downloaders.Usenet)
	}
	switch s.Downloaders.Torrent {
	case "", "transmission", "qbittorrent", "deluge", "blackhole":
	default:
		return fmt.Errorf("%w: unknown torrent client %q", util.ErrInvalidConfig, s.Downloaders.Torrent)
	}

	if s.Web.Listen == "" {
		return fmt.Errorf("%w: web.listen is required", util.ErrInvalidConfig)
	}
	if (s.Web.Username == "") != (s.Web.Password == "") {
		return fmt.Errorf("%w: web.username and web.password must be set together", util.ErrInvalidConfig)
	}
	return nil
}

// Live holds the active settings and lets a config reload swap them
// while searches are running.
type Live struct {
	p atomic.Pointer[Settings]
}

// NewLive wraps s
func NewLive(s *Settings) *Live {
	l := &Live{}
	l.p.Store(s)
	return l
}

// Get returns the current settings; callers must not mutate them
func (l *Live) Get() *Settings {
	return l.p.Load()
}

// Set replaces the current settings
func (l *Live) Set(s *Settings) {
	l.p.Store(s)
}

// Watch reloads the config file on change and swaps the search,
// import and notify sections into l. Paths, clients and the listen
// address need a restart.
func Watch(v *viper.Viper, l *Live) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fresh, err := Load(v)
		if err != nil {
			util.WarnLog("Ignoring config change in %s: %v", e.Name, err)
			return
		}
		merged := *l.Get()
		merged.Search = fresh.Search
		merged.Import = fresh.Import
		merged.Notify = fresh.Notify
		l.Set(&merged)
		util.InfoLog("Reloaded search settings from %s", e.Name)
	})
	v.WatchConfig()
}
