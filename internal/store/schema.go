package store

import (
	"strconv"
	"time"
)

// Artist statuses
const (
	ArtistActive  = "Active"
	ArtistPaused  = "Paused"
	ArtistLoading = "Loading"
)

// Album statuses
const (
	StatusWanted         = "Wanted"
	StatusWantedLossless = "Wanted Lossless"
	StatusSkipped        = "Skipped"
	StatusIgnored        = "Ignored"
	StatusSnatched       = "Snatched"
	StatusDownloaded     = "Downloaded"
	StatusArchived       = "Archived"
)

// Snatched statuses
const (
	SnatchSnatched    = "Snatched"
	SnatchProcessed   = "Processed"
	SnatchUnprocessed = "Unprocessed"
	SnatchFailed      = "Failed"
	SnatchSeeding     = "Seed_Snatched"
)

// AlbumStatuses lists every valid album status
var AlbumStatuses = []string{
	StatusWanted, StatusWantedLossless, StatusSkipped, StatusIgnored,
	StatusSnatched, StatusDownloaded, StatusArchived,
}

// ValidAlbumStatus reports whether status is a known album status
func ValidAlbumStatus(status string) bool {
	for _, s := range AlbumStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Schema v1 - artists, albums, tracks, snatched, have
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS artists (
  artist_id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  sort_name TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'Active',
  include_extras INTEGER NOT NULL DEFAULT 0,
  date_added DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  last_updated DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS albums (
  album_id TEXT PRIMARY KEY,
  artist_id TEXT NOT NULL REFERENCES artists(artist_id) ON DELETE CASCADE,
  artist_name TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  release_date TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT 'Album',
  status TEXT NOT NULL DEFAULT 'Skipped',
  release_id TEXT NOT NULL DEFAULT '',
  search_term TEXT NOT NULL DEFAULT '',
  quality TEXT NOT NULL DEFAULT '',
  date_added DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_albums_artist ON albums(artist_id);
CREATE INDEX IF NOT EXISTS idx_albums_status ON albums(status);

CREATE TABLE IF NOT EXISTS tracks (
  album_id TEXT NOT NULL REFERENCES albums(album_id) ON DELETE CASCADE,
  track_id TEXT NOT NULL,
  release_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  track_number INTEGER NOT NULL DEFAULT 0,
  disc INTEGER NOT NULL DEFAULT 1,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  location TEXT NOT NULL DEFAULT '',
  bitrate INTEGER NOT NULL DEFAULT 0,
  format TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (album_id, track_id)
);

CREATE TABLE IF NOT EXISTS snatched (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  album_id TEXT NOT NULL,
  title TEXT NOT NULL,
  size INTEGER NOT NULL DEFAULT 0,
  url TEXT NOT NULL,
  provider TEXT NOT NULL,
  kind TEXT NOT NULL,
  client TEXT NOT NULL DEFAULT '',
  folder_name TEXT NOT NULL DEFAULT '',
  download_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'Snatched',
  date_added DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_snatched_url ON snatched(url);
CREATE INDEX IF NOT EXISTS idx_snatched_status ON snatched(status);
CREATE INDEX IF NOT EXISTS idx_snatched_album ON snatched(album_id);

CREATE TABLE IF NOT EXISTS have (
  location TEXT PRIMARY KEY,
  artist_name TEXT NOT NULL DEFAULT '',
  album_title TEXT NOT NULL DEFAULT '',
  track_title TEXT NOT NULL DEFAULT '',
  track_number INTEGER NOT NULL DEFAULT 0,
  disc INTEGER NOT NULL DEFAULT 0,
  format TEXT NOT NULL DEFAULT '',
  bitrate INTEGER NOT NULL DEFAULT 0,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  matched_album_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_have_album ON have(artist_name, album_title);
`

// Schema v2 - blacklist and MusicBrainz response cache
const schemaV2 = `
CREATE TABLE IF NOT EXISTS blacklist (
  url TEXT PRIMARY KEY,
  album_id TEXT NOT NULL DEFAULT '',
  reason TEXT NOT NULL DEFAULT '',
  date_added DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS musicbrainz_cache (
  cache_key TEXT PRIMARY KEY,
  body BLOB NOT NULL,
  cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  hit_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_mb_cache_cached_at ON musicbrainz_cache(cached_at);
`

// Artist is a tracked artist
type Artist struct {
	ID            string    `db:"artist_id" json:"id"`
	Name          string    `db:"name" json:"name"`
	SortName      string    `db:"sort_name" json:"sort_name"`
	Status        string    `db:"status" json:"status"`
	IncludeExtras bool      `db:"include_extras" json:"include_extras"`
	DateAdded     time.Time `db:"date_added" json:"date_added"`
	LastUpdated   time.Time `db:"last_updated" json:"last_updated"`

	// Filled by ListArtists
	AlbumCount int `db:"album_count" json:"album_count"`
	HaveCount  int `db:"have_count" json:"have_count"`
}

// Album is a release group belonging to an artist
type Album struct {
	ID          string    `db:"album_id" json:"id"`
	ArtistID    string    `db:"artist_id" json:"artist_id"`
	ArtistName  string    `db:"artist_name" json:"artist_name"`
	Title       string    `db:"title" json:"title"`
	ReleaseDate string    `db:"release_date" json:"release_date"`
	Type        string    `db:"type" json:"type"`
	Status      string    `db:"status" json:"status"`
	ReleaseID   string    `db:"release_id" json:"release_id"`
	SearchTerm  string    `db:"search_term" json:"search_term,omitempty"`
	Quality     string    `db:"quality" json:"quality,omitempty"`
	DateAdded   time.Time `db:"date_added" json:"date_added"`
}

// Year returns the four-digit release year, or 0 when unknown
func (a *Album) Year() int {
	if len(a.ReleaseDate) < 4 {
		return 0
	}
	y, err := strconv.Atoi(a.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return y
}

// Track is a recording on the chosen release of an album
type Track struct {
	AlbumID    string `db:"album_id" json:"album_id"`
	TrackID    string `db:"track_id" json:"track_id"`
	ReleaseID  string `db:"release_id" json:"release_id"`
	Title      string `db:"title" json:"title"`
	Number     int    `db:"track_number" json:"number"`
	Disc       int    `db:"disc" json:"disc"`
	DurationMs int64  `db:"duration_ms" json:"duration_ms"`
	Location   string `db:"location" json:"location,omitempty"`
	Bitrate    int    `db:"bitrate" json:"bitrate,omitempty"`
	Format     string `db:"format" json:"format,omitempty"`
}

// Snatched records a result handed to a download client
type Snatched struct {
	ID         int64     `db:"id" json:"id"`
	AlbumID    string    `db:"album_id" json:"album_id"`
	Title      string    `db:"title" json:"title"`
	Size       int64     `db:"size" json:"size"`
	URL        string    `db:"url" json:"url"`
	Provider   string    `db:"provider" json:"provider"`
	Kind       string    `db:"kind" json:"kind"`
	Client     string    `db:"client" json:"client"`
	FolderName string    `db:"folder_name" json:"folder_name"`
	DownloadID string    `db:"download_id" json:"download_id"`
	Status     string    `db:"status" json:"status"`
	DateAdded  time.Time `db:"date_added" json:"date_added"`
}

// Have is an audio file found in the library
type Have struct {
	Location       string `db:"location" json:"location"`
	ArtistName     string `db:"artist_name" json:"artist_name"`
	AlbumTitle     string `db:"album_title" json:"album_title"`
	TrackTitle     string `db:"track_title" json:"track_title"`
	TrackNumber    int    `db:"track_number" json:"track_number"`
	Disc           int    `db:"disc" json:"disc"`
	Format         string `db:"format" json:"format"`
	Bitrate        int    `db:"bitrate" json:"bitrate"`
	DurationMs     int64  `db:"duration_ms" json:"duration_ms"`
	MatchedAlbumID string `db:"matched_album_id" json:"matched_album_id,omitempty"`
}

// BlacklistEntry is a URL that must never be snatched again
type BlacklistEntry struct {
	URL       string    `db:"url" json:"url"`
	AlbumID   string    `db:"album_id" json:"album_id"`
	Reason    string    `db:"reason" json:"reason"`
	DateAdded time.Time `db:"date_added" json:"date_added"`
}
