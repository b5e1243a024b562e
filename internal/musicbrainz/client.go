package musicbrainz

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/franz/albumhound/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultBaseURL is the public MusicBrainz server
	DefaultBaseURL = "https://musicbrainz.org"

	// browsePageSize is the largest page MusicBrainz hands out
	browsePageSize = 100
)

// Config configures a Client
type Config struct {
	BaseURL   string
	UserAgent string
	// RateLimit is requests per second; MusicBrainz asks for at most 1
	RateLimit float64
	Timeout   time.Duration
	Retry     *util.RetryConfig
}

// Client talks to the MusicBrainz JSON web service (ws/2)
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	retry      *util.RetryConfig
	cache      *Cache
}

// NewClient creates a new MusicBrainz API client
func NewClient(cfg *Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry == nil {
		cfg.Retry = util.HTTPRetryConfig()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/ws/2",
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		retry:      cfg.Retry,
	}
}

// SetCache enables response caching
func (c *Client) SetCache(cache *Cache) {
	c.cache = cache
}

// ValidMBID reports whether s is a well-formed MusicBrainz identifier
func ValidMBID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// Artist is a MusicBrainz artist
type Artist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sort-name"`
	Score          int    `json:"score"`
	Type           string `json:"type"`
	Country        string `json:"country"`
	Disambiguation string `json:"disambiguation"`
}

// ArtistCredit is one entry of a credit list
type ArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     Artist `json:"artist"`
}

// ReleaseGroup is an abstract album
type ReleaseGroup struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Score            int            `json:"score"`
	PrimaryType      string         `json:"primary-type"`
	SecondaryTypes   []string       `json:"secondary-types"`
	FirstReleaseDate string         `json:"first-release-date"`
	ArtistCredit     []ArtistCredit `json:"artist-credit"`
	Releases         []Release      `json:"releases"`
}

// Type returns the primary type, or the first secondary type for extras
// such as Compilation or Live
func (rg *ReleaseGroup) Type() string {
	if len(rg.SecondaryTypes) > 0 {
		return rg.SecondaryTypes[0]
	}
	if rg.PrimaryType == "" {
		return "Other"
	}
	return rg.PrimaryType
}

// ArtistName joins the credit list the way MusicBrainz displays it
func (rg *ReleaseGroup) ArtistName() string {
	var b strings.Builder
	for _, ac := range rg.ArtistCredit {
		b.WriteString(ac.Name)
		b.WriteString(ac.JoinPhrase)
	}
	return b.String()
}

// Release is a concrete edition of a release group
type Release struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Status       string        `json:"status"`
	Date         string        `json:"date"`
	Country      string        `json:"country"`
	Media        []Medium      `json:"media"`
	ReleaseGroup *ReleaseGroup `json:"release-group,omitempty"`
}

// TrackCount sums the tracks of every medium
func (r *Release) TrackCount() int {
	n := 0
	for _, m := range r.Media {
		n += m.TrackCount
	}
	return n
}

// Medium is a disc, side or digital medium
type Medium struct {
	Position   int     `json:"position"`
	Format     string  `json:"format"`
	TrackCount int     `json:"track-count"`
	Tracks     []Track `json:"tracks"`
}

// Track is a track on a medium
type Track struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	Position  int       `json:"position"`
	Title     string    `json:"title"`
	Length    int64     `json:"length"`
	Recording Recording `json:"recording"`
}

// Recording is the underlying recording of a track
type Recording struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Length int64  `json:"length"`
}

// SearchArtists runs an artist name search, best match first
func (c *Client) SearchArtists(ctx context.Context, name string, limit int) ([]Artist, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("artist name cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	var result struct {
		Artists []Artist `json:"artists"`
	}
	params := url.Values{
		"query": {fmt.Sprintf(`artist:"%s"`, escapeQuery(name))},
		"limit": {fmt.Sprint(limit)},
	}
	if err := c.get(ctx, "/artist", params, &result); err != nil {
		return nil, err
	}

	util.DebugLog("MusicBrainz: %d artists for '%s'", len(result.Artists), name)
	return result.Artists, nil
}

// LookupArtist fetches an artist by MBID
func (c *Client) LookupArtist(ctx context.Context, mbid string) (*Artist, error) {
	if !ValidMBID(mbid) {
		return nil, fmt.Errorf("invalid artist MBID %q", mbid)
	}

	var artist Artist
	if err := c.get(ctx, "/artist/"+mbid, nil, &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// BrowseReleaseGroups pages through every release group of an artist.
// types filters by primary type (album, ep, single...); empty means all.
func (c *Client) BrowseReleaseGroups(ctx context.Context, artistMBID string, types []string) ([]ReleaseGroup, error) {
	if !ValidMBID(artistMBID) {
		return nil, fmt.Errorf("invalid artist MBID %q", artistMBID)
	}

	var all []ReleaseGroup
	for offset := 0; ; offset += browsePageSize {
		var page struct {
			ReleaseGroups []ReleaseGroup `json:"release-groups"`
			Count         int            `json:"release-group-count"`
		}
		params := url.Values{
			"artist": {artistMBID},
			"limit":  {fmt.Sprint(browsePageSize)},
			"offset": {fmt.Sprint(offset)},
		}
		if len(types) > 0 {
			lower := make([]string, len(types))
			for i, t := range types {
				lower[i] = strings.ToLower(t)
			}
			params.Set("type", strings.Join(lower, "|"))
		}

		if err := c.get(ctx, "/release-group", params, &page); err != nil {
			return nil, err
		}
		all = append(all, page.ReleaseGroups...)

		if len(page.ReleaseGroups) == 0 || len(all) >= page.Count {
			break
		}
	}

	util.DebugLog("MusicBrainz: %d release groups for artist %s", len(all), artistMBID)
	return all, nil
}

// LookupReleaseGroup fetches a release group with its releases and media
func (c *Client) LookupReleaseGroup(ctx context.Context, mbid string) (*ReleaseGroup, error) {
	if !ValidMBID(mbid) {
		return nil, fmt.Errorf("invalid release group MBID %q", mbid)
	}

	var rg ReleaseGroup
	params := url.Values{"inc": {"releases media artist-credits"}}
	if err := c.get(ctx, "/release-group/"+mbid, params, &rg); err != nil {
		return nil, err
	}
	return &rg, nil
}

// LookupRelease fetches a release with its track list
func (c *Client) LookupRelease(ctx context.Context, mbid string) (*Release, error) {
	if !ValidMBID(mbid) {
		return nil, fmt.Errorf("invalid release MBID %q", mbid)
	}

	var rel Release
	params := url.Values{"inc": {"recordings media release-groups"}}
	if err := c.get(ctx, "/release/"+mbid, params, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// SearchReleaseGroups finds release groups by artist and title
func (c *Client) SearchReleaseGroups(ctx context.Context, artist, album string, limit int) ([]ReleaseGroup, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`releasegroup:"%s"`, escapeQuery(album))
	if artist != "" {
		query += fmt.Sprintf(` AND artist:"%s"`, escapeQuery(artist))
	}

	var result struct {
		ReleaseGroups []ReleaseGroup `json:"release-groups"`
	}
	params := url.Values{"query": {query}, "limit": {fmt.Sprint(limit)}}
	if err := c.get(ctx, "/release-group", params, &result); err != nil {
		return nil, err
	}
	return result.ReleaseGroups, nil
}

// get performs a rate-limited, retried GET and decodes the JSON body into out
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("fmt", "json")
	key := path + "?" + params.Encode()

	if c.cache != nil {
		if body, ok := c.cache.Get(key); ok {
			util.DebugLog("MusicBrainz cache hit: %s", key)
			return json.Unmarshal(body, out)
		}
	}

	body, err := util.RetryWithBackoff(ctx, c.retry, func() ([]byte, error) {
		return c.fetch(ctx, key)
	}, "musicbrainz "+path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	if c.cache != nil {
		if err := c.cache.Put(key, body); err != nil {
			util.WarnLog("Failed to cache MusicBrainz response: %v", err)
		}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, key string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	util.DebugLog("MusicBrainz API: GET %s", key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &util.HTTPStatusError{Service: "musicbrainz", StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
