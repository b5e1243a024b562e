package provider

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/franz/albumhound/internal/config"
)

// Gazelle searches an Orpheus/Redacted style private tracker through its
// JSON API. Download links embed the user's authkey and passkey so any
// torrent client can fetch them.
type Gazelle struct {
	name    string
	baseURL string
	apiKey  string
	req     *requester

	mu      sync.Mutex
	authKey string
	passKey string
}

// NewGazelle creates a Gazelle provider
func NewGazelle(cfg config.GazelleSettings, client *http.Client) *Gazelle {
	name := cfg.Name
	if name == "" {
		name = "gazelle"
	}
	return &Gazelle{
		name:    name,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		// Gazelle allows 5 requests per 10 seconds
		req: newRequester(name, client, 0.5),
	}
}

func (g *Gazelle) Name() string { return g.name }
func (g *Gazelle) Kind() Kind   { return KindTorrent }

type gazelleEnvelope struct {
	Status   string              `json:"status"`
	Error    string              `json:"error"`
	Response jsoniter.RawMessage `json:"response"`
}

type gazelleIndex struct {
	AuthKey string `json:"authkey"`
	PassKey string `json:"passkey"`
}

type gazelleBrowse struct {
	Results []gazelleGroup `json:"results"`
}

type gazelleGroup struct {
	GroupID     int              `json:"groupId"`
	GroupName   string           `json:"groupName"`
	Artist      string           `json:"artist"`
	GroupYear   int              `json:"groupYear"`
	ReleaseType string           `json:"releaseType"`
	Torrents    []gazelleTorrent `json:"torrents"`
}

type gazelleTorrent struct {
	TorrentID  int    `json:"torrentId"`
	Media      string `json:"media"`
	Format     string `json:"format"`
	Encoding   string `json:"encoding"`
	Size       int64  `json:"size"`
	Seeders    int    `json:"seeders"`
	Leechers   int    `json:"leechers"`
	FileCount  int    `json:"fileCount"`
	Time       string `json:"time"`
	Scene      bool   `json:"scene"`
	HasLog     bool   `json:"hasLog"`
	LogScore   int    `json:"logScore"`
	RemasterYr int    `json:"remasterYear"`
}

func (g *Gazelle) call(ctx context.Context, params url.Values, out interface{}) error {
	header := http.Header{}
	header.Set("Authorization", g.apiKey)

	body, err := g.req.get(ctx, g.baseURL+"/ajax.php?"+params.Encode(), header)
	if err != nil {
		return err
	}

	var env gazelleEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", g.name, err)
	}
	if env.Status != "success" {
		return fmt.Errorf("%s: %s", g.name, env.Error)
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("%s: failed to decode %s: %w", g.name, params.Get("action"), err)
	}
	return nil
}

func (g *Gazelle) keys(ctx context.Context) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.authKey != "" {
		return g.authKey, g.passKey, nil
	}

	var idx gazelleIndex
	if err := g.call(ctx, url.Values{"action": {"index"}}, &idx); err != nil {
		return "", "", err
	}
	g.authKey, g.passKey = idx.AuthKey, idx.PassKey
	return g.authKey, g.passKey, nil
}

// Search browses torrent groups matching artist and album
func (g *Gazelle) Search(ctx context.Context, q Query) ([]Result, error) {
	authKey, passKey, err := g.keys(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{"action": {"browse"}}
	if q.Artist != "" && q.Album != "" {
		params.Set("artistname", q.Artist)
		params.Set("groupname", q.Album)
	} else {
		params.Set("searchstr", q.Term)
	}
	if q.Lossless {
		params.Set("encoding", "Lossless")
	}

	var browse gazelleBrowse
	if err := g.call(ctx, params, &browse); err != nil {
		return nil, err
	}

	var results []Result
	for _, grp := range browse.Results {
		for _, t := range grp.Torrents {
			results = append(results, g.toResult(grp, t, authKey, passKey))
		}
	}
	return results, nil
}

func (g *Gazelle) toResult(grp gazelleGroup, t gazelleTorrent, authKey, passKey string) Result {
	title := fmt.Sprintf("%s - %s (%d) [%s %s %s]",
		html.UnescapeString(grp.Artist), html.UnescapeString(grp.GroupName), grp.GroupYear,
		t.Format, t.Encoding, t.Media)

	dl := url.Values{
		"action":       {"download"},
		"id":           {strconv.Itoa(t.TorrentID)},
		"authkey":      {authKey},
		"torrent_pass": {passKey},
	}

	r := Result{
		Title:    title,
		URL:      g.baseURL + "/torrents.php?" + dl.Encode(),
		InfoURL:  fmt.Sprintf("%s/torrents.php?id=%d&torrentid=%d", g.baseURL, grp.GroupID, t.TorrentID),
		Size:     t.Size,
		Provider: g.name,
		Kind:     KindTorrent,
		Seeders:  t.Seeders,
		Peers:    t.Seeders + t.Leechers,
		Format:   strings.ToUpper(t.Format),
	}
	if t.Encoding == "Lossless" || t.Encoding == "24bit Lossless" {
		r.Format = "FLAC"
	} else if n, err := strconv.Atoi(strings.TrimSuffix(t.Encoding, " (VBR)")); err == nil {
		r.Bitrate = n
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", t.Time); err == nil {
		r.PubDate = ts
	}
	return r
}
