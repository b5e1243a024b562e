package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/util"
)

// Newznab audio categories: Audio, MP3, Lossless
var defaultAudioCategories = []int{3000, 3010, 3040}

// feed implements the RSS dialect shared by Newznab and Torznab
type feed struct {
	name       string
	baseURL    string
	apiKey     string
	categories []int
	kind       Kind
	req        *requester
}

// Newznab searches a Usenet indexer
type Newznab struct{ feed }

// Torznab searches a Jackett/Prowlarr torrent endpoint
type Torznab struct{ feed }

// NewNewznab creates a Newznab provider
func NewNewznab(cfg config.IndexerSettings, client *http.Client) *Newznab {
	return &Newznab{newFeed(cfg, KindNZB, client)}
}

// NewTorznab creates a Torznab provider
func NewTorznab(cfg config.IndexerSettings, client *http.Client) *Torznab {
	return &Torznab{newFeed(cfg, KindTorrent, client)}
}

func newFeed(cfg config.IndexerSettings, kind Kind, client *http.Client) feed {
	cats := cfg.Categories
	if len(cats) == 0 {
		cats = defaultAudioCategories
	}
	name := cfg.Name
	if name == "" {
		if u, err := url.Parse(cfg.URL); err == nil {
			name = u.Hostname()
		}
	}
	return feed{
		name:       name,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		categories: cats,
		kind:       kind,
		req:        newRequester(name, client, 1),
	}
}

func (f *feed) Name() string { return f.name }
func (f *feed) Kind() Kind   { return f.kind }

// Search tries the structured music search first and falls back to a
// free-text search when the indexer returns nothing or does not support it
func (f *feed) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.Artist != "" && q.Album != "" {
		params := f.params("music")
		params.Set("artist", q.Artist)
		params.Set("album", q.Album)
		results, err := f.query(ctx, params)
		if err == nil && len(results) > 0 {
			return results, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			util.DebugLog("%s: music search failed, falling back to text search: %v", f.name, err)
		}
	}

	params := f.params("search")
	params.Set("q", q.Term)
	return f.query(ctx, params)
}

func (f *feed) params(t string) url.Values {
	cats := make([]string, len(f.categories))
	for i, c := range f.categories {
		cats[i] = strconv.Itoa(c)
	}
	v := url.Values{}
	v.Set("t", t)
	v.Set("cat", strings.Join(cats, ","))
	v.Set("extended", "1")
	v.Set("limit", "100")
	if f.apiKey != "" {
		v.Set("apikey", f.apiKey)
	}
	return v
}

func (f *feed) query(ctx context.Context, params url.Values) ([]Result, error) {
	endpoint := f.baseURL
	if !strings.HasSuffix(endpoint, "/api") {
		endpoint += "/api"
	}
	body, err := f.req.get(ctx, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return parseFeed(body, f.name, f.kind)
}

type rssDoc struct {
	XMLName xml.Name  `xml:"rss"`
	Items   []rssItem `xml:"channel>item"`
}

type rssError struct {
	XMLName     xml.Name `xml:"error"`
	Code        string   `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

type rssItem struct {
	Title     string       `xml:"title"`
	Link      string       `xml:"link"`
	GUID      string       `xml:"guid"`
	Comments  string       `xml:"comments"`
	PubDate   string       `xml:"pubDate"`
	Size      int64        `xml:"size"`
	Enclosure rssEnclosure `xml:"enclosure"`
	Attrs     []rssAttr    `xml:"attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type rssAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (it *rssItem) attr(name string) string {
	for _, a := range it.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// parseFeed decodes a Newznab/Torznab RSS response
func parseFeed(body []byte, name string, kind Kind) ([]Result, error) {
	var apiErr rssError
	if err := xml.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		return nil, fmt.Errorf("%s: api error %s: %s", name, apiErr.Code, apiErr.Description)
	}

	var doc rssDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%s: failed to parse feed: %w", name, err)
	}

	results := make([]Result, 0, len(doc.Items))
	for _, it := range doc.Items {
		r := Result{
			Title:    strings.TrimSpace(it.Title),
			Provider: name,
			Kind:     kind,
			InfoURL:  it.Comments,
			PubDate:  parsePubDate(it.attr("usenetdate"), it.PubDate),
		}

		r.URL = it.Link
		if kind == KindTorrent {
			if magnet := it.attr("magneturl"); magnet != "" {
				r.URL = magnet
			}
			r.Seeders, _ = strconv.Atoi(it.attr("seeders"))
			r.Peers, _ = strconv.Atoi(it.attr("peers"))
		}
		if r.URL == "" {
			r.URL = it.Enclosure.URL
		}

		switch {
		case it.attr("size") != "":
			r.Size, _ = strconv.ParseInt(it.attr("size"), 10, 64)
		case it.Size > 0:
			r.Size = it.Size
		default:
			r.Size = it.Enclosure.Length
		}

		r.Format = FormatHint(r.Title)
		if br := it.attr("bitrate"); br != "" {
			r.Bitrate, _ = strconv.Atoi(strings.TrimSuffix(strings.ToLower(br), " kbps"))
		}

		if r.Title == "" || r.URL == "" {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
}

func parsePubDate(values ...string) time.Time {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		for _, layout := range pubDateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
