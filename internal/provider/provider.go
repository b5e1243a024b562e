// Package provider searches Usenet indexers, torrent trackers and Soulseek
// for album releases and normalizes their answers into Result values.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/franz/albumhound/internal/meta"
	"github.com/franz/albumhound/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind identifies how a result is downloaded
type Kind string

const (
	KindNZB      Kind = "nzb"
	KindTorrent  Kind = "torrent"
	KindSoulseek Kind = "soulseek"
	KindDDL      Kind = "ddl"
)

// Provider is a search backend
type Provider interface {
	Name() string
	Kind() Kind
	Search(ctx context.Context, q Query) ([]Result, error)
}

// Query describes the album being searched for
type Query struct {
	Artist string
	Album  string
	Year   int
	// Term is the prepared free-text search term
	Term string
	// Lossless asks providers that can filter server-side for lossless only
	Lossless bool
}

// RemoteFile is one file of a Soulseek result
type RemoteFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Result is a normalized search hit
type Result struct {
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	InfoURL  string    `json:"info_url,omitempty"`
	Size     int64     `json:"size"`
	Provider string    `json:"provider"`
	Kind     Kind      `json:"kind"`
	Seeders  int       `json:"seeders"`
	Peers    int       `json:"peers"`
	PubDate  time.Time `json:"pub_date"`
	// Format and Bitrate are hints reported by the provider
	Format  string `json:"format,omitempty"`
	Bitrate int    `json:"bitrate,omitempty"`
	// Username and Files identify a Soulseek download
	Username string       `json:"username,omitempty"`
	Files    []RemoteFile `json:"files,omitempty"`
	// Order is the provider's position in the configured provider order
	Order int     `json:"order"`
	Score float64 `json:"score"`
}

// AgeDays returns the age of the post in whole days, or -1 when unknown
func (r *Result) AgeDays(now time.Time) int {
	if r.PubDate.IsZero() {
		return -1
	}
	return int(now.Sub(r.PubDate).Hours() / 24)
}

// requester is the HTTP plumbing shared by every provider: one client,
// a per-provider rate limiter and retry on transient failures
type requester struct {
	service string
	client  *http.Client
	limiter *rate.Limiter
	retry   *util.RetryConfig
}

func newRequester(service string, client *http.Client, perSecond float64) *requester {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if perSecond <= 0 {
		perSecond = 2
	}
	return &requester{
		service: service,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		retry:   util.HTTPRetryConfig(),
	}
}

// do runs build on every attempt so request bodies can be replayed
func (r *requester) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	return util.RetryWithBackoff(ctx, r.retry, func() ([]byte, error) {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", "albumhound")
		}

		resp, err := r.client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.service, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read response: %w", r.service, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &util.HTTPStatusError{Service: r.service, StatusCode: resp.StatusCode, Body: snippet(body)}
		}
		return body, nil
	}, r.service+" request")
}

func (r *requester) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	return r.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range header {
			req.Header[k] = v
		}
		return req, nil
	})
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

var formatTokens = map[string]string{
	"flac":   "FLAC",
	"alac":   "ALAC",
	"mp3":    "MP3",
	"aac":    "AAC",
	"m4a":    "AAC",
	"ogg":    "OGG",
	"vorbis": "OGG",
	"wav":    "WAV",
}

// formatPriority breaks ties when a title names several formats
var formatPriority = []string{"FLAC", "ALAC", "MP3", "AAC", "OGG", "WAV"}

// FormatHint guesses the audio format from a release title. Only whole
// words count, so "Palace" or "Doggystyle" carry no hint.
func FormatHint(title string) string {
	found := map[string]bool{}
	for _, tok := range meta.Tokens(title) {
		if f, ok := formatTokens[tok]; ok {
			found[f] = true
		}
	}
	for _, f := range formatPriority {
		if found[f] {
			return f
		}
	}
	return ""
}

// IsLosslessFormat reports whether a format hint is lossless
func IsLosslessFormat(format string) bool {
	switch strings.ToUpper(format) {
	case "FLAC", "ALAC", "WAV", "APE", "WV", "LOSSLESS":
		return true
	}
	return false
}
