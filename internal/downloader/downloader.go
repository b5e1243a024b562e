// Package downloader hands snatched search results to download clients:
// Usenet (SABnzbd, NZBGet), torrent (Transmission, qBittorrent, Deluge),
// Soulseek (slskd) and a blackhole watch directory.
package downloader

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/provider"
	"github.com/franz/albumhound/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request is one result to be downloaded
type Request struct {
	Result  provider.Result
	AlbumID string
	// Name is the job or file name; defaults to the result title
	Name string
}

func (r *Request) name() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Result.Title
}

// Client is a download client
type Client interface {
	Name() string
	Kinds() []provider.Kind
	// Add queues the download and returns the client's id for it
	Add(ctx context.Context, req *Request) (string, error)
}

// Router selects the configured client for each result kind
type Router struct {
	clients map[provider.Kind]Client
}

// NewRouterFrom builds a router from explicit clients; the first client
// serving a kind wins
func NewRouterFrom(clients ...Client) *Router {
	r := &Router{clients: make(map[provider.Kind]Client)}
	for _, c := range clients {
		if c == nil {
			continue
		}
		for _, k := range c.Kinds() {
			if _, ok := r.clients[k]; !ok {
				r.clients[k] = c
			}
		}
	}
	return r
}

// NewRouter builds the clients named in s.Downloaders. fs backs the
// blackhole client; nil means the OS filesystem.
func NewRouter(s *config.Settings, hc *http.Client, fs afero.Fs) (*Router, error) {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	d := s.Downloaders

	var clients []Client

	switch d.Usenet {
	case "sabnzbd":
		clients = append(clients, NewSABnzbd(d.SABnzbd, hc))
	case "nzbget":
		clients = append(clients, NewNZBGet(d.NZBGet, hc))
	case "blackhole":
		clients = append(clients, NewBlackhole(fs, d.BlackholeDir, hc, provider.KindNZB))
	case "":
	default:
		return nil, fmt.Errorf("%w: usenet client %q", util.ErrUnsupported, d.Usenet)
	}

	switch d.Torrent {
	case "transmission":
		clients = append(clients, NewTransmission(d.Transmission, hc))
	case "qbittorrent":
		clients = append(clients, NewQBittorrent(d.QBittorrent))
	case "deluge":
		c, err := NewDeluge(d.Deluge, hc)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	case "blackhole":
		clients = append(clients, NewBlackhole(fs, d.BlackholeDir, hc, provider.KindTorrent))
	case "":
	default:
		return nil, fmt.Errorf("%w: torrent client %q", util.ErrUnsupported, d.Torrent)
	}

	if s.Providers.Slskd.Enabled {
		clients = append(clients, NewSlskd(s.Providers.Slskd, hc))
	}

	return NewRouterFrom(clients...), nil
}

// For returns the client for a kind, or util.ErrNoClient
func (r *Router) For(kind provider.Kind) (Client, error) {
	c, ok := r.clients[kind]
	if !ok {
		return nil, fmt.Errorf("%w for %s results", util.ErrNoClient, kind)
	}
	return c, nil
}

// Supports reports whether some client takes results of kind
func (r *Router) Supports(kind provider.Kind) bool {
	_, ok := r.clients[kind]
	return ok
}

// Add dispatches req to the client for its kind and returns the client
// name and download id
func (r *Router) Add(ctx context.Context, req *Request) (string, string, error) {
	c, err := r.For(req.Result.Kind)
	if err != nil {
		return "", "", err
	}
	id, err := c.Add(ctx, req)
	if err != nil {
		return c.Name(), "", fmt.Errorf("%s: %w", c.Name(), err)
	}
	util.InfoLog("Sent %q to %s (id %s)", req.name(), c.Name(), id)
	return c.Name(), id, nil
}

// response is a fully read HTTP response
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// send performs one request and reads the whole body
func send(ctx context.Context, hc *http.Client, req *http.Request) (*response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", config.AppName)
	}
	resp, err := hc.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// fetch runs build with retry on transient failures and fails on non-2xx.
// build is called per attempt so bodies can be replayed.
func fetch(ctx context.Context, hc *http.Client, service string, build func() (*http.Request, error)) ([]byte, error) {
	return util.RetryWithBackoff(ctx, util.HTTPRetryConfig(), func() ([]byte, error) {
		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := send(ctx, hc, req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", service, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &util.HTTPStatusError{Service: service, StatusCode: resp.StatusCode, Body: snippet(resp.Body)}
		}
		return resp.Body, nil
	}, service+" request")
}

// postJSON marshals payload and POSTs it to url
func postJSON(ctx context.Context, hc *http.Client, service, url string, header http.Header, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return fetch(ctx, hc, service, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range header {
			req.Header[k] = v
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// download GETs a remote .nzb or .torrent file
func download(ctx context.Context, hc *http.Client, url string) ([]byte, error) {
	return fetch(ctx, hc, "indexer", func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	})
}

// basicAuth returns an Authorization header, empty when user is empty
func basicAuth(user, pass string) http.Header {
	h := http.Header{}
	if user != "" {
		h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+pass)))
	}
	return h
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func isMagnet(url string) bool {
	return strings.HasPrefix(strings.ToLower(url), "magnet:")
}

// magnetHash extracts the btih info hash from a magnet link
func magnetHash(magnet string) string {
	i := strings.Index(strings.ToLower(magnet), "xt=urn:btih:")
	if i < 0 {
		return ""
	}
	h := magnet[i+len("xt=urn:btih:"):]
	if j := strings.IndexByte(h, '&'); j >= 0 {
		h = h[:j]
	}
	return strings.ToLower(h)
}

func trimURL(u string) string {
	return strings.TrimRight(u, "/")
}
