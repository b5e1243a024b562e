package downloader

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/provider"
	"github.com/franz/albumhound/internal/util"
)

const transmissionSessionHeader = "X-Transmission-Session-Id"

// Transmission adds torrents over its RPC interface. The first call of a
// session is answered with 409 and a session id that must be echoed back.
type Transmission struct {
	cfg config.ClientSettings
	hc  *http.Client

	mu      sync.Mutex
	session string
}

func NewTransmission(cfg config.ClientSettings, hc *http.Client) *Transmission {
	return &Transmission{cfg: cfg, hc: hc}
}

func (t *Transmission) Name() string { return "transmission" }

func (t *Transmission) Kinds() []provider.Kind { return []provider.Kind{provider.KindTorrent} }

type transmissionTorrent struct {
	ID         int    `json:"id"`
	HashString string `json:"hashString"`
	Name       string `json:"name"`
}

type transmissionResponse struct {
	Result    string `json:"result"`
	Arguments struct {
		Added     *transmissionTorrent `json:"torrent-added"`
		Duplicate *transmissionTorrent `json:"torrent-duplicate"`
	} `json:"arguments"`
}

func (t *Transmission) endpoint() string {
	u := trimURL(t.cfg.URL)
	if u == "" {
		u = "http://localhost:9091"
	}
	return u + "/transmission/rpc"
}

func (t *Transmission) Add(ctx context.Context, req *Request) (string, error) {
	args := map[string]any{"filename": req.Result.URL}
	if t.cfg.DownloadDir != "" {
		args["download-dir"] = t.cfg.DownloadDir
	}
	payload, err := json.Marshal(map[string]any{"method": "torrent-add", "arguments": args})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	body, err := util.RetryWithBackoff(ctx, util.HTTPRetryConfig(), func() ([]byte, error) {
		return t.call(ctx, payload)
	}, "transmission request")
	if err != nil {
		return "", err
	}

	var resp transmissionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Result != "success" {
		return "", fmt.Errorf("rejected: %s", resp.Result)
	}

	torrent := resp.Arguments.Added
	if torrent == nil {
		torrent = resp.Arguments.Duplicate
	}
	if torrent == nil {
		return "", fmt.Errorf("response carries no torrent")
	}
	return torrent.HashString, nil
}

// call posts once, repeating a single time after a session handshake
func (t *Transmission) call(ctx context.Context, payload []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequest(http.MethodPost, t.endpoint(), bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if t.session != "" {
			req.Header.Set(transmissionSessionHeader, t.session)
		}
		if t.cfg.Username != "" {
			req.SetBasicAuth(t.cfg.Username, t.cfg.Password)
		}

		resp, err := send(ctx, t.hc, req)
		if err != nil {
			return nil, fmt.Errorf("transmission: %w", err)
		}
		if resp.StatusCode == http.StatusConflict {
			t.session = resp.Header.Get(transmissionSessionHeader)
			util.DebugLog("transmission: new session id")
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &util.HTTPStatusError{Service: "transmission", StatusCode: resp.StatusCode, Body: snippet(resp.Body)}
		}
		return resp.Body, nil
	}
	return nil, fmt.Errorf("transmission: session handshake failed")
}
