package downloader

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/provider"
)

// Deluge talks to the Web UI JSON-RPC endpoint. auth.login sets a session
// cookie that the private cookie jar keeps for later calls.
type Deluge struct {
	cfg config.ClientSettings
	hc  *http.Client

	mu       sync.Mutex
	loggedIn bool
	seq      atomic.Int64
}

func NewDeluge(cfg config.ClientSettings, hc *http.Client) (*Deluge, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if hc == nil {
		hc = &http.Client{}
	}
	// Copy so the shared client keeps its own jar
	own := *hc
	own.Jar = jar
	return &Deluge{cfg: cfg, hc: &own}, nil
}

func (d *Deluge) Name() string { return "deluge" }

func (d *Deluge) Kinds() []provider.Kind { return []provider.Kind{provider.KindTorrent} }

type delugeResponse struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
	ID int64 `json:"id"`
}

func (d *Deluge) endpoint() string {
	u := trimURL(d.cfg.URL)
	if u == "" {
		u = "http://localhost:8112"
	}
	return u + "/json"
}

func (d *Deluge) rpc(ctx context.Context, method string, params ...any) (jsoniter.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	call := map[string]any{"method": method, "params": params, "id": d.seq.Add(1)}

	body, err := postJSON(ctx, d.hc, d.Name(), d.endpoint(), nil, call)
	if err != nil {
		return nil, err
	}

	var resp delugeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s: %s (code %d)", method, resp.Error.Message, resp.Error.Code)
	}
	return resp.Result, nil
}

func (d *Deluge) login(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loggedIn {
		return nil
	}

	raw, err := d.rpc(ctx, "auth.login", d.cfg.Password)
	if err != nil {
		return err
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil || !ok {
		return fmt.Errorf("deluge login rejected")
	}
	d.loggedIn = true
	return nil
}

func (d *Deluge) Add(ctx context.Context, req *Request) (string, error) {
	if err := d.login(ctx); err != nil {
		return "", err
	}

	opts := map[string]any{}
	if d.cfg.DownloadDir != "" {
		opts["download_location"] = d.cfg.DownloadDir
	}

	method := "core.add_torrent_url"
	if isMagnet(req.Result.URL) {
		method = "core.add_torrent_magnet"
	}

	raw, err := d.rpc(ctx, method, req.Result.URL, opts)
	if err != nil {
		d.mu.Lock()
		d.loggedIn = false
		d.mu.Unlock()
		return "", err
	}

	var id string
	if err := json.Unmarshal(raw, &id); err != nil || id == "" {
		// null result means deluge already has the torrent
		if h := magnetHash(req.Result.URL); h != "" {
			return h, nil
		}
		return "", fmt.Errorf("%s returned no torrent id", method)
	}
	return id, nil
}
