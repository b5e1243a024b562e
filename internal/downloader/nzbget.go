package downloader

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/meta"
	"github.com/franz/albumhound/internal/provider"
)

// NZBGet fetches the NZB from the indexer and uploads it with the
// JSON-RPC append method
type NZBGet struct {
	cfg config.ClientSettings
	hc  *http.Client
}

func NewNZBGet(cfg config.ClientSettings, hc *http.Client) *NZBGet {
	return &NZBGet{cfg: cfg, hc: hc}
}

func (n *NZBGet) Name() string { return "nzbget" }

func (n *NZBGet) Kinds() []provider.Kind { return []provider.Kind{provider.KindNZB} }

type rpcRequest struct {
	Version string `json:"jsonrpc,omitempty"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type nzbgetResponse struct {
	Result int `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (n *NZBGet) Add(ctx context.Context, req *Request) (string, error) {
	nzb, err := download(ctx, n.hc, req.Result.URL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nzb: %w", err)
	}

	call := rpcRequest{
		Version: "2.0",
		Method:  "append",
		ID:      1,
		Params: []any{
			meta.SanitizeFilename(req.name()) + ".nzb",
			base64.StdEncoding.EncodeToString(nzb),
			n.cfg.Category,
			n.cfg.Priority,
			false,   // AddToTop
			false,   // AddPaused
			"",      // DupeKey
			0,       // DupeScore
			"SCORE", // DupeMode
			[]any{}, // PPParameters
		},
	}

	header := basicAuth(n.cfg.Username, n.cfg.Password)
	body, err := postJSON(ctx, n.hc, n.Name(), trimURL(n.cfg.URL)+"/jsonrpc", header, call)
	if err != nil {
		return "", err
	}

	var resp nzbgetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.Result <= 0 {
		return "", fmt.Errorf("append rejected")
	}
	return strconv.Itoa(resp.Result), nil
}
