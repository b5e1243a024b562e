package downloader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/provider"
)

// SABnzbd queues NZB URLs with mode=addurl
type SABnzbd struct {
	cfg config.ClientSettings
	hc  *http.Client
}

func NewSABnzbd(cfg config.ClientSettings, hc *http.Client) *SABnzbd {
	return &SABnzbd{cfg: cfg, hc: hc}
}

func (s *SABnzbd) Name() string { return "sabnzbd" }

func (s *SABnzbd) Kinds() []provider.Kind { return []provider.Kind{provider.KindNZB} }

type sabResponse struct {
	Status bool     `json:"status"`
	NzoIDs []string `json:"nzo_ids"`
	Error  string   `json:"error"`
}

func (s *SABnzbd) Add(ctx context.Context, req *Request) (string, error) {
	params := url.Values{}
	params.Set("mode", "addurl")
	params.Set("name", req.Result.URL)
	params.Set("nzbname", req.name())
	params.Set("output", "json")
	params.Set("apikey", s.cfg.APIKey)
	if s.cfg.Category != "" {
		params.Set("cat", s.cfg.Category)
	}
	if s.cfg.Priority != 0 {
		params.Set("priority", strconv.Itoa(s.cfg.Priority))
	}
	endpoint := trimURL(s.cfg.URL) + "/api?" + params.Encode()

	body, err := fetch(ctx, s.hc, s.Name(), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return "", err
	}

	var resp sabResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if !resp.Status || len(resp.NzoIDs) == 0 {
		msg := resp.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return "", fmt.Errorf("rejected: %s", msg)
	}
	return resp.NzoIDs[0], nil
}
