package downloader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/provider"
)

// Slskd enqueues Soulseek transfers for the files of a grouped result
type Slskd struct {
	cfg config.SlskdSettings
	hc  *http.Client
}

func NewSlskd(cfg config.SlskdSettings, hc *http.Client) *Slskd {
	return &Slskd{cfg: cfg, hc: hc}
}

func (s *Slskd) Name() string { return "slskd" }

func (s *Slskd) Kinds() []provider.Kind { return []provider.Kind{provider.KindSoulseek} }

// Add returns "user/dir" as the download id
func (s *Slskd) Add(ctx context.Context, req *Request) (string, error) {
	r := req.Result
	if r.Username == "" || len(r.Files) == 0 {
		return "", fmt.Errorf("result has no soulseek user or files")
	}

	header := http.Header{}
	if s.cfg.APIKey != "" {
		header.Set("X-API-Key", s.cfg.APIKey)
	}

	endpoint := trimURL(s.cfg.URL) + "/api/v0/transfers/downloads/" + url.PathEscape(r.Username)
	if _, err := postJSON(ctx, s.hc, s.Name(), endpoint, header, r.Files); err != nil {
		return "", err
	}
	return strings.TrimPrefix(r.URL, "slsk://"), nil
}
