package downloader

import (
	"context"
	"fmt"
	"sync"

	qbt "github.com/autobrr/go-qbittorrent"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/provider"
)

// QBittorrent adds torrents through the Web API
type QBittorrent struct {
	cfg    config.ClientSettings
	client *qbt.Client

	mu       sync.Mutex
	loggedIn bool
}

func NewQBittorrent(cfg config.ClientSettings) *QBittorrent {
	host := cfg.URL
	if host == "" {
		host = "http://localhost:8080"
	}
	return &QBittorrent{
		cfg: cfg,
		client: qbt.NewClient(qbt.Config{
			Host:     host,
			Username: cfg.Username,
			Password: cfg.Password,
		}),
	}
}

func (q *QBittorrent) Name() string { return "qbittorrent" }

func (q *QBittorrent) Kinds() []provider.Kind { return []provider.Kind{provider.KindTorrent} }

func (q *QBittorrent) login(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.loggedIn {
		return nil
	}
	if err := q.client.LoginCtx(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	q.loggedIn = true
	return nil
}

func (q *QBittorrent) options(req *Request) map[string]string {
	opts := map[string]string{}
	if q.cfg.Category != "" {
		opts["category"] = q.cfg.Category
	}
	if q.cfg.DownloadDir != "" {
		opts["savepath"] = q.cfg.DownloadDir
	}
	if name := req.name(); name != "" {
		opts["rename"] = name
	}
	return opts
}

// Add returns the info hash for magnets. The Web API does not report the
// hash for URL adds, so the URL itself is the id there.
func (q *QBittorrent) Add(ctx context.Context, req *Request) (string, error) {
	if err := q.login(ctx); err != nil {
		return "", err
	}

	if err := q.client.AddTorrentFromUrlCtx(ctx, req.Result.URL, q.options(req)); err != nil {
		// Session may have expired
		q.mu.Lock()
		q.loggedIn = false
		q.mu.Unlock()
		return "", fmt.Errorf("add failed: %w", err)
	}

	if isMagnet(req.Result.URL) {
		return magnetHash(req.Result.URL), nil
	}
	return req.Result.URL, nil
}
