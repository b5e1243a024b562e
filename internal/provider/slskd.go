package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/util"
)

var audioExtensions = map[string]string{
	"flac": "FLAC",
	"mp3":  "MP3",
	"m4a":  "AAC",
	"aac":  "AAC",
	"ogg":  "OGG",
	"opus": "OPUS",
	"wav":  "WAV",
	"alac": "ALAC",
}

// Slskd searches the Soulseek network through a slskd daemon
type Slskd struct {
	baseURL      string
	apiKey       string
	timeout      time.Duration
	pollInterval time.Duration
	req          *requester
}

// NewSlskd creates the Soulseek provider
func NewSlskd(cfg config.SlskdSettings, client *http.Client) *Slskd {
	timeout := cfg.SearchTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Slskd{
		baseURL:      strings.TrimRight(cfg.URL, "/") + "/api/v0",
		apiKey:       cfg.APIKey,
		timeout:      timeout,
		pollInterval: 2 * time.Second,
		req:          newRequester("slskd", client, 5),
	}
}

func (s *Slskd) Name() string { return "slskd" }
func (s *Slskd) Kind() Kind   { return KindSoulseek }

type slskdSearch struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	IsComplete bool   `json:"isComplete"`
}

type slskdResponse struct {
	Username          string      `json:"username"`
	HasFreeUploadSlot bool        `json:"hasFreeUploadSlot"`
	UploadSpeed       int64       `json:"uploadSpeed"`
	QueueLength       int         `json:"queueLength"`
	Files             []slskdFile `json:"files"`
}

type slskdFile struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	BitRate   int    `json:"bitRate"`
	Extension string `json:"extension"`
	Length    int    `json:"length"`
}

func (s *Slskd) send(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, err
		}
	}
	return s.req.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(method, s.baseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-Key", s.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// Search starts a network search, polls until slskd marks it complete and
// groups the returned files into one result per user directory
func (s *Slskd) Search(ctx context.Context, q Query) ([]Result, error) {
	id := uuid.NewString()
	_, err := s.send(ctx, http.MethodPost, "/searches", map[string]interface{}{
		"id":            id,
		"searchText":    q.Term,
		"searchTimeout": s.timeout.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("slskd: failed to start search: %w", err)
	}
	defer func() {
		// Searches pile up in the slskd UI otherwise
		if _, err := s.send(context.Background(), http.MethodDelete, "/searches/"+id, nil); err != nil {
			util.DebugLog("slskd: failed to delete search %s: %v", id, err)
		}
	}()

	if err := s.wait(ctx, id); err != nil {
		return nil, err
	}

	body, err := s.send(ctx, http.MethodGet, "/searches/"+id+"/responses", nil)
	if err != nil {
		return nil, fmt.Errorf("slskd: failed to fetch responses: %w", err)
	}
	var responses []slskdResponse
	if err := json.Unmarshal(body, &responses); err != nil {
		return nil, fmt.Errorf("slskd: failed to decode responses: %w", err)
	}
	return groupSlskdResponses(responses), nil
}

func (s *Slskd) wait(ctx context.Context, id string) error {
	deadline := time.Now().Add(s.timeout + 15*time.Second)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		body, err := s.send(ctx, http.MethodGet, "/searches/"+id, nil)
		if err != nil {
			return fmt.Errorf("slskd: failed to poll search: %w", err)
		}
		var state slskdSearch
		if err := json.Unmarshal(body, &state); err != nil {
			return fmt.Errorf("slskd: failed to decode search state: %w", err)
		}
		if state.IsComplete || strings.HasPrefix(state.State, "Completed") {
			return nil
		}
		if time.Now().After(deadline) {
			util.WarnLog("slskd: search %s still %s after %v, using partial results", id, state.State, s.timeout)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// groupSlskdResponses turns per-file answers into album-sized results,
// one per (user, directory)
func groupSlskdResponses(responses []slskdResponse) []Result {
	type key struct{ user, dir string }
	groups := make(map[key]*Result)
	var order []key

	for _, resp := range responses {
		for _, f := range resp.Files {
			ext := strings.ToLower(strings.TrimPrefix(f.Extension, "."))
			if ext == "" {
				ext = strings.ToLower(strings.TrimPrefix(path.Ext(toSlash(f.Filename)), "."))
			}
			format, ok := audioExtensions[ext]
			if !ok {
				continue
			}

			dir := path.Dir(toSlash(f.Filename))
			k := key{resp.Username, dir}
			r, seen := groups[k]
			if !seen {
				r = &Result{
					Title:    slskdTitle(dir),
					URL:      "slsk://" + resp.Username + "/" + strings.TrimLeft(dir, "/"),
					Provider: "slskd",
					Kind:     KindSoulseek,
					Username: resp.Username,
					Format:   format,
				}
				if resp.HasFreeUploadSlot {
					r.Seeders = 1
				}
				groups[k] = r
				order = append(order, k)
			}
			r.Files = append(r.Files, RemoteFile{Filename: f.Filename, Size: f.Size})
			r.Size += f.Size
			if f.BitRate > r.Bitrate {
				r.Bitrate = f.BitRate
			}
			if r.Format != format {
				r.Format = "MIXED"
			}
		}
	}

	results := make([]Result, 0, len(order))
	for _, k := range order {
		r := groups[k]
		sort.Slice(r.Files, func(i, j int) bool { return r.Files[i].Filename < r.Files[j].Filename })
		results = append(results, *r)
	}
	return results
}

// slskdTitle prefixes the album folder with its parent when the parent
// is not already part of the name ("Radiohead/OK Computer")
func slskdTitle(dir string) string {
	base := path.Base(dir)
	parent := path.Base(path.Dir(dir))
	if parent == "." || parent == "/" || parent == "" {
		return base
	}
	if strings.Contains(base, " - ") || strings.Contains(strings.ToLower(base), strings.ToLower(parent)) {
		return base
	}
	return parent + " - " + base
}

// Soulseek paths use Windows separators
func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
