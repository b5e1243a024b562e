package downloader

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gosimple/slug"
	"github.com/spf13/afero"

	"github.com/franz/albumhound/internal/provider"
)

// Blackhole drops .nzb, .torrent or .magnet files into a directory
// watched by an external client
type Blackhole struct {
	fs    afero.Fs
	dir   string
	hc    *http.Client
	kinds []provider.Kind
}

func NewBlackhole(fs afero.Fs, dir string, hc *http.Client, kinds ...provider.Kind) *Blackhole {
	if len(kinds) == 0 {
		kinds = []provider.Kind{provider.KindNZB, provider.KindTorrent}
	}
	return &Blackhole{fs: fs, dir: dir, hc: hc, kinds: kinds}
}

func (b *Blackhole) Name() string { return "blackhole" }

func (b *Blackhole) Kinds() []provider.Kind { return b.kinds }

// Add writes the file through a .part temp name so the watcher never
// picks up a half-written file. The id is the file name.
func (b *Blackhole) Add(ctx context.Context, req *Request) (string, error) {
	if b.dir == "" {
		return "", fmt.Errorf("blackhole directory not configured")
	}

	name := slug.Make(req.name())
	if name == "" {
		name = "release"
	}

	var (
		data []byte
		ext  string
		err  error
	)
	switch {
	case req.Result.Kind == provider.KindTorrent && isMagnet(req.Result.URL):
		data, ext = []byte(req.Result.URL), ".magnet"
	case req.Result.Kind == provider.KindTorrent:
		ext = ".torrent"
		data, err = download(ctx, b.hc, req.Result.URL)
	case req.Result.Kind == provider.KindNZB:
		ext = ".nzb"
		data, err = download(ctx, b.hc, req.Result.URL)
	default:
		return "", fmt.Errorf("blackhole cannot take %s results", req.Result.Kind)
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", ext, err)
	}

	if err := b.fs.MkdirAll(b.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create blackhole dir: %w", err)
	}

	final := filepath.Join(b.dir, name+ext)
	tmp := final + ".part"
	if err := afero.WriteFile(b.fs, tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := b.fs.Rename(tmp, final); err != nil {
		b.fs.Remove(tmp)
		return "", fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return filepath.Base(final), nil
}
