package postprocess

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pborman/uuid"
	cca "gopkg.in/mineo/gocaa.v1"

	"github.com/franz/albumhound/internal/util"
)

// CoverSource fetches the front cover of a release
type CoverSource interface {
	Front(ctx context.Context, releaseID string) ([]byte, error)
}

// caaClient is the part of the gocaa client we use
type caaClient interface {
	GetReleaseFront(mbid uuid.UUID, size int) (cca.CoverArtImage, error)
}

// CoverArtArchive loads covers from coverartarchive.org
type CoverArtArchive struct {
	client caaClient
}

// NewCoverArtArchive creates a Cover Art Archive source
func NewCoverArtArchive(userAgent string) *CoverArtArchive {
	return &CoverArtArchive{client: cca.NewCAAClient(userAgent)}
}

// Front returns the 500px front image of a release. A release without
// artwork gives util.ErrNotFound.
func (c *CoverArtArchive) Front(ctx context.Context, releaseID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mbid := cca.StringToUUID(releaseID)
	if mbid == nil {
		return nil, fmt.Errorf("invalid release id %q", releaseID)
	}

	img, err := c.client.GetReleaseFront(mbid, cca.ImageSize500)
	if err != nil {
		var httpErr cca.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("cover for release %s: %w", releaseID, util.ErrNotFound)
		}
		return nil, fmt.Errorf("cover art archive: %w", err)
	}
	return img.Data, nil
}
