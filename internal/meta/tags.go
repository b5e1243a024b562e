package meta

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/franz/albumhound/internal/util"
)

// AudioExtensions are the audio file extensions the library understands
var AudioExtensions = []string{
	".mp3",
	".flac",
	".m4a",
	".aac",
	".ogg",
	".opus",
	".wav",
	".aiff",
	".aif",
	".wma",
	".ape",
	".wv",  // WavPack
	".mpc", // Musepack
}

var audioExtSet = func() map[string]bool {
	m := make(map[string]bool, len(AudioExtensions))
	for _, ext := range AudioExtensions {
		m[ext] = true
	}
	return m
}()

// IsAudioFile checks if a path has a supported audio extension
func IsAudioFile(path string) bool {
	return audioExtSet[strings.ToLower(filepath.Ext(path))]
}

// FormatFromExt maps a file extension to a format name ("FLAC", "MP3", ...)
func FormatFromExt(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".m4a":
		return "AAC"
	case ".aif":
		return "AIFF"
	case ".wv":
		return "WAVPACK"
	case "":
		return ""
	default:
		return strings.ToUpper(strings.TrimPrefix(ext, "."))
	}
}

// Tags is the subset of an audio file's tags the library cares about
type Tags struct {
	Artist      string
	AlbumArtist string
	Album       string
	Title       string
	Year        int
	Track       int
	TrackTotal  int
	Disc        int
	DiscTotal   int
	Format      string
	// FromFilename is set when some fields were inferred from the path
	FromFilename bool
}

// ReadTags reads tags with dhowden/tag and fills whatever is missing from
// the file and directory names. Unreadable tags are not an error.
func ReadTags(path string) (*Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	t := &Tags{Format: FormatFromExt(path)}

	m, err := tag.ReadFrom(f)
	if err == nil {
		t.Artist = CleanString(m.Artist())
		t.AlbumArtist = CleanString(m.AlbumArtist())
		t.Album = CleanString(m.Album())
		t.Title = CleanString(m.Title())
		t.Year = m.Year()
		t.Track, t.TrackTotal = m.Track()
		t.Disc, t.DiscTotal = m.Disc()
	} else if err != tag.ErrNoTagsFound {
		util.DebugLog("No readable tags in %s: %v", path, err)
	}

	FillFromFilename(t, path)
	return t, nil
}

// ArtistForPath prefers the album artist over the track artist
func (t *Tags) ArtistForPath() string {
	if t.AlbumArtist != "" {
		return t.AlbumArtist
	}
	if t.Artist != "" {
		return t.Artist
	}
	return "Unknown Artist"
}
