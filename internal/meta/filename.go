package meta

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// FilenameMeta holds metadata parsed from a file name and its directories
type FilenameMeta struct {
	Artist     string
	Album      string
	Title      string
	Track      int
	Disc       int
	Year       string
	Confidence float64 // 0.0-1.0
}

type filenamePattern struct {
	re         *regexp.Regexp
	parse      func(*FilenameMeta, []string)
	confidence float64
}

// Tried in order, first match wins
var filenamePatterns = []filenamePattern{
	{
		// "01 - Artist - Title"
		re: regexp.MustCompile(`^(\d+)\s*[-_.]\s*(.+?)\s+[-_]\s+(.+)$`),
		parse: func(m *FilenameMeta, g []string) {
			m.Track, _ = strconv.Atoi(g[1])
			m.Artist = strings.TrimSpace(g[2])
			m.Title = strings.TrimSpace(g[3])
		},
		confidence: 0.8,
	},
	{
		// "01 - Title"
		re: regexp.MustCompile(`^(\d+)\s*[-_.]\s*(.+)$`),
		parse: func(m *FilenameMeta, g []string) {
			m.Track, _ = strconv.Atoi(g[1])
			m.Title = strings.ReplaceAll(strings.TrimSpace(g[2]), "_", " ")
		},
		confidence: 0.7,
	},
	{
		// "01 Title"
		re: regexp.MustCompile(`^(\d{1,3})\s+(.+)$`),
		parse: func(m *FilenameMeta, g []string) {
			m.Track, _ = strconv.Atoi(g[1])
			m.Title = strings.TrimSpace(g[2])
		},
		confidence: 0.6,
	},
	{
		// "Artist - Title"
		re: regexp.MustCompile(`^(.+?)\s+-\s+(.+)$`),
		parse: func(m *FilenameMeta, g []string) {
			m.Artist = strings.TrimSpace(g[1])
			m.Title = strings.TrimSpace(g[2])
		},
		confidence: 0.5,
	},
}

var (
	discDirRe    = regexp.MustCompile(`^(?i)(disc|cd|disk)\s*\d+$`)
	discNumberRe = regexp.MustCompile(`(?i)(disc|cd|disk)\s*(\d+)`)
	yearPrefixRe = regexp.MustCompile(`^(\d{4})\s*[-_.]\s*(.+)$`)
	yearSuffixRe = regexp.MustCompile(`^(.+?)\s*[\(\[](\d{4})[\)\]]$`)
	artistDashRe = regexp.MustCompile(`^(.+?)\s+-\s+(.+)$`)
)

// ParseFilename extracts track number, title and artist from a file name,
// and album, year and disc from its directories
func ParseFilename(path string) *FilenameMeta {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	meta := &FilenameMeta{Confidence: 0.3}

	for _, p := range filenamePatterns {
		if g := p.re.FindStringSubmatch(name); g != nil {
			p.parse(meta, g)
			meta.Confidence = p.confidence
			break
		}
	}

	if meta.Title == "" {
		meta.Title = name
		meta.Confidence = 0.2
	}

	if meta.Track > 0 {
		meta.Confidence = min(meta.Confidence+0.15, 1.0)
	}

	meta.inferFromPath(filepath.Dir(path))
	return meta
}

// inferFromPath handles the usual Artist/Album/tracks and
// Artist/Album/Disc N/tracks layouts, plus "Artist - Album" folders
func (m *FilenameMeta) inferFromPath(dir string) {
	parts := strings.Split(filepath.Clean(dir), string(filepath.Separator))
	if len(parts) < 2 {
		return
	}

	albumDir := parts[len(parts)-1]
	artistDir := parts[len(parts)-2]

	if g := discNumberRe.FindStringSubmatch(albumDir); g != nil {
		m.Disc, _ = strconv.Atoi(g[2])
	}
	if discDirRe.MatchString(albumDir) && len(parts) >= 3 {
		albumDir = parts[len(parts)-2]
		artistDir = parts[len(parts)-3]
	}

	album := albumDir
	if g := yearPrefixRe.FindStringSubmatch(album); g != nil {
		m.Year = g[1]
		album = strings.TrimSpace(g[2])
	} else if g := yearSuffixRe.FindStringSubmatch(album); g != nil {
		album = strings.TrimSpace(g[1])
		m.Year = g[2]
	}

	// "Artist - Album" folder directly under the root
	if g := artistDashRe.FindStringSubmatch(album); g != nil && m.Artist == "" {
		m.Artist = strings.TrimSpace(g[1])
		album = strings.TrimSpace(g[2])
	}

	if m.Album == "" {
		m.Album = album
	}
	if m.Artist == "" {
		m.Artist = artistDir
	}
}

// FillFromFilename fills tag fields that are still empty with what
// ParseFilename infers. Artist and title need a confident parse; album,
// track and disc from the path are usually reliable.
func FillFromFilename(t *Tags, path string) {
	fm := ParseFilename(path)

	filled := false
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			filled = true
		}
	}

	if fm.Confidence >= 0.5 {
		fill(&t.Artist, fm.Artist)
	}
	// Any title beats losing the track
	titleThreshold := 0.5
	if t.Title == "" {
		titleThreshold = 0.2
	}
	if fm.Confidence >= titleThreshold {
		fill(&t.Title, fm.Title)
	}
	fill(&t.Album, fm.Album)

	if t.Track == 0 && fm.Track > 0 {
		t.Track = fm.Track
		filled = true
	}
	if t.Disc == 0 && fm.Disc > 0 {
		t.Disc = fm.Disc
		filled = true
	}
	if t.Year == 0 && fm.Year != "" {
		t.Year, _ = strconv.Atoi(fm.Year)
		filled = true
	}

	t.FromFilename = t.FromFilename || filled
}
