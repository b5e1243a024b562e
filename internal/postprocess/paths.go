package postprocess

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/franz/albumhound/internal/meta"
)

// PathValues fill the $-placeholders of the folder and file formats
type PathValues struct {
	Artist string
	Album  string
	Year   int
	Type   string
	Title  string
	Track  int
	Disc   int
}

var (
	emptyBracketsRe = regexp.MustCompile(`\s*(\(\s*\)|\[\s*\])`)
	spacesRe        = regexp.MustCompile(`\s{2,}`)
)

// RenderPath expands $Artist, $Album, $Year, $Type, $Title, $Track, $Disc
// and $First in format. Lower-case variants ($artist, $album, $title)
// give lower-cased values. Values are sanitized so that only the "/" of
// the format separates directories. The result uses the OS separator.
func RenderPath(format string, v PathValues) string {
	year := ""
	if v.Year > 0 {
		year = strconv.Itoa(v.Year)
	}
	track := ""
	if v.Track > 0 {
		track = fmt.Sprintf("%02d", v.Track)
	}
	disc := ""
	if v.Disc > 0 {
		disc = strconv.Itoa(v.Disc)
	}

	artist := component(v.Artist)
	album := component(v.Album)
	title := component(v.Title)

	r := strings.NewReplacer(
		"$Artist", artist,
		"$artist", strings.ToLower(artist),
		"$Album", album,
		"$album", strings.ToLower(album),
		"$Title", title,
		"$title", strings.ToLower(title),
		"$Track", track,
		"$Type", component(v.Type),
		"$Year", year,
		"$Disc", disc,
		"$First", firstLetter(v.Artist),
	)

	parts := strings.Split(r.Replace(format), "/")
	out := parts[:0]
	for _, p := range parts {
		p = emptyBracketsRe.ReplaceAllString(p, "")
		p = spacesRe.ReplaceAllString(p, " ")
		p = strings.Trim(strings.TrimSpace(p), "-_ .")
		if p != "" {
			out = append(out, p)
		}
	}
	return filepath.Join(out...)
}

func component(s string) string {
	s = meta.SanitizeFilename(s)
	if len(s) > 200 {
		s = strings.TrimRight(s[:200], " _.")
		for !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
	}
	return s
}

// firstLetter is the index letter of an artist, ignoring a leading "The"
// and using "0-9" for digits
func firstLetter(artist string) string {
	a := strings.TrimSpace(meta.Transliterate(artist))
	if len(a) > 4 && strings.EqualFold(a[:4], "the ") {
		a = strings.TrimSpace(a[4:])
	}
	for _, r := range a {
		switch {
		case unicode.IsDigit(r):
			return "0-9"
		case unicode.IsLetter(r):
			return strings.ToUpper(string(r))
		}
	}
	return "_"
}
