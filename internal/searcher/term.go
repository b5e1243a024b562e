package searcher

import (
	"strconv"
	"strings"

	"github.com/gosimple/unidecode"
)

// termReplacer blanks characters indexers treat as operators or choke on
var termReplacer = strings.NewReplacer(
	"&", " ", "=", " ", "?", " ", "!", " ", ":", " ", ";", " ",
	"/", " ", "\\", " ", "*", " ", "\"", " ", "+", " ", "(", " ",
	")", " ", "[", " ", "]", " ", "#", " ", "|", " ", ",", " ",
)

// IsVariousArtists reports whether name is the MusicBrainz compilation artist
func IsVariousArtists(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), "various artists")
}

// BuildTerm prepares the free-text search term for an album. A non-empty
// override is used as is.
func BuildTerm(artist, album string, year int, includeYear bool, override string) string {
	if o := strings.TrimSpace(override); o != "" {
		return o
	}

	parts := make([]string, 0, 3)
	if !IsVariousArtists(artist) {
		parts = append(parts, cleanTerm(artist))
	}
	parts = append(parts, cleanTerm(album))
	if includeYear && year > 0 {
		parts = append(parts, strconv.Itoa(year))
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func cleanTerm(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ReplaceAll(s, "'", "")
	s = termReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
