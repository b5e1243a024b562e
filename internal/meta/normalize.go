// Package meta holds the text normalization, filename parsing and tag
// reading/writing shared by the searcher, the library scanner and the
// post-processor.
package meta

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	versionSuffixRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*\([^)]*?(remix|live|acoustic|demo|instrumental|radio|edit|extended|version|mix|remaster|deluxe|bonus|anniversary|edition|explicit|clean).*?\)`),
		regexp.MustCompile(`(?i)\s*\[[^\]]*?(remix|live|acoustic|demo|instrumental|radio|edit|extended|version|mix|remaster|deluxe|bonus|anniversary|edition|explicit|clean).*?\]`),
		regexp.MustCompile(`(?i)\s+(remastered|remix|live|acoustic|demo|instrumental)$`),
	}

	punctuation = strings.NewReplacer(
		".", "",
		",", "",
		"!", "",
		"?", "",
		"'", "",
		"’", "",
		"\"", "",
		":", "",
		";", "",
		"-", " ",
		"_", " ",
		"&", "and",
		"/", "",
	)
)

// NormalizeArtist normalizes an artist name for comparison
func NormalizeArtist(artist string) string {
	if artist == "" {
		return ""
	}

	artist = strings.TrimSpace(strings.ToLower(norm.NFC.String(artist)))

	// "Beatles, The" -> "the beatles"
	if strings.HasSuffix(artist, ", the") {
		artist = "the " + strings.TrimSuffix(artist, ", the")
	}

	return collapseWhitespace(punctuation.Replace(artist))
}

// NormalizeTitle normalizes a track title for comparison. Version suffixes
// like "(Remastered)" or "[Live]" are dropped.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}

	title = strings.TrimSpace(strings.ToLower(norm.NFC.String(title)))
	title = removeVersionSuffixes(title)
	return collapseWhitespace(punctuation.Replace(title))
}

// NormalizeAlbum normalizes an album title for comparison
func NormalizeAlbum(album string) string {
	if album == "" {
		return ""
	}

	album = strings.TrimSpace(strings.ToLower(norm.NFC.String(album)))
	album = removeVersionSuffixes(album)
	return collapseWhitespace(punctuation.Replace(album))
}

// CleanString performs basic string cleaning (Unicode, trim, collapse)
func CleanString(s string) string {
	if s == "" {
		return ""
	}
	return collapseWhitespace(norm.NFC.String(s))
}

// Transliterate folds s to plain ASCII ("Björk" -> "Bjork")
func Transliterate(s string) string {
	return unidecode.Unidecode(norm.NFC.String(s))
}

// Tokens splits s into lower-case ASCII words. "&" becomes "and" so that
// "Simon & Garfunkel" and "Simon and Garfunkel" share their tokens.
func Tokens(s string) []string {
	s = strings.ToLower(Transliterate(s))
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "'", "")

	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func removeVersionSuffixes(s string) string {
	for _, re := range versionSuffixRes {
		s = re.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// SanitizeFilename removes or replaces characters that are unsafe in filenames
func SanitizeFilename(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)

	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "'",
		"<", "",
		">", "",
		"|", "-",
	)
	s = replacer.Replace(s)
	s = removeControlChars(s)
	s = collapseWhitespace(s)

	// Trailing dots break Windows shares
	return strings.Trim(s, " .")
}

func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
