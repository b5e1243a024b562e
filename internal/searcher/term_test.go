package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildTerm(t *testing.T) {
	tests := []struct {
		name        string
		artist      string
		album       string
		year        int
		includeYear bool
		override    string
		want        string
	}{
		{"plain", "Slint", "Spiderland", 1991, false, "", "Slint Spiderland"},
		{"year appended", "AC/DC", "Back in Black", 1980, true, "", "AC DC Back in Black 1980"},
		{"unknown year skipped", "Slint", "Spiderland", 0, true, "", "Slint Spiderland"},
		{"transliterated", "Sigur Rós", "Ágætis byrjun", 1999, false, "", "Sigur Ros Agaetis byrjun"},
		{"ampersand", "Simon & Garfunkel", "Bookends", 0, false, "", "Simon Garfunkel Bookends"},
		{"apostrophe", "Guns N' Roses", "Appetite for Destruction", 0, false, "", "Guns N Roses Appetite for Destruction"},
		{"punctuation", "Sunn O)))", "Monoliths & Dimensions", 0, false, "", "Sunn O Monoliths Dimensions"},
		{"various artists", "Various Artists", "Pulp Fiction: Music From the Motion Picture", 1994, false, "", "Pulp Fiction Music From the Motion Picture"},
		{"override wins", "Slint", "Spiderland", 1991, true, "  slint spiderland remaster ", "slint spiderland remaster"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildTerm(tt.artist, tt.album, tt.year, tt.includeYear, tt.override))
		})
	}
}

func TestIsVariousArtists(t *testing.T) {
	assert.True(t, IsVariousArtists("Various Artists"))
	assert.True(t, IsVariousArtists(" various artists "))
	assert.False(t, IsVariousArtists("Various Cruelties"))
}
