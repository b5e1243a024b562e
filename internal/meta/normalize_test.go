package meta

import (
	"reflect"
	"testing"
)

func TestNormalizeArtist(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"The Beatles", "the beatles"},
		{"Beatles, The", "the beatles"},
		{"AC/DC", "acdc"},
		{"  Artist Name  ", "artist name"},
		{"Artist-Name", "artist name"},
		{"Artist_Name", "artist name"},
		{"Simon & Garfunkel", "simon and garfunkel"},
		{"Björk", "björk"},
		{"", ""},
	}

	for _, tt := range tests {
		result := NormalizeArtist(tt.input)
		if result != tt.expected {
			t.Errorf("NormalizeArtist(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Song Title", "song title"},
		{"SONG TITLE", "song title"},
		{"  Song  Title  ", "song title"},

		{"Song (Remix)", "song"},
		{"Song [Live]", "song"},
		{"Song (Acoustic Version)", "song"},
		{"Song [2011 Remaster]", "song"},
		{"Song - Remix", "song"},

		{"Song: Title!", "song title"},
		{"Song, Title?", "song title"},
		{"Don’t Stop", "dont stop"},

		{"Café", "café"},
		{"", ""},
	}

	for _, tt := range tests {
		result := NormalizeTitle(tt.input)
		if result != tt.expected {
			t.Errorf("NormalizeTitle(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestNormalizeAlbum(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"OK Computer", "ok computer"},
		{"OK Computer (Deluxe Edition)", "ok computer"},
		{"Kid A [2000 Remaster]", "kid a"},
		{"Hail to the Thief", "hail to the thief"},
	}

	for _, tt := range tests {
		if got := NormalizeAlbum(tt.input); got != tt.expected {
			t.Errorf("NormalizeAlbum(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Sigur Rós", []string{"sigur", "ros"}},
		{"Simon & Garfunkel", []string{"simon", "and", "garfunkel"}},
		{"Guns N' Roses", []string{"guns", "n", "roses"}},
		{"Radiohead-OK_Computer.1997.FLAC", []string{"radiohead", "ok", "computer", "1997", "flac"}},
		{"", nil},
	}

	for _, tt := range tests {
		got := Tokens(tt.input)
		if len(got) == 0 && len(tt.expected) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("Tokens(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestTransliterate(t *testing.T) {
	if got := Transliterate("Motörhead"); got != "Motorhead" {
		t.Errorf("Transliterate() = %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Normal Title", "Normal Title"},
		{"Artist/Album", "Artist-Album"},
		{"Title: Subtitle", "Title- Subtitle"},
		{"Title? Yes!", "Title Yes!"},
		{"Title\"Quote\"", "Title'Quote'"},
		{"Title|Pipe", "Title-Pipe"},
		{"Title<>", "Title"},
		{"Artist*", "Artist"},
		{"  Title  ", "Title"},
		{"Title...", "Title"},
		{"", ""},
	}

	for _, tt := range tests {
		result := SanitizeFilename(tt.input)
		if result != tt.expected {
			t.Errorf("SanitizeFilename(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestCleanString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  multiple   spaces  ", "multiple spaces"},
		{"tabs\t\there", "tabs here"},
		{"newlines\n\nhere", "newlines here"},
		{"Café", "Café"},
		{"", ""},
	}

	for _, tt := range tests {
		result := CleanString(tt.input)
		if result != tt.expected {
			t.Errorf("CleanString(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}
