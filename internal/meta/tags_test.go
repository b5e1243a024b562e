package meta

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsAudioFile(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"a.flac", true},
		{"a.FLAC", true},
		{"a.mp3", true},
		{"a.wv", true},
		{"cover.jpg", false},
		{"album.cue", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsAudioFile(tt.path); got != tt.expected {
			t.Errorf("IsAudioFile(%q) = %v, expected %v", tt.path, got, tt.expected)
		}
	}
}

func TestFormatFromExt(t *testing.T) {
	tests := map[string]string{
		"a.flac": "FLAC",
		"a.mp3":  "MP3",
		"a.m4a":  "AAC",
		"a.wv":   "WAVPACK",
		"a":      "",
	}
	for path, expected := range tests {
		if got := FormatFromExt(path); got != expected {
			t.Errorf("FormatFromExt(%q) = %q, expected %q", path, got, expected)
		}
	}
}

func TestReadTags_UntaggedFallsBackToPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Portishead", "Dummy (1994)")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "03 - Sour Times.flac")
	if err := os.WriteFile(path, []byte("not really audio"), 0644); err != nil {
		t.Fatal(err)
	}

	tags, err := ReadTags(path)
	if err != nil {
		t.Fatalf("ReadTags() error = %v", err)
	}
	if tags.Artist != "Portishead" || tags.Album != "Dummy" || tags.Title != "Sour Times" {
		t.Errorf("ReadTags() = %+v", tags)
	}
	if tags.Track != 3 || tags.Year != 1994 || !tags.FromFilename {
		t.Errorf("ReadTags() = %+v", tags)
	}
}

func TestArtistForPath(t *testing.T) {
	if got := (&Tags{AlbumArtist: "A", Artist: "B"}).ArtistForPath(); got != "A" {
		t.Errorf("got %q", got)
	}
	if got := (&Tags{Artist: "B"}).ArtistForPath(); got != "B" {
		t.Errorf("got %q", got)
	}
	if got := (&Tags{}).ArtistForPath(); got != "Unknown Artist" {
		t.Errorf("got %q", got)
	}
}
