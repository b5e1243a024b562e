package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/albumhound/internal/store"
)

const fireID = "0a1b2c3d-0000-4000-8000-000000000001"

func setup(t *testing.T, status string) (*Scanner, *store.Store, string) {
	t.Helper()
	tmp := t.TempDir()
	db, err := store.Open(filepath.Join(tmp, "hound.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.UpsertArtist(&store.Artist{ID: "b2b7a5f5-6f5f-4b5b-8d31-1d2f2e6d8c01", Name: "Low"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertAlbum(&store.Album{
		ID:         fireID,
		ArtistID:   "b2b7a5f5-6f5f-4b5b-8d31-1d2f2e6d8c01",
		ArtistName: "Low",
		Title:      "Things We Lost in the Fire",
		Status:     status,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceTracks(fireID, "rel-us", []store.Track{
		{TrackID: "t1", Title: "Sunflower", Number: 1, DurationMs: 275000},
		{TrackID: "t2", Title: "Whitetail", Number: 2, DurationMs: 200000},
	}); err != nil {
		t.Fatal(err)
	}

	music := filepath.Join(tmp, "music")
	return New(&Config{Store: db, Concurrency: 2}), db, music
}

func writeFiles(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, p)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, make([]byte, 4096), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScanMatchesAndCompletesAlbum(t *testing.T) {
	scanner, db, music := setup(t, store.StatusSnatched)
	writeFiles(t, music,
		"Low/Things We Lost in the Fire (2001)/01 - Sunflower.flac",
		"Low/Things We Lost in the Fire (2001)/02 - Whitetail.flac",
		"Other/Record/01 - Something.mp3",
		"Low/Things We Lost in the Fire (2001)/notes.txt",
	)

	result, err := scanner.Scan(context.Background(), music)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.Files != 3 || result.Matched != 2 || result.Unmatched != 1 {
		t.Errorf("Scan() = %+v, want 3 files, 2 matched, 1 unmatched", result)
	}
	if len(result.Completed) != 1 || result.Completed[0] != fireID {
		t.Errorf("Completed = %v, want [%s]", result.Completed, fireID)
	}

	album, err := db.GetAlbum(fireID)
	if err != nil {
		t.Fatal(err)
	}
	if album.Status != store.StatusDownloaded {
		t.Errorf("album status = %s, want %s", album.Status, store.StatusDownloaded)
	}

	tracks, err := db.ListTracks(fireID)
	if err != nil {
		t.Fatal(err)
	}
	for _, tr := range tracks {
		if tr.Location == "" || tr.Format != "FLAC" {
			t.Errorf("track %s not linked: %+v", tr.Title, tr)
		}
	}

	unmatched, err := db.ListHave(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(unmatched) != 1 || filepath.Base(unmatched[0].Location) != "01 - Something.mp3" {
		t.Errorf("unmatched = %+v", unmatched)
	}
}

func TestScanPartialAlbumStaysWanted(t *testing.T) {
	scanner, db, music := setup(t, store.StatusWanted)
	writeFiles(t, music, "Low/Things We Lost in the Fire/01 - Sunflower.mp3")

	result, err := scanner.Scan(context.Background(), music)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.Matched != 1 || len(result.Completed) != 0 {
		t.Errorf("Scan() = %+v", result)
	}
	album, _ := db.GetAlbum(fireID)
	if album.Status != store.StatusWanted {
		t.Errorf("album status = %s, want Wanted", album.Status)
	}
}

func TestScanWantedLosslessNeedsLossless(t *testing.T) {
	scanner, db, music := setup(t, store.StatusWantedLossless)
	writeFiles(t, music,
		"Low/Things We Lost in the Fire/01 - Sunflower.mp3",
		"Low/Things We Lost in the Fire/02 - Whitetail.mp3",
	)

	if _, err := scanner.Scan(context.Background(), music); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	album, _ := db.GetAlbum(fireID)
	if album.Status != store.StatusWantedLossless {
		t.Errorf("album status = %s, want Wanted Lossless", album.Status)
	}
}

func TestRescanReplacesHaveRows(t *testing.T) {
	scanner, db, music := setup(t, store.StatusSkipped)
	writeFiles(t, music,
		"Other/Record/01 - One.mp3",
		"Other/Record/02 - Two.mp3",
	)
	if _, err := scanner.Scan(context.Background(), music); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(music, "Other/Record/02 - Two.mp3")); err != nil {
		t.Fatal(err)
	}
	if _, err := scanner.Scan(context.Background(), music); err != nil {
		t.Fatal(err)
	}

	rows, err := db.ListHave(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("have rows = %d, want 1", len(rows))
	}
}

func TestScanMissingRoot(t *testing.T) {
	scanner, _, music := setup(t, store.StatusWanted)
	if _, err := scanner.Scan(context.Background(), filepath.Join(music, "nope")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestScanCancelled(t *testing.T) {
	scanner, _, music := setup(t, store.StatusWanted)
	writeFiles(t, music, "Low/Things We Lost in the Fire/01 - Sunflower.mp3")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := scanner.Scan(ctx, music); err == nil {
		t.Error("expected error for cancelled scan")
	}
}

func TestMatchTrack(t *testing.T) {
	tracks := []store.Track{
		{TrackID: "a", Title: "Sunflower", Number: 1, Disc: 1},
		{TrackID: "b", Title: "Whitetail", Number: 2, Disc: 1},
		{TrackID: "c", Title: "Whitetail", Number: 1, Disc: 2},
	}

	tests := []struct {
		name string
		have store.Have
		want string
	}{
		{"title", store.Have{TrackTitle: "sunflower"}, "a"},
		{"title ignores version suffix", store.Have{TrackTitle: "Sunflower (Remastered)"}, "a"},
		{"number fallback", store.Have{TrackTitle: "Track 02", TrackNumber: 2}, "b"},
		{"disc aware", store.Have{TrackNumber: 1, Disc: 2}, "c"},
		{"no match", store.Have{TrackTitle: "Dinosaur Act", TrackNumber: 9}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchTrack(tracks, &tt.have)
			switch {
			case tt.want == "" && got != nil:
				t.Errorf("matchTrack() = %s, want nil", got.TrackID)
			case tt.want != "" && (got == nil || got.TrackID != tt.want):
				t.Errorf("matchTrack() = %+v, want %s", got, tt.want)
			}
		})
	}
}

func TestProgressWidth(t *testing.T) {
	tests := map[int]int{200: 40, 100: 40, 80: 20, 40: 10}
	for term, want := range tests {
		if got := progressWidth(term); got != want {
			t.Errorf("progressWidth(%d) = %d, want %d", term, got, want)
		}
	}
}
