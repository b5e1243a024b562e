package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/albumhound/internal/store"
)

func setupTestData(t *testing.T, db *store.Store) {
	t.Helper()

	artist := &store.Artist{ID: "a74b1b7f-71a5-4011-9441-d0b5e4122711", Name: "Radiohead", SortName: "Radiohead"}
	if err := db.UpsertArtist(artist); err != nil {
		t.Fatalf("UpsertArtist: %v", err)
	}

	albums := []store.Album{
		{ID: "rg-ok", Title: "OK Computer", ReleaseDate: "1997-05-21", Status: store.StatusWantedLossless},
		{ID: "rg-kida", Title: "Kid A", ReleaseDate: "2000-10-02", Status: store.StatusSnatched},
		{ID: "rg-bends", Title: "The Bends", ReleaseDate: "1995-03-13", Status: store.StatusDownloaded},
	}
	for i := range albums {
		albums[i].ArtistID = artist.ID
		albums[i].ArtistName = artist.Name
		albums[i].Type = "Album"
		if _, err := db.UpsertAlbum(&albums[i]); err != nil {
			t.Fatalf("UpsertAlbum: %v", err)
		}
	}

	snatches := []store.Snatched{
		{AlbumID: "rg-kida", Title: "Radiohead - Kid A [FLAC]", Size: 300 << 20, URL: "https://x/1", Provider: "indexer", Kind: "nzb", Status: store.SnatchSnatched},
		{AlbumID: "rg-ok", Title: "Radiohead - OK Computer [MP3]", Size: 100 << 20, URL: "https://x/2", Provider: "tracker", Kind: "torrent", Status: store.SnatchUnprocessed},
	}
	for i := range snatches {
		if err := db.InsertSnatched(&snatches[i]); err != nil {
			t.Fatalf("InsertSnatched: %v", err)
		}
	}
}

func TestGenerateStatusReport(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	setupTestData(t, db)

	logPath := filepath.Join(tmpDir, "events.jsonl")
	logger, err := NewEventLogger(logPath, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	logger.Log(&Event{Level: LevelError, Event: EventError, Error: "indexer timeout"})
	logger.Log(&Event{Level: LevelError, Event: EventError, Error: "indexer timeout"})
	logger.Log(&Event{Level: LevelError, Event: EventError, Error: "disk full"})
	logger.Close()

	report, err := GenerateStatusReport(db, dbPath, logPath, 10)
	if err != nil {
		t.Fatalf("GenerateStatusReport failed: %v", err)
	}

	if report.Stats.Artists != 1 {
		t.Errorf("Expected 1 artist, got %d", report.Stats.Artists)
	}
	if len(report.Wanted) != 1 || report.Wanted[0].Title != "OK Computer" {
		t.Errorf("Unexpected wanted list: %+v", report.Wanted)
	}
	if len(report.Recent) != 2 {
		t.Errorf("Expected 2 recent snatches, got %d", len(report.Recent))
	}
	if len(report.Failures) != 1 {
		t.Errorf("Expected 1 failed download, got %d", len(report.Failures))
	}
	if len(report.TopErrors) != 2 || report.TopErrors[0].Error != "indexer timeout" || report.TopErrors[0].Count != 2 {
		t.Errorf("Unexpected top errors: %+v", report.TopErrors)
	}
}

func TestGenerateStatusReport_MissingEventLog(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	report, err := GenerateStatusReport(db, "", "/nonexistent/events.jsonl", 5)
	if err != nil {
		t.Fatalf("GenerateStatusReport failed: %v", err)
	}
	if len(report.TopErrors) != 0 {
		t.Errorf("Expected no errors, got %+v", report.TopErrors)
	}
}

func TestWriteMarkdownFile(t *testing.T) {
	report := &StatusReport{
		GeneratedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DatabasePath: "/data/hound.db",
		Stats: &store.Stats{
			Artists:  3,
			Albums:   map[string]int{store.StatusWanted: 4, store.StatusDownloaded: 10},
			Snatched: map[string]int{},
			Have:     120,
		},
		Wanted: []store.Album{{ArtistName: "Low", Title: "Secret Name", ReleaseDate: "1999", Status: store.StatusWanted}},
		Recent: []store.Snatched{{Title: "Low - Secret Name", Size: 200 << 20, Provider: "indexer", Status: store.SnatchSnatched, DateAdded: time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)}},
		TopErrors: []ErrorSummary{
			{Error: "connection refused", Count: 5},
		},
	}

	outputPath := filepath.Join(t.TempDir(), "reports", "status.md")
	if err := WriteMarkdownFile(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownFile failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	md := string(content)

	for _, want := range []string{
		"# albumhound status",
		"**Database:** `/data/hound.db`",
		"| Artists | 3 |",
		"| Albums Wanted | 4 |",
		"| Albums Downloaded | 10 |",
		"- Low - Secret Name (1999)",
		"| 2026-02-28 | Low - Secret Name | 200 MiB | indexer | Snatched |",
		"| 5 | connection refused |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Report missing %q", want)
		}
	}
	if strings.Contains(md, "Failed downloads") {
		t.Error("Empty failures section should be omitted")
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"/very/long/path/to/some/file.mp3", 20, "/very/lo...file.mp3"},
	}

	for _, tt := range tests {
		if got := truncateText(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncateText(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}
