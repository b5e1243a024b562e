package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/store"
)

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkDatabase(dbPath)

	if result.error {
		t.Errorf("non-existent database check should not error: %s", result.message)
	}
	if !strings.Contains(result.message, "will be created") {
		t.Errorf("expected message about database creation, got %q", result.message)
	}
}

func TestCheckDatabase_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hound.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := db.UpsertArtist(&store.Artist{ID: "a1", Name: "Low", Status: store.ArtistActive}); err != nil {
		t.Fatalf("failed to insert artist: %v", err)
	}
	if _, err := db.UpsertAlbum(&store.Album{ID: "r1", ArtistID: "a1", ArtistName: "Low", Title: "HEY WHAT"}); err != nil {
		t.Fatalf("failed to insert album: %v", err)
	}
	db.Close()

	result := checkDatabase(dbPath)

	if result.error {
		t.Errorf("database check failed: %s", result.message)
	}
	if !strings.Contains(result.message, "1 artists, 1 albums") {
		t.Errorf("expected counts in message, got %q", result.message)
	}
}

func TestCheckDatabase_Empty(t *testing.T) {
	result := checkDatabase("")

	if !result.warning {
		t.Error("expected warning for empty database path")
	}
}

func TestCheckSourceDirectory(t *testing.T) {
	if r := checkSourceDirectory(t.TempDir()); r.error {
		t.Errorf("download directory check failed: %s", r.message)
	}
	if r := checkSourceDirectory("/nonexistent/path/that/does/not/exist"); !r.error {
		t.Error("expected error for non-existent directory")
	}

	filePath := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	if r := checkSourceDirectory(filePath); !r.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckDestinationDirectory_Create(t *testing.T) {
	newDir := filepath.Join(t.TempDir(), "music")

	result := checkDestinationDirectory(newDir)

	if result.error {
		t.Errorf("music directory check failed: %s", result.message)
	}
	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
	if _, err := os.Stat(filepath.Join(newDir, ".hound_write_test")); !os.IsNotExist(err) {
		t.Error("write probe was not removed")
	}
}

func TestCheckDestinationDirectory_File(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	if r := checkDestinationDirectory(filePath); !r.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckSameFilesystem(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "downloads")
	b := filepath.Join(root, "music")
	os.Mkdir(a, 0755)
	os.Mkdir(b, 0755)

	if r := checkSameFilesystem(a, b); r.warning || r.error {
		t.Errorf("expected sibling directories to share a filesystem: %s", r.message)
	}
	if r := checkSameFilesystem(a, "/nonexistent"); !r.warning {
		t.Error("expected warning for missing directory")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := checkDiskSpace(t.TempDir(), "test")

	if result.error {
		t.Errorf("disk space check failed: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected message with disk space info")
	}
}

func TestCheckDiskSpace_NonExistent(t *testing.T) {
	if r := checkDiskSpace("/nonexistent/path", "test"); !r.warning {
		t.Error("expected warning for non-existent path")
	}
}

func TestCheckProviders(t *testing.T) {
	s := &config.Settings{}
	if r := checkProviders(s); !r.error {
		t.Error("expected error without providers")
	}

	s.Providers.Newznab = []config.IndexerSettings{{Name: "nzbgeek", URL: "https://api.nzbgeek.info", APIKey: "k", Enabled: true}}
	r := checkProviders(s)
	if r.error {
		t.Errorf("provider check failed: %s", r.message)
	}
	if !strings.Contains(r.message, "nzbgeek") {
		t.Errorf("expected provider name in message, got %q", r.message)
	}
}

func TestCheckDownloaders(t *testing.T) {
	s := &config.Settings{}
	if r := checkDownloaders(s); !r.warning {
		t.Errorf("expected warning without providers, got %+v", r)
	}

	s.Providers.Newznab = []config.IndexerSettings{{Name: "nzbgeek", URL: "https://api.nzbgeek.info", APIKey: "k", Enabled: true}}
	s.Downloaders.BlackholeDir = t.TempDir()
	s.Downloaders.Usenet = "blackhole"
	if r := checkDownloaders(s); r.error || r.warning {
		t.Errorf("expected usenet client, got %+v", r)
	}
}
