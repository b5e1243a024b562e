package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/downloader"
	"github.com/franz/albumhound/internal/musicbrainz"
	"github.com/franz/albumhound/internal/provider"
	"github.com/franz/albumhound/internal/store"
	"github.com/franz/albumhound/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure hound can operate correctly.

This command checks:
- Configuration validity
- Database accessibility and integrity
- Music and download directories
- Disk space of the music directory
- Configured providers and download clients
- MusicBrainz reachability (with --online)

Use this command to troubleshoot issues before running hound serve.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().Bool("online", false, "also check that MusicBrainz is reachable")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== hound doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{checkSQLite()}

	s, err := loadSettings()
	if err != nil {
		results = append(results, checkResult{name: "Configuration", error: true, message: err.Error()})
		return printResults(results)
	}
	results = append(results, checkResult{name: "Configuration", message: configSource()})

	results = append(results,
		checkDatabase(s.DB),
		checkDestinationDirectory(s.Library.MusicDir),
		checkSourceDirectory(s.Library.DownloadDir),
		checkSameFilesystem(s.Library.DownloadDir, s.Library.MusicDir),
		checkCaseSensitivity(s.Library.MusicDir),
		checkDiskSpace(s.Library.MusicDir, "music"),
		checkProviders(s),
		checkDownloaders(s),
	)

	if online, _ := cmd.Flags().GetBool("online"); online {
		results = append(results, checkMusicBrainz(cmd.Context(), s.MusicBrainz))
	}

	return printResults(results)
}

func printResults(results []checkResult) error {
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Please resolve errors before running hound.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed.")
	}
	return nil
}

func configSource() string {
	if f := viper.ConfigFileUsed(); f != "" {
		return f
	}
	return "defaults (no config file found)"
}

// checkSQLite verifies the embedded SQLite reports a version
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}
	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	albums := 0
	artists := 0
	if st, err := db.Stats(); err == nil {
		artists = st.Artists
		for _, n := range st.Albums {
			albums += n
		}
	}

	return checkResult{
		name:    "Database",
		message: fmt.Sprintf("%s (%s, %d artists, %d albums)", dbPath, util.FormatBytes(info.Size()), artists, albums),
	}
}

// checkSourceDirectory verifies the download directory is readable
func checkSourceDirectory(path string) checkResult {
	const name = "Download directory"
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{
			name:    name,
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    name,
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return checkResult{
			name:    name,
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	return checkResult{
		name:    name,
		message: fmt.Sprintf("%s (%d entries)", path, len(entries)),
	}
}

// checkDestinationDirectory verifies the music directory is writable
func checkDestinationDirectory(path string) checkResult {
	const name = "Music directory"
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0755); err != nil {
				return checkResult{
					name:    name,
					error:   true,
					message: fmt.Sprintf("cannot create %s: %v", path, err),
				}
			}
			return checkResult{
				name:    name,
				message: fmt.Sprintf("%s (created)", path),
			}
		}
		return checkResult{
			name:    name,
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    name,
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	testFile := filepath.Join(path, ".hound_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    name,
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    name,
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkSameFilesystem warns when finished downloads cannot be renamed
// into the library
func checkSameFilesystem(downloads, music string) checkResult {
	const name = "Filesystems"
	same, err := util.IsSameFilesystem(downloads, music)
	if err != nil {
		return checkResult{
			name:    name,
			warning: true,
			message: fmt.Sprintf("cannot compare: %v", err),
		}
	}
	if !same {
		return checkResult{
			name:    name,
			warning: true,
			message: "downloads and music are on different filesystems, imports will copy and verify every file",
		}
	}
	return checkResult{name: name, message: "downloads and music share a filesystem"}
}

func checkCaseSensitivity(path string) checkResult {
	const name = "Case sensitivity"
	sensitive, err := util.DetectFilesystemCaseSensitivity(path)
	if err != nil {
		return checkResult{
			name:    name,
			warning: true,
			message: fmt.Sprintf("cannot probe %s: %v", path, err),
		}
	}
	if !sensitive {
		return checkResult{
			name:    name,
			message: "case-insensitive, album folders differing only in case will merge",
		}
	}
	return checkResult{name: name, message: "case-sensitive"}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))

	availGB := float64(availBytes) / (1024 * 1024 * 1024)
	usedPercent := float64(usedBytes) / float64(totalBytes) * 100

	warning := false
	warningMsg := ""
	if availGB < 10 {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 90 {
		warning = true
		warningMsg = " (>90% used)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: fmt.Sprintf("%.1f GB available%s", availGB, warningMsg),
	}
}

func checkProviders(s *config.Settings) checkResult {
	reg := provider.NewRegistry(s.Providers, s.Search.ProviderOrder, http.DefaultClient)
	if reg.Len() == 0 {
		return checkResult{
			name:    "Providers",
			error:   true,
			message: "no provider enabled, nothing can be searched",
		}
	}
	names := ""
	for i, p := range reg.Providers() {
		if i > 0 {
			names += ", "
		}
		names += p.Name()
	}
	return checkResult{name: "Providers", message: names}
}

func checkDownloaders(s *config.Settings) checkResult {
	const name = "Download clients"
	router, err := downloader.NewRouter(s, http.DefaultClient, afero.NewOsFs())
	if err != nil {
		return checkResult{name: name, error: true, message: err.Error()}
	}

	seen := map[provider.Kind]bool{}
	var kinds, missing []provider.Kind
	reg := provider.NewRegistry(s.Providers, s.Search.ProviderOrder, http.DefaultClient)
	for _, p := range reg.Providers() {
		k := p.Kind()
		if seen[k] {
			continue
		}
		seen[k] = true
		kinds = append(kinds, k)
		if !router.Supports(k) {
			missing = append(missing, k)
		}
	}

	switch {
	case len(kinds) == 0:
		return checkResult{name: name, warning: true, message: "no providers, nothing to download"}
	case len(missing) == len(kinds):
		return checkResult{name: name, error: true, message: fmt.Sprintf("no client for %v", missing)}
	case len(missing) > 0:
		return checkResult{
			name:    name,
			warning: true,
			message: fmt.Sprintf("no client for %v, those results are skipped", missing),
		}
	}
	return checkResult{name: name, message: fmt.Sprintf("clients for %v", kinds)}
}

func checkMusicBrainz(ctx context.Context, s config.MusicBrainzSettings) checkResult {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client := musicbrainz.NewClient(&musicbrainz.Config{
		BaseURL:   s.URL,
		UserAgent: s.UserAgent,
		RateLimit: s.RateLimit,
		Retry:     util.NoRetry(),
	})
	start := time.Now()
	if _, err := client.SearchArtists(ctx, "Radiohead", 1); err != nil {
		return checkResult{name: "MusicBrainz", error: true, message: err.Error()}
	}
	return checkResult{
		name:    "MusicBrainz",
		message: fmt.Sprintf("%s reachable (%s)", s.URL, time.Since(start).Round(time.Millisecond)),
	}
}
