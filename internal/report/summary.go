package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/franz/albumhound/internal/store"
	"github.com/franz/albumhound/internal/util"
)

// StatusReport is a point-in-time summary of the library and downloads
type StatusReport struct {
	GeneratedAt  time.Time
	DatabasePath string
	EventLogPath string

	Stats    *store.Stats
	Wanted   []store.Album
	Recent   []store.Snatched
	Failures []store.Snatched

	TopErrors []ErrorSummary
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// GenerateStatusReport gathers counts, wanted albums, recent snatches and
// the most frequent errors of the event log
func GenerateStatusReport(db *store.Store, dbPath, eventLogPath string, recent int) (*StatusReport, error) {
	report := &StatusReport{
		GeneratedAt:  time.Now(),
		DatabasePath: dbPath,
		EventLogPath: eventLogPath,
	}

	var err error
	if report.Stats, err = db.Stats(); err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	if report.Wanted, err = db.ListAlbumsByStatus(store.StatusWanted, store.StatusWantedLossless); err != nil {
		return nil, fmt.Errorf("failed to list wanted albums: %w", err)
	}
	if report.Recent, err = db.ListSnatched(recent); err != nil {
		return nil, fmt.Errorf("failed to list snatched: %w", err)
	}
	if report.Failures, err = db.ListSnatchedByStatus(store.SnatchUnprocessed, store.SnatchFailed); err != nil {
		return nil, fmt.Errorf("failed to list failed downloads: %w", err)
	}

	if eventLogPath != "" {
		report.TopErrors = gatherTopErrors(eventLogPath, 10)
	}

	return report, nil
}

// gatherTopErrors counts error messages in the event log. A missing or
// unreadable log yields no errors.
func gatherTopErrors(path string, limit int) []ErrorSummary {
	file, err := os.Open(path)
	if err != nil {
		util.DebugLog("Event log not readable: %v", err)
		return nil
	}
	defer file.Close()

	counts := make(map[string]int)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if e.Error != "" {
			counts[e.Error]++
		}
	}

	summaries := make([]ErrorSummary, 0, len(counts))
	for msg, n := range counts {
		summaries = append(summaries, ErrorSummary{Error: msg, Count: n})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Count != summaries[j].Count {
			return summaries[i].Count > summaries[j].Count
		}
		return summaries[i].Error < summaries[j].Error
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

// WriteMarkdownReport renders the report as Markdown
func WriteMarkdownReport(report *StatusReport, w io.Writer) error {
	var md strings.Builder

	md.WriteString("# albumhound status\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}
	md.WriteString("---\n\n")

	if st := report.Stats; st != nil {
		md.WriteString("## Library\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Artists | %d |\n", st.Artists))
		for _, status := range store.AlbumStatuses {
			if n := st.Albums[status]; n > 0 {
				md.WriteString(fmt.Sprintf("| Albums %s | %d |\n", status, n))
			}
		}
		md.WriteString(fmt.Sprintf("| Files in library | %d |\n", st.Have))
		if st.Unmatched > 0 {
			md.WriteString(fmt.Sprintf("| Unmatched files | %d |\n", st.Unmatched))
		}
		if st.Blacklist > 0 {
			md.WriteString(fmt.Sprintf("| Blacklisted releases | %d |\n", st.Blacklist))
		}
		md.WriteString("\n")
	}

	if len(report.Wanted) > 0 {
		md.WriteString(fmt.Sprintf("## Wanted (%d)\n\n", len(report.Wanted)))
		for _, a := range report.Wanted {
			md.WriteString(fmt.Sprintf("- %s - %s", a.ArtistName, a.Title))
			if y := a.Year(); y > 0 {
				md.WriteString(fmt.Sprintf(" (%d)", y))
			}
			if a.Status == store.StatusWantedLossless {
				md.WriteString(" *lossless*")
			}
			md.WriteString("\n")
		}
		md.WriteString("\n")
	}

	writeSnatched := func(title string, rows []store.Snatched) {
		if len(rows) == 0 {
			return
		}
		md.WriteString(fmt.Sprintf("## %s\n\n", title))
		md.WriteString("| Date | Release | Size | Provider | Status |\n")
		md.WriteString("|------|---------|------|----------|--------|\n")
		for _, s := range rows {
			md.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				s.DateAdded.Format("2006-01-02"),
				truncateText(s.Title, 60),
				util.FormatBytes(s.Size),
				s.Provider,
				s.Status))
		}
		md.WriteString("\n")
	}
	writeSnatched("Recent snatches", report.Recent)
	writeSnatched("Failed downloads", report.Failures)

	if len(report.TopErrors) > 0 {
		md.WriteString("## Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, err := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", err.Count, truncateText(err.Error, 100)))
		}
		md.WriteString("\n")
	}

	_, err := io.WriteString(w, md.String())
	return err
}

// WriteMarkdownFile renders the report into outputPath
func WriteMarkdownFile(report *StatusReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := WriteMarkdownReport(report, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

// truncateText shortens s from the middle, keeping start and end
func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	start := maxLen/2 - 2
	end := len(s) - (maxLen/2 - 2)
	return s[:start] + "..." + s[end:]
}
