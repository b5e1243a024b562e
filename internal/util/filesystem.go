package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
)

// IsSameFilesystem reports whether two paths share a device ID, which
// decides if a finished download can be renamed into the library or has
// to be copied.
func IsSameFilesystem(path1, path2 string) (bool, error) {
	stat1, err := os.Stat(path1)
	if err != nil {
		return false, err
	}

	stat2, err := os.Stat(path2)
	if err != nil {
		return false, err
	}

	sys1, ok1 := stat1.Sys().(*syscall.Stat_t)
	sys2, ok2 := stat2.Sys().(*syscall.Stat_t)
	if !ok1 || !ok2 {
		return false, nil
	}

	return sys1.Dev == sys2.Dev, nil
}

// DetectFilesystemCaseSensitivity probes dir by creating a mixed-case
// marker file and checking for its lower-case twin.
func DetectFilesystemCaseSensitivity(dir string) (bool, error) {
	probe, err := os.CreateTemp(dir, ".HoundCaseProbe-*")
	if err != nil {
		return false, fmt.Errorf("create probe file: %w", err)
	}
	name := probe.Name()
	probe.Close()
	defer os.Remove(name)

	lower := filepath.Join(filepath.Dir(name), strings.ToLower(filepath.Base(name)))
	if lower == name {
		return true, nil
	}
	if _, err := os.Stat(lower); err == nil {
		return false, nil
	}
	return true, nil
}

// FormatBytes renders a byte count in IEC units ("1.2 GiB").
func FormatBytes(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(n))
}

// ParseBytes turns indexer size strings ("712.5 MiB", "1.1 GB") into bytes.
// Returns 0 when the string cannot be parsed.
func ParseBytes(s string) int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	if s == "" {
		return 0
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0
	}
	return int64(n)
}
