package searcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/moistari/rls"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/meta"
	"github.com/franz/albumhound/internal/provider"
)

// Rejection reasons
const (
	ReasonTooSmall    = "too small"
	ReasonTooLarge    = "too large"
	ReasonBitrate     = "outside bitrate window"
	ReasonSeeders     = "not enough seeders"
	ReasonRetention   = "beyond retention"
	ReasonIgnored     = "ignored word"
	ReasonRequired    = "missing required word"
	ReasonLossy       = "lossy format not wanted"
	ReasonLossless    = "lossless format not wanted"
	ReasonIrrelevant  = "title does not match"
	ReasonNotMusic    = "not a music release"
	ReasonSnatched    = "already snatched"
	ReasonBlacklisted = "blacklisted"
	ReasonDuplicate   = "duplicate url"
)

const mb = 1024 * 1024

// Criteria are the rules a result must pass
type Criteria struct {
	Artist  string
	Album   string
	Quality string
	// TotalLengthMs is the album length, 0 when unknown
	TotalLengthMs int64
	Search        config.SearchSettings
	Now           time.Time
	// Exclude returns a non-empty reason for URLs that must not be used
	// again, such as snatched or blacklisted ones
	Exclude func(url string) string
}

// Rejection is a result dropped by the filter
type Rejection struct {
	Result provider.Result `json:"result"`
	Reason string          `json:"reason"`
}

// Filter splits results into accepted and rejected ones. The first
// failing rule gives the rejection reason. Duplicate URLs keep the first
// occurrence.
func Filter(results []provider.Result, c *Criteria) ([]provider.Result, []Rejection) {
	if c.Now.IsZero() {
		c.Now = time.Now()
	}
	low, high := c.SizeWindow()

	var (
		kept     []provider.Result
		rejected []Rejection
		seen     = make(map[string]bool, len(results))
	)
	for _, r := range results {
		reason := ""
		if seen[r.URL] {
			reason = ReasonDuplicate
		} else {
			seen[r.URL] = true
			reason = c.check(&r, low, high)
		}
		if reason != "" {
			rejected = append(rejected, Rejection{Result: r, Reason: reason})
			continue
		}
		kept = append(kept, r)
	}
	return kept, rejected
}

// TargetSize is the ideal size in bytes for the preferred bitrate, or 0
// when no bitrate is preferred, lossless is wanted or the album length
// is unknown
func (c *Criteria) TargetSize() int64 {
	if c.Search.PreferredBitrate <= 0 || c.TotalLengthMs <= 0 || c.Quality == config.QualityLossless {
		return 0
	}
	// kbps * ms / 8 = bytes
	return int64(c.Search.PreferredBitrate) * c.TotalLengthMs / 8
}

// SizeWindow returns the accepted size range around TargetSize, zero
// bounds meaning no limit
func (c *Criteria) SizeWindow() (low, high int64) {
	target := c.TargetSize()
	if target == 0 {
		return 0, 0
	}
	low = target * int64(100-min(c.Search.BitrateLowPercent, 100)) / 100
	if c.Search.BitrateHighPercent > 0 {
		high = target * int64(100+c.Search.BitrateHighPercent) / 100
	}
	return low, high
}

func (c *Criteria) check(r *provider.Result, low, high int64) string {
	s := c.Search
	title := strings.ToLower(r.Title)

	if r.Size > 0 {
		if s.MinSizeMB > 0 && r.Size < int64(s.MinSizeMB)*mb {
			return ReasonTooSmall
		}
		if s.MaxSizeMB > 0 && r.Size > int64(s.MaxSizeMB)*mb {
			return ReasonTooLarge
		}
		if !provider.IsLosslessFormat(r.Format) && ((low > 0 && r.Size < low) || (high > 0 && r.Size > high)) {
			return ReasonBitrate
		}
	}

	if r.Kind == provider.KindTorrent && s.MinSeeders > 0 && r.Seeders < s.MinSeeders {
		return ReasonSeeders
	}
	if r.Kind == provider.KindNZB && s.UsenetRetention > 0 && r.AgeDays(c.Now) > s.UsenetRetention {
		return ReasonRetention
	}

	for _, w := range s.IgnoredWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && strings.Contains(title, w) {
			return fmt.Sprintf("%s %q", ReasonIgnored, w)
		}
	}
	for _, w := range s.RequiredWords {
		if !containsAny(title, w) {
			return fmt.Sprintf("%s %q", ReasonRequired, w)
		}
	}

	if reason := qualityReason(r, c.Quality); reason != "" {
		return reason
	}

	artist := c.Artist
	if IsVariousArtists(artist) {
		artist = ""
	}
	if !Relevant(r.Title, artist, c.Album) {
		return ReasonIrrelevant
	}

	if r.Kind != provider.KindSoulseek && !isMusicRelease(r.Title) {
		return ReasonNotMusic
	}

	if c.Exclude != nil {
		if reason := c.Exclude(r.URL); reason != "" {
			return reason
		}
	}
	return ""
}

// containsAny matches one required word; "a|b" accepts either
func containsAny(title, words string) bool {
	empty := true
	for _, w := range strings.Split(words, "|") {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		empty = false
		if strings.Contains(title, w) {
			return true
		}
	}
	return empty
}

func qualityReason(r *provider.Result, quality string) string {
	format := r.Format
	if format == "" {
		format = provider.FormatHint(r.Title)
	}
	if format == "" || format == "MIXED" {
		return ""
	}
	lossless := provider.IsLosslessFormat(format)
	switch quality {
	case config.QualityLossless:
		if !lossless {
			return ReasonLossy
		}
	case config.QualityLossy:
		if lossless {
			return ReasonLossless
		}
	}
	return ""
}

var skipTokens = map[string]bool{"the": true, "a": true, "and": true, "of": true}

// Relevant reports whether every significant artist and album token
// appears in the title. Tokens of four or more characters may differ by
// one edit.
func Relevant(title, artist, album string) bool {
	have := meta.Tokens(title)
	for _, want := range [][]string{meta.Tokens(artist), meta.Tokens(album)} {
		for _, t := range want {
			if skipTokens[t] {
				continue
			}
			if !hasToken(have, t) {
				return false
			}
		}
	}
	return true
}

func hasToken(tokens []string, t string) bool {
	for _, x := range tokens {
		if x == t {
			return true
		}
		if len(t) >= 4 && levenshtein.ComputeDistance(x, t) <= 1 {
			return true
		}
	}
	return false
}

// isMusicRelease rejects titles the release parser classifies as video,
// software or books
func isMusicRelease(title string) bool {
	if provider.FormatHint(title) != "" {
		return true
	}
	switch rls.ParseString(title).Type {
	case rls.Movie, rls.Episode, rls.Series, rls.Game, rls.App,
		rls.Book, rls.Audiobook, rls.Comic, rls.Magazine, rls.Education:
		return false
	}
	return true
}
