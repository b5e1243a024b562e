// Package score rates search results against what the user wants and
// orders them deterministically.
package score

import (
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/meta"
	"github.com/franz/albumhound/internal/provider"
)

// Wanted describes the album a result is measured against
type Wanted struct {
	Artist string
	Album  string
	// Quality is config.QualityLossy, QualityLossless or QualityAny
	Quality string
	// TargetSize is the ideal size in bytes, 0 when no preferred bitrate
	// is configured or the album length is unknown
	TargetSize     int64
	PreferredWords []string
	// ProviderCount is the number of configured providers, used to scale
	// the provider-order bonus
	ProviderCount int
}

// Calculate computes a score for a search result. Higher is better.
func Calculate(r *provider.Result, w *Wanted) float64 {
	score := 0.0

	// 1. Format tier (largest weight)
	score += getFormatScore(r, w.Quality)

	// 2. Preferred words
	title := strings.ToLower(r.Title)
	for _, word := range w.PreferredWords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" && strings.Contains(title, word) {
			score += 10.0
		}
	}

	// 3. Size
	score += getSizeScore(r.Size, w.TargetSize)

	// 4. Seeders (torrents only)
	if r.Kind == provider.KindTorrent {
		score += getSeedersScore(r.Seeders)
	}

	// 5. Provider order
	score += getProviderOrderScore(r.Order, w.ProviderCount)

	// 6. Title similarity
	score += getTitleSimilarityScore(r.Title, w.Artist, w.Album)

	return score
}

// getFormatScore rates the format hint for the wanted quality mode
func getFormatScore(r *provider.Result, quality string) float64 {
	format := strings.ToUpper(r.Format)
	if format == "" {
		format = provider.FormatHint(r.Title)
	}
	lossless := provider.IsLosslessFormat(format)

	switch quality {
	case config.QualityLossless:
		switch {
		case format == "FLAC":
			return 40.0
		case lossless:
			return 35.0
		case format == "":
			return 10.0 // Unknown, may still be lossless
		default:
			return 0.0
		}

	case config.QualityLossy:
		if lossless {
			return 5.0
		}
		return getLossyScore(format, r.Bitrate)

	default:
		if format == "FLAC" {
			return 30.0
		}
		if lossless {
			return 28.0
		}
		return getLossyScore(format, r.Bitrate)
	}
}

// getLossyScore returns a score based on lossy codec and bitrate tier
func getLossyScore(format string, bitrateKbps int) float64 {
	switch format {
	case "MP3":
		if bitrateKbps >= 320 {
			return 30.0
		} else if bitrateKbps >= 256 {
			return 27.0 // V0 VBR average
		} else if bitrateKbps >= 192 {
			return 22.0
		} else if bitrateKbps >= 128 {
			return 15.0
		} else if bitrateKbps > 0 {
			return 8.0
		}
		return 20.0 // Unknown bitrate

	case "AAC", "OGG":
		if bitrateKbps >= 256 {
			return 26.0
		} else if bitrateKbps >= 192 {
			return 22.0
		} else if bitrateKbps > 0 {
			return 14.0
		}
		return 18.0

	case "MIXED":
		return 5.0

	default:
		if bitrateKbps >= 256 {
			return 15.0
		}
		return 10.0
	}
}

// getSizeScore rewards proximity to the target size, or size itself
// when there is no target
func getSizeScore(size, target int64) float64 {
	if size <= 0 {
		return 0.0
	}

	if target > 0 {
		delta := math.Abs(float64(size-target)) / float64(target)
		return 15.0 * math.Max(0, 1-delta)
	}

	// Larger is better, log-scaled and capped
	mb := float64(size) / (1024 * 1024)
	return math.Min(10.0, 2*math.Log10(1+mb))
}

// getSeedersScore returns a log-scale seeders bonus
func getSeedersScore(seeders int) float64 {
	if seeders <= 0 {
		return 0.0
	}
	return math.Min(10.0, 4*math.Log10(1+float64(seeders)))
}

// getProviderOrderScore gives the first provider in the configured order
// the biggest bonus
func getProviderOrderScore(order, count int) float64 {
	if count <= 1 || order < 0 || order >= count {
		return 0.0
	}
	return 5.0 * float64(count-1-order) / float64(count-1)
}

// getTitleSimilarityScore rewards titles carrying the wanted artist and
// album words, counting near misses as half a hit
func getTitleSimilarityScore(title, artist, album string) float64 {
	wanted := append(meta.Tokens(artist), meta.Tokens(album)...)
	if len(wanted) == 0 {
		return 0.0
	}

	have := meta.Tokens(title)
	hits := 0.0
	for _, w := range wanted {
		switch {
		case containsToken(have, w):
			hits++
		case nearToken(have, w):
			hits += 0.5
		}
	}
	return 10.0 * hits / float64(len(wanted))
}

func containsToken(tokens []string, t string) bool {
	for _, x := range tokens {
		if x == t {
			return true
		}
	}
	return false
}

// nearToken reports whether some token is within one edit of t. Short
// tokens must match exactly.
func nearToken(tokens []string, t string) bool {
	if len(t) < 4 {
		return false
	}
	for _, x := range tokens {
		if levenshtein.ComputeDistance(x, t) <= 1 {
			return true
		}
	}
	return false
}

// Rank sorts results best first and returns them. Equal inputs always
// produce the same order.
// Tie-breakers: highest score → provider order → larger size → more
// seeders → lexical title → lexical URL
func Rank(results []provider.Result) []provider.Result {
	sort.SliceStable(results, func(i, j int) bool {
		return better(&results[i], &results[j])
	})
	return results
}

func better(a, b *provider.Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	if a.Size != b.Size {
		return a.Size > b.Size
	}
	if a.Seeders != b.Seeders {
		return a.Seeders > b.Seeders
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.URL < b.URL
}

// ScoreAll fills in Score for every result and ranks them
func ScoreAll(results []provider.Result, w *Wanted) []provider.Result {
	for i := range results {
		results[i].Score = Calculate(&results[i], w)
	}
	return Rank(results)
}
