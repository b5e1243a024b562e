package musicbrainz

import "sort"

// PickRelease chooses the release that best represents a release group:
// the most common track count wins, then official status, then the
// earliest date, then the lowest id. Returns nil when there are no
// releases.
func PickRelease(rg *ReleaseGroup) *Release {
	if rg == nil || len(rg.Releases) == 0 {
		return nil
	}

	freq := make(map[int]int)
	for i := range rg.Releases {
		freq[rg.Releases[i].TrackCount()]++
	}
	mode, best := 0, -1
	for count, n := range freq {
		if n > best || (n == best && count > mode) {
			mode, best = count, n
		}
	}

	var candidates []*Release
	for i := range rg.Releases {
		if rg.Releases[i].TrackCount() == mode {
			candidates = append(candidates, &rg.Releases[i])
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		ao, bo := a.Status == "Official", b.Status == "Official"
		if ao != bo {
			return ao
		}
		if a.Date != b.Date {
			// Undated releases sort last
			if a.Date == "" {
				return false
			}
			if b.Date == "" {
				return true
			}
			return a.Date < b.Date
		}
		return a.ID < b.ID
	})
	return candidates[0]
}

// FlattenTracks lists every track of a release with disc numbers filled in
func FlattenTracks(r *Release) []FlatTrack {
	var out []FlatTrack
	for mi, m := range r.Media {
		disc := m.Position
		if disc == 0 {
			disc = mi + 1
		}
		for _, t := range m.Tracks {
			length := t.Length
			if length == 0 {
				length = t.Recording.Length
			}
			title := t.Title
			if title == "" {
				title = t.Recording.Title
			}
			out = append(out, FlatTrack{
				ID:         t.ID,
				Title:      title,
				Disc:       disc,
				Number:     t.Position,
				DurationMs: length,
			})
		}
	}
	return out
}

// FlatTrack is a track with its medium position resolved
type FlatTrack struct {
	ID         string
	Title      string
	Disc       int
	Number     int
	DurationMs int64
}
