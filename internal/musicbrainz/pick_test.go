package musicbrainz

import "testing"

func release(id, status, date string, tracks ...int) Release {
	r := Release{ID: id, Status: status, Date: date}
	for i, n := range tracks {
		r.Media = append(r.Media, Medium{Position: i + 1, TrackCount: n})
	}
	return r
}

func TestPickRelease(t *testing.T) {
	tests := []struct {
		name     string
		releases []Release
		want     string
	}{
		{
			name:     "most common track count wins",
			releases: []Release{release("a", "Official", "1997", 14), release("b", "Official", "1998", 12), release("c", "Official", "1999", 12)},
			want:     "b",
		},
		{
			name:     "official beats bootleg",
			releases: []Release{release("a", "Bootleg", "1990", 10), release("b", "Official", "1995", 10)},
			want:     "b",
		},
		{
			name:     "earliest date",
			releases: []Release{release("a", "Official", "2009-03-24", 12), release("b", "Official", "1997-05-21", 12)},
			want:     "b",
		},
		{
			name:     "undated sorts last",
			releases: []Release{release("a", "Official", "", 12), release("b", "Official", "2001", 12)},
			want:     "b",
		},
		{
			name:     "lowest id breaks ties",
			releases: []Release{release("z", "Official", "1997", 12), release("m", "Official", "1997", 12)},
			want:     "m",
		},
		{
			name:     "multi-disc totals",
			releases: []Release{release("a", "Official", "1997", 10, 10), release("b", "Official", "1997", 20), release("c", "Official", "1996", 12)},
			want:     "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PickRelease(&ReleaseGroup{Releases: tt.releases})
			if got == nil || got.ID != tt.want {
				t.Errorf("PickRelease = %v, want %s", got, tt.want)
			}
		})
	}

	if PickRelease(&ReleaseGroup{}) != nil {
		t.Error("expected nil for empty release group")
	}
}

func TestFlattenTracks(t *testing.T) {
	r := &Release{Media: []Medium{
		{Position: 1, Tracks: []Track{{ID: "t1", Position: 1, Title: "One", Length: 1000}}},
		{Position: 2, Tracks: []Track{{ID: "t2", Position: 1, Recording: Recording{Title: "Two", Length: 2000}}}},
	}}

	got := FlattenTracks(r)
	if len(got) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(got))
	}
	if got[1].Disc != 2 || got[1].Title != "Two" || got[1].DurationMs != 2000 {
		t.Errorf("unexpected flattened track: %+v", got[1])
	}
}
