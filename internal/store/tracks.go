package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

const trackColumns = `album_id, track_id, release_id, title, track_number, disc,
	duration_ms, location, bitrate, format`

// ReplaceTracks swaps the track list of an album for the tracks of a newly
// chosen release. Locations already recorded for a track id survive.
func (s *Store) ReplaceTracks(albumID, releaseID string, tracks []Track) error {
	return s.Transaction(func(tx *sqlx.Tx) error {
		var existing []Track
		if err := tx.Select(&existing, `SELECT `+trackColumns+` FROM tracks WHERE album_id = ?`, albumID); err != nil {
			return fmt.Errorf("failed to read tracks: %w", err)
		}
		owned := make(map[string]Track, len(existing))
		for _, t := range existing {
			if t.Location != "" {
				owned[t.TrackID] = t
			}
		}

		if _, err := tx.Exec(`DELETE FROM tracks WHERE album_id = ?`, albumID); err != nil {
			return fmt.Errorf("failed to clear tracks: %w", err)
		}

		for _, t := range tracks {
			t.AlbumID = albumID
			t.ReleaseID = releaseID
			if t.Disc == 0 {
				t.Disc = 1
			}
			if prev, ok := owned[t.TrackID]; ok {
				t.Location, t.Bitrate, t.Format = prev.Location, prev.Bitrate, prev.Format
			}
			if _, err := tx.NamedExec(`
				INSERT INTO tracks (`+trackColumns+`)
				VALUES (:album_id, :track_id, :release_id, :title, :track_number, :disc,
				        :duration_ms, :location, :bitrate, :format)
			`, t); err != nil {
				return fmt.Errorf("failed to insert track %s: %w", t.TrackID, err)
			}
		}

		if _, err := tx.Exec(`UPDATE albums SET release_id = ? WHERE album_id = ?`, releaseID, albumID); err != nil {
			return fmt.Errorf("failed to set release: %w", err)
		}
		return nil
	})
}

// ListTracks returns an album's tracks in disc/track order
func (s *Store) ListTracks(albumID string) ([]Track, error) {
	var tracks []Track
	err := s.db.Select(&tracks, `
		SELECT `+trackColumns+` FROM tracks WHERE album_id = ?
		ORDER BY disc, track_number
	`, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, nil
}

// SetTrackLocation records where a track lives in the library
func (s *Store) SetTrackLocation(albumID, trackID, location string, bitrate int, format string) error {
	_, err := s.db.Exec(`
		UPDATE tracks SET location = ?, bitrate = ?, format = ?
		WHERE album_id = ? AND track_id = ?
	`, location, bitrate, format, albumID, trackID)
	if err != nil {
		return fmt.Errorf("failed to set track location: %w", err)
	}
	return nil
}

// AlbumTotalLength returns the summed duration of an album's tracks in ms
func (s *Store) AlbumTotalLength(albumID string) (int64, error) {
	var total int64
	err := s.db.Get(&total, `SELECT COALESCE(SUM(duration_ms), 0) FROM tracks WHERE album_id = ?`, albumID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum track lengths: %w", err)
	}
	return total, nil
}

// CountTracks returns the total and owned track counts of an album
func (s *Store) CountTracks(albumID string) (total, owned int, err error) {
	row := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN location != '' THEN 1 ELSE 0 END), 0)
		FROM tracks WHERE album_id = ?
	`, albumID)
	if err := row.Scan(&total, &owned); err != nil {
		return 0, 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return total, owned, nil
}
