package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/franz/albumhound/internal/util"
)

// UpsertArtist inserts an artist or refreshes its names.
// Status and include_extras of an existing artist are left alone.
func (s *Store) UpsertArtist(a *Artist) error {
	if a.Status == "" {
		a.Status = ArtistLoading
	}
	_, err := s.db.Exec(`
		INSERT INTO artists (artist_id, name, sort_name, status, include_extras, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(artist_id) DO UPDATE SET
			name = excluded.name,
			sort_name = excluded.sort_name,
			last_updated = excluded.last_updated
	`, a.ID, a.Name, a.SortName, a.Status, a.IncludeExtras, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert artist: %w", err)
	}
	return nil
}

// GetArtist returns the artist with the given MBID
func (s *Store) GetArtist(id string) (*Artist, error) {
	var a Artist
	err := s.db.Get(&a, `
		SELECT artist_id, name, sort_name, status, include_extras, date_added, last_updated
		FROM artists WHERE artist_id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artist %s: %w", id, util.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artist: %w", err)
	}
	return &a, nil
}

// ListArtists returns every artist with album and downloaded counts
func (s *Store) ListArtists() ([]Artist, error) {
	var artists []Artist
	err := s.db.Select(&artists, `
		SELECT a.artist_id, a.name, a.sort_name, a.status, a.include_extras,
		       a.date_added, a.last_updated,
		       (SELECT COUNT(*) FROM albums WHERE artist_id = a.artist_id) AS album_count,
		       (SELECT COUNT(*) FROM albums WHERE artist_id = a.artist_id AND status = ?) AS have_count
		FROM artists a
		ORDER BY CASE WHEN a.sort_name != '' THEN a.sort_name ELSE a.name END COLLATE NOCASE
	`, StatusDownloaded)
	if err != nil {
		return nil, fmt.Errorf("failed to list artists: %w", err)
	}
	return artists, nil
}

// SetArtistStatus updates an artist's status
func (s *Store) SetArtistStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE artists SET status = ? WHERE artist_id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set artist status: %w", err)
	}
	return requireRow(res, "artist", id)
}

// TouchArtist records a completed refresh
func (s *Store) TouchArtist(id string) error {
	_, err := s.db.Exec(`UPDATE artists SET last_updated = ? WHERE artist_id = ?`, time.Now().UTC(), id)
	return err
}

// DeleteArtist removes an artist together with its albums and tracks.
// Snatched history is kept so URLs stay excluded from future searches.
func (s *Store) DeleteArtist(id string) error {
	return s.Transaction(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`
			DELETE FROM tracks WHERE album_id IN (SELECT album_id FROM albums WHERE artist_id = ?)
		`, id); err != nil {
			return fmt.Errorf("failed to delete tracks: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM albums WHERE artist_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete albums: %w", err)
		}
		res, err := tx.Exec(`DELETE FROM artists WHERE artist_id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete artist: %w", err)
		}
		return requireRow(res, "artist", id)
	})
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, util.ErrNotFound)
	}
	return nil
}
