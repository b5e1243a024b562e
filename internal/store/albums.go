package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/franz/albumhound/internal/util"
)

const albumColumns = `album_id, artist_id, artist_name, title, release_date, type,
	status, release_id, search_term, quality, date_added`

// UpsertAlbum inserts a new album or refreshes the MusicBrainz fields of an
// existing one. The status, search term and quality of an existing album
// are never overwritten. Returns true when the album was created.
func (s *Store) UpsertAlbum(a *Album) (bool, error) {
	if a.Status == "" {
		a.Status = StatusSkipped
	}

	var created bool
	err := s.Transaction(func(tx *sqlx.Tx) error {
		var n int
		if err := tx.Get(&n, `SELECT COUNT(*) FROM albums WHERE album_id = ?`, a.ID); err != nil {
			return err
		}
		created = n == 0

		_, err := tx.Exec(`
			INSERT INTO albums (album_id, artist_id, artist_name, title, release_date, type, status, release_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(album_id) DO UPDATE SET
				artist_name = excluded.artist_name,
				title = excluded.title,
				release_date = excluded.release_date,
				type = excluded.type,
				release_id = CASE WHEN excluded.release_id != '' THEN excluded.release_id ELSE albums.release_id END
		`, a.ID, a.ArtistID, a.ArtistName, a.Title, a.ReleaseDate, a.Type, a.Status, a.ReleaseID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert album: %w", err)
	}
	return created, nil
}

// GetAlbum returns the album with the given release-group MBID
func (s *Store) GetAlbum(id string) (*Album, error) {
	var a Album
	err := s.db.Get(&a, `SELECT `+albumColumns+` FROM albums WHERE album_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("album %s: %w", id, util.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get album: %w", err)
	}
	return &a, nil
}

// ListAlbumsByStatus returns albums in any of the given statuses, oldest
// release first. No statuses means every album.
func (s *Store) ListAlbumsByStatus(statuses ...string) ([]Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums`
	var args []interface{}
	if len(statuses) > 0 {
		q, a, err := sqlx.In(query+` WHERE status IN (?)`, statuses)
		if err != nil {
			return nil, err
		}
		query, args = q, a
	}
	query += ` ORDER BY release_date, title`

	var albums []Album
	if err := s.db.Select(&albums, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	return albums, nil
}

// ListAlbumsByArtist returns an artist's albums, newest first
func (s *Store) ListAlbumsByArtist(artistID string) ([]Album, error) {
	var albums []Album
	err := s.db.Select(&albums, `
		SELECT `+albumColumns+` FROM albums WHERE artist_id = ?
		ORDER BY release_date DESC, title
	`, artistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	return albums, nil
}

// SetAlbumStatus sets an album's status unconditionally
func (s *Store) SetAlbumStatus(id, status string) error {
	if !ValidAlbumStatus(status) {
		return fmt.Errorf("%w: album status %q", util.ErrUnsupported, status)
	}
	res, err := s.db.Exec(`UPDATE albums SET status = ? WHERE album_id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set album status: %w", err)
	}
	return requireRow(res, "album", id)
}

// SetAlbumStatusIf moves an album to status only when its current status is
// one of from. Returns false when the album was in another state.
func (s *Store) SetAlbumStatusIf(id, status string, from ...string) (bool, error) {
	if len(from) == 0 {
		return false, s.SetAlbumStatus(id, status)
	}
	query, args, err := sqlx.In(`UPDATE albums SET status = ? WHERE album_id = ? AND status IN (?)`, status, id, from)
	if err != nil {
		return false, err
	}
	res, err := s.db.Exec(s.db.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to set album status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetAlbumPreferences stores the per-album search term and quality overrides.
// Empty values clear the override.
func (s *Store) SetAlbumPreferences(id, searchTerm, quality string) error {
	res, err := s.db.Exec(`UPDATE albums SET search_term = ?, quality = ? WHERE album_id = ?`,
		searchTerm, quality, id)
	if err != nil {
		return fmt.Errorf("failed to set album preferences: %w", err)
	}
	return requireRow(res, "album", id)
}

// SetAlbumRelease records the release chosen for an album
func (s *Store) SetAlbumRelease(id, releaseID string) error {
	_, err := s.db.Exec(`UPDATE albums SET release_id = ? WHERE album_id = ?`, releaseID, id)
	return err
}

// FindAlbums searches albums by artist and title substring, case-insensitive
func (s *Store) FindAlbums(artist, title string) ([]Album, error) {
	var albums []Album
	err := s.db.Select(&albums, `
		SELECT `+albumColumns+` FROM albums
		WHERE artist_name LIKE ? COLLATE NOCASE AND title LIKE ? COLLATE NOCASE
		ORDER BY release_date
	`, "%"+artist+"%", "%"+title+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to find albums: %w", err)
	}
	return albums, nil
}
