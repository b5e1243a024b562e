package store

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const snatchedColumns = `id, album_id, title, size, url, provider, kind, client,
	folder_name, download_id, status, date_added`

// InsertSnatched records a snatch and fills in its ID
func (s *Store) InsertSnatched(sn *Snatched) error {
	return insertSnatched(s.db, sn)
}

// RecordSnatch inserts the snatch and moves its album to Snatched in one
// transaction, but only when the album is currently in one of from. When
// it is not, nothing is written and false is returned.
func (s *Store) RecordSnatch(sn *Snatched, from ...string) (bool, error) {
	moved := false
	err := s.Transaction(func(tx *sqlx.Tx) error {
		query, args, err := sqlx.In(`UPDATE albums SET status = ? WHERE album_id = ? AND status IN (?)`,
			StatusSnatched, sn.AlbumID, from)
		if err != nil {
			return err
		}
		res, err := tx.Exec(tx.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("failed to set album status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return nil
		}
		moved = true
		return insertSnatched(tx, sn)
	})
	if err != nil {
		return false, err
	}
	return moved, nil
}

func insertSnatched(db sqlx.Ext, sn *Snatched) error {
	if sn.Status == "" {
		sn.Status = SnatchSnatched
	}
	if sn.DateAdded.IsZero() {
		sn.DateAdded = time.Now().UTC()
	}
	res, err := sqlx.NamedExec(db, `
		INSERT INTO snatched (album_id, title, size, url, provider, kind, client,
		                      folder_name, download_id, status, date_added)
		VALUES (:album_id, :title, :size, :url, :provider, :kind, :client,
		        :folder_name, :download_id, :status, :date_added)
	`, sn)
	if err != nil {
		return fmt.Errorf("failed to insert snatched: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get snatched ID: %w", err)
	}
	sn.ID = id
	return nil
}

// ListSnatched returns the most recent snatches; limit <= 0 returns all
func (s *Store) ListSnatched(limit int) ([]Snatched, error) {
	query := `SELECT ` + snatchedColumns + ` FROM snatched ORDER BY date_added DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var rows []Snatched
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list snatched: %w", err)
	}
	return rows, nil
}

// ListSnatchedByStatus returns snatches in any of the given statuses, oldest first
func (s *Store) ListSnatchedByStatus(statuses ...string) ([]Snatched, error) {
	query, args, err := sqlx.In(`SELECT `+snatchedColumns+` FROM snatched WHERE status IN (?) ORDER BY id`, statuses)
	if err != nil {
		return nil, err
	}
	var rows []Snatched
	if err := s.db.Select(&rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list snatched: %w", err)
	}
	return rows, nil
}

// SetSnatchedStatus updates the status of one snatch
func (s *Store) SetSnatchedStatus(id int64, status string) error {
	res, err := s.db.Exec(`UPDATE snatched SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set snatched status: %w", err)
	}
	return requireRow(res, "snatched", fmt.Sprint(id))
}

// IsSnatched reports whether url was ever handed to a download client
func (s *Store) IsSnatched(url string) (bool, error) {
	var n int
	if err := s.db.Get(&n, `SELECT COUNT(*) FROM snatched WHERE url = ?`, url); err != nil {
		return false, fmt.Errorf("failed to check snatched: %w", err)
	}
	return n > 0, nil
}

// SnatchedForAlbum returns an album's snatch history, newest first
func (s *Store) SnatchedForAlbum(albumID string) ([]Snatched, error) {
	var rows []Snatched
	err := s.db.Select(&rows, `
		SELECT `+snatchedColumns+` FROM snatched WHERE album_id = ?
		ORDER BY date_added DESC, id DESC
	`, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snatched: %w", err)
	}
	return rows, nil
}

// AddBlacklist excludes url from every future search
func (s *Store) AddBlacklist(url, albumID, reason string) error {
	_, err := s.db.Exec(`
		INSERT INTO blacklist (url, album_id, reason) VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET reason = excluded.reason
	`, url, albumID, reason)
	if err != nil {
		return fmt.Errorf("failed to blacklist: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether url was blacklisted
func (s *Store) IsBlacklisted(url string) (bool, error) {
	var n int
	if err := s.db.Get(&n, `SELECT COUNT(*) FROM blacklist WHERE url = ?`, url); err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return n > 0, nil
}

// ListBlacklist returns every blacklisted URL, newest first
func (s *Store) ListBlacklist() ([]BlacklistEntry, error) {
	var rows []BlacklistEntry
	if err := s.db.Select(&rows, `SELECT url, album_id, reason, date_added FROM blacklist ORDER BY date_added DESC`); err != nil {
		return nil, fmt.Errorf("failed to list blacklist: %w", err)
	}
	return rows, nil
}
