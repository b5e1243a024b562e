package store

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const haveColumns = `location, artist_name, album_title, track_title, track_number,
	disc, format, bitrate, duration_ms, matched_album_id`

// ReplaceHave replaces every have row under prefix with rows. An empty
// prefix replaces the whole table.
func (s *Store) ReplaceHave(prefix string, rows []Have) error {
	return s.Transaction(func(tx *sqlx.Tx) error {
		var err error
		if prefix == "" {
			_, err = tx.Exec(`DELETE FROM have`)
		} else {
			_, err = tx.Exec(`DELETE FROM have WHERE substr(location, 1, ?) = ?`, len(prefix), prefix)
		}
		if err != nil {
			return fmt.Errorf("failed to clear have: %w", err)
		}

		for _, h := range rows {
			if _, err := tx.NamedExec(`
				INSERT OR REPLACE INTO have (`+haveColumns+`)
				VALUES (:location, :artist_name, :album_title, :track_title, :track_number,
				        :disc, :format, :bitrate, :duration_ms, :matched_album_id)
			`, h); err != nil {
				return fmt.Errorf("failed to insert have %s: %w", h.Location, err)
			}
		}
		return nil
	})
}

// ListHave returns library files, optionally only the unmatched ones
func (s *Store) ListHave(unmatchedOnly bool) ([]Have, error) {
	query := `SELECT ` + haveColumns + ` FROM have`
	if unmatchedOnly {
		query += ` WHERE matched_album_id = ''`
	}
	query += ` ORDER BY location`

	var rows []Have
	if err := s.db.Select(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to list have: %w", err)
	}
	return rows, nil
}

// MatchHave links a library file to an album
func (s *Store) MatchHave(location, albumID string) error {
	_, err := s.db.Exec(`UPDATE have SET matched_album_id = ? WHERE location = ?`, albumID, location)
	if err != nil {
		return fmt.Errorf("failed to match have: %w", err)
	}
	return nil
}

// Stats summarizes the database for the status command and the API
type Stats struct {
	Artists   int            `json:"artists"`
	Albums    map[string]int `json:"albums"`
	Snatched  map[string]int `json:"snatched"`
	Have      int            `json:"have"`
	Unmatched int            `json:"unmatched"`
	Blacklist int            `json:"blacklist"`
}

// Stats counts rows per table and status
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{Albums: map[string]int{}, Snatched: map[string]int{}}

	counts := []struct {
		dst   *int
		query string
	}{
		{&st.Artists, `SELECT COUNT(*) FROM artists`},
		{&st.Have, `SELECT COUNT(*) FROM have`},
		{&st.Unmatched, `SELECT COUNT(*) FROM have WHERE matched_album_id = ''`},
		{&st.Blacklist, `SELECT COUNT(*) FROM blacklist`},
	}
	for _, c := range counts {
		if err := s.db.Get(c.dst, c.query); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	if err := s.groupCount(`SELECT status, COUNT(*) FROM albums GROUP BY status`, st.Albums); err != nil {
		return nil, err
	}
	if err := s.groupCount(`SELECT status, COUNT(*) FROM snatched GROUP BY status`, st.Snatched); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) groupCount(query string, into map[string]int) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return err
		}
		into[strings.TrimSpace(status)] = n
	}
	return rows.Err()
}
