package store

import (
	"database/sql"
	"fmt"
	"time"
)

const navColumns = "id, origin_file, origin_line, origin_col, target_file, target_line, target_col, created_at"

// PushNavigation appends a frame to the top of the stack and returns its ID.
func (s *Store) PushNavigation(e *NavEntry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		"INSERT INTO navigation (origin_file, origin_line, origin_col, target_file, target_line, target_col, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.Origin.File, e.Origin.Line, e.Origin.Column, e.Target.File, e.Target.Line, e.Target.Column, e.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("push navigation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return id, nil
}

func scanNavEntry(scanner interface{ Scan(...any) error }) (*NavEntry, error) {
	e := &NavEntry{}
	err := scanner.Scan(&e.ID, &e.Origin.File, &e.Origin.Line, &e.Origin.Column,
		&e.Target.File, &e.Target.Line, &e.Target.Column, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// PopNavigation removes and returns the most recent frame, or nil when the
// stack is empty.
func (s *Store) PopNavigation() (*NavEntry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	e, err := scanNavEntry(tx.QueryRow("SELECT " + navColumns + " FROM navigation ORDER BY id DESC LIMIT 1"))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop navigation: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM navigation WHERE id = ?", e.ID); err != nil {
		return nil, fmt.Errorf("delete navigation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

// PopNavigationWhileTarget pops frames while the top frame's target lies in
// file. Frames deeper in the stack are left alone once a frame for another
// file is on top. Returns the number of frames removed.
func (s *Store) PopNavigationWhileTarget(file string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	popped := 0
	for {
		var id int64
		var target string
		err := tx.QueryRow("SELECT id, target_file FROM navigation ORDER BY id DESC LIMIT 1").Scan(&id, &target)
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("top navigation: %w", err)
		}
		if target != file {
			break
		}
		if _, err := tx.Exec("DELETE FROM navigation WHERE id = ?", id); err != nil {
			return 0, fmt.Errorf("delete navigation: %w", err)
		}
		popped++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return popped, nil
}

// Navigation returns every frame, bottom of the stack first.
func (s *Store) Navigation() ([]*NavEntry, error) {
	rows, err := s.db.Query("SELECT " + navColumns + " FROM navigation ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list navigation: %w", err)
	}
	defer rows.Close()
	var entries []*NavEntry
	for rows.Next() {
		e, err := scanNavEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan navigation: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TrimNavigation keeps only the newest max frames.
func (s *Store) TrimNavigation(max int) error {
	if max <= 0 {
		return nil
	}
	_, err := s.db.Exec(
		"DELETE FROM navigation WHERE id NOT IN (SELECT id FROM navigation ORDER BY id DESC LIMIT ?)", max,
	)
	if err != nil {
		return fmt.Errorf("trim navigation: %w", err)
	}
	return nil
}

// ClearNavigation empties the stack.
func (s *Store) ClearNavigation() error {
	if _, err := s.db.Exec("DELETE FROM navigation"); err != nil {
		return fmt.Errorf("clear navigation: %w", err)
	}
	return nil
}
