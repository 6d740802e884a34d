package store

import (
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/text/cases"
)

// Alias store failures. Messages are stable: the bot relays them verbatim.
var (
	// ErrNotFound means no alias with that name exists.
	ErrNotFound = errors.New("alias not found")

	// ErrBadInsertion rejects an alias that cannot be stored.
	ErrBadInsertion = errors.New("alias rejected")
)

// Kind partitions the alias namespace.
type Kind string

const (
	// KindProgression names a chord progression or loop body.
	KindProgression Kind = "progression"
	// KindControl names a controller preset.
	KindControl Kind = "cc"
)

// Alias is one stored entry.
type Alias struct {
	Kind  Kind
	Name  string
	Value string
}

var fold = cases.Fold()

// normalize case-folds an alias name so lookups are case-insensitive.
func normalize(name string) string {
	return fold.String(name)
}

// Lookup returns the stored value for a name, or ErrNotFound.
func (s *Store) Lookup(kind Kind, name string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM aliases WHERE kind = ? AND name = ?`,
		string(kind), normalize(name),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("lookup alias %q: %w", name, err)
	}
	return value, nil
}

// Insert stores an alias, replacing any existing value under the same name.
func (s *Store) Insert(kind Kind, name, value string) error {
	if normalize(name) == "" || value == "" {
		return fmt.Errorf("%w: name and value must be non-empty", ErrBadInsertion)
	}
	_, err := s.db.Exec(
		`INSERT INTO aliases (kind, name, value) VALUES (?, ?, ?)
		 ON CONFLICT (kind, name) DO UPDATE SET value = excluded.value`,
		string(kind), normalize(name), value,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadInsertion, err)
	}
	return nil
}

// Delete removes an alias, or returns ErrNotFound.
func (s *Store) Delete(kind Kind, name string) error {
	res, err := s.db.Exec(
		`DELETE FROM aliases WHERE kind = ? AND name = ?`,
		string(kind), normalize(name),
	)
	if err != nil {
		return fmt.Errorf("delete alias %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete alias %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}

// List returns all aliases of a kind in name order.
func (s *Store) List(kind Kind) ([]Alias, error) {
	rows, err := s.db.Query(
		`SELECT name, value FROM aliases WHERE kind = ? ORDER BY name`,
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var out []Alias
	for rows.Next() {
		a := Alias{Kind: kind}
		if err := rows.Scan(&a.Name, &a.Value); err != nil {
			return nil, fmt.Errorf("list aliases: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
