// Package store keeps named reference palettes, with their color edits, in
// a SQLite database so a batch can be replayed later against the same
// palette.
package store

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"image/color"

	_ "github.com/mattn/go-sqlite3"

	"github.com/makeworld-the-better-one/indexed/palette"
)

var ErrNotFound = errors.New("no such palette")

type DB struct {
	db *sql.DB
}

// Entry describes a stored palette.
type Entry struct {
	Name   string
	Colors int
	Edits  int
}

func Open(file string) (*DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS palette (id INTEGER PRIMARY KEY NOT NULL, name TEXT NOT NULL UNIQUE, pal BLOB NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS edit (palette_id INTEGER NOT NULL, idx INTEGER NOT NULL, rgba INTEGER NOT NULL, PRIMARY KEY(palette_id, idx), FOREIGN KEY(palette_id) REFERENCES palette(id) ON DELETE CASCADE)"); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{
		db: db,
	}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Save stores pal and edits under name, replacing whatever was stored there.
// The palette is kept in RIFF PAL form, which has no alpha; edits keep it.
func (db *DB) Save(name string, pal *palette.Palette, edits palette.Mapping) error {
	if name == "" {
		return errors.New("palette name can't be empty")
	}
	b := new(bytes.Buffer)
	if err := palette.WriteRIFF(b, pal); err != nil {
		return err
	}

	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id int64
	switch err := tx.QueryRow("SELECT id FROM palette WHERE name = ?", name).Scan(&id); err {
	case sql.ErrNoRows:
		result, err := tx.Exec("INSERT INTO palette (name, pal) VALUES (?, ?)", name, b.Bytes())
		if err != nil {
			return err
		}
		if id, err = result.LastInsertId(); err != nil {
			return err
		}
	case nil:
		if _, err := tx.Exec("UPDATE palette SET pal = ? WHERE id = ?", b.Bytes(), id); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM edit WHERE palette_id = ?", id); err != nil {
			return err
		}
	default:
		return err
	}

	for _, idx := range edits.Indices() {
		if _, err := tx.Exec("INSERT INTO edit (palette_id, idx, rgba) VALUES (?, ?, ?)", id, idx, pack(edits[idx])); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Load returns the palette stored under name and its edits. The edits are
// not applied to the palette.
func (db *DB) Load(name string) (*palette.Palette, palette.Mapping, error) {
	var (
		id  int64
		raw []byte
	)
	switch err := db.db.QueryRow("SELECT id, pal FROM palette WHERE name = ?", name).Scan(&id, &raw); err {
	case sql.ErrNoRows:
		return nil, nil, fmt.Errorf("'%s': %w", name, ErrNotFound)
	case nil:
	default:
		return nil, nil, err
	}

	pal, err := palette.ReadRIFF(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("stored palette '%s': %w", name, err)
	}

	rows, err := db.db.Query("SELECT idx, rgba FROM edit WHERE palette_id = ? ORDER BY idx", id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	edits := make(palette.Mapping)
	for rows.Next() {
		var (
			idx  int
			rgba uint32
		)
		if err := rows.Scan(&idx, &rgba); err != nil {
			return nil, nil, err
		}
		edits[idx] = unpack(rgba)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return pal, edits, nil
}

// List returns every stored palette, sorted by name.
func (db *DB) List() ([]Entry, error) {
	rows, err := db.db.Query("SELECT p.name, p.pal, COUNT(e.idx) FROM palette AS p LEFT JOIN edit AS e ON e.palette_id = p.id GROUP BY p.id ORDER BY p.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e   Entry
			raw []byte
		)
		if err := rows.Scan(&e.Name, &raw, &e.Edits); err != nil {
			return nil, err
		}
		pal, err := palette.ReadRIFF(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("stored palette '%s': %w", e.Name, err)
		}
		e.Colors = pal.Used()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (db *DB) Delete(name string) error {
	result, err := db.db.Exec("DELETE FROM palette WHERE name = ?", name)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("'%s': %w", name, ErrNotFound)
	}
	return nil
}

func pack(c color.NRGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}

func unpack(v uint32) color.NRGBA {
	return color.NRGBA{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}
}
