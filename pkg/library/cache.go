package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/circuitforge/circuitsync/pkg/kicad/schematic"
	"github.com/circuitforge/circuitsync/pkg/kicad/sexp"
)

// Cache is a Resolver that memoizes lookups from an inner resolver in
// a sqlite database. Entries are keyed by type identifier and
// invalidated when the source library file's mtime changes, so edits
// to a .kicad_sym file take effect without manual cache flushes.
type Cache struct {
	inner Resolver
	db    *sql.DB
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS symbols (
	lib_id    TEXT PRIMARY KEY,
	src_path  TEXT NOT NULL,
	src_mtime INTEGER NOT NULL,
	def       TEXT NOT NULL
);
`

// OpenCache opens (creating if needed) the cache database at path and
// wraps inner with it.
func OpenCache(path string, inner Resolver) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open symbol cache: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate symbol cache: %w", err)
	}
	return &Cache{inner: inner, db: db}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Resolve implements Resolver. Cache rows for symbols without a
// source file (synthetic resolvers) are never considered fresh.
func (c *Cache) Resolve(libID string) (*Symbol, error) {
	if sym, ok := c.lookup(libID); ok {
		return sym, nil
	}

	sym, err := c.inner.Resolve(libID)
	if err != nil {
		return nil, err
	}
	if sym.SrcPath != "" {
		if err := c.store(sym); err != nil {
			return nil, fmt.Errorf("cache %q: %w", libID, err)
		}
	}
	return sym, nil
}

func (c *Cache) lookup(libID string) (*Symbol, bool) {
	var srcPath, defText string
	var srcMtime int64
	err := c.db.QueryRow(
		`SELECT src_path, src_mtime, def FROM symbols WHERE lib_id = ?`, libID,
	).Scan(&srcPath, &srcMtime, &defText)
	if errors.Is(err, sql.ErrNoRows) || err != nil {
		return nil, false
	}

	info, err := os.Stat(srcPath)
	if err != nil || info.ModTime().Unix() != srcMtime {
		return nil, false
	}

	def, err := sexp.ParseString(defText)
	if err != nil {
		return nil, false
	}

	sym := &Symbol{
		LibID:    libID,
		Props:    defaultProps(def),
		Def:      def,
		SrcPath:  srcPath,
		SrcMtime: srcMtime,
	}
	sym.Pins = schematic.PinsOfLibSymbol(def)
	return sym, true
}

func (c *Cache) store(sym *Symbol) error {
	_, err := c.db.Exec(
		`INSERT INTO symbols (lib_id, src_path, src_mtime, def)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(lib_id) DO UPDATE SET
		   src_path = excluded.src_path,
		   src_mtime = excluded.src_mtime,
		   def = excluded.def`,
		sym.LibID, sym.SrcPath, sym.SrcMtime, string(sexp.Serialize(sym.Def)),
	)
	return err
}
