package features

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // Registers the "sqlite" driver.
)

var errCorruptVector = errors.New("cached vector has invalid length")

// Cache wraps an Extractor and stores computed vectors in a SQLite database. An entry is
// keyed by absolute path, file size, modification time and the backbone tag, so a changed
// file or backbone is extracted again.
type Cache struct {
	db   *sql.DB
	next Extractor
	tag  string

	Hits, Misses int // Lookup counters.
}

// NewCache opens (or creates) the cache database at path in front of next.
// tag identifies the backbone producing the vectors.
func NewCache(path, tag string, next Extractor) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.WithField("error", err).Warn("Could not set WAL mode")
	}

	schema := `CREATE TABLE IF NOT EXISTS features (
        path TEXT NOT NULL,
        size INTEGER NOT NULL,
        mtime INTEGER NOT NULL,
        tag TEXT NOT NULL,
        vector BLOB NOT NULL,
        PRIMARY KEY (path, size, mtime, tag)
    );`
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return &Cache{db: db, next: next, tag: tag}, nil
}

// Extract returns the cached vector for path, computing and storing it on a miss.
func (c *Cache) Extract(path string) ([]float64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	size, mtime := info.Size(), info.ModTime().UnixNano()

	var blob []byte
	err = c.db.QueryRow(`SELECT vector FROM features WHERE path = ? AND size = ? AND mtime = ? AND tag = ?`,
		abs, size, mtime, c.tag).Scan(&blob)
	switch {
	case err == nil:
		vector, derr := decodeVector(blob)
		if derr == nil {
			c.Hits++
			return vector, nil
		}
		log.WithFields(log.Fields{"path": abs, "error": derr}).Warn("Discarding cached vector")
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	c.Misses++
	vector, err := c.next.Extract(path)
	if err != nil {
		return nil, err
	}

	if _, err := c.db.Exec(`INSERT OR REPLACE INTO features(path, size, mtime, tag, vector) VALUES(?,?,?,?,?)`,
		abs, size, mtime, c.tag, encodeVector(vector)); err != nil {
		log.WithFields(log.Fields{"path": abs, "error": err}).Warn("Could not cache vector")
	}

	return vector, nil
}

// Close closes the database and the wrapped extractor.
func (c *Cache) Close() error {
	return errors.Join(c.db.Close(), c.next.Close())
}

func encodeVector(v []float64) []byte {
	b := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(f))
	}
	return b
}

func decodeVector(b []byte) ([]float64, error) {
	if len(b) == 0 || len(b)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", errCorruptVector, len(b))
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v, nil
}
