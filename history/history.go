// Package history keeps a log of completed fetches in SQLite.
package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Record describes one fetch. Network fetches carry the request and
// response as HTTP/1.1 bytes; filesystem fetches carry only the body in
// Response.
type Record struct {
	ID          int64
	URL         string
	Scheme      string
	StatusCode  int
	CacheStatus string
	Request     []byte
	Response    []byte
	FetchedAt   time.Time
}

type Log struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// Open opens the history database at dsn, creating it if needed.
// If dsn is empty, a private in-memory db is opened.
func Open(dsn string) (*Log, error) {
	inMemory := dsn == ""
	if inMemory {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if inMemory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT,
		scheme TEXT,
		status INTEGER,
		cache_status TEXT,
		request BLOB,
		response BLOB,
		fetched_at INTEGER
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history table: %w", err)
	}
	_, err = db.Exec("CREATE INDEX IF NOT EXISTS url_idx ON history (url)")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history index: %w", err)
	}
	if !inMemory {
		if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL: %w", err)
		}
	}
	return &Log{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

// Record appends rec to the log and returns its id.
func (l *Log) Record(rec Record) (int64, error) {
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now()
	}
	result, err := l.db.Exec(`INSERT INTO history
		(url, scheme, status, cache_status, request, response, fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.URL, rec.Scheme, rec.StatusCode, rec.CacheStatus, rec.Request, rec.Response, rec.FetchedAt.UnixNano())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Recent returns up to n records, newest first.
func (l *Log) Recent(n int) ([]Record, error) {
	return l.query(`SELECT id, url, scheme, status, cache_status, request, response, fetched_at
		FROM history ORDER BY id DESC LIMIT ?`, n)
}

// ForURL returns all records for url, newest first.
func (l *Log) ForURL(url string) ([]Record, error) {
	return l.query(`SELECT id, url, scheme, status, cache_status, request, response, fetched_at
		FROM history WHERE url = ? ORDER BY id DESC`, url)
}

func (l *Log) query(query string, args ...any) ([]Record, error) {
	records := make([]Record, 0)
	rows, err := l.db.Query(query, args...)
	if err != nil {
		return records, err
	}
	defer rows.Close()
	for rows.Next() {
		var rec Record
		var fetched int64
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.Scheme, &rec.StatusCode, &rec.CacheStatus,
			&rec.Request, &rec.Response, &fetched); err != nil {
			return records, err
		}
		rec.FetchedAt = time.Unix(0, fetched)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (l *Log) Close() error {
	return l.db.Close()
}
