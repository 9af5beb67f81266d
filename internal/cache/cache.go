// Package cache is the translation memory: an in-memory map backed by
// an embedded SQLite database so repeated runs never pay for the same
// API translation twice.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"event-translator/internal/textutil"
)

const schema = `
CREATE TABLE IF NOT EXISTS translations (
	hash       TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	translated TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);`

// TranslationCache provides in-memory + SQLite-backed caching for
// translations, keyed by a hash of the source text.
type TranslationCache struct {
	db     *sql.DB
	mu     sync.RWMutex
	memory map[string]string
}

// Open creates or opens the cache database at path.
func Open(path string) (*TranslationCache, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &TranslationCache{db: db, memory: make(map[string]string)}, nil
}

// Close releases the underlying database.
func (c *TranslationCache) Close() error {
	return c.db.Close()
}

// Get retrieves a cached translation. Returns false if not found.
func (c *TranslationCache) Get(ctx context.Context, sourceText string) (string, bool) {
	hash := textutil.Hash(sourceText)

	c.mu.RLock()
	if v, ok := c.memory[hash]; ok {
		c.mu.RUnlock()
		return v, true
	}
	c.mu.RUnlock()

	var translated string
	err := c.db.QueryRowContext(ctx,
		"SELECT translated FROM translations WHERE hash = ?", hash).Scan(&translated)
	if err != nil {
		return "", false
	}

	c.mu.Lock()
	c.memory[hash] = translated
	c.mu.Unlock()
	return translated, true
}

// Set stores a translation in both the in-memory map and the database.
func (c *TranslationCache) Set(ctx context.Context, sourceText, translated string) error {
	hash := textutil.Hash(sourceText)

	c.mu.Lock()
	c.memory[hash] = translated
	c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO translations (hash, source, translated) VALUES (?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET translated = excluded.translated`,
		hash, sourceText, translated)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Preload loads every cached translation into memory.
func (c *TranslationCache) Preload(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, "SELECT hash, translated FROM translations")
	if err != nil {
		return fmt.Errorf("preload cache: %w", err)
	}
	defer rows.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for rows.Next() {
		var hash, translated string
		if err := rows.Scan(&hash, &translated); err != nil {
			return fmt.Errorf("preload cache: %w", err)
		}
		c.memory[hash] = translated
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload cache: %w", err)
	}

	log.Info().Int("count", count).Msg("Preloaded translation cache")
	return nil
}
