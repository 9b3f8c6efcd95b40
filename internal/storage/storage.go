package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Storage keys
const (
	keyPreferences = "preferences"
	keyStats       = "stats"
)

// Tablebase modes
const (
	TablebaseNone    = "none"
	TablebaseLichess = "lichess"
)

// Preferences stores engine options that survive restarts.
type Preferences struct {
	HashMB    int       `json:"hash_mb"`
	OwnBook   bool      `json:"own_book"`
	BookFile  string    `json:"book_file"`
	Tablebase string    `json:"tablebase"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPreferences returns default engine preferences
func DefaultPreferences() *Preferences {
	return &Preferences{
		HashMB:    64,
		OwnBook:   true,
		Tablebase: TablebaseNone,
	}
}

// Stats holds counters accumulated over every search.
type Stats struct {
	Searches      uint64        `json:"searches"`
	Nodes         uint64        `json:"nodes"`
	BookHits      uint64        `json:"book_hits"`
	TablebaseHits uint64        `json:"tablebase_hits"`
	SearchTime    time.Duration `json:"search_time"`
	LastSearch    time.Time     `json:"last_search"`
}

// NodesPerSecond returns the average search speed over all searches.
func (s *Stats) NodesPerSecond() float64 {
	if s.SearchTime <= 0 {
		return 0
	}
	return float64(s.Nodes) / s.SearchTime.Seconds()
}

// SearchRecord describes one finished search.
type SearchRecord struct {
	Nodes     uint64
	Time      time.Duration
	Book      bool
	Tablebase bool
}

// Storage wraps BadgerDB for persistent storage
type Storage struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Open opens or creates the database in dir.
func Open(dir string, logger zerolog.Logger) (*Storage, error) {
	return open(badger.DefaultOptions(dir), logger)
}

// OpenInMemory opens a database that is never written to disk.
func OpenInMemory(logger zerolog.Logger) (*Storage, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger zerolog.Logger) (*Storage, error) {
	logger = logger.With().Str("component", "storage").Logger()
	db, err := badger.Open(opts.WithLogger(badgerLogger{logger}))
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	logger.Debug().Str("dir", opts.Dir).Bool("in_memory", opts.InMemory).Msg("database opened")
	return &Storage{db: db, logger: logger}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("storage: close: %w", err)
	}
	s.db = nil
	return nil
}

// SavePreferences saves engine preferences
func (s *Storage) SavePreferences(prefs *Preferences) error {
	prefs.UpdatedAt = time.Now()
	return s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, keyPreferences, prefs)
	})
}

// LoadPreferences loads engine preferences, returns defaults if not found
func (s *Storage) LoadPreferences() (*Preferences, error) {
	prefs := DefaultPreferences()
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keyPreferences, prefs)
	})
	return prefs, err
}

// LoadStats loads search statistics, returns empty stats if not found
func (s *Storage) LoadStats() (*Stats, error) {
	stats := &Stats{}
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keyStats, stats)
	})
	return stats, err
}

// RecordSearch adds one search to the statistics.
func (s *Storage) RecordSearch(rec SearchRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		stats := &Stats{}
		if err := getJSON(txn, keyStats, stats); err != nil {
			return err
		}
		stats.Searches++
		stats.Nodes += rec.Nodes
		stats.SearchTime += rec.Time
		stats.LastSearch = time.Now()
		if rec.Book {
			stats.BookHits++
		}
		if rec.Tablebase {
			stats.TablebaseHits++
		}
		return putJSON(txn, keyStats, stats)
	})
}

// getJSON decodes the value at key into v, leaving v unchanged when the
// key is absent.
func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return fmt.Errorf("storage: decode %s: %w", key, err)
		}
		return nil
	})
}

func putJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

// badgerLogger routes BadgerDB's internal messages through zerolog. Info
// messages are demoted to debug; badger is chatty on open and close.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error().Msgf(trimNewline(format), args...)
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn().Msgf(trimNewline(format), args...)
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug().Msgf(trimNewline(format), args...)
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Trace().Msgf(trimNewline(format), args...)
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		return s[:n-1]
	}
	return s
}
