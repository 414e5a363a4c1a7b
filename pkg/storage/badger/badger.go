package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/nicktill/thermonest/pkg/sensor"
	"github.com/nicktill/thermonest/pkg/storage"
)

const keyLen = 24

// Storage implements storage.Storage using BadgerDB (LSM tree)
type Storage struct {
	db *badger.DB
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = use defaults)
	MaxMemoryMB int64
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	// BadgerDB defaults to 64 MB memtables x5; a sensor box needs far less.
	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}

	blockCacheSize := memTableSize / 2
	indexCacheSize := memTableSize / 4

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(blockCacheSize).
		WithIndexCacheSize(indexCacheSize).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(2). // minimum badger accepts
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20) // 64 MB instead of the 2 GB default

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Storage{db: db}, nil
}

// Write stores observations in BadgerDB. A reading with the same
// measurement, source and timestamp overwrites the previous one.
func (s *Storage) Write(ctx context.Context, obs []sensor.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(func(txn *badger.Txn) error {
			for i, o := range obs {
				if i%100 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				value, err := json.Marshal(o)
				if err != nil {
					return fmt.Errorf("failed to encode observation: %w", err)
				}

				if err := txn.Set(makeKey(o.Measurement, o.Source, o.Time), value); err != nil {
					return fmt.Errorf("failed to write observation: %w", err)
				}
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("write operation cancelled: %w", ctx.Err())
	}
}

// Query retrieves observations matching the request. Each measurement is a
// key prefix, so the scan seeks straight to the window start and returns
// observations in ascending time order per measurement.
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]sensor.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	measurements := req.Measurements
	if len(measurements) == 0 {
		measurements = sensor.Measurements
	}
	start, end := req.Bounds()

	type queryResult struct {
		results []sensor.Observation
		err     error
	}
	done := make(chan queryResult, 1)

	go func() {
		var res queryResult
		startTime := time.Now()
		var iterCount int

		res.err = s.db.View(func(txn *badger.Txn) error {
			for _, m := range measurements {
				prefix := measurementPrefix(m)

				opts := badger.DefaultIteratorOptions
				opts.PrefetchSize = 100
				opts.Prefix = prefix

				it := txn.NewIterator(opts)
				for it.Seek(seekKey(prefix, start)); it.ValidForPrefix(prefix); it.Next() {
					iterCount++
					if iterCount%1000 == 0 {
						select {
						case <-ctx.Done():
							it.Close()
							return ctx.Err()
						default:
						}
					}

					if _, ts := parseKey(it.Item().Key()); ts.After(end) {
						break
					}

					var o sensor.Observation
					if err := it.Item().Value(func(val []byte) error {
						return json.Unmarshal(val, &o)
					}); err != nil {
						it.Close()
						return fmt.Errorf("failed to decode observation: %w", err)
					}

					res.results = append(res.results, o)
					if req.Limit > 0 && len(res.results) >= req.Limit {
						it.Close()
						return nil
					}
				}
				it.Close()
			}
			return nil
		})

		if elapsed := time.Since(startTime); elapsed > 5*time.Second {
			log.Printf("Slow query completed in %v (%d iterations, %d results)", elapsed, iterCount, len(res.results))
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res.results, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("query operation cancelled: %w", ctx.Err())
	}
}

// Delete removes observations older than the given time
func (s *Storage) Delete(ctx context.Context, before time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		var keysToDelete [][]byte

		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			defer it.Close()

			var iterCount int
			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				if _, ts := parseKey(it.Item().Key()); ts.Before(before) {
					keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
				}
			}
			return nil
		})
		if err != nil {
			done <- err
			return
		}

		// WriteBatch splits large deletes across transactions
		wb := s.db.NewWriteBatch()
		defer wb.Cancel()
		for _, key := range keysToDelete {
			if err := wb.Delete(key); err != nil {
				done <- err
				return
			}
		}
		done <- wb.Flush()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("delete operation cancelled: %w", ctx.Err())
	}
}

// Close shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	return s.db.Close()
}

// ErrNoRewrite is returned by RunGC when no value log file had enough garbage
// to be rewritten. It is not a failure.
var ErrNoRewrite = badger.ErrNoRewrite

// RunGC runs BadgerDB's value log garbage collection.
// discardRatio: run GC if this fraction of a file can be discarded (0.5 = 50%).
// Returns ErrNoRewrite when there was nothing to collect.
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type statsResult struct {
		stats *storage.Stats
		err   error
	}
	done := make(chan statsResult, 1)

	go func() {
		var res statsResult
		stats := &storage.Stats{}

		res.err = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			defer it.Close()

			series := make(map[string]bool)
			var iterCount int

			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				stats.TotalObservations++

				seriesKey, ts := parseKey(it.Item().Key())
				series[seriesKey] = true

				if stats.Oldest.IsZero() || ts.Before(stats.Oldest) {
					stats.Oldest = ts
				}
				if stats.Newest.IsZero() || ts.After(stats.Newest) {
					stats.Newest = ts
				}
			}

			stats.TotalSeries = uint64(len(series))
			return nil
		})

		if res.err == nil {
			lsmSize, vlogSize := s.db.Size()
			stats.SizeBytes = uint64(lsmSize + vlogSize)
		}

		res.stats = stats
		done <- res
	}()

	select {
	case res := <-done:
		return res.stats, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("stats operation cancelled: %w", ctx.Err())
	}
}

// makeKey creates a sortable key.
// Format: [measurement_hash (8 bytes)][timestamp (8 bytes)][source_hash (8 bytes)]
func makeKey(m sensor.Measurement, source string, ts time.Time) []byte {
	key := make([]byte, keyLen)
	binary.BigEndian.PutUint64(key[0:8], xxhash.Sum64String(string(m)))
	binary.BigEndian.PutUint64(key[8:16], uint64(ts.UnixNano()))
	binary.BigEndian.PutUint64(key[16:24], xxhash.Sum64String(source))
	return key
}

func measurementPrefix(m sensor.Measurement) []byte {
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, xxhash.Sum64String(string(m)))
	return prefix
}

func seekKey(prefix []byte, ts time.Time) []byte {
	key := make([]byte, 16)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[8:16], uint64(ts.UnixNano()))
	return key
}

// parseKey extracts the series identity and timestamp from a storage key
func parseKey(key []byte) (string, time.Time) {
	if len(key) < keyLen {
		return "", time.Time{}
	}
	series := fmt.Sprintf("%x/%x", key[0:8], key[16:24])
	ts := time.Unix(0, int64(binary.BigEndian.Uint64(key[8:16])))
	return series, ts
}
