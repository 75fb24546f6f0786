// Package history remembers which hostnames were already reported to an
// issue so repeated audits only report new violations.
//
// Lookups go through a Bloom filter first and fall back to the bolt
// database only when the filter cannot rule a hostname out.
package history

import (
	"fmt"
	"sync"
	"time"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/tf-spf-audit/internal/audit/common/clock"
	"github.com/haukened/tf-spf-audit/internal/audit/common/log"
	"github.com/haukened/tf-spf-audit/internal/audit/domain"
)

const (
	minFilterCapacity = 1024
	filterFPRate      = 0.01
)

// Scope returns the history key for an issue, e.g. "acme/dns#17".
func Scope(owner, repo string, issue int) string {
	return fmt.Sprintf("%s/%s#%d", owner, repo, issue)
}

// Options configures a Store.
type Options struct {
	Clock  clock.Clock
	Logger log.Logger
}

// Store is a bolt-backed record of reported hostnames, bucketed by scope.
type Store struct {
	db     *bbolt.DB
	clock  clock.Clock
	logger log.Logger

	mu     sync.RWMutex
	filter *bitsbloom.BloomFilter
}

// Open opens (or creates) the database at path and loads the Bloom filter
// from its contents.
func Open(path string, opts Options) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history db %s: %w", path, err)
	}
	s := &Store{db: db, clock: opts.Clock, logger: log.OrNoop(opts.Logger)}
	if s.clock == nil {
		s.clock = clock.UTC{}
	}
	if err := s.loadFilter(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

func filterKey(scope string, host domain.Hostname) []byte {
	return []byte(scope + "|" + string(host))
}

// loadFilter sizes a fresh Bloom filter for the stored keys and fills it.
func (s *Store) loadFilter() error {
	var keys [][]byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(scope []byte, b *bbolt.Bucket) error {
			return b.ForEach(func(host, _ []byte) error {
				keys = append(keys, filterKey(string(scope), domain.Hostname(host)))
				return nil
			})
		})
	})
	if err != nil {
		return fmt.Errorf("failed to scan history db: %w", err)
	}

	capacity := uint(len(keys) * 2)
	if capacity < minFilterCapacity {
		capacity = minFilterCapacity
	}
	filter := bitsbloom.NewWithEstimates(capacity, filterFPRate)
	for _, k := range keys {
		filter.Add(k)
	}

	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()

	s.logger.Debug(map[string]any{"entries": len(keys), "capacity": capacity}, "History filter loaded")
	return nil
}

// Seen reports whether host was already reported under scope.
func (s *Store) Seen(scope string, host domain.Hostname) (bool, error) {
	s.mu.RLock()
	maybe := s.filter.Test(filterKey(scope, host))
	s.mu.RUnlock()
	if !maybe {
		return false, nil
	}

	var present bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return nil
		}
		present = b.Get([]byte(host)) != nil
		return nil
	})
	return present, err
}

// Unseen returns the hosts not yet reported under scope, preserving order.
func (s *Store) Unseen(scope string, hosts []domain.Hostname) ([]domain.Hostname, error) {
	out := make([]domain.Hostname, 0, len(hosts))
	for _, h := range hosts {
		seen, err := s.Seen(scope, h)
		if err != nil {
			return nil, err
		}
		if !seen {
			out = append(out, h)
		}
	}
	return out, nil
}

// MarkReported stores hosts under scope, stamped with runID and the current time.
func (s *Store) MarkReported(scope, runID string, hosts []domain.Hostname) error {
	if len(hosts) == 0 {
		return nil
	}
	val, err := Entry{RunID: runID, ReportedAt: s.clock.Now()}.MarshalMsg(nil)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(scope))
		if err != nil {
			return err
		}
		for _, h := range hosts {
			if err := b.Put([]byte(h), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record reported hosts: %w", err)
	}

	s.mu.Lock()
	for _, h := range hosts {
		s.filter.Add(filterKey(scope, h))
	}
	s.mu.Unlock()
	return nil
}

// Prune forgets every host under scope that is not in current, so a host
// that was fixed and later regresses is reported again. It returns how
// many hosts were removed. Stale filter bits are harmless: Seen confirms
// against the database.
func (s *Store) Prune(scope string, current domain.HostnameSet) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return nil
		}
		var stale [][]byte
		if err := b.ForEach(func(host, _ []byte) error {
			if !current.Has(domain.Hostname(host)) {
				k := make([]byte, len(host))
				copy(k, host)
				stale = append(stale, k)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return removed, nil
}

// Entries returns every stored entry under scope.
func (s *Store) Entries(scope string) (map[domain.Hostname]Entry, error) {
	out := make(map[domain.Hostname]Entry)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return nil
		}
		return b.ForEach(func(host, val []byte) error {
			var e Entry
			if _, err := e.UnmarshalMsg(val); err != nil {
				return fmt.Errorf("entry %s: %w", host, err)
			}
			out[domain.Hostname(host)] = e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
