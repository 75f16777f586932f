// Package cache keeps recently served month ledgers in memory.
package cache

import (
	"time"

	"billable/internal/core"
	"billable/internal/log"
)

// Cache defines a generic cache interface
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, data V)
	Delete(key K)
	Size() int
}

// MonthCache holds ledger views by month. It stores and hands out clones,
// so callers may modify what they get.
type MonthCache struct {
	lru *LRUCache[core.YearMonth, *core.Ledger]
}

func NewMonthCache(maxSize int, ttl time.Duration) *MonthCache {
	return &MonthCache{lru: NewLRUCache[core.YearMonth, *core.Ledger](maxSize, ttl)}
}

func (m *MonthCache) Get(ym core.YearMonth) (*core.Ledger, bool) {
	l, ok := m.lru.Get(ym)
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

func (m *MonthCache) Set(l *core.Ledger) {
	m.lru.Set(l.Month, l.Clone())
}

// InvalidateFrom drops ym and every later month. A change to a month can
// reach later months through recurring series.
func (m *MonthCache) InvalidateFrom(ym core.YearMonth) int {
	return m.lru.DeleteFunc(func(k core.YearMonth) bool { return !k.Before(ym) })
}

// Purge drops everything, e.g. after a rate change.
func (m *MonthCache) Purge() {
	m.lru.Purge()
}

func (m *MonthCache) Size() int {
	return m.lru.Size()
}

func (m *MonthCache) CleanExpired() int {
	return m.lru.CleanExpired()
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	caches      []Cleaner
	logger      *log.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// NewManager creates a new cache manager
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		logger:      logger.WithComponent(log.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			total := 0
			for _, c := range m.caches {
				total += c.CleanExpired()
			}
			if total > 0 {
				m.logger.Debug("Expired cache entries removed", log.FieldCount, total)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop stops the cleanup routine. It must follow StartCleanup.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
