// Package memory provides an in-process checkpoint store
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowgraph/ragagent/internal/core/checkpoint"
	"github.com/flowgraph/ragagent/pkg/serialization"
)

// InMemorySaver implements checkpoint.Saver with thread-safe in-memory storage.
// Checkpoints are stored serialized so callers never share state maps with
// the store.
// PRINCIPLES:
// - KISS: Simple in-memory map with proper concurrency
// - SRP: Single responsibility for in-memory checkpoint storage
// - DIP: Implements checkpoint.Saver interface
type InMemorySaver struct {
	mu      sync.RWMutex
	entries map[string]*checkpointEntry

	defaultTTL  time.Duration
	maxBytes    int64
	currentSize int64

	serializer *serialization.Serializer

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupOnce   sync.Once
}

// InMemoryConfig holds configuration for InMemorySaver
type InMemoryConfig struct {
	DefaultTTL      time.Duration             // Default TTL for checkpoints
	MaxMemoryMB     int64                     // Maximum memory usage in MB
	CleanupInterval time.Duration             // Cleanup interval for expired items
	Serializer      *serialization.Serializer // Custom serializer (optional)
}

// checkpointEntry holds checkpoint data with metadata
type checkpointEntry struct {
	summary    checkpoint.Checkpoint // header fields only, State is nil
	data       []byte
	size       int64
	expiresAt  time.Time
	accessedAt time.Time
}

// NewInMemorySaver creates a new in-memory checkpoint saver
// PRINCIPLES:
// - KISS: Simple constructor with sensible defaults
func NewInMemorySaver(config InMemoryConfig) *InMemorySaver {
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 24 * time.Hour
	}
	if config.MaxMemoryMB == 0 {
		config.MaxMemoryMB = 256
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.Serializer == nil {
		config.Serializer = serialization.DefaultSerializer()
	}

	saver := &InMemorySaver{
		entries:     make(map[string]*checkpointEntry),
		defaultTTL:  config.DefaultTTL,
		maxBytes:    config.MaxMemoryMB * 1024 * 1024,
		serializer:  config.Serializer,
		stopCleanup: make(chan struct{}),
	}
	saver.startCleanup(config.CleanupInterval)
	return saver
}

// DefaultInMemorySaver creates an InMemorySaver with default configuration
func DefaultInMemorySaver() *InMemorySaver {
	return NewInMemorySaver(InMemoryConfig{})
}

// Save stores a checkpoint in memory, replacing one with the same ID.
func (s *InMemorySaver) Save(_ context.Context, cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return checkpoint.ErrInvalidCheckpointID
	}
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("checkpoint validation failed: %w", err)
	}

	data, err := s.serializer.Serialize(cp)
	if err != nil {
		return fmt.Errorf("checkpoint serialization failed: %w", err)
	}
	size := int64(len(data))
	// An oversized checkpoint leaves a stored entry with the same ID in place.
	if size > s.maxBytes {
		return fmt.Errorf("%w: checkpoint of %d bytes exceeds limit of %d", ErrMemoryLimit, size, s.maxBytes)
	}

	summary := *cp
	summary.State = nil
	summary.Metadata.Writes = nil
	summary.Next = append([]string(nil), cp.Next...)
	summary.Metadata.Tags = append([]string(nil), cp.Metadata.Tags...)

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(cp.ID)
	s.evictFor(size)
	s.entries[cp.ID] = &checkpointEntry{
		summary:    summary,
		data:       data,
		size:       size,
		expiresAt:  now.Add(s.defaultTTL),
		accessedAt: now,
	}
	s.currentSize += size
	return nil
}

// Load retrieves a checkpoint from memory
func (s *InMemorySaver) Load(_ context.Context, id string) (*checkpoint.Checkpoint, error) {
	s.mu.Lock()
	entry, exists := s.entries[id]
	if exists && time.Now().After(entry.expiresAt) {
		s.deleteLocked(id)
		exists = false
	}
	if !exists {
		s.mu.Unlock()
		return nil, checkpoint.ErrCheckpointNotFound
	}
	entry.accessedAt = time.Now()
	data := entry.data
	s.mu.Unlock()

	return s.decode(data)
}

// List returns checkpoints matching the filter, newest first
func (s *InMemorySaver) List(_ context.Context, filter checkpoint.Filter) ([]*checkpoint.Checkpoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}

	now := time.Now()
	type match struct {
		summary *checkpoint.Checkpoint
		data    []byte
	}
	var matches []match

	s.mu.Lock()
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			s.deleteLocked(id)
			continue
		}
		if !filter.Matches(&entry.summary) {
			continue
		}
		summary := entry.summary
		matches = append(matches, match{summary: &summary, data: entry.data})
	}
	s.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool {
		return checkpoint.Newer(matches[i].summary, matches[j].summary)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matches) {
			return nil, nil
		}
		matches = matches[filter.Offset:]
	}
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}

	results := make([]*checkpoint.Checkpoint, 0, len(matches))
	for _, m := range matches {
		cp, err := s.decode(m.data)
		if err != nil {
			return nil, err
		}
		results = append(results, cp)
	}
	return results, nil
}

// Delete removes a checkpoint from memory
func (s *InMemorySaver) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; !exists {
		return checkpoint.ErrCheckpointNotFound
	}
	s.deleteLocked(id)
	return nil
}

// MemoryStats reports memory usage of the saver
type MemoryStats struct {
	Count              int64   `json:"count"`
	SizeBytes          int64   `json:"size_bytes"`
	MaxSizeBytes       int64   `json:"max_size_bytes"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// GetStats returns memory usage statistics
func (s *InMemorySaver) GetStats() MemoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var utilization float64
	if s.maxBytes > 0 {
		utilization = float64(s.currentSize) / float64(s.maxBytes) * 100
	}
	return MemoryStats{
		Count:              int64(len(s.entries)),
		SizeBytes:          s.currentSize,
		MaxSizeBytes:       s.maxBytes,
		UtilizationPercent: utilization,
	}
}

// Close stops the cleanup goroutine and releases resources
func (s *InMemorySaver) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
		if s.cleanupTicker != nil {
			s.cleanupTicker.Stop()
		}
	})
	return nil
}

func (s *InMemorySaver) decode(data []byte) (*checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	if err := s.serializer.Deserialize(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint deserialization failed: %w", err)
	}
	return &cp, nil
}

// startCleanup starts the cleanup goroutine for expired items
func (s *InMemorySaver) startCleanup(interval time.Duration) {
	s.cleanupTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				s.cleanupExpired()
			case <-s.stopCleanup:
				return
			}
		}
	}()
}

// cleanupExpired removes expired checkpoints
func (s *InMemorySaver) cleanupExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			s.deleteLocked(id)
		}
	}
}

func (s *InMemorySaver) deleteLocked(id string) {
	if entry, exists := s.entries[id]; exists {
		s.currentSize -= entry.size
		delete(s.entries, id)
	}
}

// evictFor removes least recently used entries until newSize fits.
// newSize must not exceed maxBytes.
func (s *InMemorySaver) evictFor(newSize int64) {
	if s.currentSize+newSize <= s.maxBytes {
		return
	}

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.entries[ids[i]].accessedAt.Before(s.entries[ids[j]].accessedAt)
	})
	for _, id := range ids {
		if s.currentSize+newSize <= s.maxBytes {
			break
		}
		s.deleteLocked(id)
	}
}
