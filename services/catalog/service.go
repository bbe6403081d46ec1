package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

const masterMemoryKey = "master"

// Service orchestrates the memory and durable cache tiers. One Service
// is constructed per process; its MemoryCache and durable keys are
// shared by every consumer, with last-write-wins semantics per key.
type Service struct {
	mem    *MemoryCache
	store  DurableStore
	lister AssetLister
	logger *log.Logger
}

// NewService wires the cache tiers together. lister may be nil when
// rebuild is not needed (read-only consumers).
func NewService(store DurableStore, lister AssetLister, logger *log.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("durable store is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		mem:    NewMemoryCache(),
		store:  store,
		lister: lister,
		logger: logger,
	}, nil
}

// Reset drops the in-memory tier. Durable state is untouched. Used for
// test isolation and teardown.
func (s *Service) Reset() {
	s.mem.Clear()
}

// Get reads key into dest, memory tier first. Typed values written by
// the fast-path setters are served in place; a live memory value is
// never overwritten by a durable read-through. On a true miss the
// durable blob is fetched, cached in memory, and decoded. Missing
// durable keys return ErrNotFound.
func (s *Service) Get(ctx context.Context, key string, dest any) error {
	if v, ok := s.mem.Get(key); ok {
		cacheHits.WithLabelValues("memory").Inc()
		data, isRaw := v.([]byte)
		if !isRaw {
			var err error
			data, err = json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode cached %s: %w", key, err)
			}
		}
		return json.Unmarshal(data, dest)
	}
	cacheMisses.WithLabelValues("memory").Inc()

	data, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	s.mem.Set(key, data)
	return json.Unmarshal(data, dest)
}

// Put encodes value and writes it to the durable store, then the
// memory tier. Durable failures propagate and leave memory untouched,
// so a failed refresh never leaves the tiers disagreeing in favor of
// unpersisted data.
func (s *Service) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.Put(ctx, key, data); err != nil {
		return err
	}
	s.mem.Set(key, data)
	return nil
}

// BatchEntry pairs a durable key with the value to store under it.
type BatchEntry struct {
	Key   string
	Value any
}

// PutBatch writes every entry to the durable store, in order, before
// any of them reaches the memory tier. A durable failure partway
// through leaves memory untouched, so readers keep serving the
// previously committed value for every key in the batch.
func (s *Service) PutBatch(ctx context.Context, entries ...BatchEntry) error {
	encoded := make([][]byte, len(entries))
	for i, e := range entries {
		data, err := json.Marshal(e.Value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", e.Key, err)
		}
		encoded[i] = data
	}
	for i, e := range entries {
		if err := s.store.Put(ctx, e.Key, encoded[i]); err != nil {
			return fmt.Errorf("persist %s: %w", e.Key, err)
		}
	}
	for i, e := range entries {
		s.mem.Set(e.Key, encoded[i])
	}
	return nil
}

// UpdateJobIndex replaces the job index in the memory tier only. It
// performs no durable I/O so high-frequency job status updates are
// never throttled by durable-store latency. Durability is bounded by
// explicit PersistJobIndex calls.
func (s *Service) UpdateJobIndex(jobs []JobRecord) {
	if jobs == nil {
		jobs = []JobRecord{}
	}
	s.mem.Set(jobIndexKey, jobs)
}

// GetJobIndex returns the current job list, preferring the memory
// tier. Only a cold process falls back to the durable store; a durable
// "not found" maps to an empty list, not an error.
func (s *Service) GetJobIndex(ctx context.Context) ([]JobRecord, error) {
	if v, ok := s.mem.Get(jobIndexKey); ok {
		if jobs, isTyped := v.([]JobRecord); isTyped {
			cacheHits.WithLabelValues("memory").Inc()
			return jobs, nil
		}
	}
	cacheMisses.WithLabelValues("memory").Inc()

	data, err := s.store.Get(ctx, jobIndexKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			jobs := []JobRecord{}
			s.mem.Set(jobIndexKey, jobs)
			return jobs, nil
		}
		return nil, err
	}

	var jobs []JobRecord
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("decode job index: %w", err)
	}
	if jobs == nil {
		jobs = []JobRecord{}
	}
	s.mem.Set(jobIndexKey, jobs)
	return jobs, nil
}

// PersistJobIndex flushes the in-memory job list to the durable store.
// This is the only job-index operation that can fail for durable-store
// reasons.
func (s *Service) PersistJobIndex(ctx context.Context) error {
	jobs, err := s.GetJobIndex(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("encode job index: %w", err)
	}
	return s.store.Put(ctx, jobIndexKey, data)
}

// MasterFilter restricts GetMasterCache results. The zero value keeps
// everything.
type MasterFilter struct {
	Status Status
}

// GetMasterCache returns the master index, optionally restricted by
// status. Entries come back as stored; no relationship filtering is
// applied (archived-group membership and the like are the caller's
// concern).
func (s *Service) GetMasterCache(ctx context.Context, filter MasterFilter) (MasterCache, error) {
	master, err := s.loadMaster(ctx)
	if err != nil {
		return nil, err
	}

	out := make(MasterCache, len(master))
	for at, entries := range master {
		kept := make([]CacheEntry, 0, len(entries))
		for _, e := range entries {
			if filter.Status != "" && e.Status != filter.Status {
				continue
			}
			kept = append(kept, e)
		}
		out[at] = kept
	}
	return out, nil
}

func (s *Service) loadMaster(ctx context.Context) (MasterCache, error) {
	if v, ok := s.mem.Get(masterMemoryKey); ok {
		if master, isTyped := v.(MasterCache); isTyped {
			cacheHits.WithLabelValues("memory").Inc()
			return master, nil
		}
	}
	cacheMisses.WithLabelValues("memory").Inc()

	master := make(MasterCache, len(AllAssetTypes()))
	for _, at := range AllAssetTypes() {
		data, err := s.store.Get(ctx, collectionKey(at))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				master[at] = []CacheEntry{}
				continue
			}
			return nil, err
		}
		var entries []CacheEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode %s collection: %w", at, err)
		}
		master[at] = entries
	}

	s.mem.Set(masterMemoryKey, master)
	return master, nil
}

// swapMaster atomically replaces the in-memory master index. Readers
// that grabbed the previous value keep a consistent snapshot.
func (s *Service) swapMaster(master MasterCache) {
	s.mem.Set(masterMemoryKey, master)
}

func nowUTC() time.Time { return time.Now().UTC() }
