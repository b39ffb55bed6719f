package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"git.ruekov.eu/ruakij/promptrelay/lib/advancedmap"
	"git.ruekov.eu/ruakij/promptrelay/lib/kvcache"
	"go.uber.org/zap"
)

// ErrDataset is returned when the static context file is missing or malformed
var ErrDataset = errors.New("context dataset unavailable")

// MissPolicy decides what happens to keys that are absent from the dataset
type MissPolicy string

const (
	// MissReload never caches an absent key: every lookup re-reads the dataset
	MissReload MissPolicy = "reload"
	// MissRemember keeps absent keys in a process-local set and stops re-reading for them
	MissRemember MissPolicy = "remember"
)

func ParseMissPolicy(value string) (MissPolicy, error) {
	switch MissPolicy(value) {
	case MissReload, MissRemember:
		return MissPolicy(value), nil
	}
	return "", fmt.Errorf("unknown miss policy %q", value)
}

type ContextStoreOptions struct {
	DatasetPath string
	// Expiry of entries written to the distributed tier
	TTL           time.Duration
	RemoteTimeout time.Duration
	MissPolicy    MissPolicy
	// Zero keeps local entries for the process lifetime
	LocalTTL        time.Duration
	LocalMaxEntries uint
}

type ContextStats struct {
	LocalHits    int64 `json:"localHits"`
	RemoteHits   int64 `json:"remoteHits"`
	DatasetHits  int64 `json:"datasetHits"`
	Misses       int64 `json:"misses"`
	DatasetLoads int64 `json:"datasetLoads"`
	RemoteErrors int64 `json:"remoteErrors"`
	LocalEntries int   `json:"localEntries"`
}

// ContextStore resolves context keys through a local map, the distributed cache and finally the dataset file
type ContextStore struct {
	local     *advancedmap.AdvancedMap[string, json.RawMessage]
	negatives *advancedmap.AdvancedMap[string, struct{}]
	remote    kvcache.Cache
	options   ContextStoreOptions
	log       *zap.Logger

	localHits    atomic.Int64
	remoteHits   atomic.Int64
	datasetHits  atomic.Int64
	misses       atomic.Int64
	datasetLoads atomic.Int64
	remoteErrors atomic.Int64
}

func NewContextStore(remote kvcache.Cache, options ContextStoreOptions, log *zap.Logger) *ContextStore {
	if options.TTL <= 0 {
		options.TTL = time.Hour
	}
	if options.RemoteTimeout <= 0 {
		options.RemoteTimeout = time.Second
	}
	if options.MissPolicy == "" {
		options.MissPolicy = MissReload
	}
	if remote == nil {
		remote = kvcache.Nop{}
	}

	return &ContextStore{
		local:     advancedmap.NewAdvancedMap[string, json.RawMessage](options.LocalTTL, options.LocalMaxEntries),
		negatives: advancedmap.NewAdvancedMap[string, struct{}](options.LocalTTL, options.LocalMaxEntries),
		remote:    remote,
		options:   options,
		log:       log,
	}
}

// Open checks the distributed tier. An unreachable store only degrades caching.
func (s *ContextStore) Open(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.options.RemoteTimeout)
	defer cancel()

	if err := s.remote.Ping(ctx); err != nil {
		s.log.Warn("Distributed cache unreachable, continuing with local cache and dataset", zap.Error(err))
		return
	}
	s.log.Info("Distributed cache connected")
}

func (s *ContextStore) Close() error {
	return s.remote.Close()
}

// Get returns the payload stored under key. found is false when the dataset has no entry.
// Only dataset errors are returned; distributed cache failures are logged and skipped.
func (s *ContextStore) Get(ctx context.Context, key string) (payload json.RawMessage, found bool, err error) {
	if payload, ok := s.local.Get(key); ok {
		s.localHits.Add(1)
		return payload, true, nil
	}
	if _, ok := s.negatives.Get(key); ok {
		s.misses.Add(1)
		return nil, false, nil
	}

	if payload, ok := s.getRemote(ctx, key); ok {
		s.remoteHits.Add(1)
		s.local.Put(key, payload)
		return payload, true, nil
	}

	dataset, err := s.loadDataset()
	if err != nil {
		return nil, false, err
	}

	payload, ok := dataset[key]
	if !ok || isAbsent(payload) {
		s.misses.Add(1)
		if s.options.MissPolicy == MissRemember {
			s.negatives.Put(key, struct{}{})
		}
		return nil, false, nil
	}

	s.datasetHits.Add(1)
	s.setRemote(ctx, key, payload)
	s.local.Put(key, payload)
	return payload, true, nil
}

// Render returns the payload as 2-space indented JSON, or null when absent
func (s *ContextStore) Render(ctx context.Context, key string) (string, error) {
	payload, found, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !found {
		return "null", nil
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, payload, "", "  "); err != nil {
		return "", err
	}
	return indented.String(), nil
}

func (s *ContextStore) Stats() ContextStats {
	return ContextStats{
		LocalHits:    s.localHits.Load(),
		RemoteHits:   s.remoteHits.Load(),
		DatasetHits:  s.datasetHits.Load(),
		Misses:       s.misses.Load(),
		DatasetLoads: s.datasetLoads.Load(),
		RemoteErrors: s.remoteErrors.Load(),
		LocalEntries: s.local.Len(),
	}
}

func (s *ContextStore) getRemote(ctx context.Context, key string) (json.RawMessage, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.options.RemoteTimeout)
	defer cancel()

	value, err := s.remote.Get(ctx, key)
	if errors.Is(err, kvcache.ErrMiss) {
		return nil, false
	}
	if err != nil {
		s.remoteErrors.Add(1)
		s.log.Warn("Distributed cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	payload := json.RawMessage(value)
	if !json.Valid(payload) || isAbsent(payload) {
		s.log.Warn("Ignoring unusable distributed cache entry", zap.String("key", key))
		return nil, false
	}
	return payload, true
}

func (s *ContextStore) setRemote(ctx context.Context, key string, payload json.RawMessage) {
	ctx, cancel := context.WithTimeout(ctx, s.options.RemoteTimeout)
	defer cancel()

	if err := s.remote.Set(ctx, key, string(payload), s.options.TTL); err != nil {
		s.remoteErrors.Add(1)
		s.log.Warn("Distributed cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *ContextStore) loadDataset() (map[string]json.RawMessage, error) {
	s.datasetLoads.Add(1)

	data, err := os.ReadFile(s.options.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataset, err)
	}

	var dataset map[string]json.RawMessage
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrDataset, s.options.DatasetPath, err)
	}
	if dataset == nil {
		return nil, fmt.Errorf("%w: %s is not a JSON object", ErrDataset, s.options.DatasetPath)
	}
	return dataset, nil
}

// isAbsent reports whether payload is null, false, 0 or an empty string.
// Such entries are treated as missing and never cached.
func isAbsent(payload json.RawMessage) bool {
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return false
	}
	switch v := value.(type) {
	case nil:
		return true
	case bool:
		return !v
	case float64:
		return v == 0
	case string:
		return v == ""
	}
	return false
}
