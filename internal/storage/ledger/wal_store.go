// Package ledger is the append-only record of realised profit per completed cycle.
package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

const (
	DefaultDir      = "./wal/profits"
	segmentLimit    = 1000
	maxSegments     = 100
	profitKeyPrefix = "profit_"
)

// WALStore persists profit records in a WAL.
type WALStore struct {
	wal     *gowal.Wal
	mu      sync.RWMutex
	lastSeq uint64
}

// NewWALStore initializes a WAL-backed profit ledger.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "profit_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init profit ledger WAL")
	}

	store := &WALStore{wal: wal}
	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, profitKeyPrefix) {
			continue
		}
		var record domain.ProfitRecord
		if err := json.Unmarshal(msg.Value, &record); err != nil {
			continue
		}
		if record.Sequence > store.lastSeq {
			store.lastSeq = record.Sequence
		}
	}

	return store, nil
}

// Append writes one profit record.
func (s *WALStore) Append(record domain.ProfitRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("profit ledger is not initialized")
	}
	if record.Side == "" {
		return fmt.Errorf("profit record side is required")
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal profit record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	key := fmt.Sprintf("%s%d", profitKeyPrefix, nextIndex)
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return errors.Wrap(err, "write profit record")
	}
	if record.Sequence > s.lastSeq {
		s.lastSeq = record.Sequence
	}

	return nil
}

// RecordsAfter returns all profit records written after the provided WAL index.
func (s *WALStore) RecordsAfter(index uint64) ([]domain.ProfitRecordEntry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("profit ledger is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.wal.CurrentIndex() <= index {
		return nil, nil
	}

	var records []domain.ProfitRecordEntry
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, profitKeyPrefix) {
			continue
		}
		idx, err := strconv.ParseUint(strings.TrimPrefix(msg.Key, profitKeyPrefix), 10, 64)
		if err != nil || idx <= index {
			continue
		}

		var record domain.ProfitRecord
		if err := json.Unmarshal(msg.Value, &record); err != nil {
			return nil, errors.Wrap(err, "decode profit record")
		}
		records = append(records, domain.ProfitRecordEntry{Index: idx, Record: record})
	}

	return records, nil
}

// LastSequence returns the highest cycle sequence number recorded so far.
func (s *WALStore) LastSequence() uint64 {
	if s == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastSeq
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("profit ledger is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
