package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/runnerr0/chargebook/internal/log"
)

// StorageKey is the fixed key the record collection is persisted under.
// It must not change between versions.
const StorageKey = "ev_charge_master_records"

// RecordStore owns the charging history. Every mutation is followed by a
// full save of the collection; the persisted value is a JSON array.
type RecordStore struct {
	mu      sync.Mutex
	kv      KV
	key     string
	log     *log.Logger
	newID   func() string
	records []ChargingRecord
}

// Option configures a RecordStore.
type Option func(*RecordStore)

// WithLogger sets the logger used for absorbed read failures.
func WithLogger(l *log.Logger) Option {
	return func(s *RecordStore) {
		if l != nil {
			s.log = l.WithComponent(log.ComponentStorage)
		}
	}
}

// WithKey overrides StorageKey. Tests use it to keep collections apart.
func WithKey(key string) Option {
	return func(s *RecordStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *RecordStore) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewRecordStore returns an empty store over kv. Call Load to read the
// persisted collection.
func NewRecordStore(kv KV, opts ...Option) *RecordStore {
	s := &RecordStore{
		kv:      kv,
		key:     StorageKey,
		log:     log.Discard(),
		newID:   uuid.NewString,
		records: []ChargingRecord{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted collection and makes it the current one. A
// missing value yields an empty collection. So does a value that cannot be
// read or parsed: the failure is logged and never returned.
func (s *RecordStore) Load(ctx context.Context) []ChargingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.read(ctx)
	return cloneAll(s.records)
}

func (s *RecordStore) read(ctx context.Context) []ChargingRecord {
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to read persisted records, starting empty",
			log.FieldOperation, log.OpLoad,
			log.FieldKey, s.key,
			log.FieldError, err)
		return []ChargingRecord{}
	}
	if !ok {
		return []ChargingRecord{}
	}

	records, dropped, err := decodeRecords(data)
	if err != nil {
		s.log.WarnContext(ctx, "Persisted records are corrupt, starting empty",
			log.FieldOperation, log.OpLoad,
			log.FieldKey, s.key,
			log.FieldBytes, len(data),
			log.FieldError, err)
		return []ChargingRecord{}
	}

	if dropped > 0 {
		s.log.WarnContext(ctx, "Dropped records with duplicate IDs",
			log.FieldKey, s.key,
			log.FieldRecords, dropped)
	}
	s.log.DebugContext(ctx, "Loaded records", log.FieldRecords, len(records))
	return records
}

// Add assigns a fresh ID to d, prepends the record and saves. When the save
// fails the record is still returned and kept in memory, and the error is a
// *PersistenceError.
func (s *RecordStore) Add(ctx context.Context, d Draft) (ChargingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := newRecord(s.uniqueID(), d)
	s.records = append([]ChargingRecord{rec}, s.records...)

	s.log.DebugContext(ctx, "Added record", log.FieldOperation, log.OpAdd, log.FieldRecordID, rec.ID)
	return rec.clone(), s.saveLocked(ctx)
}

// Delete removes the record with the given id, if any, and saves. Deleting
// an unknown id is not an error.
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0:0]
	for _, r := range s.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) != len(s.records) {
		s.log.DebugContext(ctx, "Deleted record", log.FieldOperation, log.OpDelete, log.FieldRecordID, id)
	}
	s.records = kept

	return s.saveLocked(ctx)
}

// Reset drops every record and saves the empty collection.
func (s *RecordStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.InfoContext(ctx, "Reset records", log.FieldOperation, log.OpReset, log.FieldRecords, len(s.records))
	s.records = []ChargingRecord{}
	return s.saveLocked(ctx)
}

// Save overwrites the persisted value with the full current collection.
func (s *RecordStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *RecordStore) saveLocked(ctx context.Context) error {
	data, err := encodeRecords(s.records)
	if err != nil {
		return &PersistenceError{Op: log.OpSave, Key: s.key, Err: fmt.Errorf("marshal records: %w", err)}
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		s.log.ErrorContext(ctx, "Failed to persist records",
			log.FieldOperation, log.OpSave,
			log.FieldKey, s.key,
			log.FieldRecords, len(s.records),
			log.FieldError, err)
		return &PersistenceError{Op: log.OpSave, Key: s.key, Err: err}
	}
	return nil
}

// Records returns a copy of the current collection in storage order.
func (s *RecordStore) Records() []ChargingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.records)
}

// Get returns a copy of the record with the given id.
func (s *RecordStore) Get(id string) (ChargingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r.clone(), true
		}
	}
	return ChargingRecord{}, false
}

// Len returns the number of records held.
func (s *RecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Key returns the storage key in use.
func (s *RecordStore) Key() string {
	return s.key
}

// uniqueID draws IDs until one is not in use. With UUIDs that is the first draw.
func (s *RecordStore) uniqueID() string {
	for {
		id := s.newID()
		if id == "" {
			continue
		}
		taken := false
		for _, r := range s.records {
			if r.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}

// SortByDate returns a copy of records ordered newest first. Records with
// the same date are ordered by ID so the output is stable.
func SortByDate(records []ChargingRecord) []ChargingRecord {
	out := cloneAll(records)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func encodeRecords(records []ChargingRecord) ([]byte, error) {
	if records == nil {
		records = []ChargingRecord{}
	}
	return json.Marshal(records)
}

// decodeRecords parses a persisted array. Dates are normalized to UTC and
// later duplicates of an ID are dropped and counted.
func decodeRecords(data []byte) ([]ChargingRecord, int, error) {
	var raw []ChargingRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, err
	}

	seen := make(map[string]struct{}, len(raw))
	records := make([]ChargingRecord, 0, len(raw))
	for _, r := range raw {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		r.Date = r.Date.UTC()
		records = append(records, r)
	}
	return records, len(raw) - len(records), nil
}

func cloneAll(records []ChargingRecord) []ChargingRecord {
	out := make([]ChargingRecord, len(records))
	for i, r := range records {
		out[i] = r.clone()
	}
	return out
}
