package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store with optimistic transactions. It backs
// unit tests and the standalone development mode.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memRecord

	watchMu  sync.Mutex
	watchers map[string]map[int]func(Event)
	nextSub  int
}

type memRecord struct {
	data    json.RawMessage
	version uint64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]*memRecord),
		watchers:    make(map[string]map[int]func(Event)),
	}
}

func (m *Memory) Get(ctx context.Context, collection, id string, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	rec, ok := m.collections[collection][id]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return decodeDoc(rec.data, dest)
}

func (m *Memory) Query(ctx context.Context, collection string, q Query, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	matched := make([]map[string]interface{}, 0)
	for _, rec := range m.collections[collection] {
		fields := make(map[string]interface{})
		if err := json.Unmarshal(rec.data, &fields); err != nil {
			m.mu.RUnlock()
			return fmt.Errorf("%w: %s: %v", ErrMalformedRecord, collection, err)
		}
		if matchesFilters(fields, q.Filters) {
			matched = append(matched, fields)
		}
	}
	m.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			less := lessValue(matched[i][q.OrderBy], matched[j][q.OrderBy])
			if q.Desc {
				return !less && !equalValue(matched[i][q.OrderBy], matched[j][q.OrderBy])
			}
			return less
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	raw, err := json.Marshal(matched)
	if err != nil {
		return err
	}
	return decodeDoc(raw, dest)
}

func (m *Memory) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		store:      m,
		reads:      make(map[docKey]uint64),
		writes:     make(map[docKey]*memWrite),
		order:      nil,
		serverTime: time.Now().UTC(),
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (m *Memory) Watch(ctx context.Context, collection string, fn func(Event)) (Subscription, error) {
	m.watchMu.Lock()
	if m.watchers[collection] == nil {
		m.watchers[collection] = make(map[int]func(Event))
	}
	id := m.nextSub
	m.nextSub++
	m.watchers[collection][id] = fn
	m.watchMu.Unlock()

	sub := &memSubscription{cancel: func() {
		m.watchMu.Lock()
		delete(m.watchers[collection], id)
		m.watchMu.Unlock()
	}}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Cancel()
		}()
	}
	return sub, nil
}

func (m *Memory) Close() error {
	m.watchMu.Lock()
	m.watchers = make(map[string]map[int]func(Event))
	m.watchMu.Unlock()
	return nil
}

func (m *Memory) notify(events []Event) {
	m.watchMu.Lock()
	var fns []func(Event)
	var evs []Event
	for _, ev := range events {
		for _, fn := range m.watchers[ev.Collection] {
			fns = append(fns, fn)
			evs = append(evs, ev)
		}
	}
	m.watchMu.Unlock()

	for i, fn := range fns {
		fn(evs[i])
	}
}

type memSubscription struct {
	once   sync.Once
	cancel func()
}

func (s *memSubscription) Cancel() {
	s.once.Do(s.cancel)
}

type docKey struct {
	collection string
	id         string
}

type memWrite struct {
	data    json.RawMessage
	deleted bool
	created bool
}

// memTx buffers writes and records the version of every document it
// observed. Commit fails with ErrConflict when any observed version moved.
type memTx struct {
	store      *Memory
	reads      map[docKey]uint64
	writes     map[docKey]*memWrite
	order      []docKey
	serverTime time.Time
}

func (tx *memTx) ServerTime() time.Time { return tx.serverTime }

func (tx *memTx) Get(collection, id string, dest interface{}) error {
	key := docKey{collection, id}

	if w, ok := tx.writes[key]; ok {
		if w.deleted {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return decodeDoc(w.data, dest)
	}

	tx.store.mu.RLock()
	rec, ok := tx.store.collections[collection][id]
	tx.store.mu.RUnlock()

	if !ok {
		// Absence is part of the read set: a concurrent create must
		// invalidate this transaction.
		tx.reads[key] = 0
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	tx.reads[key] = rec.version
	return decodeDoc(rec.data, dest)
}

func (tx *memTx) Create(collection, id string, doc interface{}) error {
	key := docKey{collection, id}

	if w, ok := tx.writes[key]; ok && !w.deleted {
		return fmt.Errorf("%w: %s/%s", ErrExists, collection, id)
	}
	tx.store.mu.RLock()
	_, exists := tx.store.collections[collection][id]
	tx.store.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s/%s", ErrExists, collection, id)
	}
	tx.reads[key] = 0

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	tx.stage(key, &memWrite{data: data, created: true})
	return nil
}

func (tx *memTx) Update(collection, id string, doc interface{}) error {
	key := docKey{collection, id}

	if w, staged := tx.writes[key]; staged {
		if w.deleted {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
	} else if version, read := tx.reads[key]; read {
		if version == 0 {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
	} else {
		tx.store.mu.RLock()
		rec, exists := tx.store.collections[collection][id]
		tx.store.mu.RUnlock()
		if !exists {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		tx.reads[key] = rec.version
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	tx.stage(key, &memWrite{data: data})
	return nil
}

func (tx *memTx) Delete(collection, id string) error {
	key := docKey{collection, id}
	if _, read := tx.reads[key]; !read {
		tx.store.mu.RLock()
		rec, exists := tx.store.collections[collection][id]
		tx.store.mu.RUnlock()
		if !exists {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		tx.reads[key] = rec.version
	}
	tx.stage(key, &memWrite{deleted: true})
	return nil
}

func (tx *memTx) stage(key docKey, w *memWrite) {
	if prev, ok := tx.writes[key]; ok {
		w.created = prev.created || w.created
		tx.writes[key] = w
		return
	}
	tx.writes[key] = w
	tx.order = append(tx.order, key)
}

func (tx *memTx) commit() error {
	tx.store.mu.Lock()

	for key, version := range tx.reads {
		rec, ok := tx.store.collections[key.collection][key.id]
		current := uint64(0)
		if ok {
			current = rec.version
		}
		if current != version {
			tx.store.mu.Unlock()
			return fmt.Errorf("%w: %s/%s", ErrConflict, key.collection, key.id)
		}
	}

	events := make([]Event, 0, len(tx.order))
	for _, key := range tx.order {
		w := tx.writes[key]
		coll := tx.store.collections[key.collection]
		if coll == nil {
			coll = make(map[string]*memRecord)
			tx.store.collections[key.collection] = coll
		}

		switch {
		case w.deleted:
			delete(coll, key.id)
			events = append(events, Event{Type: EventDeleted, Collection: key.collection, ID: key.id})
		case w.created:
			coll[key.id] = &memRecord{data: w.data, version: 1}
			events = append(events, Event{Type: EventCreated, Collection: key.collection, ID: key.id, Doc: w.data})
		default:
			version := uint64(1)
			if rec, ok := coll[key.id]; ok {
				version = rec.version + 1
			}
			coll[key.id] = &memRecord{data: w.data, version: version}
			events = append(events, Event{Type: EventUpdated, Collection: key.collection, ID: key.id, Doc: w.data})
		}
	}
	tx.store.mu.Unlock()

	tx.store.notify(events)
	return nil
}

func decodeDoc(data json.RawMessage, dest interface{}) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return nil
}

func matchesFilters(fields map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		if !equalValue(fields[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// equalValue compares a decoded JSON value with a Go-typed filter value.
func equalValue(a, b interface{}) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func lessValue(a, b interface{}) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
