package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Memory is a process-local Store used by tests and the "memory" backend.
type Memory struct {
	mu   sync.RWMutex
	cols map[string]map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{cols: make(map[string]map[string]json.RawMessage)}
}

func (m *Memory) col(name string) map[string]json.RawMessage {
	c, ok := m.cols[name]
	if !ok {
		c = make(map[string]json.RawMessage)
		m.cols[name] = c
	}
	return c
}

func (m *Memory) Insert(_ context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.col(collection)
	if _, ok := c[id]; ok {
		return ErrDuplicate
	}
	c[id] = raw
	return nil
}

func (m *Memory) Put(_ context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	m.mu.Lock()
	m.col(collection)[id] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Replace(_ context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.col(collection)
	if _, ok := c[id]; !ok {
		return ErrNotFound
	}
	c[id] = raw
	return nil
}

func (m *Memory) Get(_ context.Context, collection, id string, out any) error {
	m.mu.RLock()
	raw, ok := m.cols[collection][id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cols[collection]
	if _, ok := c[id]; !ok {
		return ErrNotFound
	}
	delete(c, id)
	return nil
}

func (m *Memory) Find(_ context.Context, collection string, filter Filter, out any) error {
	docs, err := m.match(collection, filter)
	if err != nil {
		return err
	}
	return DecodeList(docs, out)
}

func (m *Memory) Count(_ context.Context, collection string, filter Filter) (int64, error) {
	docs, err := m.match(collection, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// match returns matching documents ordered by id so results are stable.
func (m *Memory) match(collection string, filter Filter) ([]json.RawMessage, error) {
	want, err := Normalize(filter)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.cols[collection]
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []json.RawMessage
	for _, id := range ids {
		raw := c[id]
		if len(want) > 0 {
			var doc map[string]any
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
			}
			if !matches(doc, want) {
				continue
			}
		}
		out = append(out, raw)
	}
	return out, nil
}

func matches(doc, want map[string]any) bool {
	for k, v := range want {
		got, ok := doc[k]
		if !ok {
			// omitempty drops false booleans and empty strings
			if v == false || v == "" {
				continue
			}
			return false
		}
		if !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}
