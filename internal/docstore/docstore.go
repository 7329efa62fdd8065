// Package docstore defines the document-store contract shared by the
// in-memory, DynamoDB and Postgres backends.
//
// Documents are encoded through their json tags in every backend, so a
// filter key is the json field name of a top-level attribute.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("docstore: document not found")
	ErrDuplicate = errors.New("docstore: duplicate id")
)

// Filter is an AND of top-level field equalities. A nil or empty filter
// matches every document of the collection.
type Filter map[string]any

// Store is implemented by every backend. Each call touches a single
// document atomically; there is no multi-document transaction.
type Store interface {
	Insert(ctx context.Context, collection, id string, doc any) error
	Put(ctx context.Context, collection, id string, doc any) error
	Replace(ctx context.Context, collection, id string, doc any) error
	Get(ctx context.Context, collection, id string, out any) error
	Delete(ctx context.Context, collection, id string) error
	Find(ctx context.Context, collection string, filter Filter, out any) error
	Count(ctx context.Context, collection string, filter Filter) (int64, error)
}

// Normalize round-trips the filter values through JSON so they compare
// equal to decoded document attributes (numbers become float64, etc).
func Normalize(f Filter) (map[string]any, error) {
	if len(f) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	return out, nil
}

// DecodeList decodes a list of raw JSON documents into out, a pointer to a slice.
func DecodeList(docs []json.RawMessage, out any) error {
	if docs == nil {
		docs = []json.RawMessage{}
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
