// Package store is the client side of the remote reactive document
// store. It only consumes the store's subscription primitive: a query
// yields whole-snapshot deliveries, one per observed change, with
// ordering guaranteed per query only. It owns no canonical state and
// does no query planning; predicates and ordering are applied on the
// client against full collection reloads.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Update when the target document does not
// exist. Set never returns it: Set upserts with merge semantics.
var ErrNotFound = errors.New("store: document not found")

type Op string

const (
	OpEq  Op = "=="
	OpGte Op = ">="
	OpLte Op = "<="
	OpIn  Op = "in"
)

type Where struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field string
	Desc  bool
}

// Query selects an ordered subset of one collection: a conjunction of
// predicates plus at most one sort key.
type Query struct {
	Collection string
	Wheres     []Where
	OrderBy    *Order
}

type Document struct {
	ID     string
	Fields map[string]any
}

// Snapshot is the complete result set of one query at one point in
// time. Every delivery replaces the previous one outright.
type Snapshot []Document

// CancelFunc tears down one subscription. Idempotent.
type CancelFunc func()

type Store interface {
	// Subscribe delivers the current snapshot synchronously before
	// returning, then one snapshot per observed change until cancelled.
	Subscribe(ctx context.Context, q Query, fn func(Snapshot)) (CancelFunc, error)

	// GetAll is a one-shot read of the query's current result set.
	GetAll(ctx context.Context, q Query) (Snapshot, error)

	// Set writes a document under a caller-chosen id, merging into any
	// existing fields (upsert).
	Set(ctx context.Context, collection, id string, fields map[string]any) error

	// Create writes a new document under a generated id.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Update merges fields into an existing document, ErrNotFound if
	// there is none.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
}

// Decode unmarshals a document's fields into a typed value. The
// document id is not a field; callers carry it separately.
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Fields flattens a typed value into the map form documents travel in.
func Fields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
