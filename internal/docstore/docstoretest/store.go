// Package docstoretest provides an in-memory docstore.Store for tests.
package docstoretest

import (
	"bytes"
	"context"
	"fmt"
	"github.com/ariefcatur/go-ledger-orders/internal/docstore"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"sort"
	"sync"
	"time"
)

type entry struct {
	doc docstore.Document
	seq int
}

// Store mimics the Postgres store: values are normalized through JSON on write, so reads
// see float64 numbers and RFC3339 timestamp strings just like the real thing.
type Store struct {
	mu     sync.Mutex
	data   map[string]map[string]*entry
	seq    int
	errs   map[string]error
	left   map[string]int
	writes []string
	Now    func() time.Time
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		data: map[string]map[string]*entry{},
		errs: map[string]error{},
		left: map[string]int{},
		Now:  func() time.Time { return time.Now().UTC() },
	}
}

// FailOn makes every op ("put", "create", "upsert", "update", "get", "query") on collection
// return err. A nil err clears the failure.
func (s *Store) FailOn(op, collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.left, op+":"+collection)
	if err == nil {
		delete(s.errs, op+":"+collection)
		return
	}
	s.errs[op+":"+collection] = err
}

// FailNext is FailOn limited to the next n calls of op on collection.
func (s *Store) FailNext(op, collection string, err error, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[op+":"+collection] = err
	s.left[op+":"+collection] = n
}

// Writes returns "op:collection/id" for every successful write, in order.
func (s *Store) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

// Count returns the number of documents in collection.
func (s *Store) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[collection])
}

// fail also reports a done ctx, the way pgx refuses to run a query on one.
func (s *Store) fail(ctx context.Context, op, collection string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s %s: %w", op, collection, err)
	}
	key := op + ":" + collection
	err := s.errs[key]
	if n, ok := s.left[key]; ok && err != nil {
		if n <= 1 {
			delete(s.errs, key)
			delete(s.left, key)
		} else {
			s.left[key] = n - 1
		}
	}
	return err
}

func (s *Store) normalize(fields docstore.Fields) (docstore.Fields, error) {
	now := s.Now()
	plain := make(map[string]any, len(fields))
	for k, v := range fields {
		if docstore.IsServerTimestamp(v) {
			v = now
		}
		plain[k] = v
	}
	b, err := json.Marshal(plain)
	if err != nil {
		return nil, err
	}
	var out docstore.Fields
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) coll(collection string) map[string]*entry {
	c, ok := s.data[collection]
	if !ok {
		c = map[string]*entry{}
		s.data[collection] = c
	}
	return c
}

func (s *Store) insert(collection, id string, fields docstore.Fields) {
	s.seq++
	now := s.Now()
	s.coll(collection)[id] = &entry{
		doc: docstore.Document{Collection: collection, ID: id, Fields: fields, CreatedAt: now, UpdatedAt: now},
		seq: s.seq,
	}
}

func (s *Store) Put(ctx context.Context, collection, id string, fields docstore.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "put", collection); err != nil {
		return err
	}
	norm, err := s.normalize(fields)
	if err != nil {
		return err
	}
	if e, ok := s.coll(collection)[id]; ok {
		e.doc.Fields = norm
		e.doc.UpdatedAt = s.Now()
	} else {
		s.insert(collection, id, norm)
	}
	s.writes = append(s.writes, "put:"+collection+"/"+id)
	return nil
}

func (s *Store) Create(ctx context.Context, collection, id string, fields docstore.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "create", collection); err != nil {
		return err
	}
	if _, ok := s.coll(collection)[id]; ok {
		return fmt.Errorf("create %s/%s: %w", collection, id, docstore.ErrAlreadyExists)
	}
	norm, err := s.normalize(fields)
	if err != nil {
		return err
	}
	s.insert(collection, id, norm)
	s.writes = append(s.writes, "create:"+collection+"/"+id)
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := uuid.NewString()
	if err := s.Create(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Upsert(ctx context.Context, collection, id string, fields docstore.Fields) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "upsert", collection); err != nil {
		return false, err
	}
	norm, err := s.normalize(fields)
	if err != nil {
		return false, err
	}
	s.writes = append(s.writes, "upsert:"+collection+"/"+id)
	e, ok := s.coll(collection)[id]
	if !ok {
		s.insert(collection, id, norm)
		return true, nil
	}
	for k, v := range norm {
		e.doc.Fields[k] = v
	}
	e.doc.UpdatedAt = s.Now()
	return false, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "update", collection); err != nil {
		return err
	}
	e, ok := s.coll(collection)[id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	norm, err := s.normalize(fields)
	if err != nil {
		return err
	}
	for k, v := range norm {
		e.doc.Fields[k] = v
	}
	e.doc.UpdatedAt = s.Now()
	s.writes = append(s.writes, "update:"+collection+"/"+id)
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "get", collection); err != nil {
		return docstore.Document{}, err
	}
	e, ok := s.coll(collection)[id]
	if !ok {
		return docstore.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return copyDoc(e.doc), nil
}

func (s *Store) QueryEquals(ctx context.Context, collection, field string, value any) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx, "query", collection); err != nil {
		return nil, err
	}
	want, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var hits []*entry
	for _, e := range s.coll(collection) {
		v, ok := e.doc.Fields[field]
		if !ok {
			continue
		}
		got, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(got, want) {
			hits = append(hits, e)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	out := make([]docstore.Document, 0, len(hits))
	for _, e := range hits {
		out = append(out, copyDoc(e.doc))
	}
	return out, nil
}

func copyDoc(d docstore.Document) docstore.Document {
	fields := make(docstore.Fields, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = v
	}
	d.Fields = fields
	return d
}
