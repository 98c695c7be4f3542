// Package kv is an ordered key-value store keyed by tuples.
//
// Keys compare component-wise, so a store scan over a prefix yields entries in
// tuple order. Writes that must happen together go through an Atomic
// operation, which can also require keys to be absent at commit time.
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

var (
	ErrNotFound    = errors.New("kv: key not found")
	ErrCheckFailed = errors.New("kv: atomic check failed")
)

// CheckError reports the key whose absence check failed during a commit.
type CheckError struct {
	Key Key
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s: key %s already exists", ErrCheckFailed, e.Key)
}

func (e *CheckError) Unwrap() error { return ErrCheckFailed }

type Entry struct {
	Key   Key
	Value []byte
}

type Store interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
	// Scan yields entries under prefix in ascending key order. A limit <= 0
	// means no limit. Each call starts from the beginning of the range.
	Scan(ctx context.Context, prefix Key, limit int) iter.Seq2[Entry, error]
	// Commit applies op as a single transaction. If any checked key exists
	// nothing is written and a *CheckError is returned.
	Commit(ctx context.Context, op *Atomic) error
}

type mutation struct {
	key    Key
	value  []byte
	delete bool
}

// Atomic collects checks and mutations for Store.Commit.
type Atomic struct {
	absent    []Key
	mutations []mutation
}

func NewAtomic() *Atomic {
	return &Atomic{}
}

// CheckAbsent makes the commit fail unless every key is absent.
func (a *Atomic) CheckAbsent(keys ...Key) *Atomic {
	a.absent = append(a.absent, keys...)
	return a
}

func (a *Atomic) Set(key Key, value []byte) *Atomic {
	a.mutations = append(a.mutations, mutation{key: key, value: value})
	return a
}

func (a *Atomic) Delete(key Key) *Atomic {
	a.mutations = append(a.mutations, mutation{key: key, delete: true})
	return a
}
