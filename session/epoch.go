package session

import (
	"errors"
	"sync"
)

// ErrStale is returned when a response arrives after a newer operation of the
// same kind was started. The response is discarded.
var ErrStale = errors.New("session: stale response discarded")

// Kind names a class of asynchronous operation.
type Kind string

const (
	KindLoad     Kind = "load"
	KindSave     Kind = "save"
	KindValidate Kind = "validate"
)

// Epochs hands out a monotonically increasing epoch per operation kind.
// Only the response of the latest epoch may be applied.
type Epochs struct {
	mu sync.Mutex
	m  map[Kind]uint64
}

// Begin starts a new operation of kind and returns its epoch.
func (e *Epochs) Begin(kind Kind) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.m == nil {
		e.m = make(map[Kind]uint64)
	}
	e.m[kind]++
	return e.m[kind]
}

// Current reports whether epoch is still the latest of its kind.
func (e *Epochs) Current(kind Kind, epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m[kind] == epoch
}
