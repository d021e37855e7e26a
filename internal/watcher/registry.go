// Copyright 2025 Alibaba Group Holding Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Operation is the kind of change a callback is invoked for.
type Operation string

const (
	Added     Operation = "ADDED"
	Modified  Operation = "MODIFIED"
	Deleted   Operation = "DELETED"
	Reprocess Operation = "REPROCESS"
)

var operations = sets.New(Added, Modified, Deleted, Reprocess)

var (
	ErrDuplicateCallback = errors.New("callback already registered")
	ErrInvalidOperation  = errors.New("invalid operation")
)

// Event is handed to every callback registered for its operation.
type Event struct {
	Name   string
	Labels map[string]string
	Op     Operation
	Object *unstructured.Unstructured
}

// Handler processes one event. Returned errors and panics are logged and swallowed.
type Handler func(ctx context.Context, ev Event) error

type callback struct {
	name    string
	handler Handler
}

type registry struct {
	mu    sync.RWMutex
	names sets.Set[string]
	byOp  map[Operation][]callback
}

func newRegistry() *registry {
	return &registry{
		names: sets.New[string](),
		byOp:  make(map[Operation][]callback),
	}
}

func (r *registry) register(name string, handler Handler, ops []Operation) error {
	if name == "" {
		return fmt.Errorf("callback name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("callback %q: handler cannot be nil", name)
	}
	if len(ops) == 0 {
		return fmt.Errorf("callback %q: %w: no operation given", name, ErrInvalidOperation)
	}
	for _, op := range ops {
		if !operations.Has(op) {
			return fmt.Errorf("callback %q: %w %q", name, ErrInvalidOperation, op)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.names.Has(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateCallback, name)
	}
	r.names.Insert(name)
	for _, op := range sets.New(ops...).UnsortedList() {
		r.byOp[op] = append(r.byOp[op], callback{name: name, handler: handler})
	}
	return nil
}

// handlers returns a snapshot of the callbacks for op in registration order.
func (r *registry) handlers(op Operation) []callback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]callback, len(r.byOp[op]))
	copy(out, r.byOp[op])
	return out
}
