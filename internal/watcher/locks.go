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
	"sync"
)

type lockEntry struct {
	mu   sync.Mutex
	refs int
	// drop is set once the resource was deleted; the entry is removed when unreferenced.
	drop bool
}

// lockTable holds one mutex per resource name.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

func (t *lockTable) ref(name string) *lockEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[name]
	if !ok {
		e = &lockEntry{}
		t.entries[name] = e
	}
	e.refs++
	return e
}

func (t *lockTable) unref(name string, e *lockEntry, deleted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.refs--
	if deleted {
		e.drop = true
	}
	if e.refs == 0 && e.drop && t.entries[name] == e {
		delete(t.entries, name)
	}
}

// acquire blocks until the lock of name is held. The returned func releases it;
// deleted marks the entry for removal.
func (t *lockTable) acquire(name string) func(deleted bool) {
	e := t.ref(name)
	e.mu.Lock()
	return func(deleted bool) {
		e.mu.Unlock()
		t.unref(name, e, deleted)
	}
}

// tryAcquire returns false without waiting when the lock of name is held.
func (t *lockTable) tryAcquire(name string) (func(deleted bool), bool) {
	e := t.ref(name)
	if !e.mu.TryLock() {
		t.unref(name, e, false)
		return nil, false
	}
	return func(deleted bool) {
		e.mu.Unlock()
		t.unref(name, e, deleted)
	}, true
}

func (t *lockTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
