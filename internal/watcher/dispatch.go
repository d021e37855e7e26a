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
	"fmt"
	"hash/fnv"
	"sync"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"
)

// queueDepth is the number of pending events a single worker buffers before
// submit blocks.
const queueDepth = 64

// dispatchPool runs callback batches on a fixed set of workers. Events are
// routed by resource name, so all events of one resource run on the same
// worker in the order they were submitted.
type dispatchPool struct {
	g      errgroup.Group
	mu     sync.RWMutex
	closed bool
	queues []chan func()
}

func newDispatchPool(size int) *dispatchPool {
	if size < 1 {
		size = 1
	}
	p := &dispatchPool{queues: make([]chan func(), size)}
	for i := range p.queues {
		q := make(chan func(), queueDepth)
		p.queues[i] = q
		p.g.Go(func() error {
			for fn := range q {
				fn()
			}
			return nil
		})
	}
	return p
}

func (p *dispatchPool) queueFor(name string) chan func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return p.queues[h.Sum32()%uint32(len(p.queues))]
}

// submit blocks while the worker owning name has a full queue. It returns
// false once the pool is drained.
func (p *dispatchPool) submit(name string, fn func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.queueFor(name) <- fn
	return true
}

// wait closes the queues and blocks until every queued batch has run.
func (p *dispatchPool) wait() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
	}
	p.mu.Unlock()
	_ = p.g.Wait()
}

func newEvent(obj *unstructured.Unstructured, op Operation) Event {
	return Event{
		Name:   obj.GetName(),
		Labels: obj.GetLabels(),
		Op:     op,
		Object: obj,
	}
}

func (w *ResourceWatcher) submit(ctx context.Context, ev Event) {
	w.metrics.WatchEvent(w.resource, string(ev.Op))
	w.mu.Lock()
	pool := w.pool
	w.mu.Unlock()
	if pool == nil {
		w.dispatch(ctx, ev)
		return
	}
	if !pool.submit(ev.Name, func() { w.dispatch(ctx, ev) }) {
		klog.V(2).InfoS("watcher stopped, dropping event", "resource", w.resource, "name", ev.Name, "op", ev.Op)
	}
}

// dispatch runs all callbacks of ev.Op while holding the lock of the resource.
func (w *ResourceWatcher) dispatch(ctx context.Context, ev Event) {
	callbacks := w.registry.handlers(ev.Op)
	if len(callbacks) == 0 {
		return
	}

	var release func(deleted bool)
	if ev.Op == Reprocess {
		var ok bool
		release, ok = w.locks.tryAcquire(ev.Name)
		if !ok {
			klog.V(2).InfoS("resource busy, skipping reprocess", "resource", w.resource, "name", ev.Name)
			w.metrics.ReprocessSkipped(w.resource)
			return
		}
	} else {
		release = w.locks.acquire(ev.Name)
	}
	defer release(ev.Op == Deleted)

	for _, cb := range callbacks {
		w.invoke(ctx, cb, ev)
	}
}

func (w *ResourceWatcher) invoke(ctx context.Context, cb callback, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			klog.ErrorS(fmt.Errorf("panic: %v", r), "callback panicked",
				"resource", w.resource, "callback", cb.name, "name", ev.Name, "op", ev.Op)
			w.metrics.CallbackFailure(w.resource, cb.name)
		}
	}()
	if err := cb.handler(ctx, ev); err != nil {
		klog.ErrorS(err, "callback failed",
			"resource", w.resource, "callback", cb.name, "name", ev.Name, "op", ev.Op)
		w.metrics.CallbackFailure(w.resource, cb.name)
	}
}
