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

// Package watcher implements a reconciliation engine over one custom resource
// kind: a resumable list/watch stream, a periodic reprocess sweep and callback
// dispatch serialized per resource name.
package watcher

import (
	"context"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/dynamic"
	"k8s.io/utils/clock"

	"github.com/ewm-cloud-robotics/robot-controller/internal/metrics"
)

const (
	DefaultReprocessInterval = 10 * time.Second
	DefaultSweepInterval     = time.Minute
)

// SweepFunc selects resources the deleted-entry sweep removes.
type SweepFunc func(obj *unstructured.Unstructured, now time.Time) bool

// Option configures a ResourceWatcher.
type Option func(*ResourceWatcher)

// WithLabelSelector restricts list, watch and reprocess to matching resources.
func WithLabelSelector(selector string) Option {
	return func(w *ResourceWatcher) { w.labelSelector = selector }
}

// WithKind sets the kind written into created resources.
func WithKind(kind string) Option {
	return func(w *ResourceWatcher) { w.kind = kind }
}

func WithBackoff(b wait.Backoff) Option {
	return func(w *ResourceWatcher) { w.backoff = b }
}

func WithReprocessInterval(d time.Duration) Option {
	return func(w *ResourceWatcher) { w.reprocessInterval = d }
}

// WithSweep enables the deleted-entry sweep.
func WithSweep(fn SweepFunc, interval time.Duration) Option {
	return func(w *ResourceWatcher) {
		w.sweep = fn
		if interval > 0 {
			w.sweepInterval = interval
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(w *ResourceWatcher) { w.clock = c }
}

func WithMetrics(m metrics.Sink) Option {
	return func(w *ResourceWatcher) { w.metrics = m }
}

// ResourceWatcher watches one resource kind and dispatches callbacks.
type ResourceWatcher struct {
	client   dynamic.ResourceInterface
	gvr      schema.GroupVersionResource
	resource string
	kind     string

	labelSelector     string
	backoff           wait.Backoff
	reprocessInterval time.Duration
	sweep             SweepFunc
	sweepInterval     time.Duration
	clock             clock.Clock
	metrics           metrics.Sink

	registry *registry
	locks    *lockTable

	cursorMu sync.Mutex
	cursor   string

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	loops    sync.WaitGroup
	pool     *dispatchPool
	failures []loopFailure
}

// New creates a watcher for gvr. An empty namespace watches cluster scoped
// resources.
func New(client dynamic.Interface, gvr schema.GroupVersionResource, namespace string, opts ...Option) *ResourceWatcher {
	var ri dynamic.ResourceInterface = client.Resource(gvr)
	if namespace != "" {
		ri = client.Resource(gvr).Namespace(namespace)
	}
	return NewForResource(ri, gvr, opts...)
}

// NewForResource creates a watcher on an already scoped resource client.
func NewForResource(ri dynamic.ResourceInterface, gvr schema.GroupVersionResource, opts ...Option) *ResourceWatcher {
	w := &ResourceWatcher{
		client:            ri,
		gvr:               gvr,
		resource:          gvr.Resource,
		backoff:           DefaultBackoff,
		reprocessInterval: DefaultReprocessInterval,
		sweepInterval:     DefaultSweepInterval,
		clock:             clock.RealClock{},
		metrics:           metrics.Noop{},
		registry:          newRegistry(),
		locks:             newLockTable(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RegisterCallback registers handler under a name unique across all
// operations of this watcher.
func (w *ResourceWatcher) RegisterCallback(name string, handler Handler, ops ...Operation) error {
	return w.registry.register(name, handler, ops)
}

// Resource returns the plural resource name the watcher serves.
func (w *ResourceWatcher) Resource() string {
	return w.resource
}

// Cursor returns the resource version the next watch starts from.
func (w *ResourceWatcher) Cursor() string {
	w.cursorMu.Lock()
	defer w.cursorMu.Unlock()
	return w.cursor
}

func (w *ResourceWatcher) setCursor(rv string) {
	w.cursorMu.Lock()
	defer w.cursorMu.Unlock()
	w.cursor = rv
}
