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
	"regexp"
	"strconv"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/klog/v2"
)

type loopName string

const (
	loopWatch     loopName = "watch"
	loopReprocess loopName = "reprocess"
	loopSweep     loopName = "sweep"
)

type loopFailure struct {
	loop loopName
	err  error
}

var ErrAlreadyStarted = errors.New("watcher already started")

// expiredVersionPattern extracts the still valid version from
// "too old resource version: X (Y)".
var expiredVersionPattern = regexp.MustCompile(`\((\d+)\)`)

// RunOptions selects the loops Start runs.
type RunOptions struct {
	Watch     bool
	Reprocess bool
	// Concurrency sizes the callback worker pool, at least 1.
	Concurrency int
}

// Start runs the selected loops until ctx is canceled or Stop is called.
// The deleted-entry sweep runs whenever a sweep function is configured.
func (w *ResourceWatcher) Start(ctx context.Context, opts RunOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}
	w.started = true

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.pool = newDispatchPool(opts.Concurrency)

	klog.InfoS("starting resource watcher", "resource", w.resource,
		"watch", opts.Watch, "reprocess", opts.Reprocess, "sweep", w.sweep != nil, "concurrency", opts.Concurrency)

	if opts.Watch {
		w.goLoop(ctx, loopWatch, w.watchLoop)
	}
	if opts.Reprocess {
		w.goLoop(ctx, loopReprocess, w.reprocessLoop)
	}
	if w.sweep != nil {
		w.goLoop(ctx, loopSweep, w.sweepLoop)
	}
	return nil
}

// Stop cancels all loops and waits for them and for running callbacks.
func (w *ResourceWatcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	pool := w.pool
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	w.loops.Wait()
	pool.wait()
	klog.InfoS("resource watcher stopped", "resource", w.resource)
}

// Failure returns the first error captured by any loop, nil while healthy.
func (w *ResourceWatcher) Failure() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.failures) == 0 {
		return nil
	}
	f := w.failures[0]
	return fmt.Errorf("%s %s loop: %w", w.resource, f.loop, f.err)
}

func (w *ResourceWatcher) setFailure(loop loopName, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures = append(w.failures, loopFailure{loop: loop, err: err})
}

func (w *ResourceWatcher) goLoop(ctx context.Context, name loopName, fn func(context.Context) error) {
	w.loops.Add(1)
	go func() {
		defer w.loops.Done()
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic: %v", r)
				klog.ErrorS(err, "watcher loop panicked", "resource", w.resource, "loop", name)
				w.setFailure(name, err)
			}
		}()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			klog.ErrorS(err, "watcher loop failed", "resource", w.resource, "loop", name)
			w.setFailure(name, err)
		}
	}()
}

func (w *ResourceWatcher) watchLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		if w.Cursor() == "" {
			if err := w.relist(ctx); err != nil {
				return err
			}
		}
		if err := w.consume(ctx); err != nil {
			return err
		}
	}
	return nil
}

// relist dispatches every resource as ADDED and seeds the cursor.
func (w *ResourceWatcher) relist(ctx context.Context) error {
	list, err := w.List(ctx)
	if err != nil {
		return err
	}
	cursor := list.GetResourceVersion()
	for i := range list.Items {
		obj := &list.Items[i]
		cursor = maxVersion(cursor, obj.GetResourceVersion())
		w.submit(ctx, newEvent(obj, Added))
	}
	klog.V(1).InfoS("listed resources", "resource", w.resource, "count", len(list.Items), "cursor", cursor)
	w.setCursor(cursor)
	return nil
}

// consume reads one watch stream until it ends or the cursor expires.
func (w *ResourceWatcher) consume(ctx context.Context) error {
	var wi watch.Interface
	err := w.retry(func() error {
		var err error
		wi, err = w.client.Watch(ctx, metav1.ListOptions{
			LabelSelector:       w.labelSelector,
			ResourceVersion:     w.Cursor(),
			AllowWatchBookmarks: true,
		})
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to open watch: %w", err)
	}
	defer wi.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-wi.ResultChan():
			if !ok {
				klog.V(2).InfoS("watch stream closed, reopening", "resource", w.resource, "cursor", w.Cursor())
				return nil
			}
			switch ev.Type {
			case watch.Error:
				if !w.handleError(ev) {
					select {
					case <-ctx.Done():
					case <-w.clock.After(w.backoff.Duration):
					}
				}
				return nil
			case watch.Bookmark:
				if obj, ok := ev.Object.(*unstructured.Unstructured); ok && obj.GetResourceVersion() != "" {
					w.setCursor(obj.GetResourceVersion())
				}
			case watch.Added, watch.Modified, watch.Deleted:
				w.handleEvent(ctx, ev)
			}
		}
	}
}

// handleError resets the cursor on an expired version and reports whether it did.
// An unparseable expired version clears the cursor, forcing a re-list.
func (w *ResourceWatcher) handleError(ev watch.Event) bool {
	err := apierrors.FromObject(ev.Object)
	if !apierrors.IsGone(err) && !apierrors.IsResourceExpired(err) {
		klog.ErrorS(err, "watch stream returned an error, reopening", "resource", w.resource, "cursor", w.Cursor())
		return false
	}
	cursor := ParseExpiredVersion(err.Error())
	klog.InfoS("watch cursor expired", "resource", w.resource, "old", w.Cursor(), "new", cursor)
	w.setCursor(cursor)
	return true
}

// ParseExpiredVersion returns the still valid version encoded in an expired
// version message, or an empty string when there is none.
func ParseExpiredVersion(message string) string {
	matches := expiredVersionPattern.FindAllStringSubmatch(message, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}

func (w *ResourceWatcher) handleEvent(ctx context.Context, ev watch.Event) {
	obj, ok := ev.Object.(*unstructured.Unstructured)
	if !ok {
		klog.InfoS("skipping event with unexpected object", "resource", w.resource, "type", fmt.Sprintf("%T", ev.Object))
		return
	}
	spec, _, _ := unstructured.NestedFieldNoCopy(obj.Object, "spec")
	if m, ok := spec.(map[string]interface{}); obj.GetName() == "" || !ok || len(m) == 0 {
		klog.InfoS("skipping event with empty spec or metadata", "resource", w.resource, "op", ev.Type, "name", obj.GetName())
		return
	}
	if rv := obj.GetResourceVersion(); rv != "" {
		w.setCursor(rv)
	}
	w.submit(ctx, newEvent(obj, Operation(ev.Type)))
}

// reprocessLoop dispatches REPROCESS for every resource once per interval,
// measured from the start of the previous pass.
func (w *ResourceWatcher) reprocessLoop(ctx context.Context) error {
	next := w.reprocessInterval
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.clock.After(next):
		}
		start := w.clock.Now()
		list, err := w.List(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for i := range list.Items {
			w.submit(ctx, newEvent(&list.Items[i], Reprocess))
		}
		next = w.reprocessInterval - w.clock.Since(start)
		if next < 0 {
			next = 0
		}
	}
}

func (w *ResourceWatcher) sweepLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.clock.After(w.sweepInterval):
		}
		list, err := w.List(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		now := w.clock.Now()
		for i := range list.Items {
			obj := &list.Items[i]
			if !w.sweep(obj, now) {
				continue
			}
			if err := w.Delete(ctx, obj.GetName()); err != nil && !apierrors.IsNotFound(err) {
				klog.ErrorS(err, "failed to sweep resource", "resource", w.resource, "name", obj.GetName())
				continue
			}
			klog.V(1).InfoS("swept resource", "resource", w.resource, "name", obj.GetName())
		}
	}
}

// maxVersion compares numeric resource versions and falls back to b.
func maxVersion(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	av, errA := strconv.ParseUint(a, 10, 64)
	bv, errB := strconv.ParseUint(b, 10, 64)
	if errA != nil || errB != nil {
		return b
	}
	if av >= bv {
		return a
	}
	return b
}
