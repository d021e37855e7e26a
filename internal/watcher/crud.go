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
	"encoding/json"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
)

// Get returns the resource called name.
func (w *ResourceWatcher) Get(ctx context.Context, name string) (*unstructured.Unstructured, error) {
	var obj *unstructured.Unstructured
	err := w.retry(func() error {
		var err error
		obj, err = w.client.Get(ctx, name, metav1.GetOptions{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %q: %w", w.resource, name, err)
	}
	return obj, nil
}

// List returns all resources matching the label selector.
func (w *ResourceWatcher) List(ctx context.Context) (*unstructured.UnstructuredList, error) {
	var list *unstructured.UnstructuredList
	err := w.retry(func() error {
		var err error
		list, err = w.client.List(ctx, metav1.ListOptions{LabelSelector: w.labelSelector})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", w.resource, err)
	}
	return list, nil
}

// Create creates a resource with the given labels and spec.
func (w *ResourceWatcher) Create(ctx context.Context, name string, labels map[string]string, spec map[string]interface{}) (*unstructured.Unstructured, error) {
	if w.kind == "" {
		return nil, fmt.Errorf("cannot create %s %q: kind not configured", w.resource, name)
	}
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"spec": spec,
	}}
	obj.SetAPIVersion(w.gvr.GroupVersion().String())
	obj.SetKind(w.kind)
	obj.SetName(name)
	obj.SetLabels(labels)

	var created *unstructured.Unstructured
	err := w.retry(func() error {
		var err error
		created, err = w.client.Create(ctx, obj, metav1.CreateOptions{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s %q: %w", w.resource, name, err)
	}
	return created, nil
}

// UpdateSpec merge patches the spec. A non-nil labels map replaces the
// resource's labels; keys missing from it are removed.
func (w *ResourceWatcher) UpdateSpec(ctx context.Context, name string, spec map[string]interface{}, labels map[string]string) (*unstructured.Unstructured, error) {
	patch := map[string]interface{}{"spec": spec}
	if labels != nil {
		current, err := w.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		patch["metadata"] = map[string]interface{}{"labels": labelsPatch(current.GetLabels(), labels)}
	}
	return w.patch(ctx, name, patch)
}

// UpdateStatus merge patches the status subresource.
func (w *ResourceWatcher) UpdateStatus(ctx context.Context, name string, status map[string]interface{}) (*unstructured.Unstructured, error) {
	return w.patch(ctx, name, map[string]interface{}{"status": status}, "status")
}

// Delete deletes the resource called name.
func (w *ResourceWatcher) Delete(ctx context.Context, name string) error {
	err := w.retry(func() error {
		return w.client.Delete(ctx, name, metav1.DeleteOptions{})
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s %q: %w", w.resource, name, err)
	}
	return nil
}

func (w *ResourceWatcher) patch(ctx context.Context, name string, patch map[string]interface{}, subresources ...string) (*unstructured.Unstructured, error) {
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch for %s %q: %w", w.resource, name, err)
	}
	var obj *unstructured.Unstructured
	err = w.retry(func() error {
		var err error
		obj, err = w.client.Patch(ctx, name, types.MergePatchType, data, metav1.PatchOptions{}, subresources...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to patch %s %q: %w", w.resource, name, err)
	}
	return obj, nil
}

// labelsPatch sets every desired label and nulls the ones no longer wanted.
func labelsPatch(current, desired map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(current)+len(desired))
	for k := range current {
		if _, ok := desired[k]; !ok {
			out[k] = nil
		}
	}
	for k, v := range desired {
		out[k] = v
	}
	return out
}
