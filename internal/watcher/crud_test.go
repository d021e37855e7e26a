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
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/wait"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	clienttesting "k8s.io/client-go/testing"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
)

const testNamespace = "default"

var fastBackoff = wait.Backoff{Steps: 10, Duration: time.Millisecond, Factor: 1.0}

func newFakeClient(objects ...runtime.Object) *dynamicfake.FakeDynamicClient {
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), v1alpha1.ListKinds, objects...)
}

func newOrder(name string, labels map[string]string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"spec": map[string]interface{}{"order_status": "RUNNING"},
	}}
	obj.SetAPIVersion(v1alpha1.EWMGroup + "/" + v1alpha1.Version)
	obj.SetKind("WarehouseOrder")
	obj.SetNamespace(testNamespace)
	obj.SetName(name)
	obj.SetLabels(labels)
	return obj
}

func TestCRUD(t *testing.T) {
	client := newFakeClient()
	w := New(client, testGVR, testNamespace, WithKind("WarehouseOrder"), WithBackoff(fastBackoff))
	ctx := context.Background()

	created, err := w.Create(ctx, "wh1.900001",
		map[string]string{v1alpha1.LabelRobotName: "robot1", "stale": "x"},
		map[string]interface{}{"order_status": "RUNNING"})
	require.NoError(t, err)
	assert.Equal(t, "WarehouseOrder", created.GetKind())

	got, err := w.Get(ctx, "wh1.900001")
	require.NoError(t, err)
	status, _, _ := unstructured.NestedString(got.Object, "spec", "order_status")
	assert.Equal(t, "RUNNING", status)

	updated, err := w.UpdateSpec(ctx, "wh1.900001",
		map[string]interface{}{"order_status": "PROCESSED"},
		map[string]string{v1alpha1.LabelRobotName: "robot2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{v1alpha1.LabelRobotName: "robot2"}, updated.GetLabels())
	status, _, _ = unstructured.NestedString(updated.Object, "spec", "order_status")
	assert.Equal(t, "PROCESSED", status)

	_, err = w.UpdateStatus(ctx, "wh1.900001", map[string]interface{}{
		"data": []interface{}{map[string]interface{}{"tanum": "1"}},
	})
	require.NoError(t, err)
	got, err = w.Get(ctx, "wh1.900001")
	require.NoError(t, err)
	data, found, _ := unstructured.NestedSlice(got.Object, "status", "data")
	require.True(t, found)
	assert.Len(t, data, 1)

	list, err := w.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)

	require.NoError(t, w.Delete(ctx, "wh1.900001"))
	_, err = w.Get(ctx, "wh1.900001")
	assert.True(t, apierrors.IsNotFound(err))
}

func TestListUsesLabelSelector(t *testing.T) {
	client := newFakeClient(
		newOrder("a", map[string]string{v1alpha1.LabelRobotName: "robot1"}),
		newOrder("b", map[string]string{v1alpha1.LabelRobotName: "robot2"}),
	)
	w := New(client, testGVR, testNamespace, WithLabelSelector(v1alpha1.LabelRobotName+"=robot1"))

	list, err := w.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "a", list.Items[0].GetName())
}

func TestCreateRequiresKind(t *testing.T) {
	w := New(newFakeClient(), testGVR, testNamespace)
	_, err := w.Create(context.Background(), "a", nil, map[string]interface{}{})
	assert.Error(t, err)
}

func TestRetryOnTransientErrors(t *testing.T) {
	client := newFakeClient(newOrder("a", nil))
	failures := 0
	client.PrependReactor("get", "warehouseorders", func(clienttesting.Action) (bool, runtime.Object, error) {
		if failures < 3 {
			failures++
			return true, nil, apierrors.NewServiceUnavailable("busy")
		}
		return false, nil, nil
	})
	w := New(client, testGVR, testNamespace, WithBackoff(fastBackoff))

	obj, err := w.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", obj.GetName())
	assert.Equal(t, 3, failures)
}

func TestNoRetryOnBusinessErrors(t *testing.T) {
	client := newFakeClient()
	calls := 0
	client.PrependReactor("delete", "warehouseorders", func(clienttesting.Action) (bool, runtime.Object, error) {
		calls++
		return true, nil, apierrors.NewForbidden(schema.GroupResource{Resource: "warehouseorders"}, "a", errors.New("denied"))
	})
	w := New(client, testGVR, testNamespace, WithBackoff(fastBackoff))

	err := w.Delete(context.Background(), "a")
	assert.True(t, apierrors.IsForbidden(err))
	assert.Equal(t, 1, calls)
}

func TestRetryGivesUp(t *testing.T) {
	client := newFakeClient()
	calls := 0
	client.PrependReactor("list", "warehouseorders", func(clienttesting.Action) (bool, runtime.Object, error) {
		calls++
		return true, nil, apierrors.NewTimeoutError("slow", 1)
	})
	w := New(client, testGVR, testNamespace, WithBackoff(fastBackoff))

	_, err := w.List(context.Background())
	assert.True(t, apierrors.IsTimeout(err))
	assert.Equal(t, fastBackoff.Steps, calls)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", apierrors.NewServiceUnavailable("x"), true},
		{"too many requests", apierrors.NewTooManyRequests("x", 1), true},
		{"internal", apierrors.NewInternalError(errors.New("x")), true},
		{"eof", io.ErrUnexpectedEOF, true},
		{"not found", apierrors.NewNotFound(schema.GroupResource{Resource: "x"}, "y"), false},
		{"conflict", apierrors.NewConflict(schema.GroupResource{Resource: "x"}, "y", errors.New("z")), false},
		{"plain", errors.New("x"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestLabelsPatch(t *testing.T) {
	patch := labelsPatch(map[string]string{"a": "1", "b": "2"}, map[string]string{"b": "3", "c": "4"})
	assert.Equal(t, map[string]interface{}{"a": nil, "b": "3", "c": "4"}, patch)
}
