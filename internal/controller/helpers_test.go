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

package controller

import (
	"context"
	"sync"

	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/runner"
	"github.com/ewm-cloud-robotics/robot-controller/internal/statemachine"
	"github.com/ewm-cloud-robotics/robot-controller/internal/watcher"
)

type fakeRunner struct {
	name string

	mu        sync.Mutex
	restored  *statemachine.Snapshot
	started   bool
	stopped   bool
	orders    []statemachine.Order
	removed   []statemachine.OrderKey
	confirmed []statemachine.OrderKey
	configs   []statemachine.Config
}

func (f *fakeRunner) Robot() string { return f.name }

func (f *fakeRunner) Restore(s statemachine.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = &s
	return nil
}

func (f *fakeRunner) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeRunner) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeRunner) Status() runner.Status {
	return runner.Status{Robot: f.name, State: statemachine.Initial.String()}
}

func (f *fakeRunner) OrderChanged(_ context.Context, o statemachine.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, o)
	return nil
}

func (f *fakeRunner) OrderRemoved(_ context.Context, key statemachine.OrderKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeRunner) OrderConfirmed(_ context.Context, key statemachine.OrderKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, key)
	return nil
}

func (f *fakeRunner) ConfigChanged(_ context.Context, cfg statemachine.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	return nil
}

// fakeFactory hands out fake runners and remembers them by robot.
type fakeFactory struct {
	mu      sync.Mutex
	runners map[string]*fakeRunner
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{runners: make(map[string]*fakeRunner)}
}

func (f *fakeFactory) build(robot string, _ *v1alpha1.RobotConfiguration, _ *unstructured.Unstructured) (RobotRunner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &fakeRunner{name: robot}
	f.runners[robot] = r
	return r, nil
}

func (f *fakeFactory) get(robot string) *fakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runners[robot]
}

type fakeLister struct {
	items []unstructured.Unstructured
}

func (l *fakeLister) List(context.Context) (*unstructured.UnstructuredList, error) {
	return &unstructured.UnstructuredList{Items: l.items}, nil
}

func newObject(kind, name string, labels map[string]string, spec interface{}) *unstructured.Unstructured {
	encoded, err := v1alpha1.Encode(spec)
	Expect(err).NotTo(HaveOccurred())
	obj := &unstructured.Unstructured{Object: map[string]interface{}{"spec": encoded}}
	obj.SetAPIVersion(v1alpha1.EWMGroup + "/" + v1alpha1.Version)
	obj.SetKind(kind)
	obj.SetNamespace("default")
	obj.SetName(name)
	obj.SetLabels(labels)
	return obj
}

func configSpec() *v1alpha1.RobotConfigurationSpec {
	return &v1alpha1.RobotConfigurationSpec{
		Lgnum:                 "WH1",
		Chargers:              []string{"charger-1"},
		BatteryMin:            20,
		BatteryOk:             60,
		BatteryIdle:           40,
		MaxIdleTime:           1.5,
		StagingArea:           "STAGING",
		RecoverFromRobotError: true,
	}
}

func configObject(robot string, spec *v1alpha1.RobotConfigurationSpec) *unstructured.Unstructured {
	return newObject("RobotConfiguration", robot, nil, spec)
}

func orderObject(robot, rsrc, who string, tasks ...v1alpha1.EWMWarehouseTask) *unstructured.Unstructured {
	var labels map[string]string
	if robot != "" {
		labels = map[string]string{v1alpha1.LabelRobotName: robot}
	}
	return newObject("WarehouseOrder", v1alpha1.OrderName("WH1", who), labels, &v1alpha1.WarehouseOrderSpec{
		Data: v1alpha1.EWMWarehouseOrder{Lgnum: "WH1", Who: who, Rsrc: rsrc, Warehousetasks: tasks},
	})
}

func event(op watcher.Operation, obj *unstructured.Unstructured) watcher.Event {
	return watcher.Event{Name: obj.GetName(), Labels: obj.GetLabels(), Op: op, Object: obj}
}
