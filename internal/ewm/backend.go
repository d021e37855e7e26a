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

// Package ewm implements the order manager backend on WarehouseOrder and
// RobotRequest resources.
package ewm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/progress"
	"github.com/ewm-cloud-robotics/robot-controller/internal/runner"
	"github.com/ewm-cloud-robotics/robot-controller/internal/statemachine"
	"github.com/ewm-cloud-robotics/robot-controller/internal/watcher"
)

// RequestWorkInterval is the minimum spacing of work requests of one robot.
const RequestWorkInterval = 10 * time.Second

// Resources is the subset of the resource watcher the backend needs.
type Resources interface {
	Get(ctx context.Context, name string) (*unstructured.Unstructured, error)
	Create(ctx context.Context, name string, labels map[string]string, spec map[string]interface{}) (*unstructured.Unstructured, error)
	UpdateSpec(ctx context.Context, name string, spec map[string]interface{}, labels map[string]string) (*unstructured.Unstructured, error)
	UpdateStatus(ctx context.Context, name string, status map[string]interface{}) (*unstructured.Unstructured, error)
	Delete(ctx context.Context, name string) error
}

var (
	_ Resources         = (*watcher.ResourceWatcher)(nil)
	_ runner.BackendAPI = (*Backend)(nil)
)

type Option func(*Backend)

func WithClock(c clock.PassiveClock) Option {
	return func(b *Backend) { b.clock = c }
}

// Backend reports the progress of one robot to the order manager.
type Backend struct {
	robot    string
	rsrc     string
	lgnum    string
	orders   Resources
	requests Resources
	store    progress.Store
	clock    clock.PassiveClock

	mu          sync.Mutex
	lastRequest time.Time
}

func NewBackend(robot, lgnum string, orders, requests Resources, store progress.Store, opts ...Option) *Backend {
	b := &Backend{
		robot:    robot,
		rsrc:     strings.ToUpper(robot),
		lgnum:    lgnum,
		orders:   orders,
		requests: requests,
		store:    store,
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ConfirmTask records a successful FIRST or SECOND confirmation in the order status.
func (b *Backend) ConfirmTask(ctx context.Context, task statemachine.Task, number v1alpha1.ConfirmationNumber, enforceFirst bool) error {
	name, order, err := b.order(ctx, task)
	if err != nil {
		return err
	}
	confirmations := order.Status.Data
	if confirmed(confirmations, task.Tanum, number, v1alpha1.ConfirmationSuccess) {
		return fmt.Errorf("%w: %s %s of order %s", runner.ErrAlreadyConfirmed, number, task.Tanum, name)
	}
	wt, ok := findTask(order, task.Tanum)
	if !ok {
		return fmt.Errorf("%w: task %s not in order %s", runner.ErrBusiness, task.Tanum, name)
	}
	if number == v1alpha1.ConfirmationFirst && wt.Vlpla == "" && !enforceFirst {
		return fmt.Errorf("%w: task %s has no source bin to confirm", runner.ErrBusiness, task.Tanum)
	}
	if err := b.appendConfirmation(ctx, name, confirmations, task, number, v1alpha1.ConfirmationSuccess); err != nil {
		return err
	}
	klog.InfoS("task confirmed", "robot", b.robot, "order", name, "tanum", task.Tanum, "number", number)
	return nil
}

// SendTaskError records a FAILURE confirmation of the leg that is still open.
func (b *Backend) SendTaskError(ctx context.Context, task statemachine.Task) error {
	name, order, err := b.order(ctx, task)
	if err != nil {
		return err
	}
	confirmations := order.Status.Data
	number := v1alpha1.ConfirmationFirst
	if confirmed(confirmations, task.Tanum, v1alpha1.ConfirmationFirst, v1alpha1.ConfirmationSuccess) {
		number = v1alpha1.ConfirmationSecond
	}
	if confirmed(confirmations, task.Tanum, number, v1alpha1.ConfirmationFailure) {
		return fmt.Errorf("%w: error of task %s already sent", runner.ErrAlreadyConfirmed, task.Tanum)
	}
	if err := b.appendConfirmation(ctx, name, confirmations, task, number, v1alpha1.ConfirmationFailure); err != nil {
		return err
	}
	klog.InfoS("task error sent", "robot", b.robot, "order", name, "tanum", task.Tanum, "number", number)
	return nil
}

// RequestWork asks the order manager for work through the robot's RobotRequest.
func (b *Backend) RequestWork(ctx context.Context, onlyNewOrder bool) error {
	b.mu.Lock()
	now := b.clock.Now()
	if !b.lastRequest.IsZero() && now.Sub(b.lastRequest) < RequestWorkInterval {
		b.mu.Unlock()
		klog.V(2).InfoS("work request throttled", "robot", b.robot)
		return nil
	}
	b.mu.Unlock()

	err := b.upsertRequest(ctx, func(spec *v1alpha1.RobotRequestSpec) bool {
		if spec.RequestWork && spec.RequestNewWho == onlyNewOrder {
			return false
		}
		spec.RequestWork = true
		spec.RequestNewWho = onlyNewOrder
		return true
	})
	if err != nil {
		return err
	}
	// Only a request that reached the order manager starts the throttle window.
	b.mu.Lock()
	b.lastRequest = now
	b.mu.Unlock()
	return nil
}

// NotifyOrderCompletion asks the order manager to confirm that order is complete.
func (b *Backend) NotifyOrderCompletion(ctx context.Context, order statemachine.OrderKey) error {
	return b.upsertRequest(ctx, func(spec *v1alpha1.RobotRequestSpec) bool {
		if spec.NotifyWhoCompletion == order.Who {
			return false
		}
		spec.NotifyWhoCompletion = order.Who
		return true
	})
}

func (b *Backend) SaveProgress(ctx context.Context, snapshot statemachine.Snapshot) error {
	return b.store.Save(ctx, b.robot, snapshot)
}

func (b *Backend) order(ctx context.Context, task statemachine.Task) (string, *v1alpha1.WarehouseOrder, error) {
	name := v1alpha1.OrderName(task.Lgnum, task.Who)
	obj, err := b.orders.Get(ctx, name)
	if apierrors.IsNotFound(err) {
		return name, nil, fmt.Errorf("%w: order %s not found", runner.ErrBusiness, name)
	}
	if err != nil {
		return name, nil, err
	}
	order, err := v1alpha1.Decode[v1alpha1.WarehouseOrder](obj)
	if err != nil {
		return name, nil, fmt.Errorf("%w: %v", runner.ErrBusiness, err)
	}
	return name, order, nil
}

func (b *Backend) appendConfirmation(ctx context.Context, name string, existing []v1alpha1.EWMWarehouseTaskConfirmation,
	task statemachine.Task, number v1alpha1.ConfirmationNumber, typ v1alpha1.ConfirmationType) error {
	data := append(append([]v1alpha1.EWMWarehouseTaskConfirmation(nil), existing...), v1alpha1.EWMWarehouseTaskConfirmation{
		ConfirmationDate:   metav1.NewTime(b.clock.Now()),
		ConfirmationNumber: number,
		ConfirmationType:   typ,
		Lgnum:              task.Lgnum,
		Rsrc:               b.rsrc,
		Tanum:              task.Tanum,
		Who:                task.Who,
	})
	status, err := v1alpha1.Encode(&v1alpha1.WarehouseOrderStatus{Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode confirmations: %w", err)
	}
	_, err = b.orders.UpdateStatus(ctx, name, status)
	return err
}

// upsertRequest applies mutate to the robot's request. A processed request
// is replaced by a fresh one.
func (b *Backend) upsertRequest(ctx context.Context, mutate func(spec *v1alpha1.RobotRequestSpec) bool) error {
	name := v1alpha1.RobotRequestName(b.robot)
	labels := map[string]string{v1alpha1.LabelRobotName: b.robot}
	fresh := v1alpha1.RobotRequestSpec{Lgnum: b.lgnum, Rsrc: b.rsrc}

	obj, err := b.requests.Get(ctx, name)
	switch {
	case apierrors.IsNotFound(err):
	case err != nil:
		return err
	default:
		request, err := v1alpha1.Decode[v1alpha1.RobotRequest](obj)
		if err != nil {
			return err
		}
		if request.Status.Status != v1alpha1.RobotRequestStatusProcessed {
			spec := request.Spec
			if !mutate(&spec) {
				return nil
			}
			encoded, err := v1alpha1.Encode(&spec)
			if err != nil {
				return fmt.Errorf("failed to encode robot request: %w", err)
			}
			_, err = b.requests.UpdateSpec(ctx, name, encoded, labels)
			return err
		}
		if err := b.requests.Delete(ctx, name); err != nil && !apierrors.IsNotFound(err) {
			return err
		}
	}

	mutate(&fresh)
	encoded, err := v1alpha1.Encode(&fresh)
	if err != nil {
		return fmt.Errorf("failed to encode robot request: %w", err)
	}
	if _, err := b.requests.Create(ctx, name, labels, encoded); err != nil {
		return err
	}
	klog.InfoS("robot request created", "robot", b.robot, "request", name)
	return nil
}

func confirmed(data []v1alpha1.EWMWarehouseTaskConfirmation, tanum string, number v1alpha1.ConfirmationNumber, typ v1alpha1.ConfirmationType) bool {
	for _, c := range data {
		if c.Tanum == tanum && c.ConfirmationNumber == number && c.ConfirmationType == typ {
			return true
		}
	}
	return false
}

func findTask(order *v1alpha1.WarehouseOrder, tanum string) (v1alpha1.EWMWarehouseTask, bool) {
	for _, t := range order.Spec.Data.Warehousetasks {
		if t.Tanum == tanum {
			return t, true
		}
	}
	return v1alpha1.EWMWarehouseTask{}, false
}
