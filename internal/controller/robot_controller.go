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
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/progress"
	"github.com/ewm-cloud-robotics/robot-controller/internal/runner"
	"github.com/ewm-cloud-robotics/robot-controller/internal/statemachine"
	"github.com/ewm-cloud-robotics/robot-controller/internal/watcher"
)

// RobotRunner drives the state machine of one robot.
type RobotRunner interface {
	Robot() string
	Restore(snapshot statemachine.Snapshot) error
	Start(ctx context.Context) error
	Stop()
	Status() runner.Status
	OrderChanged(ctx context.Context, o statemachine.Order) error
	OrderRemoved(ctx context.Context, key statemachine.OrderKey) error
	OrderConfirmed(ctx context.Context, key statemachine.OrderKey) error
	ConfigChanged(ctx context.Context, cfg statemachine.Config) error
}

var _ RobotRunner = (*runner.Runner)(nil)

// RunnerFactory builds the runner of a newly configured robot.
type RunnerFactory func(robot string, conf *v1alpha1.RobotConfiguration, obj *unstructured.Unstructured) (RobotRunner, error)

// Registrar is the callback registration side of a resource watcher.
type Registrar interface {
	RegisterCallback(name string, handler watcher.Handler, ops ...watcher.Operation) error
}

// OrderLister lists the warehouse orders known to the cluster.
type OrderLister interface {
	List(ctx context.Context) (*unstructured.UnstructuredList, error)
}

// Watchers are the resource watchers the controller is fed by.
type Watchers struct {
	Configurations Registrar
	Orders         Registrar
	Requests       Registrar
}

type Option func(*RobotController)

// WithRobot restricts the controller to a single robot.
func WithRobot(robot string) Option {
	return func(c *RobotController) { c.robot = robot }
}

// WithOrderLister replays existing orders to every new runner.
func WithOrderLister(l OrderLister) Option {
	return func(c *RobotController) { c.orders = l }
}

type robotEntry struct {
	runner RobotRunner
	spec   v1alpha1.RobotConfigurationSpec
}

// RobotController keeps one runner per RobotConfiguration and routes order
// events to them.
type RobotController struct {
	factory RunnerFactory
	store   progress.Store
	orders  OrderLister
	robot   string

	mu      sync.RWMutex
	ctx     context.Context
	stopped bool
	runners map[string]*robotEntry
}

func NewRobotController(factory RunnerFactory, store progress.Store, opts ...Option) *RobotController {
	c := &RobotController{
		factory: factory,
		store:   store,
		ctx:     context.Background(),
		runners: make(map[string]*robotEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register installs the controller's callbacks on the watchers.
func (c *RobotController) Register(w Watchers) error {
	all := []watcher.Operation{watcher.Added, watcher.Modified, watcher.Deleted, watcher.Reprocess}
	if err := w.Configurations.RegisterCallback("robot-controller", c.HandleConfiguration, all...); err != nil {
		return err
	}
	if err := w.Orders.RegisterCallback("robot-controller", c.HandleOrder, all...); err != nil {
		return err
	}
	return w.Requests.RegisterCallback("robot-controller", c.HandleRequest, watcher.Added, watcher.Modified, watcher.Reprocess)
}

// Start sets the context runners are started with.
func (c *RobotController) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = ctx
}

// Stop stops every runner. Later configuration events are ignored.
func (c *RobotController) Stop() {
	c.mu.Lock()
	c.stopped = true
	entries := c.runners
	c.runners = make(map[string]*robotEntry)
	c.mu.Unlock()

	for _, e := range entries {
		e.runner.Stop()
	}
	klog.InfoS("robot controller stopped", "robots", len(entries))
}

// HandleConfiguration creates, updates or stops the runner of a robot.
func (c *RobotController) HandleConfiguration(ctx context.Context, ev watcher.Event) error {
	robot := ev.Name
	if c.robot != "" && robot != c.robot {
		return nil
	}
	if ev.Op == watcher.Deleted {
		return c.removeRobot(ctx, robot)
	}

	conf, err := v1alpha1.Decode[v1alpha1.RobotConfiguration](ev.Object)
	if err != nil {
		klog.ErrorS(err, "skipping invalid robot configuration", "robot", robot)
		return nil
	}

	c.mu.RLock()
	entry, ok := c.runners[robot]
	stopped := c.stopped
	c.mu.RUnlock()
	if stopped {
		return nil
	}
	if ok {
		if equality.Semantic.DeepEqual(entry.spec, conf.Spec) {
			return nil
		}
		if entry.spec.Lgnum != conf.Spec.Lgnum {
			klog.InfoS("warehouse of robot changed, restart required to apply it", "robot", robot,
				"lgnum", entry.spec.Lgnum, "new", conf.Spec.Lgnum)
		}
		if err := entry.runner.ConfigChanged(ctx, ConfigFromSpec(conf.Spec)); err != nil {
			return err
		}
		c.mu.Lock()
		entry.spec = conf.Spec
		c.mu.Unlock()
		klog.InfoS("robot configuration updated", "robot", robot)
		return nil
	}
	return c.addRobot(ctx, robot, conf, ev.Object)
}

func (c *RobotController) addRobot(ctx context.Context, robot string, conf *v1alpha1.RobotConfiguration, obj *unstructured.Unstructured) error {
	r, err := c.factory(robot, conf, obj)
	if err != nil {
		return fmt.Errorf("failed to create runner of robot %s: %w", robot, err)
	}
	snapshot, err := c.store.Load(ctx, robot)
	switch {
	case errors.Is(err, progress.ErrNotFound):
	case err != nil:
		klog.ErrorS(err, "failed to load progress, starting over", "robot", robot)
	default:
		if err := r.Restore(snapshot); err != nil {
			klog.ErrorS(err, "failed to restore progress, starting over", "robot", robot, "state", snapshot.State)
		} else {
			klog.InfoS("robot progress restored", "robot", robot, "state", snapshot.State)
		}
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	if _, ok := c.runners[robot]; ok {
		c.mu.Unlock()
		return nil
	}
	c.runners[robot] = &robotEntry{runner: r, spec: conf.Spec}
	runCtx := c.ctx
	c.mu.Unlock()

	if err := r.Start(runCtx); err != nil {
		return err
	}
	klog.InfoS("robot added", "robot", robot, "lgnum", conf.Spec.Lgnum)
	c.replayOrders(ctx, r)
	return nil
}

func (c *RobotController) removeRobot(ctx context.Context, robot string) error {
	c.mu.Lock()
	entry, ok := c.runners[robot]
	delete(c.runners, robot)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	entry.runner.Stop()
	if err := c.store.Delete(ctx, robot); err != nil {
		klog.ErrorS(err, "failed to delete progress", "robot", robot)
	}
	klog.InfoS("robot removed", "robot", robot)
	return nil
}

func (c *RobotController) replayOrders(ctx context.Context, r RobotRunner) {
	if c.orders == nil {
		return
	}
	list, err := c.orders.List(ctx)
	if err != nil {
		klog.ErrorS(err, "failed to list orders for new robot", "robot", r.Robot())
		return
	}
	for i := range list.Items {
		obj := &list.Items[i]
		if c.route(obj.GetLabels(), orderRsrc(obj)) != r {
			continue
		}
		order, err := orderFromObject(obj)
		if err != nil {
			klog.ErrorS(err, "skipping invalid warehouse order", "name", obj.GetName())
			continue
		}
		if err := r.OrderChanged(ctx, order); err != nil {
			klog.ErrorS(err, "failed to replay order", "robot", r.Robot(), "order", order.Key().String())
		}
	}
}

// HandleOrder routes a warehouse order event to the runner of its robot.
func (c *RobotController) HandleOrder(ctx context.Context, ev watcher.Event) error {
	if ev.Op == watcher.Deleted {
		r := c.route(ev.Labels, orderRsrc(ev.Object))
		if r == nil {
			return nil
		}
		key, ok := orderKey(ev.Object)
		if !ok {
			klog.InfoS("deleted order without data", "name", ev.Name)
			return nil
		}
		return r.OrderRemoved(ctx, key)
	}

	order, err := orderFromObject(ev.Object)
	if err != nil {
		klog.ErrorS(err, "skipping invalid warehouse order", "name", ev.Name)
		return nil
	}
	r := c.route(ev.Labels, order.Rsrc)
	if r == nil {
		klog.V(2).InfoS("no robot for warehouse order", "order", order.Key().String(), "rsrc", order.Rsrc)
		return nil
	}
	return r.OrderChanged(ctx, order)
}

// HandleRequest routes the order manager's completion notice of an order.
func (c *RobotController) HandleRequest(ctx context.Context, ev watcher.Event) error {
	request, err := v1alpha1.Decode[v1alpha1.RobotRequest](ev.Object)
	if err != nil {
		klog.ErrorS(err, "skipping invalid robot request", "name", ev.Name)
		return nil
	}
	if request.Status.Status != v1alpha1.RobotRequestStatusProcessed || request.Spec.NotifyWhoCompletion == "" {
		return nil
	}
	r := c.route(ev.Labels, request.Spec.Rsrc)
	if r == nil {
		return nil
	}
	return r.OrderConfirmed(ctx, statemachine.OrderKey{Lgnum: request.Spec.Lgnum, Who: request.Spec.NotifyWhoCompletion})
}

// route finds the runner by robot label, falling back to the EWM resource.
func (c *RobotController) route(labels map[string]string, rsrc string) RobotRunner {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name := labels[v1alpha1.LabelRobotName]; name != "" {
		if e, ok := c.runners[name]; ok {
			return e.runner
		}
		return nil
	}
	if rsrc == "" {
		return nil
	}
	for name, e := range c.runners {
		if strings.EqualFold(name, rsrc) {
			return e.runner
		}
	}
	return nil
}

// Robots returns the status of every runner ordered by robot name.
func (c *RobotController) Robots() []runner.Status {
	c.mu.RLock()
	out := make([]runner.Status, 0, len(c.runners))
	for _, e := range c.runners {
		out = append(out, e.runner.Status())
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Robot < out[j].Robot })
	return out
}

func (c *RobotController) Robot(name string) (runner.Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.runners[name]
	if !ok {
		return runner.Status{}, false
	}
	return e.runner.Status(), true
}
