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

// Package runner drives the state machine of one robot on a single goroutine.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/ewm-cloud-robotics/robot-controller/internal/metrics"
	"github.com/ewm-cloud-robotics/robot-controller/internal/statemachine"
)

const (
	DefaultTickInterval = time.Second
	defaultQueueSize    = 100
)

var (
	ErrStopped        = errors.New("runner stopped")
	ErrAlreadyStarted = errors.New("runner already started")
)

// event is an input delivered to the machine on the runner goroutine.
type event func(m *statemachine.Machine) *statemachine.Step

// Status is the view of a runner served by the status API.
type Status struct {
	Robot        string                `json:"robot"`
	State        string                `json:"state"`
	InTransition bool                  `json:"inTransition"`
	QueueLength  int                   `json:"queueLength"`
	Snapshot     statemachine.Snapshot `json:"snapshot"`
	LastError    string                `json:"lastError,omitempty"`
	UpdateTime   time.Time             `json:"updateTime"`
}

type Option func(*Runner)

// WithRecorder emits Kubernetes events about the robot against obj.
func WithRecorder(recorder record.EventRecorder, obj runtime.Object) Option {
	return func(r *Runner) {
		r.recorder = recorder
		r.object = obj
	}
}

func WithMetrics(sink metrics.Sink) Option {
	return func(r *Runner) { r.metrics = sink }
}

func WithClock(c clock.WithTicker) Option {
	return func(r *Runner) { r.clock = c }
}

func WithTickInterval(d time.Duration) Option {
	return func(r *Runner) { r.interval = d }
}

func WithQueueSize(n int) Option {
	return func(r *Runner) { r.queueSize = n }
}

// Runner owns a state machine and executes its effects.
type Runner struct {
	robot    string
	machine  *statemachine.Machine
	missions MissionAPI
	backend  BackendAPI

	recorder  record.EventRecorder
	object    runtime.Object
	metrics   metrics.Sink
	clock     clock.WithTicker
	interval  time.Duration
	queueSize int

	events    chan event
	startOnce sync.Once
	started   bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}

	mu     sync.RWMutex
	status Status
}

// New creates a runner for robot. The machine starts in its initial state
// unless Restore is called before Start.
func New(robot string, cfg statemachine.Config, missions MissionAPI, backend BackendAPI, opts ...Option) (*Runner, error) {
	if robot == "" {
		return nil, fmt.Errorf("robot name cannot be empty")
	}
	if missions == nil {
		return nil, fmt.Errorf("mission api cannot be nil")
	}
	if backend == nil {
		return nil, fmt.Errorf("backend api cannot be nil")
	}
	r := &Runner{
		robot:     robot,
		machine:   statemachine.New(robot, cfg),
		missions:  missions,
		backend:   backend,
		metrics:   metrics.Noop{},
		clock:     clock.RealClock{},
		interval:  DefaultTickInterval,
		queueSize: defaultQueueSize,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.events = make(chan event, r.queueSize)
	r.updateStatus(nil)
	return r, nil
}

func (r *Runner) Robot() string {
	return r.robot
}

// Restore resumes the machine from a persisted snapshot. It must be called before Start.
func (r *Runner) Restore(snapshot statemachine.Snapshot) error {
	if r.started {
		return ErrAlreadyStarted
	}
	if err := r.machine.Restore(snapshot); err != nil {
		return err
	}
	r.updateStatus(nil)
	return nil
}

// Start launches the runner goroutine.
func (r *Runner) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	r.startOnce.Do(func() {
		r.started = true
		err = nil
		klog.InfoS("starting robot runner", "robot", r.robot, "interval", r.interval)
		go r.loop(ctx)
	})
	return err
}

// Stop ends the runner goroutine and waits for it to exit.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		klog.InfoS("stopping robot runner", "robot", r.robot)
		close(r.stopCh)
	})
	if r.started {
		<-r.doneCh
	}
}

// Status returns the latest view of the runner.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// OrderChanged queues an added or modified warehouse order.
func (r *Runner) OrderChanged(ctx context.Context, o statemachine.Order) error {
	return r.send(ctx, func(m *statemachine.Machine) *statemachine.Step { return m.OrderChanged(o) })
}

// OrderRemoved queues the deletion of a warehouse order.
func (r *Runner) OrderRemoved(ctx context.Context, key statemachine.OrderKey) error {
	return r.send(ctx, func(m *statemachine.Machine) *statemachine.Step { return m.OrderRemoved(key) })
}

// OrderConfirmed queues the order manager's completion notice for an order.
func (r *Runner) OrderConfirmed(ctx context.Context, key statemachine.OrderKey) error {
	return r.send(ctx, func(m *statemachine.Machine) *statemachine.Step { return m.OrderConfirmed(key) })
}

// ConfigChanged queues a robot configuration update.
func (r *Runner) ConfigChanged(ctx context.Context, cfg statemachine.Config) error {
	return r.send(ctx, func(m *statemachine.Machine) *statemachine.Step {
		m.ConfigChanged(cfg)
		return nil
	})
}

func (r *Runner) send(ctx context.Context, ev event) error {
	select {
	case <-r.stopCh:
		return ErrStopped
	default:
	}
	select {
	case r.events <- ev:
		return nil
	case <-r.stopCh:
		return ErrStopped
	case <-r.doneCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case ev := <-r.events:
			r.drive(ctx, ev(r.machine))
		case <-ticker.C():
			r.tick(ctx)
		case <-r.stopCh:
			klog.InfoS("robot runner stopped", "robot", r.robot)
			return
		case <-ctx.Done():
			klog.InfoS("robot runner context cancelled", "robot", r.robot)
			return
		}
	}
}

// tick polls the mission api and feeds the observation to the machine.
func (r *Runner) tick(ctx context.Context) {
	if r.machine.InTransition() {
		return
	}
	obs := statemachine.Observation{Now: r.clock.Now()}
	if mission := r.machine.ActiveMission(); mission != nil {
		status, action, err := r.missions.RefreshStatus(ctx, mission.Kind, mission.Name)
		if err != nil {
			klog.ErrorS(err, "failed to refresh mission status", "robot", r.robot, "mission", mission.Name)
		} else {
			mission.Status, mission.ActiveAction = status, action
			obs.Mission = mission
		}
	}
	ok, err := r.missions.IsRobotOk(ctx)
	if err != nil {
		klog.ErrorS(err, "failed to get robot status", "robot", r.robot)
	}
	obs.RobotOK = ok && err == nil
	if obs.Battery, err = r.missions.BatteryPercent(ctx); err != nil {
		klog.ErrorS(err, "failed to get battery level", "robot", r.robot)
	}
	attached, err := r.missions.TrolleyAttached(ctx)
	switch {
	case err != nil:
		klog.ErrorS(err, "failed to get trolley state", "robot", r.robot)
	case attached == nil:
	case *attached:
		obs.Trolley = statemachine.TrolleyAttached
	default:
		obs.Trolley = statemachine.TrolleyDetached
	}
	r.drive(ctx, r.machine.Tick(obs))
}

// drive executes step and every follow-up step until the machine is at rest.
func (r *Runner) drive(ctx context.Context, step *statemachine.Step) {
	var lastErr error
	changed := step != nil
	for step != nil {
		klog.V(2).InfoS("executing step", "robot", r.robot, "step", step.String())
		res, err := r.execute(ctx, step)
		if err != nil {
			lastErr = err
		}
		done := step
		step = r.machine.Complete(res, err)
		if err == nil {
			r.entered(done)
		}
	}
	if !changed {
		return
	}
	if err := r.backend.SaveProgress(ctx, r.machine.Snapshot()); err != nil {
		klog.ErrorS(err, "failed to save progress", "robot", r.robot)
	}
	r.updateStatus(lastErr)
}

func (r *Runner) entered(step *statemachine.Step) {
	for _, s := range step.Path {
		r.metrics.StateEntered(r.robot, s.String())
	}
	if len(step.Path) == 0 {
		return
	}
	klog.InfoS("state changed", "robot", r.robot, "from", step.From.String(), "to", step.To.String(), "reason", step.Reason)
	if step.To.Sub == statemachine.RobotError && r.recorder != nil && r.object != nil {
		r.recorder.Eventf(r.object, corev1.EventTypeWarning, "RobotError",
			"robot %s entered RobotError from %s: %s", r.robot, step.From, step.Reason)
	}
}

func (r *Runner) updateStatus(lastErr error) {
	st := Status{
		Robot:        r.robot,
		State:        r.machine.State().String(),
		InTransition: r.machine.InTransition(),
		QueueLength:  r.machine.QueueLength(),
		Snapshot:     r.machine.Snapshot(),
		UpdateTime:   r.clock.Now(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if lastErr != nil {
		st.LastError = lastErr.Error()
	} else {
		st.LastError = r.status.LastError
	}
	r.status = st
}
