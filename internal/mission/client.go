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

// Package mission implements the mission API on Mission and Robot resources.
package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/runner"
	"github.com/ewm-cloud-robotics/robot-controller/internal/statemachine"
	"github.com/ewm-cloud-robotics/robot-controller/internal/watcher"
)

const fullBattery = 100

// Resources is the subset of the resource watcher the client needs.
type Resources interface {
	Get(ctx context.Context, name string) (*unstructured.Unstructured, error)
	Create(ctx context.Context, name string, labels map[string]string, spec map[string]interface{}) (*unstructured.Unstructured, error)
	Delete(ctx context.Context, name string) error
}

var (
	_ Resources         = (*watcher.ResourceWatcher)(nil)
	_ runner.MissionAPI = (*Client)(nil)
)

// Client creates and observes the missions of one robot.
type Client struct {
	robot    string
	missions Resources
	robots   *RobotCache
	// chargeThreshold is sent with charge missions.
	chargeThreshold float64
}

func NewClient(robot string, missions Resources, robots *RobotCache, chargeThreshold float64) *Client {
	return &Client{robot: robot, missions: missions, robots: robots, chargeThreshold: chargeThreshold}
}

func (c *Client) Move(ctx context.Context, target string) (string, error) {
	return c.create(ctx, v1alpha1.Action{
		MoveToNamedPosition: &v1alpha1.MoveToNamedPositionAction{TargetName: target},
	})
}

func (c *Client) Charge(ctx context.Context, charger string) (string, error) {
	return c.create(ctx, v1alpha1.Action{
		Charge: &v1alpha1.ChargeAction{
			ChargerName:             charger,
			ThresholdBatteryPercent: c.chargeThreshold,
			TargetBatteryPercent:    fullBattery,
		},
	})
}

func (c *Client) Dock(ctx context.Context, target string) (string, error) {
	return c.create(ctx, v1alpha1.Action{
		GetTrolley: &v1alpha1.TrolleyAction{DockName: target},
	})
}

// LoadUnload picks up a trolley at the task's source bin or returns it at the target bin.
func (c *Client) LoadUnload(ctx context.Context, task statemachine.Task, action statemachine.MissionKind) (string, error) {
	switch action {
	case statemachine.MissionLoad:
		return c.create(ctx, v1alpha1.Action{GetTrolley: &v1alpha1.TrolleyAction{DockName: task.SourceBin}})
	case statemachine.MissionUnload:
		return c.create(ctx, v1alpha1.Action{ReturnTrolley: &v1alpha1.TrolleyAction{DockName: task.TargetBin}})
	}
	return "", fmt.Errorf("unsupported load action %q", action)
}

// CancelMission deletes the mission resource.
func (c *Client) CancelMission(ctx context.Context, name string) (bool, error) {
	err := c.missions.Delete(ctx, name)
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	klog.InfoS("mission canceled", "robot", c.robot, "mission", name)
	return true, nil
}

// RefreshStatus reads the mission status. A deleted mission reports DELETED.
func (c *Client) RefreshStatus(ctx context.Context, kind statemachine.MissionKind, name string) (statemachine.MissionStatus, string, error) {
	obj, err := c.missions.Get(ctx, name)
	if apierrors.IsNotFound(err) {
		return statemachine.MissionDeleted, "", nil
	}
	if err != nil {
		return "", "", err
	}
	mission, err := v1alpha1.Decode[v1alpha1.Mission](obj)
	if err != nil {
		return "", "", err
	}
	status := statemachine.MissionStatus(mission.Status.Status)
	if status == "" {
		status = statemachine.MissionAccepted
	}
	klog.V(3).InfoS("mission status", "robot", c.robot, "mission", name, "kind", kind, "status", status)
	return status, string(mission.Status.ActiveAction.Status), nil
}

func (c *Client) IsRobotOk(ctx context.Context) (bool, error) {
	robot, err := c.robots.Get(ctx, c.robot)
	if err != nil {
		return false, err
	}
	return robot.IsOK(), nil
}

func (c *Client) BatteryPercent(ctx context.Context) (float64, error) {
	robot, err := c.robots.Get(ctx, c.robot)
	if err != nil {
		return 0, err
	}
	return robot.Status.Robot.BatteryPercentage, nil
}

func (c *Client) TrolleyAttached(ctx context.Context) (*bool, error) {
	robot, err := c.robots.Get(ctx, c.robot)
	if err != nil {
		return nil, err
	}
	return robot.Status.Robot.TrolleyAttached, nil
}

func (c *Client) create(ctx context.Context, action v1alpha1.Action) (string, error) {
	spec, err := v1alpha1.Encode(&v1alpha1.MissionSpec{Actions: []v1alpha1.Action{action}})
	if err != nil {
		return "", fmt.Errorf("failed to encode mission: %w", err)
	}
	name := c.robot + "-" + uuid.NewString()
	if _, err := c.missions.Create(ctx, name, map[string]string{v1alpha1.LabelRobotName: c.robot}, spec); err != nil {
		return "", err
	}
	return name, nil
}

// SweepFinished selects finished missions whose last actuation is older than retention.
func SweepFinished(retention time.Duration) watcher.SweepFunc {
	return func(obj *unstructured.Unstructured, now time.Time) bool {
		mission, err := v1alpha1.Decode[v1alpha1.Mission](obj)
		if err != nil || !mission.Status.Finished() {
			return false
		}
		last := mission.CreationTimestamp.Time
		if t := mission.Status.TimeOfActuation; t != nil && t.After(last) {
			last = t.Time
		}
		return now.Sub(last) >= retention
	}
}
