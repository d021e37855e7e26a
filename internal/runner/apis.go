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

package runner

import (
	"context"
	"errors"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/statemachine"
)

//go:generate mockgen -source=apis.go -destination=apis_mock.go -package=runner

var (
	// ErrAlreadyConfirmed is returned by ConfirmTask when the confirmation exists.
	ErrAlreadyConfirmed = errors.New("task already confirmed")
	// ErrBusiness marks a rejection by the order manager. It is logged, not retried.
	ErrBusiness = errors.New("business error")
)

// MissionAPI drives the missions of one robot and reports its health.
type MissionAPI interface {
	// Move, Charge, Dock and LoadUnload create a mission and return its name.
	Move(ctx context.Context, target string) (string, error)
	Charge(ctx context.Context, charger string) (string, error)
	Dock(ctx context.Context, target string) (string, error)
	// LoadUnload creates a load or unload mission for task. action is
	// statemachine.MissionLoad or statemachine.MissionUnload.
	LoadUnload(ctx context.Context, task statemachine.Task, action statemachine.MissionKind) (string, error)
	// CancelMission returns false when the mission does not exist.
	CancelMission(ctx context.Context, name string) (bool, error)
	// RefreshStatus returns the mission status and its active action.
	RefreshStatus(ctx context.Context, kind statemachine.MissionKind, name string) (statemachine.MissionStatus, string, error)
	IsRobotOk(ctx context.Context) (bool, error)
	BatteryPercent(ctx context.Context) (float64, error)
	// TrolleyAttached returns nil when the robot has no trolley sensor.
	TrolleyAttached(ctx context.Context) (*bool, error)
}

// BackendAPI talks to the order manager on behalf of one robot.
type BackendAPI interface {
	ConfirmTask(ctx context.Context, task statemachine.Task, number v1alpha1.ConfirmationNumber, enforceFirst bool) error
	SendTaskError(ctx context.Context, task statemachine.Task) error
	// RequestWork asks for a new order. Calls within the throttle window are dropped.
	RequestWork(ctx context.Context, onlyNewOrder bool) error
	NotifyOrderCompletion(ctx context.Context, order statemachine.OrderKey) error
	SaveProgress(ctx context.Context, snapshot statemachine.Snapshot) error
}
