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
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/tools/record"
	"k8s.io/utils/clock"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/ewm"
	"github.com/ewm-cloud-robotics/robot-controller/internal/metrics"
	"github.com/ewm-cloud-robotics/robot-controller/internal/mission"
	"github.com/ewm-cloud-robotics/robot-controller/internal/progress"
	"github.com/ewm-cloud-robotics/robot-controller/internal/runner"
)

// RunnerDeps are the shared collaborators of every runner.
type RunnerDeps struct {
	Missions     mission.Resources
	Robots       *mission.RobotCache
	Orders       ewm.Resources
	Requests     ewm.Resources
	Store        progress.Store
	Recorder     record.EventRecorder
	Metrics      metrics.Sink
	Clock        clock.WithTicker
	TickInterval time.Duration
}

// NewRunnerFactory builds runners on Mission, Robot, WarehouseOrder and
// RobotRequest resources.
func NewRunnerFactory(deps RunnerDeps) RunnerFactory {
	return func(robot string, conf *v1alpha1.RobotConfiguration, obj *unstructured.Unstructured) (RobotRunner, error) {
		missions := mission.NewClient(robot, deps.Missions, deps.Robots, conf.Spec.BatteryOk)

		backendOpts := []ewm.Option{}
		runnerOpts := []runner.Option{}
		if deps.Clock != nil {
			backendOpts = append(backendOpts, ewm.WithClock(deps.Clock))
			runnerOpts = append(runnerOpts, runner.WithClock(deps.Clock))
		}
		if deps.Recorder != nil {
			runnerOpts = append(runnerOpts, runner.WithRecorder(deps.Recorder, obj))
		}
		if deps.Metrics != nil {
			runnerOpts = append(runnerOpts, runner.WithMetrics(deps.Metrics))
		}
		if deps.TickInterval > 0 {
			runnerOpts = append(runnerOpts, runner.WithTickInterval(deps.TickInterval))
		}
		backend := ewm.NewBackend(robot, conf.Spec.Lgnum, deps.Orders, deps.Requests, deps.Store, backendOpts...)
		return runner.New(robot, ConfigFromSpec(conf.Spec), missions, backend, runnerOpts...)
	}
}
