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
	"fmt"

	"k8s.io/klog/v2"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/statemachine"
)

// execute runs the effects of step in order. The first failure aborts the step.
func (r *Runner) execute(ctx context.Context, step *statemachine.Step) (statemachine.Result, error) {
	var res statemachine.Result
	for _, effect := range step.Effects {
		if err := r.apply(ctx, effect, &res); err != nil {
			r.metrics.EffectFailed(r.robot, string(effect.Kind()))
			return res, fmt.Errorf("%s: %w", effect.Kind(), err)
		}
	}
	return res, nil
}

func (r *Runner) apply(ctx context.Context, effect statemachine.Effect, res *statemachine.Result) error {
	switch e := effect.(type) {
	case statemachine.CreateMission:
		name, err := r.createMission(ctx, e)
		if err != nil {
			return err
		}
		r.metrics.MissionCreated(r.robot, string(e.Mission))
		klog.InfoS("mission created", "robot", r.robot, "mission", name, "kind", e.Mission, "target", e.Target)
		res.Mission = &statemachine.Mission{
			Name:   name,
			Kind:   e.Mission,
			Status: statemachine.MissionAccepted,
			Target: e.Target,
		}
	case statemachine.CancelMission:
		found, err := r.missions.CancelMission(ctx, e.Name)
		if err != nil {
			return err
		}
		if !found {
			klog.InfoS("mission to cancel not found", "robot", r.robot, "mission", e.Name)
		}
	case statemachine.ConfirmTask:
		err := r.backend.ConfirmTask(ctx, e.Task, e.Number, e.EnforceFirst)
		result := v1alpha1.ConfirmationSuccess
		switch {
		case errors.Is(err, ErrAlreadyConfirmed):
			klog.InfoS("task already confirmed", "robot", r.robot, "tanum", e.Task.Tanum, "number", e.Number)
		case errors.Is(err, ErrBusiness):
			klog.ErrorS(err, "order manager rejected confirmation", "robot", r.robot, "tanum", e.Task.Tanum, "number", e.Number)
		case err != nil:
			return err
		}
		r.metrics.Confirmation(r.robot, string(e.Number), string(result))
	case statemachine.SendTaskError:
		err := r.backend.SendTaskError(ctx, e.Task)
		switch {
		case errors.Is(err, ErrAlreadyConfirmed), errors.Is(err, ErrBusiness):
			klog.ErrorS(err, "task error not recorded", "robot", r.robot, "tanum", e.Task.Tanum)
		case err != nil:
			return err
		}
		r.metrics.Confirmation(r.robot, "", string(v1alpha1.ConfirmationFailure))
	case statemachine.RequestWork:
		return r.backend.RequestWork(ctx, e.OnlyNewOrder)
	case statemachine.NotifyOrderCompletion:
		return r.backend.NotifyOrderCompletion(ctx, e.Order)
	default:
		return fmt.Errorf("unknown effect %T", effect)
	}
	return nil
}

func (r *Runner) createMission(ctx context.Context, e statemachine.CreateMission) (string, error) {
	switch e.Mission {
	case statemachine.MissionMove:
		return r.missions.Move(ctx, e.Target)
	case statemachine.MissionCharge:
		return r.missions.Charge(ctx, e.Target)
	case statemachine.MissionDock:
		return r.missions.Dock(ctx, e.Target)
	case statemachine.MissionLoad, statemachine.MissionUnload:
		if e.Task == nil {
			return "", fmt.Errorf("%s mission without task", e.Mission)
		}
		return r.missions.LoadUnload(ctx, *e.Task, e.Mission)
	}
	return "", fmt.Errorf("unknown mission kind %q", e.Mission)
}
