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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// MissionSpec is a sequence of robot actions.
type MissionSpec struct {
	Actions []Action `json:"actions" validate:"min=1,dive"`
}

// Action is a single mission step. Exactly one field is set.
type Action struct {
	MoveToNamedPosition *MoveToNamedPositionAction `json:"move_to_named_position,omitempty"`
	Charge              *ChargeAction              `json:"charge,omitempty"`
	GetTrolley          *TrolleyAction             `json:"get_trolley,omitempty"`
	ReturnTrolley       *TrolleyAction             `json:"return_trolley,omitempty"`
}

type MoveToNamedPositionAction struct {
	TargetName string `json:"target_name" validate:"required"`
}

type ChargeAction struct {
	ChargerName             string  `json:"charger_name" validate:"required"`
	ThresholdBatteryPercent float64 `json:"threshold_battery_percent,omitempty"`
	TargetBatteryPercent    float64 `json:"target_battery_percent,omitempty"`
}

type TrolleyAction struct {
	DockName string `json:"dock_name" validate:"required"`
}

// MissionStatusStatus is the lifecycle phase of a mission.
type MissionStatusStatus string

const (
	MissionStatusAccepted  MissionStatusStatus = "ACCEPTED"
	MissionStatusRunning   MissionStatusStatus = "RUNNING"
	MissionStatusSucceeded MissionStatusStatus = "SUCCEEDED"
	MissionStatusFailed    MissionStatusStatus = "FAILED"
	MissionStatusCanceled  MissionStatusStatus = "CANCELED"
)

// ActiveActionStatus is the sub status of the action currently executed.
type ActiveActionStatus string

const (
	ActiveActionMoving   ActiveActionStatus = "MOVING"
	ActiveActionDocking  ActiveActionStatus = "DOCKING"
	ActiveActionCharging ActiveActionStatus = "CHARGING"
)

type ActiveAction struct {
	Status ActiveActionStatus `json:"status,omitempty"`
}

// MissionStatus is reported by the mission executor on the robot.
type MissionStatus struct {
	Status          MissionStatusStatus `json:"status,omitempty"`
	ActiveAction    ActiveAction        `json:"active_action,omitempty"`
	Message         string              `json:"message,omitempty"`
	TimeOfActuation *metav1.Time        `json:"time_of_actuation,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// Mission is the Schema for the missions API.
type Mission struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec MissionSpec `json:"spec,omitempty"`
	// +optional
	Status MissionStatus `json:"status,omitempty"`
}

// Finished reports whether the mission reached a terminal phase.
func (s MissionStatus) Finished() bool {
	switch s.Status {
	case MissionStatusSucceeded, MissionStatusFailed, MissionStatusCanceled:
		return true
	}
	return false
}
