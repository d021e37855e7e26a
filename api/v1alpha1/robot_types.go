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

// RobotState is the state reported by the robot itself.
type RobotState string

const (
	RobotStateUndefined   RobotState = "UNDEFINED"
	RobotStateUnavailable RobotState = "UNAVAILABLE"
	RobotStateAvailable   RobotState = "AVAILABLE"
	RobotStateEmergency   RobotState = "EMERGENCY"
	RobotStateError       RobotState = "ERROR"
)

type RobotSpec struct {
	Type    string `json:"type,omitempty"`
	Project string `json:"project,omitempty"`
}

type RobotStatusRobot struct {
	State             RobotState   `json:"state,omitempty"`
	BatteryPercentage float64      `json:"batteryPercentage,omitempty"`
	UpdateTime        *metav1.Time `json:"updateTime,omitempty"`
	// TrolleyAttached is nil when the robot has no trolley sensor.
	TrolleyAttached *bool `json:"trolleyAttached,omitempty"`
}

type RobotStatus struct {
	Robot RobotStatusRobot `json:"robot,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// Robot is the Schema for the robots API of the robot registry.
type Robot struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec RobotSpec `json:"spec,omitempty"`
	// +optional
	Status RobotStatus `json:"status,omitempty"`
}

// IsOK reports whether the robot can take new missions.
func (r *Robot) IsOK() bool {
	return r.Status.Robot.State == RobotStateAvailable
}
