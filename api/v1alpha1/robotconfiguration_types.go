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

// RobotConfigurationSpec defines the behaviour of one robot.
type RobotConfigurationSpec struct {
	// Lgnum is the warehouse the robot works in.
	Lgnum string `json:"lgnum" validate:"required"`
	// Rsrctype and Rsrcgrp are the EWM resource type and group of the robot.
	Rsrctype string `json:"rsrctype,omitempty"`
	Rsrcgrp  string `json:"rsrcgrp,omitempty"`
	// Chargers are used round-robin.
	// +kubebuilder:validation:Optional
	Chargers []string `json:"chargers,omitempty"`
	// +kubebuilder:validation:Minimum=0
	// +kubebuilder:validation:Maximum=100
	BatteryMin float64 `json:"batteryMin" validate:"gte=0,lte=100"`
	// +kubebuilder:validation:Minimum=0
	// +kubebuilder:validation:Maximum=100
	BatteryOk float64 `json:"batteryOk" validate:"gte=0,lte=100,gtefield=BatteryMin"`
	// +kubebuilder:validation:Minimum=0
	// +kubebuilder:validation:Maximum=100
	BatteryIdle float64 `json:"batteryIdle" validate:"gte=0,lte=100"`
	// MaxIdleTime in minutes before a robot without work moves to the staging area.
	MaxIdleTime float64 `json:"maxIdleTime" validate:"gte=0"`
	// StagingArea is the named position idle robots park at.
	// +kubebuilder:validation:Optional
	StagingArea string `json:"stagingArea,omitempty"`
	// RecoverFromRobotError enables automatic recovery out of the RobotError state.
	RecoverFromRobotError bool `json:"recoverFromRobotError"`
}

// RobotConfigurationStatus holds the persisted progress of the robot's state machine.
type RobotConfigurationStatus struct {
	Lgnum        string `json:"lgnum,omitempty"`
	Mission      string `json:"mission,omitempty"`
	MissionKind  string `json:"missionKind,omitempty"`
	Statemachine string `json:"statemachine,omitempty"`
	ErrorPrior   string `json:"errorPrior,omitempty"`
	Subwho       string `json:"subwho,omitempty"`
	Tanum        string `json:"tanum,omitempty"`
	Who          string `json:"who,omitempty"`
	// +kubebuilder:validation:Optional
	ChargerIndex int `json:"chargerIndex,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// RobotConfiguration is the Schema for the robotconfigurations API.
type RobotConfiguration struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec RobotConfigurationSpec `json:"spec,omitempty"`
	// +optional
	Status RobotConfigurationStatus `json:"status,omitempty"`
}
