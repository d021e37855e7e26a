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

// RobotRequestSpec defines the request a robot raises towards the order manager.
type RobotRequestSpec struct {
	Lgnum string `json:"lgnum" validate:"required"`
	Rsrc  string `json:"rsrc" validate:"required"`
	// +kubebuilder:validation:Optional
	NotifyWhoCompletion string `json:"notifywhocompletion,omitempty"`
	// +kubebuilder:validation:Optional
	NotifyWhtCompletion string `json:"notifywhtcompletion,omitempty"`
	// +kubebuilder:validation:Optional
	RequestWork bool `json:"requestwork,omitempty"`
	// +kubebuilder:validation:Optional
	RequestNewWho bool `json:"requestnewwho,omitempty"`
}

// RobotRequestStatus is maintained by the order manager.
type RobotRequestStatus struct {
	Data   []RobotRequestSpec       `json:"data,omitempty"`
	Status RobotRequestStatusStatus `json:"status,omitempty" validate:"omitempty,oneof=RUNNING PROCESSED"`
}

// RobotRequestStatusStatus describes the status of a RobotRequest
type RobotRequestStatusStatus string

// Values for RobotRequestStatusStatus
const (
	RobotRequestStatusRunning   RobotRequestStatusStatus = "RUNNING"
	RobotRequestStatusProcessed RobotRequestStatusStatus = "PROCESSED"
)

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// RobotRequest is the Schema for the robotrequests API.
type RobotRequest struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec RobotRequestSpec `json:"spec,omitempty"`
	// +optional
	Status RobotRequestStatus `json:"status,omitempty"`
}

// RobotRequestName returns the name of the single request resource a robot maintains.
func RobotRequestName(robot string) string {
	return toLowerName(robot)
}
