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

// Package v1alpha1 contains the custom resource schemas shared between the
// EWM order manager, the robot controllers and the mission executors.
package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	EWMGroup      = "ewm.sap.com"
	MissionGroup  = "mission.cloudrobotics.com"
	RegistryGroup = "registry.cloudrobotics.com"
	Version       = "v1alpha1"
)

const (
	// LabelRobotName assigns a resource to a robot.
	LabelRobotName = "cloudrobotics.com/robot-name"
)

var (
	WarehouseOrderResource = schema.GroupVersionResource{Group: EWMGroup, Version: Version, Resource: "warehouseorders"}

	RobotConfigurationResource = schema.GroupVersionResource{Group: EWMGroup, Version: Version, Resource: "robotconfigurations"}

	RobotRequestResource = schema.GroupVersionResource{Group: EWMGroup, Version: Version, Resource: "robotrequests"}

	MissionResource = schema.GroupVersionResource{Group: MissionGroup, Version: Version, Resource: "missions"}

	RobotResource = schema.GroupVersionResource{Group: RegistryGroup, Version: Version, Resource: "robots"}
)

// ListKinds maps every resource above to its list kind. Fake dynamic clients need it.
var ListKinds = map[schema.GroupVersionResource]string{
	WarehouseOrderResource:     "WarehouseOrderList",
	RobotConfigurationResource: "RobotConfigurationList",
	RobotRequestResource:       "RobotRequestList",
	MissionResource:            "MissionList",
	RobotResource:              "RobotList",
}
