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

// WarehouseOrderSpec defines the warehouse order handed to a robot.
type WarehouseOrderSpec struct {
	// Data is the EWM warehouse order including its open warehouse tasks.
	Data EWMWarehouseOrder `json:"data"`
	// OrderStatus is set to PROCESSED by the order manager once the order is done.
	// +kubebuilder:validation:Optional
	OrderStatus WarehouseOrderOrderStatus `json:"order_status,omitempty" validate:"omitempty,oneof=RUNNING PROCESSED"`
	// +kubebuilder:validation:Optional
	ProcessStatus []EWMWarehouseTaskConfirmation `json:"process_status,omitempty"`
}

// WarehouseOrderStatus holds the task confirmations sent by the robot.
type WarehouseOrderStatus struct {
	Data []EWMWarehouseTaskConfirmation `json:"data,omitempty" validate:"dive"`
}

// EWMWarehouseOrder represents the EWM warehouse order type.
type EWMWarehouseOrder struct {
	Lgnum   string `json:"lgnum" validate:"required"`
	Who     string `json:"who" validate:"required"`
	Status  string `json:"status,omitempty"`
	Areawho string `json:"areawho,omitempty"`
	Lgtyp   string `json:"lgtyp,omitempty"`
	Lgpla   string `json:"lgpla,omitempty"`
	Queue   string `json:"queue,omitempty"`
	Rsrc    string `json:"rsrc"`
	Lsd     string `json:"lsd,omitempty"`
	// Topwhoid references the composite order a sub order belongs to.
	Topwhoid string `json:"topwhoid,omitempty"`
	Refwhoid string `json:"refwhoid,omitempty"`
	// Flgwho marks a composite (pick, pack and pass) order.
	Flgwho         bool               `json:"flgwho"`
	Flgto          bool               `json:"flgto"`
	Warehousetasks []EWMWarehouseTask `json:"warehousetasks" validate:"dive"`
}

// EWMWarehouseTask represents the EWM warehouse task type.
// Vlpla/Vlenr are the source bin and handling unit, Nlpla/Nlenr the target ones.
type EWMWarehouseTask struct {
	Flghuto  bool    `json:"flghuto"`
	Lgnum    string  `json:"lgnum" validate:"required"`
	Nlber    string  `json:"nlber,omitempty"`
	Nlenr    string  `json:"nlenr,omitempty"`
	Nlpla    string  `json:"nlpla,omitempty"`
	Nltyp    string  `json:"nltyp,omitempty"`
	Priority int     `json:"priority,omitempty"`
	Procty   string  `json:"procty,omitempty"`
	Tanum    string  `json:"tanum" validate:"required"`
	Tostat   string  `json:"tostat,omitempty"`
	Unitv    string  `json:"unitv,omitempty"`
	Unitw    string  `json:"unitw,omitempty"`
	Vlber    string  `json:"vlber,omitempty"`
	Vlenr    string  `json:"vlenr,omitempty"`
	Vlpla    string  `json:"vlpla,omitempty"`
	Vltyp    string  `json:"vltyp,omitempty"`
	Volum    float64 `json:"volum,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
	Who      string  `json:"who"`
}

// EWMWarehouseTaskConfirmation represents the warehouse task confirmation sent by the robots.
type EWMWarehouseTaskConfirmation struct {
	ConfirmationDate   metav1.Time        `json:"confirmationdate,omitempty"`
	ConfirmationNumber ConfirmationNumber `json:"confirmationnumber" validate:"oneof=FIRST SECOND"`
	ConfirmationType   ConfirmationType   `json:"confirmationtype" validate:"oneof=SUCCESS FAILURE"`
	Lgnum              string             `json:"lgnum"`
	Rsrc               string             `json:"rsrc"`
	Tanum              string             `json:"tanum"`
	Who                string             `json:"who"`
}

// WarehouseOrderOrderStatus describes the status of a WarehouseOrder
type WarehouseOrderOrderStatus string

// Values for WarehouseOrderOrderStatus
const (
	WarehouseOrderOrderStatusRunning   WarehouseOrderOrderStatus = "RUNNING"
	WarehouseOrderOrderStatusProcessed WarehouseOrderOrderStatus = "PROCESSED"
)

// ConfirmationNumber is the phase of a two-phase task confirmation.
type ConfirmationNumber string

const (
	ConfirmationFirst  ConfirmationNumber = "FIRST"
	ConfirmationSecond ConfirmationNumber = "SECOND"
)

// ConfirmationType tells whether the confirmed leg succeeded.
type ConfirmationType string

const (
	ConfirmationSuccess ConfirmationType = "SUCCESS"
	ConfirmationFailure ConfirmationType = "FAILURE"
)

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// WarehouseOrder is the Schema for the warehouseorders API.
type WarehouseOrder struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec WarehouseOrderSpec `json:"spec,omitempty"`
	// +optional
	Status WarehouseOrderStatus `json:"status,omitempty"`
}

// OrderName returns the resource name the order manager uses for a warehouse order.
func OrderName(lgnum, who string) string {
	return toLowerName(lgnum + "." + who)
}
