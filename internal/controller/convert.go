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

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/statemachine"
)

// ConfigFromSpec converts a robot configuration into state machine settings.
func ConfigFromSpec(spec v1alpha1.RobotConfigurationSpec) statemachine.Config {
	return statemachine.Config{
		Chargers:              append([]string(nil), spec.Chargers...),
		BatteryMin:            spec.BatteryMin,
		BatteryOk:             spec.BatteryOk,
		BatteryIdle:           spec.BatteryIdle,
		MaxIdleTime:           time.Duration(spec.MaxIdleTime * float64(time.Minute)),
		StagingArea:           spec.StagingArea,
		RecoverFromRobotError: spec.RecoverFromRobotError,
	}
}

func orderFromObject(obj *unstructured.Unstructured) (statemachine.Order, error) {
	wo, err := v1alpha1.Decode[v1alpha1.WarehouseOrder](obj)
	if err != nil {
		return statemachine.Order{}, err
	}
	return orderFromResource(wo), nil
}

func orderFromResource(wo *v1alpha1.WarehouseOrder) statemachine.Order {
	data := wo.Spec.Data
	o := statemachine.Order{
		Lgnum:     data.Lgnum,
		Who:       data.Who,
		Rsrc:      data.Rsrc,
		Topwhoid:  data.Topwhoid,
		Composite: data.Flgwho,
		Processed: wo.Spec.OrderStatus == v1alpha1.WarehouseOrderOrderStatusProcessed,
	}
	for _, t := range data.Warehousetasks {
		o.Tasks = append(o.Tasks, statemachine.Task{
			Lgnum:     t.Lgnum,
			Tanum:     t.Tanum,
			Who:       data.Who,
			SourceBin: t.Vlpla,
			SourceHU:  t.Vlenr,
			TargetBin: t.Nlpla,
			TargetHU:  t.Nlenr,
		})
	}
	for _, list := range [][]v1alpha1.EWMWarehouseTaskConfirmation{wo.Spec.ProcessStatus, wo.Status.Data} {
		for _, c := range list {
			o.Confirmations = append(o.Confirmations, statemachine.Confirmation{
				Tanum:  c.Tanum,
				Number: c.ConfirmationNumber,
				Type:   c.ConfirmationType,
			})
		}
	}
	return o
}

// orderKey reads the order key of a possibly partial object.
func orderKey(obj *unstructured.Unstructured) (statemachine.OrderKey, bool) {
	if obj == nil {
		return statemachine.OrderKey{}, false
	}
	lgnum, _, _ := unstructured.NestedString(obj.Object, "spec", "data", "lgnum")
	who, _, _ := unstructured.NestedString(obj.Object, "spec", "data", "who")
	if lgnum == "" || who == "" {
		return statemachine.OrderKey{}, false
	}
	return statemachine.OrderKey{Lgnum: lgnum, Who: who}, true
}

func orderRsrc(obj *unstructured.Unstructured) string {
	if obj == nil {
		return ""
	}
	rsrc, _, _ := unstructured.NestedString(obj.Object, "spec", "data", "rsrc")
	return rsrc
}
