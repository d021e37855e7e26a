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
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/tools/record"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
	"github.com/ewm-cloud-robotics/robot-controller/internal/metrics"
	"github.com/ewm-cloud-robotics/robot-controller/internal/mission"
	"github.com/ewm-cloud-robotics/robot-controller/internal/progress"
	"github.com/ewm-cloud-robotics/robot-controller/internal/statemachine"
	"github.com/ewm-cloud-robotics/robot-controller/internal/watcher"
)

var _ = Describe("Robot controller", func() {
	var (
		ctx        context.Context
		factory    *fakeFactory
		store      progress.Store
		controller *RobotController
	)

	BeforeEach(func() {
		ctx = context.Background()
		factory = newFakeFactory()
		var err error
		store, err = progress.NewFileStore(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		controller = NewRobotController(factory.build, store)
		controller.Start(ctx)
	})

	Context("robot configurations", func() {
		It("starts a runner per configuration and restores its progress", func() {
			snapshot := statemachine.Snapshot{State: "MoveHU_loading", Lgnum: "WH1", Who: "900001", Tanum: "1"}
			Expect(store.Save(ctx, "robot1", snapshot)).To(Succeed())

			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, configObject("robot1", configSpec())))).To(Succeed())
			r := factory.get("robot1")
			Expect(r).NotTo(BeNil())
			Expect(r.started).To(BeTrue())
			Expect(r.restored).To(Equal(&snapshot))

			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, configObject("robot2", configSpec())))).To(Succeed())
			Expect(factory.get("robot2").restored).To(BeNil())

			robots := controller.Robots()
			Expect(robots).To(HaveLen(2))
			Expect(robots[0].Robot).To(Equal("robot1"))
			Expect(robots[1].Robot).To(Equal("robot2"))
			_, ok := controller.Robot("robot3")
			Expect(ok).To(BeFalse())
		})

		It("applies changed configurations only", func() {
			obj := configObject("robot1", configSpec())
			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, obj))).To(Succeed())
			Expect(controller.HandleConfiguration(ctx, event(watcher.Reprocess, obj))).To(Succeed())
			r := factory.get("robot1")
			Expect(r.configs).To(BeEmpty())

			spec := configSpec()
			spec.BatteryMin = 30
			Expect(controller.HandleConfiguration(ctx, event(watcher.Modified, configObject("robot1", spec)))).To(Succeed())
			Expect(r.configs).To(HaveLen(1))
			Expect(r.configs[0].BatteryMin).To(Equal(30.0))
			Expect(r.configs[0].MaxIdleTime).To(Equal(90 * time.Second))
		})

		It("skips invalid configurations", func() {
			spec := configSpec()
			spec.Lgnum = ""
			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, configObject("robot1", spec)))).To(Succeed())
			Expect(factory.get("robot1")).To(BeNil())
		})

		It("stops the runner and drops its progress on deletion", func() {
			obj := configObject("robot1", configSpec())
			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, obj))).To(Succeed())
			Expect(store.Save(ctx, "robot1", statemachine.Snapshot{State: "idling"})).To(Succeed())

			Expect(controller.HandleConfiguration(ctx, event(watcher.Deleted, obj))).To(Succeed())
			Expect(factory.get("robot1").stopped).To(BeTrue())
			Expect(controller.Robots()).To(BeEmpty())
			_, err := store.Load(ctx, "robot1")
			Expect(err).To(MatchError(progress.ErrNotFound))
		})

		It("manages a single robot when restricted", func() {
			controller = NewRobotController(factory.build, store, WithRobot("robot2"))
			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, configObject("robot1", configSpec())))).To(Succeed())
			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, configObject("robot2", configSpec())))).To(Succeed())
			Expect(factory.get("robot1")).To(BeNil())
			Expect(factory.get("robot2")).NotTo(BeNil())
		})

		It("replays known orders to a new runner", func() {
			lister := &fakeLister{items: []unstructured.Unstructured{
				*orderObject("robot1", "ROBOT1", "900001", v1alpha1.EWMWarehouseTask{Lgnum: "WH1", Tanum: "1", Vlpla: "BIN-A"}),
				*orderObject("robot2", "ROBOT2", "900002"),
			}}
			controller = NewRobotController(factory.build, store, WithOrderLister(lister))
			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, configObject("robot1", configSpec())))).To(Succeed())
			r := factory.get("robot1")
			Expect(r.orders).To(HaveLen(1))
			Expect(r.orders[0].Who).To(Equal("900001"))
		})

		It("ignores configurations after stop", func() {
			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, configObject("robot1", configSpec())))).To(Succeed())
			controller.Stop()
			Expect(factory.get("robot1").stopped).To(BeTrue())
			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, configObject("robot2", configSpec())))).To(Succeed())
			Expect(factory.get("robot2")).To(BeNil())
		})
	})

	Context("warehouse orders", func() {
		BeforeEach(func() {
			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, configObject("robot1", configSpec())))).To(Succeed())
			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, configObject("robot2", configSpec())))).To(Succeed())
		})

		It("routes by robot label", func() {
			obj := orderObject("robot2", "ROBOT1", "900001", v1alpha1.EWMWarehouseTask{Lgnum: "WH1", Tanum: "1", Vlpla: "BIN-A"})
			Expect(controller.HandleOrder(ctx, event(watcher.Added, obj))).To(Succeed())
			Expect(factory.get("robot1").orders).To(BeEmpty())
			Expect(factory.get("robot2").orders).To(HaveLen(1))
		})

		It("falls back to the resource of the order", func() {
			obj := orderObject("", "ROBOT1", "900001")
			Expect(controller.HandleOrder(ctx, event(watcher.Modified, obj))).To(Succeed())
			Expect(factory.get("robot1").orders).To(HaveLen(1))

			Expect(controller.HandleOrder(ctx, event(watcher.Added, orderObject("", "ROBOT9", "900002")))).To(Succeed())
			Expect(controller.HandleOrder(ctx, event(watcher.Added, orderObject("robot9", "ROBOT9", "900003")))).To(Succeed())
			Expect(factory.get("robot1").orders).To(HaveLen(1))
			Expect(factory.get("robot2").orders).To(BeEmpty())
		})

		It("converts the order resource", func() {
			obj := newObject("WarehouseOrder", "wh1.900001", map[string]string{v1alpha1.LabelRobotName: "robot1"}, &v1alpha1.WarehouseOrderSpec{
				Data: v1alpha1.EWMWarehouseOrder{
					Lgnum: "WH1", Who: "900001", Rsrc: "ROBOT1", Topwhoid: "900001", Flgwho: true,
					Warehousetasks: []v1alpha1.EWMWarehouseTask{
						{Lgnum: "WH1", Tanum: "1", Vlpla: "BIN-A", Vlenr: "HU-1", Nlpla: "BIN-B", Nlenr: "HU-2"},
					},
				},
				OrderStatus: v1alpha1.WarehouseOrderOrderStatusProcessed,
			})
			Expect(unstructured.SetNestedSlice(obj.Object, []interface{}{
				map[string]interface{}{"tanum": "1", "confirmationnumber": "FIRST", "confirmationtype": "SUCCESS", "lgnum": "WH1", "rsrc": "ROBOT1", "who": "900001"},
			}, "status", "data")).To(Succeed())

			Expect(controller.HandleOrder(ctx, event(watcher.Added, obj))).To(Succeed())
			orders := factory.get("robot1").orders
			Expect(orders).To(HaveLen(1))
			o := orders[0]
			Expect(o.Composite).To(BeTrue())
			Expect(o.Processed).To(BeTrue())
			Expect(o.Topwhoid).To(Equal("900001"))
			Expect(o.Tasks).To(Equal([]statemachine.Task{{
				Lgnum: "WH1", Tanum: "1", Who: "900001",
				SourceBin: "BIN-A", SourceHU: "HU-1", TargetBin: "BIN-B", TargetHU: "HU-2",
			}}))
			Expect(o.Confirmations).To(Equal([]statemachine.Confirmation{
				{Tanum: "1", Number: v1alpha1.ConfirmationFirst, Type: v1alpha1.ConfirmationSuccess},
			}))
		})

		It("skips invalid orders", func() {
			obj := orderObject("robot1", "ROBOT1", "900001", v1alpha1.EWMWarehouseTask{Lgnum: "WH1"})
			Expect(controller.HandleOrder(ctx, event(watcher.Added, obj))).To(Succeed())
			Expect(factory.get("robot1").orders).To(BeEmpty())
		})

		It("routes deletions as removals", func() {
			obj := orderObject("robot1", "ROBOT1", "900001")
			Expect(controller.HandleOrder(ctx, event(watcher.Deleted, obj))).To(Succeed())
			Expect(factory.get("robot1").removed).To(Equal([]statemachine.OrderKey{{Lgnum: "WH1", Who: "900001"}}))
		})
	})

	Context("robot requests", func() {
		BeforeEach(func() {
			Expect(controller.HandleConfiguration(ctx, event(watcher.Added, configObject("robot1", configSpec())))).To(Succeed())
		})

		request := func(status v1alpha1.RobotRequestStatusStatus) *unstructured.Unstructured {
			obj := newObject("RobotRequest", "robot1", map[string]string{v1alpha1.LabelRobotName: "robot1"}, &v1alpha1.RobotRequestSpec{
				Lgnum: "WH1", Rsrc: "ROBOT1", NotifyWhoCompletion: "900001",
			})
			Expect(unstructured.SetNestedField(obj.Object, string(status), "status", "status")).To(Succeed())
			return obj
		}

		It("confirms orders once the request is processed", func() {
			Expect(controller.HandleRequest(ctx, event(watcher.Modified, request(v1alpha1.RobotRequestStatusRunning)))).To(Succeed())
			Expect(factory.get("robot1").confirmed).To(BeEmpty())

			Expect(controller.HandleRequest(ctx, event(watcher.Modified, request(v1alpha1.RobotRequestStatusProcessed)))).To(Succeed())
			Expect(factory.get("robot1").confirmed).To(Equal([]statemachine.OrderKey{{Lgnum: "WH1", Who: "900001"}}))
		})
	})
})

var _ = Describe("Runner factory", func() {
	It("drives a warehouse order into a mission", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), v1alpha1.ListKinds)
		missions := watcher.New(dyn, v1alpha1.MissionResource, "default", watcher.WithKind("Mission"))
		orders := watcher.New(dyn, v1alpha1.WarehouseOrderResource, "default", watcher.WithKind("WarehouseOrder"))
		requests := watcher.New(dyn, v1alpha1.RobotRequestResource, "default", watcher.WithKind("RobotRequest"))
		robots := mission.NewRobotCache(watcher.New(dyn, v1alpha1.RobotResource, "default"))
		store, err := progress.NewFileStore(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		factory := NewRunnerFactory(RunnerDeps{
			Missions: missions,
			Robots:   robots,
			Orders:   orders,
			Requests: requests,
			Store:    store,
			Recorder: record.NewFakeRecorder(10),
			Metrics:  metrics.Noop{},
			Clock:    clocktesting.NewFakeClock(time.Now()),
		})
		controller := NewRobotController(factory, store)
		controller.Start(ctx)
		defer controller.Stop()

		Expect(controller.HandleConfiguration(ctx, event(watcher.Added, configObject("robot1", configSpec())))).To(Succeed())
		order := orderObject("robot1", "ROBOT1", "900001", v1alpha1.EWMWarehouseTask{Lgnum: "WH1", Tanum: "1", Who: "900001", Vlpla: "BIN-A"})
		Expect(controller.HandleOrder(ctx, event(watcher.Added, order))).To(Succeed())

		Eventually(func(g Gomega) {
			list, err := missions.List(ctx)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(list.Items).To(HaveLen(1))
			status, ok := controller.Robot("robot1")
			g.Expect(ok).To(BeTrue())
			g.Expect(status.State).To(Equal("MoveHU_movingToSourceBin"))
		}).WithTimeout(5 * time.Second).WithPolling(20 * time.Millisecond).Should(Succeed())

		snapshot, err := store.Load(ctx, "robot1")
		Expect(err).NotTo(HaveOccurred())
		Expect(snapshot.State).To(Equal("MoveHU_movingToSourceBin"))
		Expect(snapshot.Who).To(Equal("900001"))
	})
})
