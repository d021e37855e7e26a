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

package statemachine

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
)

var (
	first  = string(v1alpha1.ConfirmationFirst)
	second = string(v1alpha1.ConfirmationSecond)
)

var _ = Describe("MoveHU", func() {
	var d *driver

	BeforeEach(func() {
		d = newDriver(testConfig())
		d.tick(MissionUnknown)
		d.effects, d.steps = nil, nil
	})

	It("routes wh1.900001 to the source bin with one mission", func() {
		d.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"}))

		Expect(d.steps).To(HaveLen(1))
		Expect(d.steps[0].From).To(Equal(Initial))
		Expect(d.steps[0].Path).To(Equal([]State{
			top(StartedWarehouseOrder), moveHU(FindingTarget), moveHU(MovingToSourceBin),
		}))
		Expect(d.effectsOf(EffectCreateMission)).To(HaveLen(1))
		Expect(d.missions).To(Equal(1))
	})

	It("confirms FIRST on exit of loading", func() {
		d.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"}))
		d.tick(MissionSucceeded)
		Expect(d.m.State()).To(Equal(moveHU(Loading)))
		Expect(d.confirmations()).To(BeEmpty())

		d.tick(MissionSucceeded)
		Expect(d.confirmations()).To(Equal([]string{"1/" + first}))
		Expect(d.m.State()).To(Equal(moveHU(FindingTarget)), "waits for the target leg")
	})

	It("finishes the order only after the SECOND confirmation", func() {
		o := moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"})
		d.order(o)
		d.tick(MissionSucceeded)
		d.tick(MissionSucceeded)

		d.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A", TargetBin: "BIN-B"}))
		Expect(d.m.State()).To(Equal(moveHU(MovingToTargetBin)))
		d.tick(MissionSucceeded)
		Expect(d.m.State()).To(Equal(moveHU(Unloading)))
		_, active := d.m.ActiveOrder()
		Expect(active).To(BeTrue())

		d.tick(MissionSucceeded)
		Expect(d.confirmations()).To(Equal([]string{"1/" + first, "1/" + second}))
		Expect(d.m.State()).To(Equal(top(Idling)))
		_, active = d.m.ActiveOrder()
		Expect(active).To(BeFalse())
		Expect(d.effectsOf(EffectRequestWork)).To(Equal([]Effect{RequestWork{OnlyNewOrder: true}}))
	})

	It("yields the same confirmations for split and duplicated updates", func() {
		split := newDriver(testConfig())
		split.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"}))
		split.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"}))
		split.tick(MissionSucceeded)
		split.tick(MissionSucceeded)
		split.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A", TargetBin: "BIN-B"}))
		split.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A", TargetBin: "BIN-B"}))
		split.tick(MissionSucceeded)
		split.tick(MissionSucceeded)

		whole := newDriver(testConfig())
		for i := 0; i < 3; i++ {
			whole.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A", TargetBin: "BIN-B"}))
		}
		for i := 0; i < 4; i++ {
			whole.tick(MissionSucceeded)
		}

		Expect(split.confirmations()).To(Equal([]string{"1/" + first, "1/" + second}))
		Expect(whole.confirmations()).To(Equal(split.confirmations()))
	})

	It("processes tasks of an order one after another", func() {
		d.order(moveOrder("900001",
			Task{Tanum: "1", SourceBin: "BIN-A", TargetBin: "BIN-B"},
			Task{Tanum: "2", SourceBin: "BIN-C", TargetBin: "BIN-D"},
		))
		for i := 0; i < 8; i++ {
			d.tick(MissionSucceeded)
		}
		Expect(d.confirmations()).To(Equal([]string{"1/" + first, "1/" + second, "2/" + first, "2/" + second}))
		Expect(d.m.State()).To(Equal(top(Idling)))
	})

	It("retries the source leg three times before escalating", func() {
		o := moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"})
		d.order(o)
		for i := 1; i <= MaxRetries; i++ {
			d.tick(MissionFailed)
			Expect(d.m.State()).To(Equal(moveHU(MovingToSourceBin)))
			Expect(d.m.ErrorCount(moveHU(MovingToSourceBin))).To(Equal(i))
		}
		Expect(d.missions).To(Equal(1 + MaxRetries))

		d.tick(MissionFailed)
		Expect(d.m.State()).To(Equal(top(RobotError)))
		Expect(d.confirmations()).To(Equal([]string{"1/ERROR"}))
		_, active := d.m.ActiveOrder()
		Expect(active).To(BeFalse())
		Expect(d.m.OrderChanged(o)).To(BeNil(), "canceled order is not picked up again")

		d.tick(MissionUnknown)
		Expect(d.m.State()).To(Equal(Initial))
	})

	It("cancels the order when the target leg fails before pick confirmation", func() {
		o := moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A", TargetBin: "BIN-B"})
		o.Confirmations = []Confirmation{{Tanum: "1", Number: v1alpha1.ConfirmationFirst, Type: v1alpha1.ConfirmationSuccess}}
		d.order(o)
		Expect(d.m.State()).To(Equal(moveHU(MovingToTargetBin)))

		o.Confirmations = nil
		d.order(o)
		for i := 0; i <= MaxRetries; i++ {
			d.tick(MissionFailed)
		}
		Expect(d.confirmations()).To(Equal([]string{"1/ERROR"}))
		Expect(d.effectsOf(EffectNotifyOrderCompletion)).To(BeEmpty())
		Expect(d.m.State()).To(Equal(top(Idling)))
	})
})

var _ = Describe("PickPackPass", func() {
	var d *driver

	BeforeEach(func() {
		d = newDriver(testConfig())
		d.tick(MissionUnknown)
		d.effects, d.steps = nil, nil
	})

	It("forces a FIRST confirmation before moving to a target-only step", func() {
		d.order(pickOrder("800001", Task{Tanum: "2", TargetBin: "PACK-1"}))

		Expect(d.steps).To(HaveLen(1))
		Expect(d.steps[0].To).To(Equal(pickPackPass(Moving)))
		Expect(d.steps[0].Effects).To(HaveLen(2))
		confirm, ok := d.steps[0].Effects[0].(ConfirmTask)
		Expect(ok).To(BeTrue())
		Expect(confirm.Number).To(Equal(v1alpha1.ConfirmationFirst))
		Expect(confirm.EnforceFirst).To(BeTrue())
		Expect(d.steps[0].Effects[1].Kind()).To(Equal(EffectCreateMission))
	})

	It("waits at the target until the drop is confirmed", func() {
		o := pickOrder("800001", Task{Tanum: "2", TargetBin: "PACK-1"})
		d.order(o)
		d.tick(MissionSucceeded)
		Expect(d.m.State()).To(Equal(pickPackPass(WaitingAtTarget)))
		d.tick(MissionUnknown)
		Expect(d.m.State()).To(Equal(pickPackPass(WaitingAtTarget)))

		o.Confirmations = []Confirmation{{Tanum: "2", Number: v1alpha1.ConfirmationSecond, Type: v1alpha1.ConfirmationSuccess}}
		d.order(o)
		Expect(d.m.State()).To(Equal(pickPackPass(FindingTarget)))

		o.Processed = true
		d.order(o)
		Expect(d.m.State()).To(Equal(top(Idling)))
	})

	It("walks the tasks of sub orders", func() {
		composite := pickOrder("800000")
		sub := moveOrder("800001", Task{Tanum: "11", SourceBin: "PICK-1", TargetBin: "PACK-1"})
		sub.Topwhoid = "800000"

		d.order(composite)
		Expect(d.m.State()).To(Equal(pickPackPass(FindingTarget)))

		d.order(sub)
		Expect(d.m.State()).To(Equal(pickPackPass(Moving)))
		Expect(d.m.ActiveMission().Target).To(Equal("PICK-1"))
		d.tick(MissionSucceeded)
		Expect(d.m.State()).To(Equal(pickPackPass(WaitingAtPick)))

		sub.Confirmations = []Confirmation{{Tanum: "11", Number: v1alpha1.ConfirmationFirst, Type: v1alpha1.ConfirmationSuccess}}
		d.order(sub)
		Expect(d.m.State()).To(Equal(pickPackPass(Moving)))
		Expect(d.m.ActiveMission().Target).To(Equal("PACK-1"))
		Expect(d.effectsOf(EffectConfirmTask)).To(BeEmpty())
		d.tick(MissionSucceeded)
		Expect(d.m.State()).To(Equal(pickPackPass(WaitingAtTarget)))

		sub.Processed = true
		d.order(sub)
		Expect(d.m.State()).To(Equal(pickPackPass(FindingTarget)))

		d.run(d.m.OrderRemoved(composite.Key()))
		Expect(d.m.State()).To(Equal(top(Idling)))
	})

	It("re-evaluates the approach after a failed move", func() {
		d.order(pickOrder("800001", Task{Tanum: "3", SourceBin: "PICK-3", TargetBin: "PACK-3"}))
		d.tick(MissionFailed)
		Expect(d.m.State()).To(Equal(pickPackPass(Moving)))
		Expect(d.m.ActiveMission().Target).To(Equal("PICK-3"))
		Expect(d.m.ErrorCount(pickPackPass(Moving))).To(Equal(1))
	})
})

var _ = Describe("Charging", func() {
	It("advances to the next charger after a failure and wraps", func() {
		d := newDriver(testConfig())
		d.battery = 10
		d.tick(MissionUnknown)
		Expect(d.m.State()).To(Equal(top(Charging)))

		var targets []string
		targets = append(targets, d.m.ActiveMission().Target)
		for i := 0; i < 2; i++ {
			d.tick(MissionFailed)
			targets = append(targets, d.m.ActiveMission().Target)
		}
		Expect(targets).To(Equal([]string{"charger-1", "charger-2", "charger-1"}))
	})

	It("goes to the charger after an order when the battery is low", func() {
		d := newDriver(testConfig())
		d.battery = 15
		d.tick(MissionUnknown)
		d.tick(MissionSucceeded)
		Expect(d.m.State()).To(Equal(Initial))

		d.order(moveOrder("900001"))
		Expect(d.m.State()).To(Equal(top(Charging)))
		Expect(d.effectsOf(EffectRequestWork)).To(BeEmpty())
	})
})
