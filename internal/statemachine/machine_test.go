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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewm-cloud-robotics/robot-controller/api/v1alpha1"
)

func TestParseState(t *testing.T) {
	cases := []struct {
		name    string
		want    State
		wantErr bool
	}{
		{name: "noWarehouseorder", want: Initial},
		{name: "RobotError", want: top(RobotError)},
		{name: "MoveHU_movingToSourceBin", want: moveHU(MovingToSourceBin)},
		{name: "PickPackPass_waitingAtPick", want: pickPackPass(WaitingAtPick)},
		{name: "MoveHU_waitingAtPick", wantErr: true},
		{name: "PickPackPass_loading", wantErr: true},
		{name: "flying", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseState(tc.name)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.name, got.String())
		})
	}
}

func TestOrderStartsMoveHU(t *testing.T) {
	d := newDriver(testConfig())
	step := d.m.OrderChanged(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"}))
	require.NotNil(t, step)
	assert.Equal(t, Initial, step.From)
	assert.Equal(t, []State{top(StartedWarehouseOrder), moveHU(FindingTarget), moveHU(MovingToSourceBin)}, step.Path)
	require.Len(t, step.Effects, 1)
	create := step.Effects[0].(CreateMission)
	assert.Equal(t, MissionMove, create.Mission)
	assert.Equal(t, "BIN-A", create.Target)
	require.NotNil(t, create.Task)
	assert.Equal(t, "1", create.Task.Tanum)
	assert.True(t, d.m.InTransition())
	assert.Equal(t, Initial, d.m.State(), "state is entered only after completion")

	assert.Nil(t, d.m.Tick(d.observe(MissionRunning)), "tick is a no-op in transition")

	d.run(step)
	assert.Equal(t, moveHU(MovingToSourceBin), d.m.State())
	key, ok := d.m.ActiveOrder()
	require.True(t, ok)
	assert.Equal(t, "WH1.900001", key.String())
	assert.Equal(t, "mission-1", d.m.ActiveMission().Name)
}

func TestOrderOfOtherRobotIgnored(t *testing.T) {
	d := newDriver(testConfig())
	o := moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"})
	o.Rsrc = "robot2"
	assert.Nil(t, d.m.OrderChanged(o))
	assert.Equal(t, 0, d.m.QueueLength())
	assert.Equal(t, Initial, d.m.State())
}

func TestDuplicateOrderUpdateIsNoop(t *testing.T) {
	d := newDriver(testConfig())
	o := moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"})
	d.order(o)
	steps := len(d.steps)
	assert.Nil(t, d.m.OrderChanged(o))
	assert.Nil(t, d.m.OrderChanged(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"})))
	assert.Len(t, d.steps, steps)
	assert.Equal(t, 1, d.m.QueueLength())
}

func TestLoadingUsesDockForSourceHU(t *testing.T) {
	d := newDriver(testConfig())
	d.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A", SourceHU: "HU-7"}))
	d.tick(MissionSucceeded)
	assert.Equal(t, moveHU(Loading), d.m.State())
	last := d.effects[len(d.effects)-1].(CreateMission)
	assert.Equal(t, MissionDock, last.Mission)
	assert.Equal(t, "HU-7", last.Target)
}

func TestTrolleyNotAttachedAfterLoadingFails(t *testing.T) {
	d := newDriver(testConfig())
	d.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"}))
	d.tick(MissionSucceeded)
	d.trolley = TrolleyDetached
	d.tick(MissionSucceeded)

	assert.Empty(t, d.effectsOf(EffectConfirmTask))
	assert.Equal(t, moveHU(MovingToSourceBin), d.m.State())
	assert.Equal(t, 1, d.m.ErrorCount(moveHU(Loading)))
}

func TestConfirmationFailureRetriedOnRecovery(t *testing.T) {
	d := newDriver(testConfig())
	d.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"}))
	d.tick(MissionSucceeded)

	step := d.m.Tick(d.observe(MissionSucceeded))
	require.NotNil(t, step)
	require.Equal(t, EffectConfirmTask, step.Effects[0].Kind())
	d.run(d.m.Complete(Result{}, errors.New("connection refused")))
	assert.Equal(t, top(RobotError), d.m.State())
	assert.Equal(t, 1, d.m.ErrorCount(moveHU(Loading)))

	d.robotOK = false
	d.tick(MissionUnknown)
	assert.Equal(t, top(RobotError), d.m.State())

	d.robotOK = true
	retried := d.m.Tick(d.observe(MissionUnknown))
	require.NotNil(t, retried)
	assert.Equal(t, top(RobotError), retried.From)
	assert.Equal(t, step.Effects, retried.Effects)
	d.run(retried)
	assert.Equal(t, moveHU(FindingTarget), d.m.State())
}

func TestFailedWorkRequestKeepsState(t *testing.T) {
	d := newDriver(testConfig())
	step := d.m.Tick(d.observe(MissionUnknown))
	require.NotNil(t, step)
	assert.Equal(t, []Effect{RequestWork{OnlyNewOrder: false}}, step.Effects)
	assert.Nil(t, d.m.Complete(Result{}, errors.New("timeout")))
	assert.Equal(t, Initial, d.m.State())
	assert.False(t, d.m.InTransition())

	d.now = d.now.Add(5 * time.Second)
	assert.Nil(t, d.m.Tick(d.observe(MissionUnknown)), "work requests are spaced")
	d.now = d.now.Add(5 * time.Second)
	assert.NotNil(t, d.m.Tick(d.observe(MissionUnknown)))
}

func TestMoveToStagingAfterIdleTime(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIdleTime = 5 * time.Minute
	d := newDriver(cfg)
	d.tick(MissionUnknown)
	d.now = d.now.Add(5 * time.Minute)
	d.tick(MissionUnknown)
	require.Equal(t, top(Moving), d.m.State())
	assert.Equal(t, "STAGING", d.m.ActiveMission().Target)

	d.tick(MissionSucceeded)
	assert.Equal(t, top(AtTarget), d.m.State())
	d.tick(MissionUnknown)
	assert.Equal(t, top(Idling), d.m.State())
}

func TestOrderPreemptsMove(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIdleTime = time.Minute
	d := newDriver(cfg)
	d.tick(MissionUnknown)
	d.now = d.now.Add(time.Minute)
	d.tick(MissionUnknown)
	require.Equal(t, top(Moving), d.m.State())

	d.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"}))
	assert.Equal(t, moveHU(MovingToSourceBin), d.m.State())
	cancels := d.effectsOf(EffectCancelMission)
	require.Len(t, cancels, 1)
	assert.Equal(t, "mission-1", cancels[0].(CancelMission).Name)
}

func TestChargingWaitsForBatteryOkBeforeOrder(t *testing.T) {
	d := newDriver(testConfig())
	d.battery = 10
	d.tick(MissionUnknown)
	require.Equal(t, top(Charging), d.m.State())

	d.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"}))
	assert.Equal(t, top(Charging), d.m.State())
	assert.Equal(t, 1, d.m.QueueLength())

	d.battery = 65
	d.tick(MissionRunning)
	assert.Equal(t, moveHU(MovingToSourceBin), d.m.State())
}

func TestFullBatteryEndsCharging(t *testing.T) {
	d := newDriver(testConfig())
	d.battery = 10
	d.tick(MissionUnknown)
	require.Equal(t, top(Charging), d.m.State())

	d.battery = 100
	obs := d.observe(MissionRunning)
	obs.Mission.ActiveAction = ActiveActionCharging
	d.run(d.m.Tick(obs))
	assert.Equal(t, Initial, d.m.State())
	assert.Len(t, d.effectsOf(EffectCancelMission), 1)
}

func TestIdlingRequestsWorkAfterInterval(t *testing.T) {
	d := newDriver(testConfig())
	d.tick(MissionUnknown)
	d.effects = nil
	d.order(moveOrder("900001"))
	require.Equal(t, top(Idling), d.m.State())
	assert.Equal(t, []Effect{RequestWork{OnlyNewOrder: true}}, d.effects)

	d.now = d.now.Add(IdleWorkRequestInterval)
	d.tick(MissionUnknown)
	assert.Equal(t, Initial, d.m.State())
	assert.Equal(t, RequestWork{OnlyNewOrder: false}, d.effects[len(d.effects)-1])
}

func TestFinishedOrderUpdatesIgnored(t *testing.T) {
	d := newDriver(testConfig())
	o := moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"})
	d.order(o)
	processed := o
	processed.Processed = true
	d.run(d.m.OrderChanged(processed))
	require.Equal(t, top(Idling), d.m.State())
	assert.Len(t, d.effectsOf(EffectCancelMission), 1)

	assert.Nil(t, d.m.OrderChanged(o))
	assert.Equal(t, 0, d.m.QueueLength())

	assert.Nil(t, d.m.OrderRemoved(o.Key()))
	d.order(o)
	assert.Equal(t, moveHU(MovingToSourceBin), d.m.State(), "recreated order runs again")
}

func TestOrderDeletedWhileMoving(t *testing.T) {
	d := newDriver(testConfig())
	d.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"}))
	d.order(moveOrder("900002", Task{Tanum: "2", SourceBin: "BIN-C"}))
	assert.Equal(t, 2, d.m.QueueLength())

	d.run(d.m.OrderRemoved(OrderKey{Lgnum: "WH1", Who: "900001"}))
	key, ok := d.m.ActiveOrder()
	require.True(t, ok)
	assert.Equal(t, "900002", key.Who)
	assert.Equal(t, moveHU(MovingToSourceBin), d.m.State())
	assert.Equal(t, CancelMission{Name: "mission-1", Mission: MissionMove}, d.effectsOf(EffectCancelMission)[0])
}

func TestEscalationOnTargetLegWaitsForRecovery(t *testing.T) {
	d := newDriver(testConfig())
	o := moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A", TargetBin: "BIN-B"})
	d.order(o)
	d.tick(MissionSucceeded)
	d.tick(MissionSucceeded)
	require.Equal(t, moveHU(MovingToTargetBin), d.m.State())

	for i := 0; i < MaxRetries; i++ {
		d.tick(MissionFailed)
		require.Equal(t, moveHU(MovingToTargetBin), d.m.State())
	}
	d.tick(MissionFailed)
	assert.Equal(t, moveHU(WaitingForErrorRecovery), d.m.State())
	assert.Equal(t, []string{"1/" + string(v1alpha1.ConfirmationFirst), "1/ERROR"}, d.confirmations())
	assert.Equal(t, []Effect{NotifyOrderCompletion{Order: o.Key()}}, d.effectsOf(EffectNotifyOrderCompletion))

	d.tick(MissionUnknown)
	assert.Equal(t, moveHU(WaitingForErrorRecovery), d.m.State())
	d.run(d.m.OrderConfirmed(o.Key()))
	assert.Equal(t, top(Idling), d.m.State())
	_, ok := d.m.ActiveOrder()
	assert.False(t, ok)
}

func TestRobotNotOkWaitsInRobotError(t *testing.T) {
	d := newDriver(testConfig())
	d.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"}))
	d.robotOK = false
	d.tick(MissionFailed)
	require.Equal(t, top(RobotError), d.m.State())

	d.tick(MissionUnknown)
	assert.Equal(t, top(RobotError), d.m.State())

	d.robotOK = true
	d.tick(MissionUnknown)
	assert.Equal(t, moveHU(MovingToSourceBin), d.m.State())
	assert.Equal(t, 2, d.missions)
	assert.Equal(t, 1, d.m.ErrorCount(moveHU(MovingToSourceBin)))
}

func TestNoRecoveryWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RecoverFromRobotError = false
	d := newDriver(cfg)
	d.order(moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"}))
	d.robotOK = false
	d.tick(MissionFailed)
	d.robotOK = true
	d.tick(MissionUnknown)
	assert.Equal(t, top(RobotError), d.m.State())
}

func TestSnapshotRestore(t *testing.T) {
	d := newDriver(testConfig())
	o := moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A"})
	d.order(o)
	snap := d.m.Snapshot()
	assert.Equal(t, Snapshot{
		State:       "MoveHU_movingToSourceBin",
		Lgnum:       "WH1",
		Who:         "900001",
		Tanum:       "1",
		Mission:     "mission-1",
		MissionKind: MissionMove,
	}, snap)

	r := newDriver(testConfig())
	require.NoError(t, r.m.Restore(snap))
	assert.Equal(t, moveHU(MovingToSourceBin), r.m.State())
	assert.Equal(t, MissionUnknown, r.m.ActiveMission().Status)

	r.tick(MissionSucceeded)
	assert.Equal(t, moveHU(MovingToSourceBin), r.m.State(), "waits for order data")

	r.order(o)
	r.tick(MissionSucceeded)
	assert.Equal(t, moveHU(Loading), r.m.State())
}

func TestRestoreKeepsRobotErrorPrior(t *testing.T) {
	d := newDriver(testConfig())
	o := moveOrder("900001", Task{Tanum: "1", SourceBin: "BIN-A", TargetBin: "BIN-B"})
	o.Confirmations = []Confirmation{{Tanum: "1", Number: v1alpha1.ConfirmationFirst, Type: v1alpha1.ConfirmationSuccess}}
	d.order(o)
	require.Equal(t, moveHU(MovingToTargetBin), d.m.State())
	d.robotOK = false
	d.tick(MissionFailed)
	require.Equal(t, top(RobotError), d.m.State())

	snap := d.m.Snapshot()
	assert.Equal(t, "MoveHU_movingToTargetBin", snap.ErrorPrior)

	r := newDriver(testConfig())
	require.NoError(t, r.m.Restore(snap))
	r.order(o)
	r.tick(MissionUnknown)
	assert.Equal(t, moveHU(MovingToTargetBin), r.m.State())
	created := r.effectsOf(EffectCreateMission)
	require.Len(t, created, 1)
	assert.Equal(t, "BIN-B", created[0].(CreateMission).Target)
}

func TestRestoreRobotErrorWithoutPrior(t *testing.T) {
	m := New("robot1", testConfig())
	require.NoError(t, m.Restore(Snapshot{State: "RobotError", Lgnum: "WH1", Who: "900001", ErrorPrior: "bogus"}))
	assert.Equal(t, "MoveHU_findingTarget", m.Snapshot().ErrorPrior)

	m = New("robot1", testConfig())
	require.NoError(t, m.Restore(Snapshot{State: "RobotError"}))
	assert.Equal(t, Initial.String(), m.Snapshot().ErrorPrior)
}

func TestRestoreTimesOutWithoutOrder(t *testing.T) {
	r := newDriver(testConfig())
	require.NoError(t, r.m.Restore(Snapshot{State: "MoveHU_movingToSourceBin", Lgnum: "WH1", Who: "900001", Tanum: "1", Mission: "mission-9"}))
	r.tick(MissionRunning)
	r.now = r.now.Add(OrderRestoreTimeout)
	r.tick(MissionRunning)
	assert.Equal(t, top(Idling), r.m.State())
	assert.Equal(t, CancelMission{Name: "mission-9", Mission: MissionMove}, r.effectsOf(EffectCancelMission)[0])
}

func TestRestoreRejectsUnknownState(t *testing.T) {
	m := New("robot1", testConfig())
	assert.Error(t, m.Restore(Snapshot{State: "teleporting"}))
}

func TestRestoreTransientStateStartsOver(t *testing.T) {
	m := New("robot1", testConfig())
	require.NoError(t, m.Restore(Snapshot{State: "finishedWarehouseorder", ChargerIndex: 5}))
	assert.Equal(t, Initial, m.State())
	assert.Equal(t, 0, m.Snapshot().ChargerIndex)
}
