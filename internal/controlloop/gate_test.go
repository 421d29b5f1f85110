package controlloop

import (
	"testing"
	"time"

	"wheellybridge/bridge/internal/command"
	"wheellybridge/bridge/internal/geometry"
)

func TestEvaluateMotionEmitsFirstCommandAlways(t *testing.T) {
	//1.- The very first motion command always emits.
	g := NewGate(GateConfig{MotorScale: 6})
	emit, speed := g.EvaluateMotion(command.Move(geometry.Identity, 30, geometry.Identity), time.Unix(0, 0))
	if !emit || speed != 30 {
		t.Fatalf("expected first command to emit with speed 30, got emit=%v speed=%v", emit, speed)
	}
}

func TestEvaluateMotionSuppressesUnchangedWithinInterval(t *testing.T) {
	//1.- An unchanged command within CommandInterval must be suppressed.
	g := NewGate(GateConfig{MotorScale: 6, CommandInterval: time.Second})
	now := time.Unix(0, 0)
	g.EvaluateMotion(command.Move(geometry.Identity, 30, geometry.Identity), now)
	emit, _ := g.EvaluateMotion(command.Move(geometry.Identity, 30, geometry.Identity), now.Add(100*time.Millisecond))
	if emit {
		t.Fatalf("expected unchanged command within the interval to be suppressed")
	}
}

func TestEvaluateMotionKeepsAliveAfterInterval(t *testing.T) {
	//1.- An unchanged command must re-emit once CommandInterval has elapsed.
	g := NewGate(GateConfig{MotorScale: 6, CommandInterval: time.Second})
	now := time.Unix(0, 0)
	g.EvaluateMotion(command.Move(geometry.Identity, 30, geometry.Identity), now)
	emit, _ := g.EvaluateMotion(command.Move(geometry.Identity, 30, geometry.Identity), now.Add(2*time.Second))
	if !emit {
		t.Fatalf("expected keep-alive re-emission after the command interval elapsed")
	}
}

func TestEvaluateMotionCoalescesConsecutiveHalts(t *testing.T) {
	//1.- Two consecutive halt commands must coalesce into a single emission.
	g := NewGate(GateConfig{MotorScale: 6})
	now := time.Unix(0, 0)
	g.EvaluateMotion(command.HaltCommand(), now)
	emit, _ := g.EvaluateMotion(command.HaltCommand(), now.Add(time.Millisecond))
	if emit {
		t.Fatalf("expected second consecutive halt to be suppressed")
	}
}

func TestEvaluateMotionEmitsOnDirectionChange(t *testing.T) {
	//1.- A changed direction must emit immediately even inside CommandInterval.
	g := NewGate(GateConfig{MotorScale: 6, CommandInterval: time.Second})
	now := time.Unix(0, 0)
	g.EvaluateMotion(command.Move(geometry.Identity, 30, geometry.Identity), now)
	emit, _ := g.EvaluateMotion(command.Move(geometry.FromDeg(20), 30, geometry.Identity), now.Add(time.Millisecond))
	if !emit {
		t.Fatalf("expected direction change to emit immediately")
	}
}

func TestEvaluateMotionQuantisesSpeedToMotorScale(t *testing.T) {
	//1.- Speed must round to the nearest MOTOR_SCALE step before comparison.
	g := NewGate(GateConfig{MotorScale: 6})
	_, speed := g.EvaluateMotion(command.Move(geometry.Identity, 31, geometry.Identity), time.Unix(0, 0))
	if speed != 30 {
		t.Fatalf("expected quantised speed 30, got %v", speed)
	}
}

func TestEvaluateScanNeverRepeatsZeroTwice(t *testing.T) {
	//1.- The zero degree scan must never re-emit back to back.
	g := NewGate(GateConfig{})
	now := time.Unix(0, 0)
	if !g.EvaluateScan(geometry.Identity, now) {
		t.Fatalf("expected first scan to emit")
	}
	if g.EvaluateScan(geometry.Identity, now.Add(time.Millisecond)) {
		t.Fatalf("expected repeated zero scan to be suppressed")
	}
}

func TestMetricsCountsEmissionsAndDrops(t *testing.T) {
	//1.- Emitted and suppressed commands must each land in the right counter.
	g := NewGate(GateConfig{MotorScale: 6, CommandInterval: time.Second})
	now := time.Unix(0, 0)
	g.EvaluateMotion(command.Move(geometry.Identity, 30, geometry.Identity), now)
	g.EvaluateMotion(command.Move(geometry.Identity, 30, geometry.Identity), now.Add(10*time.Millisecond))
	g.EvaluateScan(geometry.Identity, now)
	g.EvaluateScan(geometry.Identity, now.Add(10*time.Millisecond))

	m := g.Metrics()
	if m.MotionEmitted != 1 || m.MotionDroppedUnchanged != 1 {
		t.Fatalf("unexpected motion metrics: %+v", m)
	}
	if m.ScanEmitted != 1 || m.ScanDroppedZero != 1 {
		t.Fatalf("unexpected scan metrics: %+v", m)
	}
}

func TestEvaluateScanThrottlesChangedDirection(t *testing.T) {
	//1.- A changed scan direction inside ScanThrottle must still be suppressed.
	g := NewGate(GateConfig{ScanThrottle: time.Second})
	now := time.Unix(0, 0)
	g.EvaluateScan(geometry.FromDeg(10), now)
	if g.EvaluateScan(geometry.FromDeg(20), now.Add(10*time.Millisecond)) {
		t.Fatalf("expected throttled scan change to be suppressed")
	}
}
