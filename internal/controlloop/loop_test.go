package controlloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"wheellybridge/bridge/internal/command"
	"wheellybridge/bridge/internal/geometry"
	"wheellybridge/bridge/internal/radar"
	"wheellybridge/bridge/internal/rlcodec"
	"wheellybridge/bridge/internal/wireproto"
	"wheellybridge/bridge/internal/worldmodel"
)

func approxEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-6
}

type fakeSender struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeSender) Send(line string) {
	f.mu.Lock()
	f.lines = append(f.lines, line)
	f.mu.Unlock()
}

func (f *fakeSender) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

type stubCodec struct {
	cmds []command.Command
}

func (c *stubCodec) Encode(model *worldmodel.WorldModel) map[string]rlcodec.Tensor {
	return map[string]rlcodec.Tensor{"sensor": rlcodec.Scalar(0)}
}

func (c *stubCodec) Decode(actions map[string]rlcodec.Tensor, history []*worldmodel.WorldModel) []command.Command {
	return c.cmds
}

func (c *stubCodec) Spec() map[string]rlcodec.SignalSpec { return nil }

func newTestLoop(t *testing.T, cmds []command.Command) (*Loop, *fakeSender) {
	t.Helper()
	spec := worldmodel.WorldModelSpec{NumSectors: 4, GridSize: 0.2, GridWidth: 5, GridHeight: 5, MaxRadarDistance: 3}
	asm := worldmodel.NewAssembler(spec, radar.ScannerMapConfig{GridSize: 0.2})
	codec := &stubCodec{cmds: cmds}
	sender := &fakeSender{}
	gate := NewGate(GateConfig{MotorScale: 6})
	loop := New(Config{ReactionInterval: 5 * time.Millisecond}, asm, codec, AgentFunc(func(map[string]rlcodec.Tensor) map[string]rlcodec.Tensor {
		return map[string]rlcodec.Tensor{}
	}), sender, gate, nil)
	return loop, sender
}

func TestLoopEmitsMoveCommandOnCycle(t *testing.T) {
	//1.- A latched status must drive one inference cycle that emits a move command.
	cmd := command.Move(geometry.FromDeg(10), 30, geometry.Identity)
	loop, sender := newTestLoop(t, []command.Command{cmd})

	status := worldmodel.NewRobotStatus(geometry.Point2D{}, geometry.Identity, geometry.Identity, 1, true, true, false, 0, 0)
	loop.LatchStatus(status)

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-loop.Done()

	lines := sender.snapshot()
	if len(lines) == 0 {
		t.Fatalf("expected at least one emitted line")
	}
	msg, err := wireproto.Parse(lines[0])
	if err != nil {
		t.Fatalf("unexpected parse error for %q: %v", lines[0], err)
	}
	move, ok := msg.(wireproto.Move)
	if !ok {
		t.Fatalf("expected a move line, got %T", msg)
	}
	if !approxEqual(move.HeadingDeg, 10) || move.SpeedPPS != 30 {
		t.Fatalf("unexpected move command: %+v", move)
	}
}

func TestLoopDeliversExecutionResultFromSecondCycleOnward(t *testing.T) {
	//1.- The first cycle has no predecessor; the second cycle must deliver one ExecutionResult.
	cmd := command.Move(geometry.Identity, 30, geometry.Identity)
	loop, _ := newTestLoop(t, []command.Command{cmd})

	var mu sync.Mutex
	results := 0
	loop.SetOnResult(func(ExecutionResult) {
		mu.Lock()
		results++
		mu.Unlock()
	})

	status := worldmodel.NewRobotStatus(geometry.Point2D{}, geometry.Identity, geometry.Identity, 1, true, true, false, 0, 0)
	loop.LatchStatus(status)

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	time.Sleep(35 * time.Millisecond)
	cancel()
	<-loop.Done()

	mu.Lock()
	defer mu.Unlock()
	if results == 0 {
		t.Fatalf("expected at least one ExecutionResult once a second cycle ran")
	}
}

func TestLoopFlushesHaltOnShutdown(t *testing.T) {
	//1.- Shutdown must flush a final halt line regardless of the last decoded command.
	cmd := command.Move(geometry.Identity, 30, geometry.Identity)
	loop, sender := newTestLoop(t, []command.Command{cmd})

	status := worldmodel.NewRobotStatus(geometry.Point2D{}, geometry.Identity, geometry.Identity, 1, true, true, false, 0, 0)
	loop.LatchStatus(status)

	ctx := context.Background()
	loop.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	loop.Shutdown()

	lines := sender.snapshot()
	if lines[len(lines)-1] != "al\n" {
		t.Fatalf("expected final flushed line to be halt, got %q", lines[len(lines)-1])
	}
}
