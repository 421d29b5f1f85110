package controlloop

import (
	"context"
	"sync"
	"time"

	"wheellybridge/bridge/internal/command"
	"wheellybridge/bridge/internal/geometry"
	"wheellybridge/bridge/internal/logging"
	"wheellybridge/bridge/internal/radar"
	"wheellybridge/bridge/internal/rlcodec"
	"wheellybridge/bridge/internal/wireproto"
	"wheellybridge/bridge/internal/worldmodel"
)

// Agent is the pluggable inference callable: it maps encoded state tensors
// to action tensors.
type Agent interface {
	Act(signals map[string]rlcodec.Tensor) map[string]rlcodec.Tensor
}

// AgentFunc adapts a plain function to the Agent interface.
type AgentFunc func(map[string]rlcodec.Tensor) map[string]rlcodec.Tensor

// Act implements Agent.
func (f AgentFunc) Act(signals map[string]rlcodec.Tensor) map[string]rlcodec.Tensor { return f(signals) }

// RewardFunc scores the transition from state0 under prevCommand into state1.
type RewardFunc func(state0, state1 *worldmodel.WorldModel, prevCommand command.Command) float64

// Sender delivers a rendered wire line to the vehicle.
type Sender interface {
	Send(line string)
}

// ExecutionResult is the per-cycle observer payload: the signals/actions of
// the cycle that just earned a reward, the reward itself, and the freshly
// encoded signals of the new state.
type ExecutionResult struct {
	Signals0 map[string]rlcodec.Tensor
	Actions0 map[string]rlcodec.Tensor
	Reward   float64
	Signals1 map[string]rlcodec.Tensor
	Done     bool
}

// Config tunes the cadence and command-emission constants of the loop.
type Config struct {
	ReactionInterval time.Duration
	CommandInterval  time.Duration
	ScanThrottle     time.Duration
	MaxPPS           float64
	Now              func() time.Time
}

func (c Config) withDefaults() Config {
	if c.ReactionInterval <= 0 {
		c.ReactionInterval = 300 * time.Millisecond
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type cycleState struct {
	model   *worldmodel.WorldModel
	signals map[string]rlcodec.Tensor
	actions map[string]rlcodec.Tensor
}

// Loop drives one inference cycle per ReactionInterval tick: it latches the
// most recently arrived vehicle status, assembles a world model, runs the
// agent, decodes and debounces a command, and reports the previous cycle's
// reward to the observer. Grounded on the teacher's fixed-timestep
// ticker+accumulator cadence (internal/simulation/loop.go), adapted from a
// catch-up multi-step stepper to a single-consumer latest-status latch since
// skipping stale inference cycles, not replaying them, is what this domain
// needs.
type Loop struct {
	cfg       Config
	assembler *worldmodel.Assembler
	codec     rlcodec.Codec
	agent     Agent
	sender    Sender
	gate      *Gate
	logger    *logging.Logger

	latchMu       sync.Mutex
	latchStatus   *worldmodel.RobotStatus
	pendingSample *radar.ProxySample

	hooksMu     sync.Mutex
	onInference func(worldmodel.RobotStatus)
	onAct       func(signals, actions map[string]rlcodec.Tensor)
	onResult    func(ExecutionResult)
	rewardFn    RewardFunc

	cycleMu     sync.Mutex
	prev        *cycleState
	prevCommand command.Command
	havePrev    bool

	ticker  *time.Ticker
	closeCh chan struct{}
	closeOne sync.Once
	doneCh  chan struct{}
}

// New constructs a Loop. Call Start to begin ticking.
func New(cfg Config, assembler *worldmodel.Assembler, codec rlcodec.Codec, agent Agent, sender Sender, gate *Gate, logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.L()
	}
	return &Loop{
		cfg:       cfg.withDefaults(),
		assembler: assembler,
		codec:     codec,
		agent:     agent,
		sender:    sender,
		gate:      gate,
		logger:    logger,
		closeCh:   make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// SetOnInference registers the read-only peek hook invoked at the top of
// every cycle.
func (l *Loop) SetOnInference(fn func(worldmodel.RobotStatus)) {
	l.hooksMu.Lock()
	l.onInference = fn
	l.hooksMu.Unlock()
}

// SetOnAct registers the hook invoked once the agent has produced actions.
func (l *Loop) SetOnAct(fn func(signals, actions map[string]rlcodec.Tensor)) {
	l.hooksMu.Lock()
	l.onAct = fn
	l.hooksMu.Unlock()
}

// SetOnResult registers the observer hook for completed ExecutionResults.
func (l *Loop) SetOnResult(fn func(ExecutionResult)) {
	l.hooksMu.Lock()
	l.onResult = fn
	l.hooksMu.Unlock()
}

// SetRewardFunction registers the reward function applied between cycles.
func (l *Loop) SetRewardFunction(fn RewardFunc) {
	l.hooksMu.Lock()
	l.rewardFn = fn
	l.hooksMu.Unlock()
}

// LatchStatus records the most recently decoded vehicle status as the input
// to the next inference cycle.
func (l *Loop) LatchStatus(status worldmodel.RobotStatus) {
	l.latchMu.Lock()
	l.latchStatus = &status
	l.latchMu.Unlock()
}

// LatchSample records a proximity sample to be folded into the next cycle's
// world model assembly, consumed exactly once.
func (l *Loop) LatchSample(sample radar.ProxySample) {
	l.latchMu.Lock()
	l.pendingSample = &sample
	l.latchMu.Unlock()
}

// ObserveMarker forwards a labelled landmark sighting to the assembler.
func (l *Loop) ObserveMarker(label string, location geometry.Point2D, timestamp int64) {
	l.assembler.ObserveMarker(label, location, timestamp)
}

// Start begins the reaction-interval ticker. It returns immediately; the
// cycle runs on its own goroutine until Shutdown is called or ctx is done.
func (l *Loop) Start(ctx context.Context) {
	l.ticker = time.NewTicker(l.cfg.ReactionInterval)
	go l.run(ctx)
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.doneCh)
	defer l.ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.flushHalt()
			return
		case <-l.closeCh:
			l.flushHalt()
			return
		case <-l.ticker.C:
			l.runCycle()
		}
	}
}

func (l *Loop) runCycle() {
	l.latchMu.Lock()
	status := l.latchStatus
	sample := l.pendingSample
	l.pendingSample = nil
	l.latchMu.Unlock()

	if status == nil {
		return
	}

	l.hooksMu.Lock()
	onInference, onAct, onResult, rewardFn := l.onInference, l.onAct, l.onResult, l.rewardFn
	l.hooksMu.Unlock()

	if onInference != nil {
		onInference(*status)
	}

	model1 := l.assembler.Assemble(*status, sample)
	signals1 := l.codec.Encode(model1)
	actions1 := l.agent.Act(signals1)
	if onAct != nil {
		onAct(signals1, actions1)
	}

	cmds := l.codec.Decode(actions1, []*worldmodel.WorldModel{model1})
	var cmd command.Command
	if len(cmds) > 0 {
		cmd = cmds[0]
	} else {
		cmd = command.HaltCommand()
	}

	l.cycleMu.Lock()
	prev := l.prev
	prevCommand := l.prevCommand
	havePrev := l.havePrev
	l.prev = &cycleState{model: model1, signals: signals1, actions: actions1}
	l.prevCommand = cmd
	l.havePrev = true
	l.cycleMu.Unlock()

	if havePrev && onResult != nil {
		reward := 0.0
		if rewardFn != nil {
			reward = rewardFn(prev.model, model1, prevCommand)
		}
		onResult(ExecutionResult{Signals0: prev.signals, Actions0: prev.actions, Reward: reward, Signals1: signals1, Done: false})
	}

	l.emitCommand(cmd)
}

func (l *Loop) emitCommand(cmd command.Command) {
	now := l.cfg.Now()
	if emit, quantSpeed := l.gate.EvaluateMotion(cmd, now); emit {
		if cmd.Halt {
			l.sender.Send(wireproto.FormatHalt())
		} else {
			l.sender.Send(wireproto.FormatMove(cmd.Direction.ToDeg(), quantSpeed))
		}
	}
	if cmd.HasScan && l.gate.EvaluateScan(cmd.ScanDir, now) {
		l.sender.Send(wireproto.FormatScan(cmd.ScanDir.ToDeg()))
	}
}

func (l *Loop) flushHalt() {
	l.sender.Send(wireproto.FormatHalt())
}

// Shutdown stops the loop goroutine so no further cycle runs, sends one final
// halt, and returns once the goroutine has exited. LatchStatus still stores
// statuses after Shutdown, and the result hook receives no completion signal.
func (l *Loop) Shutdown() {
	l.closeOne.Do(func() { close(l.closeCh) })
	<-l.doneCh
}

// Done returns a channel closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.doneCh
}
