// Package controlloop drives the fixed-cadence inference cycle and the
// motion/scan command debounce that sits between the decoded command and the
// vehicle wire.
package controlloop

import (
	"math"
	"sync"
	"time"

	"wheellybridge/bridge/internal/command"
	"wheellybridge/bridge/internal/geometry"
)

// GateConfig tunes the debounce/rate-limit discipline applied to outbound
// motion and scan commands.
type GateConfig struct {
	CommandInterval time.Duration
	ScanThrottle    time.Duration
	MotorScale      float64
}

// DropReason labels why a command was suppressed instead of emitted, mirroring
// the teacher's admission-gate drop taxonomy.
type DropReason int

const (
	// DropNone means the command was emitted, not dropped.
	DropNone DropReason = iota
	// DropUnchanged means the motion command was identical to the last one
	// emitted and CommandInterval has not yet elapsed.
	DropUnchanged
	// DropCoalescedHalt means a halt followed another halt.
	DropCoalescedHalt
	// DropScanRepeatedZero means the zero-degree scan repeated back to back.
	DropScanRepeatedZero
	// DropScanUnchanged means the scan direction matched the last one emitted.
	DropScanUnchanged
	// DropScanThrottled means a changed scan direction arrived before
	// ScanThrottle elapsed since the last scan emission.
	DropScanThrottled
)

// Metrics is a point-in-time count of emissions and drop reasons.
type Metrics struct {
	MotionEmitted          uint64
	MotionDroppedUnchanged uint64
	MotionDroppedHalt      uint64
	ScanEmitted            uint64
	ScanDroppedZero        uint64
	ScanDroppedUnchanged   uint64
	ScanDroppedThrottled   uint64
}

// Gate debounces motion and scan command emission: unchanged commands are
// suppressed except for the motion keep-alive, consecutive halts coalesce
// into one, and the zero-degree scan never re-emits back to back. Adapted
// from the teacher's client admission gate (sequencing/staleness/rate-limit
// guard over a mutex-protected per-client map), here applied to the single
// outbound command stream instead of many inbound clients.
type Gate struct {
	mu  sync.Mutex
	cfg GateConfig

	hasMotion      bool
	lastWasHalt    bool
	lastDirection  geometry.Complex
	lastSpeedQuant float64
	lastMotionEmit time.Time

	hasScan      bool
	lastScanDir  geometry.Complex
	lastScanZero bool
	lastScanEmit time.Time

	metrics Metrics
}

// NewGate constructs a command gate with the given configuration.
func NewGate(cfg GateConfig) *Gate {
	return &Gate{cfg: cfg}
}

func quantize(v, scale float64) float64 {
	if scale <= 0 {
		return v
	}
	return math.Round(v/scale) * scale
}

// EvaluateMotion reports whether cmd should be emitted, and the
// MOTOR_SCALE-quantised speed to send if so.
func (g *Gate) EvaluateMotion(cmd command.Command, now time.Time) (emit bool, quantSpeed float64) {
	if !cmd.Halt {
		quantSpeed = quantize(cmd.SpeedPPS, g.cfg.MotorScale)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.hasMotion {
		g.hasMotion = true
		g.lastWasHalt = cmd.Halt
		g.lastDirection = cmd.Direction
		g.lastSpeedQuant = quantSpeed
		g.lastMotionEmit = now
		g.metrics.MotionEmitted++
		return true, quantSpeed
	}

	if cmd.Halt && g.lastWasHalt {
		//1.- Two consecutive halts coalesce: suppress the repeat.
		g.metrics.MotionDroppedHalt++
		return false, quantSpeed
	}

	changed := cmd.Halt != g.lastWasHalt || (!cmd.Halt && (cmd.Direction != g.lastDirection || quantSpeed != g.lastSpeedQuant))
	keepAlive := !changed && g.cfg.CommandInterval > 0 && now.Sub(g.lastMotionEmit) >= g.cfg.CommandInterval

	if !changed && !keepAlive {
		g.metrics.MotionDroppedUnchanged++
		return false, quantSpeed
	}

	g.lastWasHalt = cmd.Halt
	g.lastDirection = cmd.Direction
	g.lastSpeedQuant = quantSpeed
	g.lastMotionEmit = now
	g.metrics.MotionEmitted++
	return true, quantSpeed
}

// EvaluateScan reports whether a scan command for scanDir should be emitted.
func (g *Gate) EvaluateScan(scanDir geometry.Complex, now time.Time) bool {
	isZero := scanDir == geometry.Identity

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.hasScan {
		g.hasScan = true
		g.lastScanDir = scanDir
		g.lastScanZero = isZero
		g.lastScanEmit = now
		g.metrics.ScanEmitted++
		return true
	}

	if isZero && g.lastScanZero {
		//1.- Never re-emit the 0 degree scan twice in a row.
		g.metrics.ScanDroppedZero++
		return false
	}
	if scanDir == g.lastScanDir {
		g.metrics.ScanDroppedUnchanged++
		return false
	}
	if g.cfg.ScanThrottle > 0 && now.Sub(g.lastScanEmit) < g.cfg.ScanThrottle {
		g.metrics.ScanDroppedThrottled++
		return false
	}

	g.lastScanDir = scanDir
	g.lastScanZero = isZero
	g.lastScanEmit = now
	g.metrics.ScanEmitted++
	return true
}

// Metrics returns a snapshot of the emission/drop counters accumulated so far.
func (g *Gate) Metrics() Metrics {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.metrics
}
