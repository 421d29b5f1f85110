// Package bridge wires the reconnecting line transport, clock sync prober,
// world model assembler, and inference control loop into one runnable
// vehicle control bridge. Grounded on the teacher's top-level wiring struct
// (main.go's Broker, which owns the socket/websocket/radar/timesync/replay
// pieces and drives them from one goroutine fan-in), narrowed to the pieces
// this domain needs and stripped of every CLI/flag/config-file concern —
// those stay out of scope per spec.md.
package bridge

import (
	"context"
	"net/http"
	"time"

	"wheellybridge/bridge/internal/config"
	"wheellybridge/bridge/internal/controlloop"
	"wheellybridge/bridge/internal/geometry"
	"wheellybridge/bridge/internal/logging"
	"wheellybridge/bridge/internal/radar"
	"wheellybridge/bridge/internal/rlcodec"
	"wheellybridge/bridge/internal/telemetry"
	"wheellybridge/bridge/internal/timesync"
	"wheellybridge/bridge/internal/transport"
	"wheellybridge/bridge/internal/wireproto"
	"wheellybridge/bridge/internal/worldmodel"
)

// frontContactBit is the bit of the packed contact mask the bow/front
// sensor occupies; contactOffsets in the radar package starts at the bow
// and proceeds counter-clockwise, so bit 0 is the front.
const frontContactBit = 1 << 0

// Bridge owns one vehicle connection end-to-end: it reads wire lines off
// the transport, reconciles clock probes, decodes status/proxy lines into
// the world model assembler's inputs, and drives the control loop's
// command emission back onto the same transport.
type Bridge struct {
	cfg       config.Config
	transport *transport.Line
	clock     *timesync.Client
	assembler *worldmodel.Assembler
	loop      *controlloop.Loop
	hub       *telemetry.Hub
	httpSrv   *http.Server
	logger    *logging.Logger

	errs chan error

	lastValidStatus *worldmodel.RobotStatus
}

// New constructs a Bridge from configuration, a pluggable inference agent,
// and the codec dialect in use. Call Start to begin running it.
func New(cfg config.Config, agent controlloop.Agent, codec rlcodec.Codec, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.L()
	}

	line := transport.New(transport.Config{
		Address:        cfg.Host + ":" + cfg.Port,
		ConnectTimeout: cfg.ConnectionTimeout,
		RetryInterval:  cfg.RetryConnectionInterval,
		ReadTimeout:    cfg.ReadTimeout,
	}, logger)

	clock := timesync.New(timesync.Config{}, line, logger)

	assembler := worldmodel.NewAssembler(worldmodel.WorldModelSpec{
		NumSectors:       cfg.NumRadarSectors,
		GridSize:         cfg.GridSize,
		MaxRadarDistance: cfg.MaxRadarDistance,
		MinRadarDistance: cfg.MinRadarDistance,
		MarkerLabels:     cfg.MarkerLabels,
		MarkerHold:       cfg.MarkerHold,
	}, radar.ScannerMapConfig{GridSize: cfg.GridSize, MergeContacts: true})

	gate := controlloop.NewGate(controlloop.GateConfig{
		CommandInterval: cfg.CommandInterval,
		ScanThrottle:    cfg.ScanThrottle,
		MotorScale:      cfg.MaxPPS / 10,
	})

	loop := controlloop.New(controlloop.Config{
		ReactionInterval: cfg.ReactionInterval,
		CommandInterval:  cfg.CommandInterval,
		ScanThrottle:     cfg.ScanThrottle,
		MaxPPS:           cfg.MaxPPS,
	}, assembler, codec, agent, line, gate, logger)

	b := &Bridge{
		cfg:       cfg,
		transport: line,
		clock:     clock,
		assembler: assembler,
		loop:      loop,
		logger:    logger,
		errs:      make(chan error, 64),
	}

	if cfg.TelemetryAddr != "" {
		b.hub = telemetry.NewHub(logger)
		mux := http.NewServeMux()
		mux.HandleFunc("/telemetry", b.hub.ServeWS)
		b.httpSrv = &http.Server{Addr: cfg.TelemetryAddr, Handler: mux}
	}

	loop.SetOnInference(func(status worldmodel.RobotStatus) {
		if b.hub != nil {
			_ = b.hub.Publish(telemetry.KindWorldModel, status)
		}
	})
	b.SetOnResult(nil)

	return b
}

// SetOnAct forwards to the underlying control loop's act hook.
func (b *Bridge) SetOnAct(fn func(signals, actions map[string]rlcodec.Tensor)) {
	b.loop.SetOnAct(fn)
}

// SetOnResult registers an observer hook for completed cycles. If a
// telemetry hub is configured, every result is published to it first, then
// forwarded to fn.
func (b *Bridge) SetOnResult(fn func(controlloop.ExecutionResult)) {
	b.loop.SetOnResult(func(res controlloop.ExecutionResult) {
		if b.hub != nil {
			_ = b.hub.Publish(telemetry.KindExecutionResult, res)
		}
		if fn != nil {
			fn(res)
		}
	})
}

// SetRewardFunction forwards to the underlying control loop's reward
// function.
func (b *Bridge) SetRewardFunction(fn controlloop.RewardFunc) {
	b.loop.SetRewardFunction(fn)
}

// ObserveMarker forwards a labelled landmark sighting to the world model
// assembler.
func (b *Bridge) ObserveMarker(label string, location geometry.Point2D, timestamp int64) {
	b.loop.ObserveMarker(label, location, timestamp)
}

// Errors returns the stream of recoverable errors (malformed wire lines,
// transport failures, inconsistent statuses) encountered while running.
func (b *Bridge) Errors() <-chan error { return b.errs }

// Start launches the transport, clock sync, inference loop, and inbound
// line pump. It returns immediately.
func (b *Bridge) Start(ctx context.Context) {
	b.transport.Start(ctx)
	b.clock.Start(ctx)
	b.loop.Start(ctx)
	go b.pump(ctx)
	if b.httpSrv != nil {
		go func() {
			if err := b.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				b.publishErr(err)
			}
		}()
	}
}

// Shutdown stops the inference loop (flushing a final halt), closes the
// transport, and tears down the telemetry server if one is running.
func (b *Bridge) Shutdown() {
	b.loop.Shutdown()
	b.transport.Close()
	if b.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = b.httpSrv.Shutdown(ctx)
	}
}

func (b *Bridge) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-b.transport.Lines():
			if !ok {
				return
			}
			b.handleLine(line)
		case err, ok := <-b.transport.Errors():
			if !ok {
				continue
			}
			b.publishErr(err)
		}
	}
}

func (b *Bridge) handleLine(line transport.TimestampedLine) {
	msg, err := wireproto.Parse(line.Text)
	if err != nil {
		if _, ok := err.(wireproto.ErrUnknownPrefix); ok {
			b.logger.Debug("ignoring unknown wire prefix", logging.String("line", line.Text))
			return
		}
		b.publishErr(err)
		return
	}

	switch m := msg.(type) {
	case wireproto.Status:
		b.handleStatus(m, line.TimestampMs)
	case wireproto.Proxy:
		b.handleProxy(m, line.TimestampMs)
	case wireproto.Clock:
		b.clock.HandleEcho(m, line.TimestampMs)
	case wireproto.ContactSensor:
		// Diagnostic cycles-per-second counter; nothing to act on.
	}
}

func (b *Bridge) handleStatus(m wireproto.Status, arrivalMs int64) {
	status := StatusToRobotStatus(m, b.clock.FromRemote(m.RemoteTimestampMs))

	if err := status.Validate(); err != nil {
		b.publishErr(err)
		b.logger.Warn("inconsistent status received, retaining last valid",
			logging.Int64("remote_ts", m.RemoteTimestampMs))
		if b.lastValidStatus != nil {
			b.loop.LatchStatus(*b.lastValidStatus)
		}
		return
	}

	snapshot := status
	b.lastValidStatus = &snapshot
	b.loop.LatchStatus(status)
	b.loop.LatchSample(StatusToProxySample(status))
}

func (b *Bridge) handleProxy(m wireproto.Proxy, arrivalMs int64) {
	b.loop.LatchSample(ProxyToSample(m, b.clock.FromRemote(m.RemoteTimestampMs)))
}

func (b *Bridge) publishErr(err error) {
	select {
	case b.errs <- err:
	default:
		// Errors channel full; the new error is dropped rather than
		// blocking the pump.
	}
}

// StatusToRobotStatus converts a decoded "st" wire message into the
// assembler's RobotStatus, deriving frontSensor from the bow contact bit
// and localTimestampMs from the caller's already-resolved local timescale.
func StatusToRobotStatus(m wireproto.Status, localTimestampMs int64) worldmodel.RobotStatus {
	return worldmodel.NewRobotStatus(
		geometry.Point2D{X: m.X, Y: m.Y},
		geometry.FromDeg(m.YawDeg),
		geometry.FromDeg(m.SensorDeg),
		m.DistanceM,
		m.CanMoveForward,
		m.CanMoveBackward,
		m.Contacts&frontContactBit != 0,
		m.Contacts,
		localTimestampMs,
	)
}

// StatusToProxySample derives the proximity sample implied by a status
// line's own echo distance and head-absolute sensor direction.
func StatusToProxySample(status worldmodel.RobotStatus) radar.ProxySample {
	sampleLocation := status.Location
	if status.EchoDistance > 0 {
		sampleLocation = geometry.Point2D{
			X: status.Location.X + status.HeadAbsDirection.Re*status.EchoDistance,
			Y: status.Location.Y + status.HeadAbsDirection.Im*status.EchoDistance,
		}
	}
	return radar.ProxySample{
		Timestamp:      status.Timestamp,
		SensorDir:      status.HeadAbsDirection,
		Distance:       status.EchoDistance,
		SampleLocation: sampleLocation,
	}
}

// ProxyToSample converts a decoded legacy "pr" wire message into a
// proximity sample, using the pose it carries directly rather than the
// last latched status.
func ProxyToSample(m wireproto.Proxy, localTimestampMs int64) radar.ProxySample {
	heading := geometry.FromDeg(m.HeadingDeg)
	sensorDir := heading.Add(geometry.FromDeg(m.RelDirDeg))
	robotLocation := geometry.Point2D{X: m.X, Y: m.Y}
	sampleLocation := robotLocation
	if m.DistanceM > 0 {
		sampleLocation = geometry.Point2D{
			X: robotLocation.X + sensorDir.Re*m.DistanceM,
			Y: robotLocation.Y + sensorDir.Im*m.DistanceM,
		}
	}
	return radar.ProxySample{
		Timestamp:      localTimestampMs,
		SensorDir:      sensorDir,
		Distance:       m.DistanceM,
		SampleLocation: sampleLocation,
	}
}
