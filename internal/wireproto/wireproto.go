// Package wireproto parses and formats the ASCII, space-separated,
// newline-terminated line protocol spoken with the vehicle.
package wireproto

import (
	"fmt"
	"strconv"
	"strings"

	"wheellybridge/bridge/internal/bridgeerr"
)

// Message is implemented by every decoded inbound or outbound line.
type Message interface {
	Prefix() string
}

// Status is the "st" inbound line: full robot telemetry.
type Status struct {
	RemoteTimestampMs int64
	X                 float64
	Y                 float64
	YawDeg            float64
	SensorDeg         float64
	DistanceM         float64
	LeftPPS           float64
	RightPPS          float64
	Contacts          uint8
	Voltage           float64
	CanMoveForward    bool
	CanMoveBackward   bool
	IMUFailure        bool
	Halted            bool
}

func (Status) Prefix() string { return "st" }

// Proxy is the legacy "pr" inbound proxy sample line.
type Proxy struct {
	RemoteTimestampMs int64
	RelDirDeg         float64
	DistanceM         float64
	X                 float64
	Y                 float64
	HeadingDeg        float64
}

func (Proxy) Prefix() string { return "pr" }

// Clock is the "ck" bidirectional clock probe/echo line.
type Clock struct {
	LocalTimestampMs        int64
	HasRemoteFields         bool
	ReceiveRemoteTimestamp  int64
	TransmitRemoteTimestamp int64
}

func (Clock) Prefix() string { return "ck" }

// ContactSensor is the "cs" inbound diagnostic counter line.
type ContactSensor struct {
	RemoteTimestampMs int64
	CyclesPerSecond   float64
}

func (ContactSensor) Prefix() string { return "cs" }

// Move is the "mv" outbound motion command line.
type Move struct {
	HeadingDeg float64
	SpeedPPS   float64
}

func (Move) Prefix() string { return "mv" }

// Scan is the "sc" outbound sensor-direction command line.
type Scan struct {
	SensorDeg float64
}

func (Scan) Prefix() string { return "sc" }

// Halt is the "al" outbound halt command line.
type Halt struct{}

func (Halt) Prefix() string { return "al" }

// StatusRequest is the "sq" outbound request for periodic status.
type StatusRequest struct {
	IntervalMs int64
}

func (StatusRequest) Prefix() string { return "sq" }

// Parse decodes a single inbound or outbound wire line into its Message
// value. Unknown prefixes return ErrUnknownPrefix (callers should log and
// ignore, per the external interface contract).
func Parse(raw string) (Message, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, bridgeerr.New(bridgeerr.KindMalformedMessage, "wireproto.Parse",
			&bridgeerr.MalformedMessage{Raw: raw})
	}
	prefix := fields[0]
	args := fields[1:]
	switch prefix {
	case "st":
		return parseStatus(raw, args)
	case "pr":
		return parseProxy(raw, args)
	case "ck":
		return parseClock(raw, args)
	case "cs":
		return parseContactSensor(raw, args)
	case "mv":
		return parseMove(raw, args)
	case "sc":
		return parseScan(raw, args)
	case "al":
		return Halt{}, nil
	case "sq":
		return parseStatusRequest(raw, args)
	default:
		return nil, ErrUnknownPrefix{Prefix: prefix, Raw: raw}
	}
}

// ErrUnknownPrefix is returned for lines whose prefix is not recognised; the
// external interface contract is to log and ignore these, not to treat them
// as malformed.
type ErrUnknownPrefix struct {
	Prefix string
	Raw    string
}

func (e ErrUnknownPrefix) Error() string {
	return fmt.Sprintf("unknown wire prefix %q in line %q", e.Prefix, e.Raw)
}

func parseStatus(raw string, args []string) (Status, error) {
	const want = 14
	if len(args) != want {
		return Status{}, malformed("st", "field_count", raw)
	}
	ints, floats, err := splitStatusFields(raw, args)
	if err != nil {
		return Status{}, err
	}
	return Status{
		RemoteTimestampMs: ints[0],
		X:                 floats[0],
		Y:                 floats[1],
		YawDeg:            floats[2],
		SensorDeg:         floats[3],
		DistanceM:         floats[4],
		LeftPPS:           floats[5],
		RightPPS:          floats[6],
		Contacts:          uint8(ints[1]),
		Voltage:           floats[7],
		CanMoveForward:    ints[2] != 0,
		CanMoveBackward:   ints[3] != 0,
		IMUFailure:        ints[4] != 0,
		Halted:            ints[5] != 0,
	}, nil
}

// splitStatusFields parses the 14 "st" fields in wire order, returning the
// integer-typed fields (remote_ts, contacts, can_fwd, can_bwd, imu_fail,
// halted) and the float-typed fields (x, y, yaw, sensor, distance, left_pps,
// right_pps, voltage) as two parallel slices.
func splitStatusFields(raw string, args []string) ([]int64, []float64, error) {
	remoteTs, err := parseInt(raw, "st", "remote_ts", args[0])
	if err != nil {
		return nil, nil, err
	}
	x, err := parseFloat(raw, "st", "x", args[1])
	if err != nil {
		return nil, nil, err
	}
	y, err := parseFloat(raw, "st", "y", args[2])
	if err != nil {
		return nil, nil, err
	}
	yaw, err := parseFloat(raw, "st", "yaw_deg", args[3])
	if err != nil {
		return nil, nil, err
	}
	sensor, err := parseFloat(raw, "st", "sensor_deg", args[4])
	if err != nil {
		return nil, nil, err
	}
	distance, err := parseFloat(raw, "st", "distance_m", args[5])
	if err != nil {
		return nil, nil, err
	}
	leftPPS, err := parseFloat(raw, "st", "left_pps", args[6])
	if err != nil {
		return nil, nil, err
	}
	rightPPS, err := parseFloat(raw, "st", "right_pps", args[7])
	if err != nil {
		return nil, nil, err
	}
	contacts, err := parseInt(raw, "st", "contacts", args[8])
	if err != nil {
		return nil, nil, err
	}
	voltage, err := parseFloat(raw, "st", "voltage", args[9])
	if err != nil {
		return nil, nil, err
	}
	canFwd, err := parseInt(raw, "st", "can_fwd", args[10])
	if err != nil {
		return nil, nil, err
	}
	canBwd, err := parseInt(raw, "st", "can_bwd", args[11])
	if err != nil {
		return nil, nil, err
	}
	imuFail, err := parseInt(raw, "st", "imu_fail", args[12])
	if err != nil {
		return nil, nil, err
	}
	halted, err := parseInt(raw, "st", "halted", args[13])
	if err != nil {
		return nil, nil, err
	}
	ints := []int64{remoteTs, contacts, canFwd, canBwd, imuFail, halted}
	floats := []float64{x, y, yaw, sensor, distance, leftPPS, rightPPS, voltage}
	return ints, floats, nil
}

func parseProxy(raw string, args []string) (Proxy, error) {
	if len(args) != 6 {
		return Proxy{}, malformed("pr", "field_count", raw)
	}
	remoteTs, err := parseInt(raw, "pr", "remote_ts", args[0])
	if err != nil {
		return Proxy{}, err
	}
	relDir, err := parseFloat(raw, "pr", "rel_dir_deg", args[1])
	if err != nil {
		return Proxy{}, err
	}
	distance, err := parseFloat(raw, "pr", "distance_m", args[2])
	if err != nil {
		return Proxy{}, err
	}
	x, err := parseFloat(raw, "pr", "x", args[3])
	if err != nil {
		return Proxy{}, err
	}
	y, err := parseFloat(raw, "pr", "y", args[4])
	if err != nil {
		return Proxy{}, err
	}
	heading, err := parseFloat(raw, "pr", "heading_deg", args[5])
	if err != nil {
		return Proxy{}, err
	}
	return Proxy{RemoteTimestampMs: remoteTs, RelDirDeg: relDir, DistanceM: distance, X: x, Y: y, HeadingDeg: heading}, nil
}

func parseClock(raw string, args []string) (Clock, error) {
	switch len(args) {
	case 1:
		localTs, err := parseInt(raw, "ck", "local_ts", args[0])
		if err != nil {
			return Clock{}, err
		}
		return Clock{LocalTimestampMs: localTs}, nil
	case 3:
		localTs, err := parseInt(raw, "ck", "local_ts", args[0])
		if err != nil {
			return Clock{}, err
		}
		recv, err := parseInt(raw, "ck", "recv_remote", args[1])
		if err != nil {
			return Clock{}, err
		}
		xmit, err := parseInt(raw, "ck", "xmit_remote", args[2])
		if err != nil {
			return Clock{}, err
		}
		return Clock{LocalTimestampMs: localTs, HasRemoteFields: true, ReceiveRemoteTimestamp: recv, TransmitRemoteTimestamp: xmit}, nil
	default:
		return Clock{}, malformed("ck", "field_count", raw)
	}
}

func parseContactSensor(raw string, args []string) (ContactSensor, error) {
	if len(args) != 2 {
		return ContactSensor{}, malformed("cs", "field_count", raw)
	}
	remoteTs, err := parseInt(raw, "cs", "remote_ts", args[0])
	if err != nil {
		return ContactSensor{}, err
	}
	cps, err := parseFloat(raw, "cs", "cps", args[1])
	if err != nil {
		return ContactSensor{}, err
	}
	return ContactSensor{RemoteTimestampMs: remoteTs, CyclesPerSecond: cps}, nil
}

func parseMove(raw string, args []string) (Move, error) {
	if len(args) != 2 {
		return Move{}, malformed("mv", "field_count", raw)
	}
	heading, err := parseFloat(raw, "mv", "heading_deg", args[0])
	if err != nil {
		return Move{}, err
	}
	speed, err := parseFloat(raw, "mv", "speed_pps", args[1])
	if err != nil {
		return Move{}, err
	}
	return Move{HeadingDeg: heading, SpeedPPS: speed}, nil
}

func parseScan(raw string, args []string) (Scan, error) {
	if len(args) != 1 {
		return Scan{}, malformed("sc", "field_count", raw)
	}
	deg, err := parseFloat(raw, "sc", "sensor_deg", args[0])
	if err != nil {
		return Scan{}, err
	}
	return Scan{SensorDeg: deg}, nil
}

func parseStatusRequest(raw string, args []string) (StatusRequest, error) {
	if len(args) != 1 {
		return StatusRequest{}, malformed("sq", "field_count", raw)
	}
	interval, err := parseInt(raw, "sq", "interval_ms", args[0])
	if err != nil {
		return StatusRequest{}, err
	}
	return StatusRequest{IntervalMs: interval}, nil
}

func parseInt(raw, prefix, field, value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, malformedField(prefix, field, raw)
	}
	return n, nil
}

func parseFloat(raw, prefix, field, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, malformedField(prefix, field, raw)
	}
	return f, nil
}

func malformed(prefix, field, raw string) error {
	return bridgeerr.New(bridgeerr.KindMalformedMessage, "wireproto.Parse",
		&bridgeerr.MalformedMessage{Prefix: prefix, Field: field, Raw: raw})
}

func malformedField(prefix, field, raw string) error {
	return malformed(prefix, field, raw)
}

// FormatMove renders an outbound "mv" line.
func FormatMove(headingDeg, speedPPS float64) string {
	return fmt.Sprintf("mv %s %s\n", formatFloat(headingDeg), formatFloat(speedPPS))
}

// FormatScan renders an outbound "sc" line.
func FormatScan(sensorDeg float64) string {
	return fmt.Sprintf("sc %s\n", formatFloat(sensorDeg))
}

// FormatHalt renders the outbound "al" halt line.
func FormatHalt() string {
	return "al\n"
}

// FormatStatusRequest renders an outbound "sq" periodic-status request line.
func FormatStatusRequest(intervalMs int64) string {
	return fmt.Sprintf("sq %d\n", intervalMs)
}

// FormatClockProbe renders an outbound "ck" probe line.
func FormatClockProbe(localTimestampMs int64) string {
	return fmt.Sprintf("ck %d\n", localTimestampMs)
}

// FormatClockEcho renders an outbound "ck" echo line (for test doubles
// acting as the remote vehicle).
func FormatClockEcho(localTimestampMs, receiveRemote, transmitRemote int64) string {
	return fmt.Sprintf("ck %d %d %d\n", localTimestampMs, receiveRemote, transmitRemote)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
