package rlcodec

import (
	"math"

	"wheellybridge/bridge/internal/command"
	"wheellybridge/bridge/internal/geometry"
	"wheellybridge/bridge/internal/worldmodel"
)

// Codec turns a world model into agent-facing tensors and turns the agent's
// action tensors back into a vehicle command.
type Codec interface {
	Encode(model *worldmodel.WorldModel) map[string]Tensor
	Decode(actions map[string]Tensor, history []*worldmodel.WorldModel) []command.Command
	Spec() map[string]SignalSpec
}

// haltHeadingSin is the sine of the one-degree heading tolerance below which
// a zero-speed decode resolves to a halt regardless of decoded direction.
var haltHeadingSin = math.Sin(1 * math.Pi / 180)

// resolveCommand applies the shared halt rule: zero speed with a heading
// within one degree of the robot's own (grid-relative zero) heading halts
// regardless of what the codec decoded. Decoded directions are already
// expressed relative to the robot's own heading because the grid map is
// heading-aligned, so "close to current heading" reduces to "close to zero"
// with no need to consult the history of prior models.
func resolveCommand(dirRad, speed float64, scanDeg float64) command.Command {
	if speed == 0 && math.Cos(dirRad) > 0 && math.Abs(math.Sin(dirRad)) <= haltHeadingSin {
		return command.HaltCommand()
	}
	return command.Move(geometry.FromRad(dirRad), speed, geometry.FromDeg(scanDeg))
}
