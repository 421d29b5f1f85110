package rlcodec

import (
	"math"

	"wheellybridge/bridge/internal/command"
	"wheellybridge/bridge/internal/worldmodel"
)

// RLCodec implements the RL dialect: a single move axis that folds a halt
// token in at its midpoint, alongside the same state encoding as the DL
// dialect.
type RLCodec struct {
	cfg Config
}

// NewRLCodec builds an RL-dialect codec from the given quantisation config.
func NewRLCodec(cfg Config) *RLCodec { return &RLCodec{cfg: cfg} }

func (c *RLCodec) moveAxisSize() int {
	return c.cfg.NumDirectionValues*c.cfg.NumSpeedValues + 1
}

func (c *RLCodec) haltToken() int {
	return (c.cfg.NumSpeedValues * (c.cfg.NumDirectionValues + 1)) / 2
}

func (c *RLCodec) Encode(model *worldmodel.WorldModel) map[string]Tensor {
	return EncodeState(model, c.cfg)
}

func (c *RLCodec) Spec() map[string]SignalSpec {
	spec := Spec(c.cfg)
	spec["move"] = SignalSpec{Shape: []int{1, 1}}
	spec["sensorAction"] = SignalSpec{Shape: []int{1, 1}}
	return spec
}

func (c *RLCodec) Decode(actions map[string]Tensor, history []*worldmodel.WorldModel) []command.Command {
	move := int(math.Round(actions["move"].Data[0]))
	halt := c.haltToken()

	scanDeg := 0.0
	if t, ok := actions["sensorAction"]; ok {
		scanIdx := int(math.Round(t.Data[0]))
		scanDeg = decodeSensorDeg(scanIdx, c.cfg.NumSensorValues)
	}

	if move == halt {
		return []command.Command{command.HaltCommand()}
	}

	// The halt token occupies one slot at the midpoint, shifting every move
	// combination above it up by one index.
	if move > halt {
		move--
	}
	dirIdx := move / c.cfg.NumSpeedValues
	speedIdx := move % c.cfg.NumSpeedValues

	dirDeg := decodeDirectionDeg(dirIdx, c.cfg.NumDirectionValues)
	speed := decodeSpeed(speedIdx, c.cfg.NumSpeedValues, c.cfg.MaxPPS)

	return []command.Command{resolveCommand(dirDeg*math.Pi/180, speed, scanDeg)}
}
