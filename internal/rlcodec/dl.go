package rlcodec

import (
	"math"

	"wheellybridge/bridge/internal/command"
	"wheellybridge/bridge/internal/worldmodel"
)

// DLCodec implements the DL dialect: a factored move action (direction *
// speed) plus an independent sensor scan action.
type DLCodec struct {
	cfg Config
}

// NewDLCodec builds a DL-dialect codec from the given quantisation config.
func NewDLCodec(cfg Config) *DLCodec { return &DLCodec{cfg: cfg} }

func (c *DLCodec) Encode(model *worldmodel.WorldModel) map[string]Tensor {
	return EncodeState(model, c.cfg)
}

func (c *DLCodec) Spec() map[string]SignalSpec {
	spec := Spec(c.cfg)
	spec["move"] = SignalSpec{Shape: []int{1, 1}}
	spec["sensorAction"] = SignalSpec{Shape: []int{1, 1}}
	return spec
}

func (c *DLCodec) Decode(actions map[string]Tensor, history []*worldmodel.WorldModel) []command.Command {
	move := int(math.Round(actions["move"].Data[0]))
	dirIdx := move / c.cfg.NumSpeedValues
	speedIdx := move % c.cfg.NumSpeedValues

	dirDeg := decodeDirectionDeg(dirIdx, c.cfg.NumDirectionValues)
	speed := decodeSpeed(speedIdx, c.cfg.NumSpeedValues, c.cfg.MaxPPS)

	scanDeg := 0.0
	if t, ok := actions["sensorAction"]; ok {
		scanIdx := int(math.Round(t.Data[0]))
		scanDeg = decodeSensorDeg(scanIdx, c.cfg.NumSensorValues)
	}

	return []command.Command{resolveCommand(dirDeg*math.Pi/180, speed, scanDeg)}
}

// EncodeMoveIndex is the reverse encoding used for dataset replay: combine a
// direction and speed in degrees/PPS back into a single move index.
func (c *DLCodec) EncodeMoveIndex(dirDeg, speed float64) int {
	return speedIndex(speed, c.cfg.MaxPPS, c.cfg.NumSpeedValues) + directionIndex(dirDeg, c.cfg.NumDirectionValues)*c.cfg.NumSpeedValues
}

// EncodeSensorIndex is the reverse encoding for the scan direction.
func (c *DLCodec) EncodeSensorIndex(scanDeg float64) int {
	return sensorIndex(scanDeg, c.cfg.NumSensorValues)
}
