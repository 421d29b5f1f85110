package rlcodec

import (
	"math"

	"wheellybridge/bridge/internal/geometry"
	"wheellybridge/bridge/internal/worldmodel"
)

// Config carries the quantisation constants shared by both action dialects
// and the state encoder's map tensor geometry.
type Config struct {
	NumDirectionValues int
	NumSpeedValues     int
	NumSensorValues    int
	MaxPPS             float64
	GridWidth          int
	GridHeight         int
	GridSize           float64
	MarkerLabels       []string
}

// CanMoveState returns the {0..5} code for the canMoveStates table.
func CanMoveState(canForward, canBackward, frontSensor bool) int {
	if canForward && canBackward {
		return 3
	}
	if canForward && !canBackward {
		return 2
	}
	if !canBackward {
		if !frontSensor {
			return 0
		}
		return 4
	}
	if !frontSensor {
		return 1
	}
	return 5
}

const (
	mapChannelUnknown = iota
	mapChannelEmpty
	mapChannelContact
	mapChannelEchogenic
	mapFixedChannelCount
)

// EncodeState builds the sensor/canMoveStates/map tensors common to both
// action dialects.
func EncodeState(model *worldmodel.WorldModel, cfg Config) map[string]Tensor {
	out := map[string]Tensor{
		"sensor":        Scalar(model.RobotStatus.SensorDirection.ToDeg()),
		"canMoveStates": Scalar(float64(CanMoveState(model.RobotStatus.CanMoveForward, model.RobotStatus.CanMoveBackward, model.RobotStatus.FrontSensor))),
		"map":           buildMapTensor(model, cfg),
	}
	return out
}

func buildMapTensor(model *worldmodel.WorldModel, cfg Config) Tensor {
	channels := mapFixedChannelCount + len(cfg.MarkerLabels)
	width, height := cfg.GridWidth, cfg.GridHeight
	t := NewTensor([]int{channels, height, width})
	plane := width * height

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			t.Data[mapChannelUnknown*plane+y*width+x] = 1
		}
	}

	centre := model.RobotStatus.Location
	direction := model.RobotStatus.Direction

	setCell := func(channel int, row, col int) {
		if row < 0 || row >= height || col < 0 || col >= width {
			return
		}
		t.Data[channel*plane+row*width+col] = 1
		t.Data[mapChannelUnknown*plane+row*width+col] = 0
	}

	for _, o := range model.RadarMap {
		offset := o.Location.Sub(centre)
		row, col, ok := bodyFrameCell(offset, direction, cfg.GridSize, width, height)
		if !ok {
			continue
		}
		setCell(mapChannelContact, row, col)
	}

	for i, label := range cfg.MarkerLabels {
		marker, ok := model.Markers[label]
		if !ok {
			continue
		}
		offset := marker.Location.Sub(centre)
		rng := math.Hypot(offset.X, offset.Y)
		if rng > model.Spec.MaxRadarDistance {
			continue
		}
		row, col, ok := bodyFrameCell(offset, direction, cfg.GridSize, width, height)
		if !ok {
			continue
		}
		setCell(mapFixedChannelCount+i, row, col)
	}

	return t
}

// bodyFrameCell rotates a world-frame offset into the robot's heading frame
// and snaps it to a (row, col) cell of a grid centred on the robot, matching
// the (channel, y, x) layout the grid map itself uses.
func bodyFrameCell(offset geometry.Point2D, heading geometry.Complex, gridSize float64, width, height int) (row, col int, ok bool) {
	x := offset.X*heading.Re + offset.Y*heading.Im
	y := -offset.X*heading.Im + offset.Y*heading.Re
	col = int(math.Floor(x/gridSize)) + width/2
	row = int(math.Floor(y/gridSize)) + height/2
	if row < 0 || row >= height || col < 0 || col >= width {
		return 0, 0, false
	}
	return row, col, true
}

// Spec describes the tensors EncodeState produces for the given config.
func Spec(cfg Config) map[string]SignalSpec {
	return map[string]SignalSpec{
		"sensor":        {Shape: []int{1, 1}},
		"canMoveStates": {Shape: []int{1, 1}},
		"map":           {Shape: []int{mapFixedChannelCount + len(cfg.MarkerLabels), cfg.GridHeight, cfg.GridWidth}},
	}
}
