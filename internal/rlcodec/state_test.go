package rlcodec

import (
	"testing"
	"time"

	"wheellybridge/bridge/internal/geometry"
	"wheellybridge/bridge/internal/radar"
	"wheellybridge/bridge/internal/worldmodel"
)

func TestCanMoveStateTable(t *testing.T) {
	//1.- Walk every row of the canMoveStates table.
	cases := []struct {
		fwd, bwd, front bool
		want            int
	}{
		{false, false, false, 0},
		{false, true, false, 1},
		{true, false, false, 2},
		{true, true, false, 3},
		{false, false, true, 4},
		{false, true, true, 5},
	}
	for _, c := range cases {
		if got := CanMoveState(c.fwd, c.bwd, c.front); got != c.want {
			t.Fatalf("CanMoveState(%v,%v,%v) = %d, want %d", c.fwd, c.bwd, c.front, got, c.want)
		}
	}
}

func buildTestModel(t *testing.T) *worldmodel.WorldModel {
	t.Helper()
	spec := worldmodel.WorldModelSpec{
		NumSectors:       8,
		GridSize:         0.2,
		GridWidth:        9,
		GridHeight:       9,
		MaxRadarDistance: 3,
		MinRadarDistance: 0.1,
		MarkerHold:       time.Second,
	}
	asm := worldmodel.NewAssembler(spec, radar.ScannerMapConfig{GridSize: 0.2})
	asm.ObserveMarker("beacon", geometry.Point2D{X: 0.4, Y: 0}, 0)

	status := worldmodel.NewRobotStatus(geometry.Point2D{}, geometry.Identity, geometry.FromDeg(30), 1.0, true, false, true, 0, 0)
	sample := &radar.ProxySample{Timestamp: 0, SensorDir: geometry.Identity, Distance: 0.6, SampleLocation: geometry.Point2D{X: 0.6}}
	return asm.Assemble(status, sample)
}

func TestEncodeStateProducesSensorAndCanMoveAndMap(t *testing.T) {
	model := buildTestModel(t)
	cfg := Config{GridWidth: 9, GridHeight: 9, GridSize: 0.2, MarkerLabels: []string{"beacon"}}

	out := EncodeState(model, cfg)

	if out["sensor"].Data[0] != model.RobotStatus.SensorDirection.ToDeg() {
		t.Fatalf("unexpected sensor tensor: %+v", out["sensor"])
	}
	if int(out["canMoveStates"].Data[0]) != CanMoveState(true, false, true) {
		t.Fatalf("unexpected canMoveStates tensor: %+v", out["canMoveStates"])
	}

	mapTensor := out["map"]
	wantChannels := mapFixedChannelCount + 1
	if mapTensor.Shape[0] != wantChannels || mapTensor.Shape[1] != 9 || mapTensor.Shape[2] != 9 {
		t.Fatalf("unexpected map shape: %+v", mapTensor.Shape)
	}

	plane := 9 * 9
	contactSet := false
	labelSet := false
	for i := 0; i < plane; i++ {
		if mapTensor.Data[mapChannelContact*plane+i] == 1 {
			contactSet = true
		}
		if mapTensor.Data[(mapFixedChannelCount)*plane+i] == 1 {
			labelSet = true
		}
	}
	if !contactSet {
		t.Fatalf("expected the contact channel to carry the scanned obstacle")
	}
	if !labelSet {
		t.Fatalf("expected the beacon label channel to carry the marker")
	}
}
