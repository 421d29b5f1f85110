package worldmodel

import (
	"math"
	"testing"
	"time"

	"wheellybridge/bridge/internal/geometry"
	"wheellybridge/bridge/internal/radar"
)

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestNewRobotStatusClampsSensorAndComposesHeading(t *testing.T) {
	//1.- A sensor direction beyond +/-90 degrees must be clamped before composing.
	status := NewRobotStatus(geometry.Point2D{}, geometry.FromDeg(10), geometry.FromDeg(120), 1.0, true, true, false, 0, 100)
	if got := status.SensorDirection.ToDeg(); !approxEqual(got, 90) {
		t.Fatalf("expected sensor direction clamped to 90, got %v", got)
	}
	wantHead := geometry.FromDeg(10).Add(geometry.FromDeg(90)).ToDeg()
	if got := status.HeadAbsDirection.ToDeg(); !approxEqual(got, wantHead) {
		t.Fatalf("expected head direction %v, got %v", wantHead, got)
	}
}

func TestValidateAcceptsConsistentStatus(t *testing.T) {
	//1.- No contacts plus both move directions free is consistent.
	status := NewRobotStatus(geometry.Point2D{}, geometry.Identity, geometry.Identity, 0, true, true, false, 0, 0)
	if err := status.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateRejectsContactFreeBlockedStatus(t *testing.T) {
	//1.- No contact bits set but the vehicle claims it cannot move forward
	// violates the contacts==0 => canMoveForward && canMoveBackward invariant.
	status := NewRobotStatus(geometry.Point2D{}, geometry.Identity, geometry.Identity, 0, false, true, false, 0, 0)
	if err := status.Validate(); err == nil {
		t.Fatalf("expected InconsistentStatus error")
	}
}

func TestAssembleBuildsSnapshotWithObstacleAndMarker(t *testing.T) {
	//1.- Feeding a proxy sample must place an obstacle in both the radar map and grid map.
	spec := WorldModelSpec{
		NumSectors:       8,
		GridSize:         0.2,
		GridWidth:        11,
		GridHeight:       11,
		MaxRadarDistance: 3,
		MinRadarDistance: 0.1,
		MarkerHold:       time.Second,
	}
	asm := NewAssembler(spec, radar.ScannerMapConfig{GridSize: 0.2})
	asm.ObserveMarker("beacon", geometry.Point2D{X: 0.4, Y: 0}, 500)

	status := NewRobotStatus(geometry.Point2D{}, geometry.Identity, geometry.Identity, 1.0, true, true, false, 0, 500)
	sample := &radar.ProxySample{Timestamp: 500, SensorDir: geometry.Identity, Distance: 1.0, SampleLocation: geometry.Point2D{X: 1.0}}

	model := asm.Assemble(status, sample)

	if len(model.RadarMap) != 1 {
		t.Fatalf("expected one obstacle in radar map, got %d", len(model.RadarMap))
	}
	if _, ok := model.Markers["beacon"]; !ok {
		t.Fatalf("expected beacon marker to survive assembly")
	}
	if model.PolarMap == nil || len(model.PolarMap.Sectors) != 8 {
		t.Fatalf("expected 8-sector polar map, got %+v", model.PolarMap)
	}

	foundContact := false
	for _, c := range model.GridMap.Cells {
		if c == CellHasContact {
			foundContact = true
		}
	}
	if !foundContact {
		t.Fatalf("expected grid map to carry the projected obstacle")
	}
}

func TestAssembleExpiresStaleMarkers(t *testing.T) {
	//1.- A marker older than MarkerHold must be dropped on the next assembly.
	spec := WorldModelSpec{NumSectors: 4, GridSize: 0.2, GridWidth: 5, GridHeight: 5, MaxRadarDistance: 3, MarkerHold: 10 * time.Millisecond}
	asm := NewAssembler(spec, radar.ScannerMapConfig{GridSize: 0.2})
	asm.ObserveMarker("stale", geometry.Point2D{}, 0)

	status := NewRobotStatus(geometry.Point2D{}, geometry.Identity, geometry.Identity, 0, true, true, false, 0, 1000)
	model := asm.Assemble(status, nil)

	if _, ok := model.Markers["stale"]; ok {
		t.Fatalf("expected stale marker to be pruned")
	}
}
