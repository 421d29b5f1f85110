// Package worldmodel assembles the robot status, scanner map, polar
// projection, grid map, and marker set into one immutable snapshot per
// inference cycle.
package worldmodel

import (
	"math"
	"time"

	"wheellybridge/bridge/internal/bridgeerr"
	"wheellybridge/bridge/internal/geometry"
	"wheellybridge/bridge/internal/radar"
)

// RobotStatus is the immutable per-cycle vehicle telemetry snapshot.
type RobotStatus struct {
	Location         geometry.Point2D
	Direction        geometry.Complex
	SensorDirection  geometry.Complex
	HeadAbsDirection geometry.Complex
	EchoDistance     float64
	CanMoveForward   bool
	CanMoveBackward  bool
	FrontSensor      bool
	Contacts         uint8
	Timestamp        int64
}

// NewRobotStatus derives HeadAbsDirection from Direction and SensorDirection,
// clamping the sensor direction to +/-90 degrees per the wire contract.
func NewRobotStatus(location geometry.Point2D, direction, sensorDirection geometry.Complex, echoDistance float64, canForward, canBackward, frontSensor bool, contacts uint8, timestamp int64) RobotStatus {
	clamped := sensorDirection.Clamp(90)
	return RobotStatus{
		Location:         location,
		Direction:        direction,
		SensorDirection:  clamped,
		HeadAbsDirection: direction.Add(clamped),
		EchoDistance:     echoDistance,
		CanMoveForward:   canForward,
		CanMoveBackward:  canBackward,
		FrontSensor:      frontSensor,
		Contacts:         contacts,
		Timestamp:        timestamp,
	}
}

// Validate checks the status invariant: no contact bit set implies the
// vehicle reports itself free to move both forward and backward. A
// violation surfaces as an InconsistentStatus error; callers should log it
// and retain the last valid status rather than treat it as fatal.
func (s RobotStatus) Validate() error {
	if s.Contacts == 0 && !(s.CanMoveForward && s.CanMoveBackward) {
		return bridgeerr.New(bridgeerr.KindInconsistentStatus, "worldmodel.Validate", nil)
	}
	return nil
}

// MapCell tags the contents of one grid map cell.
type MapCell int

const (
	CellEmpty MapCell = iota
	CellHasContact
	CellEchogenic
	CellAnechoic
	CellLabeled
)

// GridMap is a rectangular array of cells centred on and heading-aligned with
// the robot.
type GridMap struct {
	Width     int
	Height    int
	GridSize  float64
	Centre    geometry.Point2D
	Direction geometry.Complex
	Cells     []MapCell
}

// At returns the cell at (row, col), or CellEmpty if out of bounds.
func (g GridMap) At(row, col int) MapCell {
	if row < 0 || row >= g.Height || col < 0 || col >= g.Width {
		return CellEmpty
	}
	return g.Cells[row*g.Width+col]
}

// toBodyFrame rotates a world-frame offset into the robot's heading frame.
func toBodyFrame(offset geometry.Point2D, heading geometry.Complex) (x, y float64) {
	x = offset.X*heading.Re + offset.Y*heading.Im
	y = -offset.X*heading.Im + offset.Y*heading.Re
	return x, y
}

// cellIndex maps a body-frame offset to a (row, col) pair centred on the grid.
func cellIndex(x, y, gridSize float64, width, height int) (row, col int, ok bool) {
	col = int(math.Floor(x/gridSize)) + width/2
	row = int(math.Floor(y/gridSize)) + height/2
	if row < 0 || row >= height || col < 0 || col >= width {
		return 0, 0, false
	}
	return row, col, true
}

// buildGridMap projects the obstacle list into a heading-aligned grid
// centred on the robot.
func buildGridMap(obstacles []radar.Obstacle, centre geometry.Point2D, direction geometry.Complex, gridSize float64, width, height int) GridMap {
	grid := GridMap{Width: width, Height: height, GridSize: gridSize, Centre: centre, Direction: direction, Cells: make([]MapCell, width*height)}
	for _, o := range obstacles {
		offset := o.Location.Sub(centre)
		x, y := toBodyFrame(offset, direction)
		row, col, ok := cellIndex(x, y, gridSize, width, height)
		if !ok {
			continue
		}
		grid.Cells[row*grid.Width+col] = CellHasContact
	}
	return grid
}

// LabelMarker is one labelled landmark observation.
type LabelMarker struct {
	Location  geometry.Point2D
	Timestamp int64
}

// WorldModelSpec carries the configuration-time constants a WorldModel is
// built against.
type WorldModelSpec struct {
	NumSectors       int
	GridSize         float64
	GridWidth        int
	GridHeight       int
	MaxRadarDistance float64
	MinRadarDistance float64
	MarkerLabels     []string
	MarkerHold       time.Duration
}

// WorldModel is one immutable assembled snapshot.
type WorldModel struct {
	RobotStatus RobotStatus
	RadarMap    []radar.Obstacle
	PolarMap    *radar.PolarMap
	GridMap     GridMap
	Markers     map[string]LabelMarker
	Spec        WorldModelSpec
}

// Assembler owns the scanner map and marker retention state across cycles,
// producing a fresh WorldModel each time Assemble is called.
type Assembler struct {
	spec       WorldModelSpec
	scannerMap *radar.ScannerMap
	markers    map[string]LabelMarker
	now        func() time.Time
}

// NewAssembler constructs an Assembler with an empty scanner map and no
// markers.
func NewAssembler(spec WorldModelSpec, scannerCfg radar.ScannerMapConfig) *Assembler {
	if spec.GridWidth <= 0 {
		spec.GridWidth = 15
	}
	if spec.GridHeight <= 0 {
		spec.GridHeight = 15
	}
	return &Assembler{
		spec:       spec,
		scannerMap: radar.NewScannerMap(scannerCfg),
		markers:    make(map[string]LabelMarker),
		now:        time.Now,
	}
}

// ObserveMarker records or refreshes a labelled landmark sighting.
func (a *Assembler) ObserveMarker(label string, location geometry.Point2D, timestamp int64) {
	a.markers[label] = LabelMarker{Location: location, Timestamp: timestamp}
}

// Assemble folds an optional proximity sample into the scanner map, projects
// it through the polar map, builds the grid map, prunes expired markers, and
// freezes the result into an immutable WorldModel.
func (a *Assembler) Assemble(status RobotStatus, sample *radar.ProxySample) *WorldModel {
	if sample != nil {
		a.scannerMap = a.scannerMap.Process(*sample, status.Location)
	}
	a.scannerMap = a.scannerMap.MergeContacts(status.Contacts, status.Location, status.Direction, status.Timestamp)

	obstacles := a.scannerMap.Obstacles()
	polar := radar.Update(obstacles, a.spec.NumSectors, status.Location, status.Direction, a.spec.MinRadarDistance, a.spec.MaxRadarDistance, a.spec.GridSize, status.Timestamp)
	grid := buildGridMap(obstacles, status.Location, status.Direction, a.spec.GridSize, a.spec.GridWidth, a.spec.GridHeight)

	markers := make(map[string]LabelMarker, len(a.markers))
	for label, marker := range a.markers {
		if a.spec.MarkerHold > 0 && status.Timestamp-marker.Timestamp > a.spec.MarkerHold.Milliseconds() {
			delete(a.markers, label)
			continue
		}
		markers[label] = marker

		offset := marker.Location.Sub(status.Location)
		x, y := toBodyFrame(offset, status.Direction)
		if row, col, ok := cellIndex(x, y, a.spec.GridSize, a.spec.GridWidth, a.spec.GridHeight); ok {
			if grid.At(row, col) == CellEmpty {
				grid.Cells[row*grid.Width+col] = CellLabeled
			}
		}
	}

	return &WorldModel{
		RobotStatus: status,
		RadarMap:    obstacles,
		PolarMap:    polar,
		GridMap:     grid,
		Markers:     markers,
		Spec:        a.spec,
	}
}
