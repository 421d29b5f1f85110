package radar

import (
	"math"

	"wheellybridge/bridge/internal/geometry"
)

// SectorState tags what a CircularSector currently knows.
type SectorState int

const (
	// SectorUnknown means no obstacle has been projected into this sector yet.
	SectorUnknown SectorState = iota
	// SectorEmpty means the sector was swept and found clear.
	SectorEmpty
	// SectorHindered means the nearest known obstacle sits at Distance.
	SectorHindered
)

// CircularSector is one angular slice of the polar map.
type CircularSector struct {
	State     SectorState
	Timestamp int64
	Distance  float64
}

// Known reports whether the sector carries any observation at all.
func (s CircularSector) Known() bool { return s.State != SectorUnknown }

// HasObstacle reports whether the sector is hindered by a known obstacle.
func (s CircularSector) HasObstacle() bool { return s.State == SectorHindered }

// PolarMap is a fixed-length ring of sectors around a centre point, indexed
// relative to a reference direction.
type PolarMap struct {
	Centre    geometry.Point2D
	Direction geometry.Complex
	Sectors   []CircularSector
}

// NewPolarMap returns an all-unknown polar map with n sectors.
func NewPolarMap(n int) *PolarMap {
	if n <= 0 {
		n = 1
	}
	return &PolarMap{Sectors: make([]CircularSector, n)}
}

// sectorAngle returns the angular width of each sector for a map of n sectors.
func sectorAngle(n int) float64 { return 2 * math.Pi / float64(n) }

// SectorIndex returns the nearest-centre sector index for a direction
// relative to the map's reference direction, per the data model's
// floor((dirRad/sectorAngle)+0.5) mod N rule.
func SectorIndex(dirRad float64, n int) int {
	width := sectorAngle(n)
	idx := int(math.Floor(dirRad/width + 0.5))
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

// angularDistance returns the absolute wrapped distance between two angles,
// in [0, pi].
func angularDistance(a, b float64) float64 {
	return math.Abs(geometry.NormalizeRad(a - b))
}

// Update projects every obstacle within the open interval (minDistance,
// maxDistance) into a polar map of n sectors, assigning each sector whose
// angular range overlaps an obstacle's angular half-width to the nearest
// known hindrance. Grounded on the teacher's arc-chunk bucketing
// (chunkForPosition/chunkRange), generalised from an entity-visibility index
// to an obstacle-distance projection.
func Update(obstacles []Obstacle, n int, centre geometry.Point2D, direction geometry.Complex, minDistance, maxDistance, gridSize float64, now int64) *PolarMap {
	result := NewPolarMap(n)
	result.Centre = centre
	result.Direction = direction
	width := sectorAngle(n)
	halfWidth := width / 2

	for _, o := range obstacles {
		distance := centre.Distance(o.Location)
		if distance <= minDistance || distance >= maxDistance {
			continue
		}
		cellDir := geometry.NormalizeRad(geometry.Direction(centre, o.Location).ToRad() - direction.ToRad())
		gamma := math.Atan2(gridSize, distance)

		for s := 0; s < n; s++ {
			sectorCentre := geometry.NormalizeRad(float64(s) * width)
			if angularDistance(cellDir, sectorCentre) > gamma+halfWidth {
				continue
			}
			current := result.Sectors[s]
			if current.State == SectorUnknown || (current.State == SectorHindered && distance < current.Distance) {
				result.Sectors[s] = CircularSector{State: SectorHindered, Timestamp: now, Distance: distance}
			} else if current.State == SectorHindered && distance == current.Distance && now > current.Timestamp {
				result.Sectors[s] = CircularSector{State: SectorHindered, Timestamp: now, Distance: distance}
			}
		}
	}

	return result
}
