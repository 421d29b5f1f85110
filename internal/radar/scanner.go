// Package radar maintains the fuzzy-logic obstacle map built from proximity
// sensor samples and projects it into a polar sector map around the robot.
package radar

import (
	"math"
	"time"

	"wheellybridge/bridge/internal/geometry"
)

// Obstacle is a single tracked obstruction in the world frame.
type Obstacle struct {
	Location   geometry.Point2D
	Timestamp  int64
	Likelihood float64
}

// ScannerMapConfig tunes the fuzzy reinforcement/decay model. Zero-value
// numeric, duration and Now fields fall back to the design defaults;
// MergeContacts stays off unless set.
type ScannerMapConfig struct {
	GridSize               float64
	MaxDistance            float64
	ThresholdDistance      float64
	FuzzyThresholdDistance float64
	MaxSensitivityAngleDeg float64
	NoSensitivityAngleDeg  float64
	ThresholdLikelihood    float64
	HoldDuration           time.Duration
	LikelihoodTau          float64
	MergeContacts          bool
	ContactOffset          float64
	Now                    func() time.Time
}

const (
	defaultMaxDistance            = 3.0
	defaultThresholdDistance      = 0.2
	defaultFuzzyThresholdDistance = 0.01
	defaultMaxSensitivityAngleDeg = 15.0
	defaultNoSensitivityAngleDeg  = 45.0
	defaultThresholdLikelihood    = 1e-2
	defaultHoldDuration           = 60 * time.Second
	defaultContactOffset          = 0.18
)

func (c ScannerMapConfig) withDefaults() ScannerMapConfig {
	if c.GridSize <= 0 {
		c.GridSize = 0.1
	}
	if c.MaxDistance <= 0 {
		c.MaxDistance = defaultMaxDistance
	}
	if c.ThresholdDistance <= 0 {
		c.ThresholdDistance = defaultThresholdDistance
	}
	if c.FuzzyThresholdDistance <= 0 {
		c.FuzzyThresholdDistance = defaultFuzzyThresholdDistance
	}
	if c.MaxSensitivityAngleDeg <= 0 {
		c.MaxSensitivityAngleDeg = defaultMaxSensitivityAngleDeg
	}
	if c.NoSensitivityAngleDeg <= 0 {
		c.NoSensitivityAngleDeg = defaultNoSensitivityAngleDeg
	}
	if c.ThresholdLikelihood <= 0 {
		c.ThresholdLikelihood = defaultThresholdLikelihood
	}
	if c.HoldDuration <= 0 {
		c.HoldDuration = defaultHoldDuration
	}
	if c.LikelihoodTau <= 0 {
		c.LikelihoodTau = c.HoldDuration.Seconds() / 2000
	}
	if c.ContactOffset <= 0 {
		c.ContactOffset = defaultContactOffset
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// ScannerMap is an ordered set of obstacles maintained under the fuzzy
// reinforce/weaken/decay model described in the vehicle control contract.
type ScannerMap struct {
	cfg       ScannerMapConfig
	obstacles []Obstacle
}

// NewScannerMap constructs an empty scanner map.
func NewScannerMap(cfg ScannerMapConfig) *ScannerMap {
	cfg = cfg.withDefaults()
	return &ScannerMap{cfg: cfg}
}

// Obstacles returns the current obstacle list. The returned slice must not be
// mutated by the caller.
func (m *ScannerMap) Obstacles() []Obstacle { return m.obstacles }

// ProxySample is one proximity sensor reading, echo or empty.
type ProxySample struct {
	Timestamp      int64
	SensorDir      geometry.Complex
	Distance       float64
	SampleLocation geometry.Point2D
}

// Process folds a new proximity sample into the map and returns the updated
// map. The receiver is left unmodified; ScannerMap snapshots are immutable.
func (m *ScannerMap) Process(sample ProxySample, robotLocation geometry.Point2D) *ScannerMap {
	cfg := m.cfg
	noSensitivityRad := cfg.NoSensitivityAngleDeg * math.Pi / 180
	maxSensitivityRad := cfg.MaxSensitivityAngleDeg * math.Pi / 180

	var distanceLimit float64
	if sample.Distance > 0 {
		distanceLimit = sample.Distance + cfg.ThresholdDistance
	} else {
		distanceLimit = cfg.MaxDistance
	}

	next := make([]Obstacle, 0, len(m.obstacles)+1)
	occupiedSnap := false
	snapped := sample.SampleLocation.Snap(cfg.GridSize)

	for _, o := range m.obstacles {
		dist := robotLocation.Distance(o.Location)
		direction := geometry.Direction(robotLocation, o.Location)
		relDir := geometry.NormalizeRad(direction.ToRad() - sample.SensorDir.ToRad())

		eligible := math.Abs(relDir) <= noSensitivityRad && dist <= distanceLimit
		if !eligible {
			next = append(next, o)
			if sample.Distance > 0 && o.Location == snapped {
				occupiedSnap = true
			}
			continue
		}

		decayed := o.Likelihood * decayFactor(sample.Timestamp-o.Timestamp, cfg.LikelihoodTau)

		if sample.Distance > 0 {
			isBefore := negative(dist-(sample.Distance-cfg.ThresholdDistance), cfg.FuzzyThresholdDistance)
			isAfter := positive(dist-(sample.Distance+cfg.ThresholdDistance), cfg.FuzzyThresholdDistance)
			isNear := not(or(isBefore, isAfter))
			isOnDirection := between(relDir, -noSensitivityRad, -maxSensitivityRad, maxSensitivityRad, noSensitivityRad)

			reinforce := and(isNear, isOnDirection)
			weakening := and(isBefore, isOnDirection)
			hold := not(or(reinforce, weakening))

			total := reinforce + hold + weakening
			likelihood := o.Likelihood
			if total > 0 {
				likelihood = (1*reinforce + decayed*hold + 0*weakening) / total
			}
			next = append(next, Obstacle{Location: o.Location, Timestamp: sample.Timestamp, Likelihood: likelihood})
			if o.Location == snapped {
				occupiedSnap = true
			}
		} else {
			isOnDirection := between(relDir, -noSensitivityRad, -maxSensitivityRad, maxSensitivityRad, noSensitivityRad)
			weakening := and(isOnDirection, negative(dist-cfg.MaxDistance, cfg.FuzzyThresholdDistance))
			hold := not(weakening)
			total := hold + weakening
			likelihood := decayed
			if total > 0 {
				likelihood = (decayed*hold + 0*weakening) / total
			}
			next = append(next, Obstacle{Location: o.Location, Timestamp: sample.Timestamp, Likelihood: likelihood})
		}
	}

	if sample.Distance > 0 && !occupiedSnap {
		next = append(next, Obstacle{Location: snapped, Timestamp: sample.Timestamp, Likelihood: 1})
	}

	filtered := next[:0:0]
	for _, o := range next {
		if sample.Timestamp-o.Timestamp >= cfg.HoldDuration.Milliseconds() {
			continue
		}
		if o.Likelihood < cfg.ThresholdLikelihood {
			continue
		}
		filtered = append(filtered, o)
	}

	return &ScannerMap{cfg: cfg, obstacles: filtered}
}

// decayFactor returns the exponential decay multiplier for an obstacle aged
// elapsedMs milliseconds, grounded on the teacher's age-based confidence
// curve for last-known radar contacts.
func decayFactor(elapsedMs int64, tau float64) float64 {
	if elapsedMs <= 0 || tau <= 0 {
		return 1
	}
	return math.Exp(-(float64(elapsedMs) * 1e-3) / tau)
}

// contactOffsets are the eight body-relative directions a packed contact
// bitmask encodes, starting at the bow and proceeding counter-clockwise.
var contactOffsets = [8]float64{0, 45, 90, 135, 180, 225, 270, 315}

// MergeContacts folds body-contact bits into the map as full-confidence
// obstacles snapped at a fixed offset from the robot, when MergeContacts is
// enabled in the configuration.
func (m *ScannerMap) MergeContacts(contacts uint8, robotLocation geometry.Point2D, robotDirection geometry.Complex, now int64) *ScannerMap {
	if !m.cfg.MergeContacts || contacts == 0 {
		return m
	}
	next := append([]Obstacle(nil), m.obstacles...)
	for bit := 0; bit < 8; bit++ {
		if contacts&(1<<uint(bit)) == 0 {
			continue
		}
		offsetDir := robotDirection.Add(geometry.FromDeg(contactOffsets[bit]))
		location := geometry.Point2D{
			X: robotLocation.X + offsetDir.Re*m.cfg.ContactOffset,
			Y: robotLocation.Y + offsetDir.Im*m.cfg.ContactOffset,
		}
		snapped := location.Snap(m.cfg.GridSize)
		found := false
		for i, o := range next {
			if o.Location == snapped {
				next[i] = Obstacle{Location: snapped, Timestamp: now, Likelihood: 1}
				found = true
				break
			}
		}
		if !found {
			next = append(next, Obstacle{Location: snapped, Timestamp: now, Likelihood: 1})
		}
	}
	return &ScannerMap{cfg: m.cfg, obstacles: next}
}
