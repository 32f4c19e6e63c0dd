package gesture

import "math"

// Config tunes how pointer displacement turns into card movement and when
// a release commits.
type Config struct {
	// ActivationThreshold is the |offset| below which no direction is shown.
	ActivationThreshold float64 `mapstructure:"activation_threshold" yaml:"activation_threshold"`

	// CommitDistance is the |offset| a release must exceed to commit.
	CommitDistance float64 `mapstructure:"commit_distance" yaml:"commit_distance"`

	// CommitVelocity is the |velocity| (units per ms) a release must
	// exceed to commit regardless of distance.
	CommitVelocity float64 `mapstructure:"commit_velocity" yaml:"commit_velocity"`

	// SoftBound is where resistance starts; 0 disables damping.
	SoftBound float64 `mapstructure:"soft_bound" yaml:"soft_bound"`

	// Damping scales displacement past SoftBound, in (0, 1].
	Damping float64 `mapstructure:"damping" yaml:"damping"`

	// HardBound is the maximum |offset|; 0 disables clamping.
	HardBound float64 `mapstructure:"hard_bound" yaml:"hard_bound"`

	// RotationFactor is degrees of tilt per unit of offset.
	RotationFactor float64 `mapstructure:"rotation_factor" yaml:"rotation_factor"`

	// MaxRotation caps the tilt in degrees.
	MaxRotation float64 `mapstructure:"max_rotation" yaml:"max_rotation"`
}

// DefaultConfig returns the thresholds used by the card stack.
func DefaultConfig() Config {
	return Config{
		ActivationThreshold: 50,
		CommitDistance:      100,
		CommitVelocity:      0.5,
		SoftBound:           200,
		Damping:             0.5,
		HardBound:           300,
		RotationFactor:      0.1,
		MaxRotation:         15,
	}
}

// normalized fills in thresholds that would otherwise commit every release.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.CommitDistance <= 0 {
		c.CommitDistance = d.CommitDistance
	}
	if c.CommitVelocity <= 0 {
		c.CommitVelocity = d.CommitVelocity
	}
	if c.ActivationThreshold < 0 {
		c.ActivationThreshold = 0
	}
	if c.MaxRotation < 0 {
		c.MaxRotation = -c.MaxRotation
	}
	return c
}

// shape applies damping and the hard bound to a raw displacement.
func (c Config) shape(raw float64) float64 {
	mag := math.Abs(raw)
	if c.SoftBound > 0 && c.Damping > 0 && c.Damping < 1 && mag > c.SoftBound {
		mag = c.SoftBound + (mag-c.SoftBound)*c.Damping
	}
	if c.HardBound > 0 && mag > c.HardBound {
		mag = c.HardBound
	}
	return math.Copysign(mag, raw)
}

// rotation maps an offset to a tilt clamped to ±MaxRotation.
func (c Config) rotation(offset float64) float64 {
	deg := offset * c.RotationFactor
	if c.MaxRotation > 0 {
		deg = math.Max(-c.MaxRotation, math.Min(c.MaxRotation, deg))
	}
	return deg
}

// classify returns the live direction for an offset.
func (c Config) classify(offset float64) Direction {
	switch {
	case math.Abs(offset) < c.ActivationThreshold || offset == 0:
		return None
	case offset > 0:
		return Right
	default:
		return Left
	}
}
