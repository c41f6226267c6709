package physics

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidSettings = errors.New("invalid physics settings")

// Settings holds every physical constant used by a Table. A Settings value is
// built once per session and copied into the Table; nothing mutates it afterwards.
type Settings struct {
	FPS              int     `json:"fps" yaml:"fps"`
	TableLength      float64 `json:"table_length" yaml:"table_length"`
	TableWidth       float64 `json:"table_width" yaml:"table_width"`
	HoleFactor       float64 `json:"hole_factor" yaml:"hole_factor"`
	BallRadius       float64 `json:"ball_radius" yaml:"ball_radius"`
	Gravity          float64 `json:"gravity" yaml:"gravity"`
	CueImpactTime    float64 `json:"time_of_cue_impact" yaml:"time_of_cue_impact"`
	MaxCueForce      float64 `json:"max_cue_force" yaml:"max_cue_force"`
	TableRestitution float64 `json:"table_coeff_of_rest" yaml:"table_coeff_of_rest"`
	StaticFriction   float64 `json:"coeff_of_static_friction" yaml:"coeff_of_static_friction"`
	RollingFriction  float64 `json:"coeff_of_rolling_friction" yaml:"coeff_of_rolling_friction"`
	BallMass         float64 `json:"ball_mass" yaml:"ball_mass"`
	AirDensity       float64 `json:"air_density" yaml:"air_density"`
	BallDrag         float64 `json:"ball_coeff_of_drag" yaml:"ball_coeff_of_drag"`
	BallRestitution  float64 `json:"ball_coeff_of_rest" yaml:"ball_coeff_of_rest"`
	LimitingVelocity float64 `json:"limiting_vel" yaml:"limiting_vel"`
	// StartingPlayer breaks the first rack: 1 or 2, or 0 to draw one per
	// session. It does not affect whether a table is competitive.
	StartingPlayer int `json:"starting_player" yaml:"starting_player"`
}

// DefaultSettings returns the standard competitive table.
func DefaultSettings() Settings {
	return Settings{
		FPS:              240,
		TableLength:      2.61,
		TableWidth:       1.31,
		HoleFactor:       1.92,
		BallRadius:       0.0286,
		Gravity:          9.80665,
		CueImpactTime:    0.001,
		MaxCueForce:      1200,
		TableRestitution: 0.6,
		StaticFriction:   0.4,
		RollingFriction:  0.04,
		BallMass:         0.17,
		AirDensity:       1.225,
		BallDrag:         0.45,
		BallRestitution:  0.96,
		LimitingVelocity: 0.005,
	}
}

// Validate rejects settings a Table cannot be built from.
func (s Settings) Validate() error {
	positive := map[string]float64{
		"table_length":       s.TableLength,
		"table_width":        s.TableWidth,
		"hole_factor":        s.HoleFactor,
		"ball_radius":        s.BallRadius,
		"gravity":            s.Gravity,
		"time_of_cue_impact": s.CueImpactTime,
		"max_cue_force":      s.MaxCueForce,
		"ball_mass":          s.BallMass,
	}
	for name, v := range positive {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidSettings, name, v)
		}
	}
	nonNegative := map[string]float64{
		"table_coeff_of_rest":       s.TableRestitution,
		"coeff_of_static_friction":  s.StaticFriction,
		"coeff_of_rolling_friction": s.RollingFriction,
		"air_density":               s.AirDensity,
		"ball_coeff_of_drag":        s.BallDrag,
		"ball_coeff_of_rest":        s.BallRestitution,
		"limiting_vel":              s.LimitingVelocity,
	}
	for name, v := range nonNegative {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidSettings, name, v)
		}
	}
	if s.StartingPlayer < 0 || s.StartingPlayer > 2 {
		return fmt.Errorf("%w: starting_player must be 0, 1 or 2, got %d", ErrInvalidSettings, s.StartingPlayer)
	}
	if s.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive, got %d", ErrInvalidSettings, s.FPS)
	}
	if s.BallRestitution > 1 || s.TableRestitution > 1 {
		return fmt.Errorf("%w: restitution coefficients must not exceed 1", ErrInvalidSettings)
	}
	// five balls across the widest rack row, with clearance from the rails
	if s.BallRadius*11 >= s.TableWidth || s.BallRadius*12 >= s.TableLength/2 {
		return fmt.Errorf("%w: table %.3fx%.3f too small for ball radius %.4f", ErrInvalidSettings, s.TableLength, s.TableWidth, s.BallRadius)
	}
	return nil
}

// Tick is the fixed integration step in seconds.
func (s Settings) Tick() float64 {
	return 1 / float64(s.FPS)
}

// TickDuration is Tick as a wall-clock duration, used to pace live sessions.
func (s Settings) TickDuration() time.Duration {
	return time.Second / time.Duration(s.FPS)
}

func (s Settings) PocketRadius() float64 {
	return s.BallRadius * s.HoleFactor
}

// Competitive reports whether s matches other to three decimal places, the
// tolerance under which a custom table still counts toward rankings.
func (s Settings) Competitive(other Settings) bool {
	a, b := s.fields(), other.fields()
	for i := range a {
		if round3(a[i]) != round3(b[i]) {
			return false
		}
	}
	return true
}

func (s Settings) fields() []float64 {
	return []float64{
		float64(s.FPS), s.TableLength, s.TableWidth, s.HoleFactor, s.BallRadius,
		s.Gravity, s.CueImpactTime, s.MaxCueForce, s.TableRestitution,
		s.StaticFriction, s.RollingFriction, s.BallMass, s.AirDensity,
		s.BallDrag, s.BallRestitution, s.LimitingVelocity,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
