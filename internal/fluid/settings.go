package fluid

import (
	"errors"
	"fmt"
	"time"

	"voxel-colony/internal/registry"
)

// Settings tune the fluid simulation.
type Settings struct {
	TickInterval time.Duration

	// Cells holding less than EvaporationThreshold lose one unit with
	// EvaporationChance per visit.
	EvaporationThreshold uint8
	EvaporationChance    float64

	WaterSpreadRate float64
	LavaSpreadMin   float64
	LavaSpreadMax   float64

	// ReactionType is what water meeting lava, and lava drying up, turn
	// into.
	ReactionType string

	SoundRetrigger time.Duration
}

// DefaultSettings returns the standard tuning.
func DefaultSettings() Settings {
	return Settings{
		TickInterval:         100 * time.Millisecond,
		EvaporationThreshold: 2,
		EvaporationChance:    0.01,
		WaterSpreadRate:      0.5,
		LavaSpreadMin:        0.1,
		LavaSpreadMax:        0.3,
		ReactionType:         registry.StoneName,
		SoundRetrigger:       250 * time.Millisecond,
	}
}

var ErrInvalidSettings = errors.New("invalid fluid settings")

func (s Settings) Validate() error {
	switch {
	case s.TickInterval <= 0:
		return fmt.Errorf("tick interval %v: %w", s.TickInterval, ErrInvalidSettings)
	case s.EvaporationChance < 0 || s.EvaporationChance > 1:
		return fmt.Errorf("evaporation chance %v: %w", s.EvaporationChance, ErrInvalidSettings)
	case s.WaterSpreadRate < 0 || s.WaterSpreadRate > 1:
		return fmt.Errorf("water spread rate %v: %w", s.WaterSpreadRate, ErrInvalidSettings)
	case s.LavaSpreadMin < 0 || s.LavaSpreadMax > 1 || s.LavaSpreadMin > s.LavaSpreadMax:
		return fmt.Errorf("lava spread range [%v,%v]: %w", s.LavaSpreadMin, s.LavaSpreadMax, ErrInvalidSettings)
	}
	return nil
}
