package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds the streaming knobs. The drain timings and buffer distance
// were tuned empirically; treat every field as adjustable configuration.
type Tuning struct {
	TileSize   int `yaml:"tile_size"`
	Resolution int `yaml:"resolution"`

	ActiveRadius   int `yaml:"active_radius"`
	BufferRadius   int `yaml:"buffer_radius"`
	EvictionRadius int `yaml:"eviction_radius"`

	DrainBudgetMs   int `yaml:"drain_budget_ms"`
	DrainCeilingMs  int `yaml:"drain_ceiling_ms"`
	DrainCooldownMs int `yaml:"drain_cooldown_ms"`

	QueueCap      int `yaml:"queue_cap"`
	EnqueueCap    int `yaml:"enqueue_cap"`
	SweepPermille int `yaml:"sweep_permille"`

	ZoneRegionSize int `yaml:"zone_region_size"`

	TickRateHz int `yaml:"tick_rate_hz"`
}

func Defaults() Tuning {
	return Tuning{
		TileSize:        64,
		Resolution:      16,
		ActiveRadius:    2,
		BufferRadius:    5,
		EvictionRadius:  7,
		DrainBudgetMs:   4,
		DrainCeilingMs:  250,
		DrainCooldownMs: 1000,
		QueueCap:        256,
		EnqueueCap:      64,
		SweepPermille:   50,
		ZoneRegionSize:  256,
		TickRateHz:      20,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) DrainBudget() time.Duration   { return time.Duration(t.DrainBudgetMs) * time.Millisecond }
func (t Tuning) DrainCeiling() time.Duration  { return time.Duration(t.DrainCeilingMs) * time.Millisecond }
func (t Tuning) DrainCooldown() time.Duration { return time.Duration(t.DrainCooldownMs) * time.Millisecond }
