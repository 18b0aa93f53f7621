package tuning

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"debrisfx/internal/sim/event"
	"debrisfx/internal/sim/filter"
	"debrisfx/internal/sim/instance"
	"debrisfx/internal/sim/order"
	"debrisfx/internal/sim/spatialhash"
	"debrisfx/internal/sim/spawn"
)

func (p Pair) Range() filter.Range { return filter.Range{Min: p[0], Max: p[1]} }

func (v Vec3) Vec() mgl32.Vec3 { return mgl32.Vec3(v) }

// Config converts the instance entry into the runtime instance config. TickRateHz is
// left for the caller to fill from the file's tick_hz.
func (s InstanceSpec) Config() (instance.Config, error) {
	cfg := instance.DefaultConfig()
	cfg.Name = s.Name
	cfg.DataProcessFrequency = s.DataProcessFrequency
	cfg.MaxSpawnPerTick = s.MaxSpawnPerTick
	cfg.DoSpawn = s.DoSpawn
	cfg.ExtendedLookup = s.ExtendedLookup

	var err error
	if cfg.Kind, err = event.ParseKind(s.EventKind); err != nil {
		return cfg, err
	}
	if cfg.Sort, err = order.ParseKey(s.Sort); err != nil {
		return cfg, err
	}
	if cfg.Filter, err = s.Filter.config(); err != nil {
		return cfg, err
	}
	cfg.SpatialHash = spatialhash.Config{
		Enabled:          s.SpatialHash.Enabled,
		VolumeMin:        s.SpatialHash.VolumeMin.Vec(),
		VolumeMax:        s.SpatialHash.VolumeMax.Vec(),
		CellSize:         s.SpatialHash.CellSize.Vec(),
		MaxEventsPerCell: s.SpatialHash.MaxEventsPerCell,
	}
	if cfg.Spawn, err = s.Spawn.config(); err != nil {
		return cfg, err
	}
	if cfg.Spawn.DebugColor, err = spawn.ParseDebugColor(s.DebugColor); err != nil {
		return cfg, err
	}
	cfg.Spawn.FetchMaterials = cfg.Spawn.FetchMaterials || s.ExtendedLookup
	return cfg, nil
}

func (f FilterSpec) config() (filter.Config, error) {
	c := filter.Config{
		Impulse:     f.Impulse.Range(),
		Speed:       f.Speed.Range(),
		Mass:        f.Mass.Range(),
		ExtentMin:   f.ExtentMin.Range(),
		ExtentMax:   f.ExtentMax.Range(),
		Volume:      f.Volume.Range(),
		SolverTime:  f.SolverTime.Range(),
		SurfaceType: f.SurfaceType,
		Materials:   append([]string(nil), f.Materials...),
	}
	mode, err := filter.ParseLocationMode(f.Location.Mode)
	if err != nil {
		return c, err
	}
	c.Location.Mode = mode
	for a, name := range f.Location.Axes {
		if c.Location.Axes[a], err = filter.ParseAxisMode(name); err != nil {
			return c, fmt.Errorf("location axis %d: %w", a, err)
		}
	}
	c.Location.Min = f.Location.Min.Vec()
	c.Location.Max = f.Location.Max.Vec()
	return c, nil
}

func (s SpawnSpec) config() (spawn.Config, error) {
	model, err := spawn.ParseVelocityModel(s.VelocityModel)
	if err != nil {
		return spawn.Config{}, err
	}
	return spawn.Config{
		CountMin:                    s.Multiplier[0],
		CountMax:                    s.Multiplier[1],
		Chance:                      s.Chance,
		PositionMagnitudeMin:        s.PositionMagnitude[0],
		PositionMagnitudeMax:        s.PositionMagnitude[1],
		VelocityOffsetMin:           s.VelocityOffsetMin.Vec(),
		VelocityOffsetMax:           s.VelocityOffsetMax.Vec(),
		Model:                       model,
		VelocityMagnitudeMin:        s.VelocityMagnitude[0],
		VelocityMagnitudeMax:        s.VelocityMagnitude[1],
		SpreadAngleMax:              s.SpreadAngleMax,
		InheritedVelocityMultiplier: s.InheritedVelocityMultiplier,
		FinalVelocityMin:            s.FinalVelocity[0],
		FinalVelocityMax:            s.FinalVelocity[1],
		MaxLatency:                  s.MaxLatency,
		BurstChance:                 s.BurstChance,
		BurstMultiplier:             s.BurstMultiplier,
		FetchMaterials:              s.FetchMaterials,
	}, nil
}

// InstanceConfigs converts every instance, applying the file's tick rate.
func (t Tuning) InstanceConfigs() ([]instance.Config, error) {
	out := make([]instance.Config, 0, len(t.Instances))
	for _, s := range t.Instances {
		cfg, err := s.Config()
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", s.Name, err)
		}
		cfg.TickRateHz = t.TickHz
		out = append(out, cfg)
	}
	return out, nil
}
