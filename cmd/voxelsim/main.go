package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"
	"go.uber.org/zap"

	"voxel-colony/internal/config"
	"voxel-colony/internal/fluid"
	"voxel-colony/internal/lifecycle"
	"voxel-colony/internal/meshing"
	"voxel-colony/internal/overworld"
	"voxel-colony/internal/persistence"
	"voxel-colony/internal/physics"
	"voxel-colony/internal/profiling"
	"voxel-colony/internal/registry"
	"voxel-colony/internal/world"
	"voxel-colony/internal/worldgen"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML settings file (defaults when empty)")
		loadPath   = flag.String("load", "", "restore this snapshot instead of generating")
		loadDB     = flag.String("load-db", "", "restore a save from this chunk database instead of generating")
		saveID     = flag.String("save-id", "", "save to restore with -load-db (newest when empty)")
		ticks      = flag.Int("ticks", 200, "number of simulation frames to run")
		frame      = flag.Duration("frame", 50*time.Millisecond, "frame length")
		digEvery   = flag.Int("dig", 0, "dig one voxel below the camera every N frames (0 disables)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if *verbose {
		zcfg.Level.SetLevel(zap.DebugLevel)
	}
	log, err := zcfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	closer.Bind(func() { _ = log.Sync() })

	defer closer.Close()
	src := source{snapshot: *loadPath, db: *loadDB, saveID: *saveID}
	if err := run(log, *configPath, src, *ticks, *digEvery, *frame); err != nil {
		log.Error("voxelsim failed", zap.Error(err))
		closer.Exit(1)
	}
}

// source names where the starting world comes from. With neither path set
// the world is generated.
type source struct {
	snapshot string
	db       string
	saveID   string
}

func run(log *zap.Logger, configPath string, src source, ticks, digEvery int, frame time.Duration) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	types := registry.Default()
	if cfg.World.VoxelTypes != "" {
		var err error
		if types, err = registry.LoadLibraryFile(cfg.World.VoxelTypes); err != nil {
			return err
		}
	}
	field, err := overworldField(cfg)
	if err != nil {
		return err
	}

	w := world.New(types, cfg.Bounds(), log.Named("world"))
	gen, err := worldgen.New(cfg.WorldgenSettings(), types, overworld.DefaultBiomes(), field, log.Named("worldgen"))
	if err != nil {
		return err
	}
	sim, err := fluid.New(w, cfg.FluidSettings(), uint64(cfg.World.Seed), log.Named("fluid"))
	if err != nil {
		return err
	}
	dispatcher := fluid.NewDispatcher(logEffects{log}, fluid.NewSoundLimiter(cfg.Fluid.SoundRetrigger), log.Named("effects"))
	mgr, err := lifecycle.New(w, gen, sim, meshing.Builder{}, cfg.LifecycleSettings(),
		lifecycle.WithSpawner(logSpawner{log}),
		lifecycle.WithDispatcher(dispatcher),
		lifecycle.WithLogger(log.Named("lifecycle")))
	if err != nil {
		return err
	}
	closer.Bind(mgr.Shutdown)

	switch {
	case src.snapshot != "":
		snap, err := persistence.ReadSnapshot(src.snapshot)
		if err != nil {
			return err
		}
		n, err := persistence.Restore(w, snap)
		if err != nil {
			return err
		}
		log.Info("save restored", zap.String("save", snap.Header.SaveID), zap.Int("chunks", n))
	case src.db != "":
		if err := loadFromDB(log, w, src); err != nil {
			return err
		}
	default:
		if err := generate(log, mgr, cfg); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	closer.Bind(cancel)
	mgr.Start(ctx)

	b := cfg.Bounds()
	camera := mgl32.Vec3{
		float32((b.Max.X + 1) * world.ChunkSizeX / 2),
		float32((b.Max.Y + 1) * world.ChunkSizeY),
		float32((b.Max.Z + 1) * world.ChunkSizeZ / 2),
	}
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	for i := range ticks {
		profiling.ResetFrame()
		<-ticker.C
		if digEvery > 0 && i%digEvery == 0 {
			dig(log, mgr, camera)
		}
		mgr.Update(frame, camera)
	}
	mgr.Shutdown()
	log.Info("simulation finished", zap.String("stats", fmt.Sprintf("%+v", mgr.Stats())))
	log.Debug("profile", zap.String("top", profiling.TopN(10)))

	return save(log, w, cfg)
}

// dig removes the first solid voxel straight below the camera, standing in
// for a colonist mining order.
func dig(log *zap.Logger, mgr *lifecycle.Manager, camera mgl32.Vec3) {
	mgr.Mutate(func(w *world.World) {
		ground, ok := physics.GroundLevel(w, int32(camera.X()), int32(camera.Z()))
		if !ok {
			return
		}
		hit, ok := physics.Raycast(w, camera, mgl32.Vec3{0, -1, 0}, 0, camera.Y()+1)
		if !ok || hit.Voxel != ground {
			return
		}
		log.Debug("dig", zap.String("type", hit.Voxel.Type().Name), zap.Any("at", hit.Voxel.Coord), zap.Float32("distance", hit.Distance))
		hit.Voxel.SetType(w.Types().Empty())
	})
}

func overworldField(cfg config.Settings) (overworld.Field, error) {
	if cfg.World.OverworldImage == "" {
		return overworld.NewNoiseField(cfg.World.Seed, cfg.Generation.SeaLevel), nil
	}
	f, err := os.Open(cfg.World.OverworldImage)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode overworld %s: %w", cfg.World.OverworldImage, err)
	}
	// One map cell per WorldToMapRatio voxels across the whole world.
	ratio := cfg.Generation.WorldToMapRatio
	width := int(float32(cfg.World.SizeX*world.ChunkSizeX)/ratio) + 1
	height := int(float32(cfg.World.SizeZ*world.ChunkSizeZ)/ratio) + 1
	return overworld.NewImageField(width, height, img, nil, nil)
}

func generate(log *zap.Logger, mgr *lifecycle.Manager, cfg config.Settings) error {
	b := cfg.Bounds()
	var coords []world.GlobalChunkCoordinate
	for x := b.Min.X; x <= b.Max.X; x++ {
		for y := b.Min.Y; y <= b.Max.Y; y++ {
			for z := b.Min.Z; z <= b.Max.Z; z++ {
				coords = append(coords, world.GlobalChunkCoordinate{X: x, Y: y, Z: z})
			}
		}
	}
	start := time.Now()
	if err := mgr.GenerateNow(coords...); err != nil {
		return err
	}
	ores := mgr.SeedOres(uint64(cfg.World.Seed))
	log.Info("world generated", zap.Int("chunks", len(coords)), zap.Int("oreVoxels", ores), zap.Duration("took", time.Since(start)))
	return nil
}

func loadFromDB(log *zap.Logger, w *world.World, src source) error {
	db, err := persistence.OpenChunkDB(src.db, log.Named("chunkdb"))
	if err != nil {
		return err
	}
	defer db.Close()
	seed, n, err := db.LoadWorld(context.Background(), src.saveID, w)
	if err != nil {
		return err
	}
	log.Info("save restored", zap.String("db", src.db), zap.String("save", src.saveID), zap.Int64("seed", seed), zap.Int("chunks", n))
	return nil
}

func save(log *zap.Logger, w *world.World, cfg config.Settings) error {
	snap := persistence.NewSnapshot(w, cfg.World.Seed)
	if path := cfg.Storage.SnapshotPath; path != "" {
		if err := persistence.WriteSnapshot(path, snap); err != nil {
			return err
		}
		log.Info("snapshot written", zap.String("path", path), zap.String("save", snap.Header.SaveID))
	}
	if path := cfg.Storage.ChunkDBPath; path != "" {
		db, err := persistence.OpenChunkDB(path, log.Named("chunkdb"))
		if err != nil {
			return err
		}
		defer db.Close()
		ctx := context.Background()
		if err := db.CreateSave(ctx, snap.Header.SaveID, cfg.World.Seed); err != nil {
			return err
		}
		n, err := db.PutWorld(ctx, snap.Header.SaveID, w)
		if err != nil {
			return err
		}
		log.Info("chunk db updated", zap.String("path", path), zap.Int("chunks", n))
	}
	return nil
}

// logSpawner stands in for the entity system.
type logSpawner struct{ log *zap.Logger }

func (s logSpawner) Spawn(req worldgen.SpawnRequest) error {
	s.log.Debug("spawn", zap.String("template", req.Template), zap.Any("kind", req.Kind), zap.Any("pos", req.Position))
	return nil
}

// logEffects stands in for the particle and sound systems.
type logEffects struct{ log *zap.Logger }

func (e logEffects) Trigger(effect string, pos mgl32.Vec3, _ mgl32.Vec4, count int) {
	e.log.Debug("effect", zap.String("name", effect), zap.Any("pos", pos), zap.Int("particles", count))
}

func (e logEffects) PlaySound(sound string, pos mgl32.Vec3) {
	e.log.Debug("sound", zap.String("name", sound), zap.Any("pos", pos))
}
