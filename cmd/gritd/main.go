package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gritengine/gritd/internal/class"
	"github.com/gritengine/gritd/internal/config"
	coresys "github.com/gritengine/gritd/internal/core/system"
	"github.com/gritengine/gritd/internal/data"
	"github.com/gritengine/gritd/internal/demand"
	"github.com/gritengine/gritd/internal/object"
	"github.com/gritengine/gritd/internal/persist"
	"github.com/gritengine/gritd/internal/scripting"
	"github.com/gritengine/gritd/internal/streamer"
	"github.com/gritengine/gritd/internal/system"
	"github.com/gritengine/gritd/internal/world"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var profileMode = flag.String("profile", "", "write a profile to the working directory: cpu, mem or block")

func main() {
	flag.Parse()
	p := startProfile(*profileMode)
	err := run()
	if p != nil {
		p.Stop()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func startProfile(mode string) interface{ Stop() } {
	opts := []func(*profile.Profile){profile.ProfilePath("."), profile.NoShutdownHook}
	switch mode {
	case "":
		return nil
	case "cpu":
		opts = append(opts, profile.CPUProfile)
	case "mem":
		opts = append(opts, profile.MemProfile)
	case "block":
		opts = append(opts, profile.BlockProfile)
	default:
		fmt.Fprintf(os.Stderr, "unknown profile mode %q, profiling disabled\n", mode)
		return nil
	}
	return profile.Start(opts...)
}

func run() error {
	// 1. Load config
	cfgPath := "config/gritd.toml"
	if p := os.Getenv("GRITD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Optional placement store
	var placements *persist.PlacementRepo
	if cfg.Database.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := persist.Open(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("placement store: %w", err)
		}
		defer store.Close()
		placements = persist.NewPlacementRepo(store)
	}

	// 4. Scripting, classes, objects, streaming
	engine := scripting.NewEngine(log)
	defer engine.Close()

	classes := class.NewTable(log)
	classes.Register(engine.State())
	cache := demand.NewCache(cfg.Assets.Dir, cfg.Assets.LoadParallelism, log)
	reg := object.NewRegistry(engine, classes, cache, log)
	str := streamer.New(reg, cfg.Streamer, log)
	start := cfg.World.PlayerStart
	str.SetCentre(object.Vec3{X: start[0], Y: start[1], Z: start[2]})

	if err := engine.LoadScripts(cfg.Scripts.Dir); err != nil {
		return fmt.Errorf("scripts: %w", err)
	}
	log.Info("scripts loaded", zap.Int("classes", classes.Count()), zap.Int("objects", reg.Count()))

	// 5. Populate the world
	ps, err := loadPlacements(placements, cfg.World.Placements, log)
	if err != nil {
		return fmt.Errorf("placements: %w", err)
	}
	n := world.Spawn(reg, ps, log)
	log.Info("world spawned", zap.Int("placements", len(ps)), zap.Int("objects", n))

	// 6. Create systems and register with runner
	runner := coresys.NewRunner(cfg.Loop.TickRate, log)
	runner.Register(system.NewStepSystem(reg, cfg.Loop.StepSize, cfg.Loop.MaxStepsPerTick, log))
	runner.Register(system.NewStreamSystem(str, log))
	runner.Register(system.NewFrameSystem(reg))

	// 7. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Loop.TickRate)
	defer ticker.Stop()
	log.Info("game loop started", zap.Duration("tick", cfg.Loop.TickRate))

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			runner.Tick(now.Sub(last))
			last = now
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			if placements != nil && cfg.Database.SaveOnExit {
				savePlacements(placements, reg, log)
			}
			reg.DeleteAll()
			log.Info("stopped", zap.Int("classes", classes.Count()), zap.Int("resident_resources", cache.Len()))
			return nil
		}
	}
}

// loadPlacements prefers the database; an empty store is seeded from the
// YAML file.
func loadPlacements(repo *persist.PlacementRepo, path string, log *zap.Logger) ([]data.Placement, error) {
	if repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		ps, err := repo.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		if len(ps) > 0 {
			return ps, nil
		}
		log.Info("placement store empty, seeding from file", zap.String("path", path))
	}

	tbl, err := data.LoadPlacementTable(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("no placement file, starting with an empty world", zap.String("path", path))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := repo.ReplaceAll(ctx, tbl.All()); err != nil {
			return nil, fmt.Errorf("seed placement store: %w", err)
		}
	}
	return tbl.All(), nil
}

func savePlacements(repo *persist.PlacementRepo, reg *object.Registry, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	snap := world.Snapshot(reg)
	if err := repo.ReplaceAll(ctx, snap); err != nil {
		log.Error("saving placements failed", zap.Error(err))
		return
	}
	log.Info("placements saved", zap.Int("count", len(snap)))
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
