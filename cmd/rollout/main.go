// Command rollout runs random-policy episodes of the reach task on the
// in-memory reference engine and optionally archives them to the episode
// store for offline analysis.
//
// Usage:
//
//	rollout -episodes 20 -max-steps 100 -db episodes.db
//	rollout -config config/env.defaults.json -obs-mode rgbd -v
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/arenaworks/simarena/internal/config"
	"github.com/arenaworks/simarena/internal/sim"
	"github.com/arenaworks/simarena/internal/sim/demotask"
	"github.com/arenaworks/simarena/internal/sim/engine"
	"github.com/arenaworks/simarena/internal/sim/engine/enginetest"
	"github.com/arenaworks/simarena/internal/sim/obs"
	"github.com/arenaworks/simarena/internal/sim/record"
	"github.com/arenaworks/simarena/internal/version"
)

func main() {
	var (
		showVersion   = flag.Bool("version", false, "print version and exit")
		configPath    = flag.String("config", "", "optional JSON config file (see config/env.defaults.json)")
		episodes      = flag.Int("episodes", 0, "number of episodes to run (overrides config)")
		maxSteps      = flag.Int("max-steps", 0, "step cap per episode (overrides config)")
		seed          = flag.Int64("seed", 0, "main RNG seed (overrides config)")
		obsMode       = flag.String("obs-mode", "", "observation mode (overrides config)")
		rewardMode    = flag.String("reward-mode", "", "reward mode: sparse or dense (overrides config)")
		backendName   = flag.String("backend", "raster", "renderer backend: raster or raytrace")
		dbPath        = flag.String("db", "", "episode store path; empty disables recording (overrides config)")
		migrationsDir = flag.String("migrations", "db/migrations", "episode store migrations directory")
		verbose       = flag.Bool("v", false, "enable diagnostic logging")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("rollout %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	writers := sim.LogWriters{Ops: os.Stderr}
	if *verbose {
		writers.Diag = os.Stderr
	}
	sim.SetLogWriters(writers)

	if err := run(*configPath, *episodes, *maxSteps, *seed, *obsMode, *rewardMode, *backendName, *dbPath, *migrationsDir); err != nil {
		log.Fatalf("rollout: %v", err)
	}
}

func run(configPath string, episodes, maxSteps int, seed int64, obsMode, rewardMode, backendName, dbPath, migrationsDir string) error {
	fileCfg := config.EmptyEnvConfig()
	if configPath != "" {
		loaded, err := config.LoadEnvConfig(configPath)
		if err != nil {
			return err
		}
		fileCfg = loaded
	}

	simCfg := fileCfg.ToSimConfig()
	if obsMode != "" {
		mode, err := obs.ParseMode(obsMode)
		if err != nil {
			return err
		}
		simCfg.ObsMode = mode
	}
	if rewardMode != "" {
		mode, err := sim.ParseRewardMode(rewardMode)
		if err != nil {
			return err
		}
		simCfg.RewardMode = mode
	}
	if seed != 0 {
		simCfg.Seed = &seed
	}
	if episodes == 0 {
		episodes = fileCfg.GetEpisodes()
	}
	if maxSteps == 0 {
		maxSteps = fileCfg.GetMaxSteps()
	}
	if dbPath == "" {
		dbPath = fileCfg.GetRecordPath()
	}

	var backend engine.Backend
	switch backendName {
	case "raster":
		backend = engine.BackendRaster
	case "raytrace":
		backend = engine.BackendRayTrace
	default:
		return fmt.Errorf("unknown backend %q", backendName)
	}

	var store *record.Store
	if dbPath != "" {
		var err error
		store, err = record.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.MigrateUp(migrationsDir); err != nil {
			return err
		}
	}

	env, err := sim.New(enginetest.New(backend), demotask.New(), simCfg)
	if err != nil {
		return err
	}
	defer env.Close()

	policy := rand.New(rand.NewSource(env.EpisodeSeed()))
	actionDim := env.ActionSpace().Shape[0]

	successes := 0
	for ep := 0; ep < episodes; ep++ {
		if _, err := env.Reset(sim.ResetOptions{}); err != nil {
			return fmt.Errorf("episode %d reset: %w", ep, err)
		}

		var episodeID string
		if store != nil {
			episodeID, err = store.BeginEpisode(env.EpisodeSeed(), simCfg.ObsMode.String())
			if err != nil {
				return err
			}
		}

		steps := 0
		success := false
		for steps < maxSteps {
			action := make(sim.RawAction, actionDim)
			for i := range action {
				action[i] = policy.Float64()*0.4 - 0.2
			}

			res, err := env.Step(action)
			if err != nil {
				return fmt.Errorf("episode %d step %d: %w", ep, steps, err)
			}
			steps++

			if store != nil {
				tip := tipXY(env.Agent())
				if err := store.RecordStep(record.Step{
					EpisodeID: episodeID,
					Index:     steps - 1,
					Action:    action,
					Reward:    res.Reward,
					Success:   res.Info.Success,
					TipX:      tip[0],
					TipY:      tip[1],
				}); err != nil {
					return err
				}
			}

			if res.Done {
				success = true
				break
			}
		}

		if store != nil {
			if err := store.FinishEpisode(episodeID, steps, success); err != nil {
				return err
			}
		}
		if success {
			successes++
		}
		fmt.Printf("episode %d: seed=%d steps=%d success=%t\n", ep, env.EpisodeSeed(), steps, success)
	}

	fmt.Printf("done: %d/%d episodes succeeded\n", successes, episodes)
	return nil
}

// tipXY reads the agent tip position from proprioception; the gantry tip
// coincides with its joint vector.
func tipXY(agent sim.Agent) [2]float64 {
	prop := agent.Proprioception()
	qposVal, ok := prop.Get("qpos")
	if !ok {
		return [2]float64{}
	}
	qpos, ok := qposVal.(obs.Floats)
	if !ok || len(qpos) < 2 {
		return [2]float64{}
	}
	return [2]float64{qpos[0], qpos[1]}
}
