package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/me/gowe/internal/addcode"
	"github.com/me/gowe/internal/codebase"
	"github.com/me/gowe/internal/config"
	"github.com/me/gowe/internal/dataset"
	"github.com/me/gowe/internal/envstore"
	"github.com/me/gowe/internal/handler"
	"github.com/me/gowe/internal/jobrecord"
	"github.com/me/gowe/internal/retriever"
	"github.com/me/gowe/internal/runner"
	"github.com/me/gowe/internal/simulation"
	"github.com/me/gowe/internal/stager"
	"github.com/me/gowe/internal/sysmgr"
)

// services bundles every collaborator a cstar subcommand needs,
// constructed once in the root command's PersistentPreRunE from the
// resolved Config, mirroring the teacher's single package-level
// *Client built in NewRootCmd's PersistentPreRun.
type services struct {
	cfg    config.Config
	logger *slog.Logger

	system *sysmgr.Manager
	env    *envstore.Store
	jobs   *jobrecord.Store
	index  *jobrecord.Index
	cache  *retriever.Cache
	runner *runner.Runner
}

// Close releases the SQLite-backed caches. Called once, from the root
// command's PersistentPostRun.
func (s *services) Close() {
	if s.index != nil {
		s.index.Close()
	}
	if s.cache != nil {
		s.cache.Close()
	}
}

func newServices(cfg config.Config, logger *slog.Logger) (*services, error) {
	system := sysmgr.Detect(os.Getenv, hostname())
	if err := system.Queues.LoadExtra(cfg.QueuesFile); err != nil {
		return nil, err
	}

	cacheDBPath := filepath.Join(cfg.Home, "clone-cache.db")
	cache, err := retriever.OpenCache(cacheDBPath, logger)
	if err != nil {
		return nil, err
	}
	rt := retriever.New(cache, logger)

	env := envstore.New(cfg.EnvFilePath(), logger)
	installer := codebase.New(rt, env, logger)

	stg := stager.New(rt, logger)
	addc := addcode.New(stg, logger)

	gen := dataset.NewCommandGenerator(cfg.CmdConverterOverride, logger)
	materializer := dataset.New(gen, logger)

	registry := handler.NewRegistry(coresPerNodeOnSystem, logger)

	deps := simulation.Deps{
		Codebases:      installer,
		AddCode:        addc,
		Datasets:       materializer,
		Handlers:       registry,
		System:         system,
		Partitioner:    simulation.NewCommandPartitioner(cfg.CmdConverterOverride, logger),
		NProcsPost:     cfg.NProcsPost,
		FreshCodebases: cfg.FreshCodebases,
		Logger:         logger,
	}

	r := runner.New(deps, system, cfg.OutDir, logger)
	r.RunOptions = simulation.RunOptions{
		Account:  cfg.SlurmAccount,
		Queue:    cfg.SlurmQueue,
		Walltime: cfg.SlurmMaxWalltime,
	}
	r.Merger = simulation.NewCommandMerger(cfg.CmdConverterOverride, logger)

	jobs := jobrecord.New(cfg.OutDir, logger)
	indexPath := filepath.Join(cfg.OutDir, "runs.db")
	index, err := jobrecord.OpenIndex(indexPath, logger)
	if err != nil {
		return nil, err
	}

	return &services{
		cfg:    cfg,
		logger: logger,
		system: system,
		env:    env,
		jobs:   jobs,
		index:  index,
		cache:  cache,
		runner: r,
	}, nil
}

// coresPerNodeOnSystem is the assumed physical core count per compute
// node on the public HPC clusters C-Star targets (NERSC Perlmutter and
// similar), used only to distribute a PBS job's requested CPU count
// across whole nodes when the Workplan does not pin a node count.
const coresPerNodeOnSystem = 128

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}
