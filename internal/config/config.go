// Package config resolves C-Star's environment-variable configuration
// once at CLI start, so the rest of the program never calls os.Getenv
// directly.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Config holds the environment-derived configuration for a cstar
// invocation.
type Config struct {
	LogLevel  string // CSTAR_LOG_LEVEL (debug, info, warn, error)
	LogFormat string // CSTAR_LOG_FORMAT (text, json)

	Home    string // CSTAR_HOME, default ~/.cstar
	OutDir  string // CSTAR_OUTDIR, default $Home/assets

	NProcsPost int // CSTAR_NPROCS_POST, default cpu_count/3 (min 1)

	FreshCodebases     bool // CSTAR_FRESH_CODEBASES
	ClobberWorkingDir  bool // CSTAR_CLOBBER_WORKING_DIR

	SlurmAccount     string // CSTAR_SLURM_ACCOUNT
	SlurmQueue       string // CSTAR_SLURM_QUEUE
	SlurmMaxWalltime string // CSTAR_SLURM_MAX_WALLTIME, default 48:00:00

	RunID string // CSTAR_RUNID

	OrchTrxFreq string // CSTAR_ORCH_TRX_FREQ (monthly, weekly, daily)

	QueuesFile string // CSTAR_QUEUES_FILE, extends/overrides the built-in queue table

	CmdConverterOverride string // CSTAR_CMD_CONVERTER_OVERRIDE, test only
}

// FromEnv resolves a Config from the process environment, applying the
// same defaults documented for each variable.
func FromEnv() (Config, error) {
	return fromEnv(os.Getenv)
}

// fromEnv resolves a Config using an injectable env lookup function, so
// tests never touch the real process environment.
func fromEnv(env func(string) string) (Config, error) {
	cfg := Config{
		LogLevel:         orDefault(env("CSTAR_LOG_LEVEL"), "info"),
		LogFormat:        orDefault(env("CSTAR_LOG_FORMAT"), "text"),
		SlurmAccount:     env("CSTAR_SLURM_ACCOUNT"),
		SlurmQueue:       env("CSTAR_SLURM_QUEUE"),
		SlurmMaxWalltime: orDefault(env("CSTAR_SLURM_MAX_WALLTIME"), "48:00:00"),
		RunID:            env("CSTAR_RUNID"),
		OrchTrxFreq:      env("CSTAR_ORCH_TRX_FREQ"),
		QueuesFile:       env("CSTAR_QUEUES_FILE"),
		CmdConverterOverride: env("CSTAR_CMD_CONVERTER_OVERRIDE"),
	}

	home := env("CSTAR_HOME")
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return cfg, err
		}
		home = filepath.Join(dir, ".cstar")
	}
	cfg.Home = home

	outDir := env("CSTAR_OUTDIR")
	if outDir == "" {
		outDir = filepath.Join(home, "assets")
	}
	cfg.OutDir = outDir

	if v := env("CSTAR_NPROCS_POST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, &invalidEnvError{Var: "CSTAR_NPROCS_POST", Value: v}
		}
		cfg.NProcsPost = n
	} else {
		cfg.NProcsPost = runtime.NumCPU() / 3
	}
	if cfg.NProcsPost < 1 {
		cfg.NProcsPost = 1
	}

	if v := env("CSTAR_FRESH_CODEBASES"); v != "" {
		cfg.FreshCodebases = v == "1"
	}
	if v := env("CSTAR_CLOBBER_WORKING_DIR"); v != "" {
		cfg.ClobberWorkingDir = v == "1"
	}

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type invalidEnvError struct {
	Var   string
	Value string
}

func (e *invalidEnvError) Error() string {
	return "invalid value for " + e.Var + ": " + e.Value
}

// EnvFilePath returns the path to the flat Environment Store file.
func (c Config) EnvFilePath() string {
	return filepath.Join(c.Home, ".cstar.env")
}
