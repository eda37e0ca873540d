package cli

import (
	"errors"

	"github.com/me/gowe/internal/config"
	"github.com/me/gowe/pkg/model"
)

// ExitCode maps an error returned from the root command to one of the
// four global exit codes: 0 success, 1 runtime failure, 2 validation
// failure, 3 configuration error. Every structured error kind in
// pkg/model/errors.go that is not a ConfigurationError or
// ValidationError falls through to 1, matching spec's "runtime failure"
// catch-all (IntegrityError, NetworkError, BuildError, DatasetError,
// SchedulerError, RunIDConflict).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cfgErr *model.ConfigurationError
	if errors.As(err, &cfgErr) {
		return 3
	}
	var valErr *model.ValidationError
	if errors.As(err, &valErr) {
		return 2
	}
	return 1
}

// resolveConfig wraps config.FromEnv's untyped env-parsing error in a
// ConfigurationError, so an invalid CSTAR_NPROCS_POST exits 3 like
// every other configuration problem, instead of falling through to the
// generic runtime-failure code.
func resolveConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, &model.ConfigurationError{Message: err.Error()}
	}
	return cfg, nil
}
