package main

import (
	"fmt"
	"os"

	"github.com/assayrun/assay/internal/checks"
	"github.com/assayrun/assay/internal/config"
	"github.com/assayrun/assay/internal/errfmt"
	"github.com/assayrun/assay/internal/httpclient"
	"github.com/assayrun/assay/internal/logging"
	"github.com/assayrun/assay/internal/metrics"
	"github.com/assayrun/assay/internal/result"
	"github.com/assayrun/assay/internal/runner"
	"github.com/assayrun/assay/internal/vm"
)

// runCheckMode parses a YAML config and runs its checks through the
// orchestrator, printing exactly one pretty-JSON RunResult on stdout.
func runCheckMode(path string, verbose bool) (int, error) {
	logger := logging.New(verbose)
	defer logger.Sync()

	cfg, err := config.Load(path)
	if err != nil {
		return 1, err
	}

	deps := checks.Deps{
		HTTPClient: httpclient.New(),
		Logger:     logger,
		Metrics:    metrics.New(),
		Modules:    map[string]string{},
	}

	run := runner.Run(cfg, deps)

	code, err := result.Report(os.Stdout, run)
	if err != nil {
		return 1, err
	}
	return code, nil
}

// runScriptFile executes a single script file directly (script mode): no
// YAML, no check runner. Built-in log.* output goes to stderr; stdout
// belongs entirely to the script.
func runScriptFile(path string, verbose bool) (int, error) {
	logger := logging.New(verbose)
	defer logger.Sync()

	machine, err := vm.New(vm.Options{
		Logger:     logger,
		Metrics:    metrics.New(),
		HTTPClient: httpclient.New(),
		Modules:    map[string]string{},
	})
	if err != nil {
		return 1, err
	}
	defer machine.Close()

	if err := machine.Scheduler.ExecFileAsync(readFileSource, path); err != nil {
		return 1, fmt.Errorf("%s", errfmt.Format(err))
	}
	return 0, nil
}

// runScriptSource executes inline script source (assay exec -e "...").
func runScriptSource(src string, verbose bool) (int, error) {
	logger := logging.New(verbose)
	defer logger.Sync()

	machine, err := vm.New(vm.Options{
		Logger:     logger,
		Metrics:    metrics.New(),
		HTTPClient: httpclient.New(),
		Modules:    map[string]string{},
	})
	if err != nil {
		return 1, err
	}
	defer machine.Close()

	if err := machine.Scheduler.ExecAsync(src); err != nil {
		return 1, fmt.Errorf("%s", errfmt.Format(err))
	}
	return 0, nil
}

func readFileSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
