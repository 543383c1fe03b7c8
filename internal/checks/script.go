package checks

import (
	"os"

	"github.com/assayrun/assay/internal/config"
	"github.com/assayrun/assay/internal/errfmt"
	"github.com/assayrun/assay/internal/vm"
)

// runScript implements the script check kind: a fresh VM per check (I1),
// per-check env injection (I5), executed through the async bridge.
func runScript(check config.Check, deps Deps) (bool, string) {
	if check.File == "" {
		return false, "file is required for script checks"
	}

	machine, err := vm.New(vm.Options{
		Logger:     deps.Logger,
		Metrics:    deps.Metrics,
		HTTPClient: deps.HTTPClient,
		Modules:    deps.Modules,
	})
	if err != nil {
		return false, err.Error()
	}
	defer machine.Close()

	machine.RegisterEnv(check.Env)

	if err := machine.Scheduler.ExecFileAsync(readFile, check.File); err != nil {
		return false, errfmt.Format(err)
	}
	return true, ""
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
