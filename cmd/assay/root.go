package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var verbose bool

// Execute builds and runs the root command, returning the process exit
// code: 0 on success, 1 on any user-facing failure.
func Execute() int {
	exitCode := 0

	root := &cobra.Command{
		Use:           "assay [file]",
		Short:         "Assay runs deployment-verification checks and scripts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			code, err := dispatchByExtension(args[0], verbose)
			exitCode = code
			return err
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "raise log level to debug")

	runCmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Explicitly dispatch a check file or script file by extension.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := dispatchByExtension(args[0], verbose)
			exitCode = code
			return err
		},
	}

	var evalCode string
	execCmd := &cobra.Command{
		Use:   "exec [file]",
		Short: "Run inline code (-e) or a script file through the VM.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code int
			var err error
			switch {
			case evalCode != "":
				code, err = runScriptSource(evalCode, verbose)
			case len(args) == 1:
				code, err = runScriptFile(args[0], verbose)
			default:
				return fmt.Errorf("exec requires -e <code> or a file argument")
			}
			exitCode = code
			return err
		},
	}
	execCmd.Flags().StringVarP(&evalCode, "eval", "e", "", "inline script source to execute")

	root.AddCommand(runCmd, execCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		if exitCode == 0 {
			exitCode = 1
		}
	}
	return exitCode
}

// dispatchByExtension implements file-extension auto-detect: .yaml/.yml
// -> check mode, .lua -> script mode, anything else (including other
// script extensions) is a configuration error.
func dispatchByExtension(path string, verbose bool) (int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return runCheckMode(path, verbose)
	case ".lua":
		return runScriptFile(path, verbose)
	default:
		return 1, fmt.Errorf("unsupported file extension %q", ext)
	}
}
