// Command madxbmad translates a MADX lattice file into a Bmad lattice file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/accelxlate/madxbmad"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// translateFlags holds the CLI switches shared by the root command and its
// "translate" subcommand — spec.md's bare positional usage and SPEC_FULL
// §6.1's explicit subcommand form both resolve to the same run.
type translateFlags struct {
	debug         bool
	manyFiles     bool
	superimpose   bool
	noPrependVars bool
	logFormat     string
}

func bindTranslateFlags(cmd *cobra.Command, f *translateFlags) {
	flags := cmd.Flags()
	flags.BoolVarP(&f.debug, "debug", "d", false, "enable verbose token dumps")
	flags.BoolVar(&f.manyFiles, "many-files", false, "write one Bmad file per input file instead of one concatenated output")
	flags.BoolVar(&f.superimpose, "superimpose", false, "use Bmad superimpose directives instead of line-with-drift flattening for sequences")
	flags.BoolVar(&f.noPrependVars, "no-prepend-vars", false, "do not hoist variable assignments to the top of the output")
	flags.StringVar(&f.logFormat, "log-format", "text", `diagnostic log format: "text" or "json"`)
}

func runTranslate(f *translateFlags, path string) error {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if f.debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	switch f.logFormat {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("madxbmad: unknown --log-format %q, want \"text\" or \"json\"", f.logFormat)
	}

	t := madxbmad.New(
		madxbmad.WithLogger(logger),
		madxbmad.WithFlags(madxbmad.Flags{
			Debug:       f.debug,
			PrependVars: !f.noPrependVars,
			Superimpose: f.superimpose,
			OneFile:     !f.manyFiles,
		}),
	)

	if err := t.Open(path); err != nil {
		return fmt.Errorf("madxbmad: %w", err)
	}
	return t.Run(context.Background())
}

func newRootCmd() *cobra.Command {
	var f translateFlags

	cmd := &cobra.Command{
		Use:   "madxbmad <madx_file>",
		Short: "Translate a MADX lattice file into a Bmad lattice file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(&f, args[0])
		},
	}
	bindTranslateFlags(cmd, &f)
	cmd.AddCommand(newTranslateCmd())

	return cmd
}

// newTranslateCmd is the explicit "translate" spelling of the root command,
// for callers that prefer a named verb over a bare positional argument.
func newTranslateCmd() *cobra.Command {
	var f translateFlags

	cmd := &cobra.Command{
		Use:   "translate <madx_file>",
		Short: "Translate a MADX lattice file into a Bmad lattice file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(&f, args[0])
		},
	}
	bindTranslateFlags(cmd, &f)

	return cmd
}
