package cmd

import (
	"errors"
	"os"
	osexec "os/exec"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/sx/internal/document"
	sxexec "go.dot.industries/sx/internal/exec"
)

var (
	execOpts   resolveFlags
	flagPrefix string
)

func init() {
	execOpts.register(execCmd)
	execCmd.Flags().StringVar(&flagPrefix, "prefix", "", "prefix prepended to every injected variable name")

	rootCmd.AddCommand(execCmd)
}

var execCmd = &cobra.Command{
	Use:   "exec <service> -- <command> [args...]",
	Short: "Run a command with a service's secrets injected as environment variables",
	Long: `Resolves the service's secrets and executes the given command with them
injected as environment variables. Nested keys are joined with underscores
and upper-cased: connection.host becomes CONNECTION_HOST.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	name, command := args[0], args[1:]

	doc, err := resolveService(ctx, name, &execOpts)
	if err != nil {
		return err
	}

	envVars, err := document.Flatten(doc, flagPrefix, "_")
	if err != nil {
		return err
	}

	log.Info().
		Int("secrets", len(envVars)).
		Str("service", name).
		Msg("injecting environment")

	if err := sxexec.Run(ctx, command, envVars); err != nil {
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(sxexec.ExitCode(err))
		}
		return err
	}

	return nil
}
