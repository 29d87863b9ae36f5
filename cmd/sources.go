package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/sx/internal/config"
	"go.dot.industries/sx/internal/loader"
	"go.dot.industries/sx/internal/vault"
)

var sourcesOpts resolveFlags

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesOpts.local, "local", false, "list the local override file as active regardless of settings")
	sourcesCmd.Flags().BoolVar(&sourcesOpts.noLocal, "no-local", false, "list the local override file as skipped regardless of settings")
	sourcesCmd.Flags().StringVar(&sourcesOpts.envMode, "env-mode", "", "how the environment file relates to the base file (fallback, cascade)")
	sourcesCmd.MarkFlagsMutuallyExclusive("local", "no-local")

	rootCmd.AddCommand(sourcesCmd)
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the secret sources that would be consulted",
	Long: `Shows the base, environment and local source paths for the current
settings, whether each is consulted and whether it exists, without reading
or decrypting anything. Useful for debugging configuration.

In fallback mode with an environment set, the base file is only read when
the environment file is absent or empty and is listed as "fallback".`,
	Args: cobra.NoArgs,
	RunE: runSources,
}

// Source states shown by sx sources.
const (
	stateActive   = "active"
	stateFallback = "fallback"
	stateSkipped  = "skipped"
)

// sourceRow is one line of sx sources output.
type sourceRow struct {
	role  loader.Role
	path  string
	state string
}

// sourceRows lists every role with the path it resolves to and whether a
// resolution with these settings reads it.
func sourceRows(ls loader.Settings, useLocal bool, mode loader.EnvironmentMode) []sourceRow {
	hasEnv := ls.Environment != ""

	rows := make([]sourceRow, 0, 3)
	for _, role := range []loader.Role{loader.RoleBase, loader.RoleEnvironment, loader.RoleLocal} {
		state := stateActive
		switch role {
		case loader.RoleBase:
			if hasEnv && mode == loader.EnvironmentFallback {
				state = stateFallback
			}
		case loader.RoleEnvironment:
			if !hasEnv {
				state = stateSkipped
			}
		case loader.RoleLocal:
			if !useLocal {
				state = stateSkipped
			}
		}
		rows = append(rows, sourceRow{role: role, path: ls.SourcePath(role), state: state})
	}

	return rows
}

func runSources(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	mode := settings.EnvironmentMode
	if sourcesOpts.envMode != "" {
		if mode, err = loader.ParseEnvironmentMode(sourcesOpts.envMode); err != nil {
			return err
		}
	}

	ls := settings.LoaderSettings()
	local := ls.UseLocalFiles
	switch {
	case sourcesOpts.local:
		local = true
	case sourcesOpts.noLocal:
		local = false
	}
	useLocal := loader.NewBase(local, ls).UseLocal()

	log.Debug().
		Str("env", settings.Environment).
		Bool("local", useLocal).
		Msg("listing sources")

	out := cmd.OutOrStdout()
	env := settings.Environment
	if env == "" {
		env = "(none)"
	}
	fmt.Fprintf(out, "App root:    %s\n", settings.AppRoot)
	fmt.Fprintf(out, "Environment: %s\n", env)
	fmt.Fprintf(out, "Source:      %s\n", settings.Source.Kind)
	fmt.Fprintf(out, "Mode:        %s\n\n", mode)

	var kv *vault.Parser
	if settings.Source.Kind == config.SourceVault {
		kv = vault.NewParser(nil, settings.AppRoot, settings.Vault.Prefix)
	}

	for _, row := range sourceRows(ls, useLocal, mode) {
		location := row.path
		status := existence(row.path)
		if kv != nil {
			kvPath, err := kv.KVPath(row.path)
			if err != nil {
				return err
			}
			location = settings.Vault.Mount + "/" + kvPath
			status = "vault"
		}

		fmt.Fprintf(out, "  %-12s %-8s %-8s %s\n", row.role, row.state, status, location)
	}

	return nil
}

func existence(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "missing"
	}
	return "present"
}
