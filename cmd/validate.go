package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/sx/internal/config"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate sx.toml and the effective settings",
	Long: `Checks sx.toml on its own for invalid values, then validates the
settings produced by layering it with environment variables and flags.
Every problem found is reported, not just the first.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	file, path, err := loadConfigFile()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if file != nil {
		if err := config.ValidateFile(file); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("config file valid")
		fmt.Fprintf(out, "%s: valid\n", path)
	} else {
		fmt.Fprintln(out, "no sx.toml found, using defaults")
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "effective settings: valid (app root %s)\n", settings.AppRoot)

	return nil
}
