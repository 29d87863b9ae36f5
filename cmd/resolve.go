package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"go.dot.industries/sx/internal/config"
	"go.dot.industries/sx/internal/document"
	"go.dot.industries/sx/internal/loader"
	"go.dot.industries/sx/internal/output"
)

// resolveFlags are the per-call options shared by resolve and exec.
type resolveFlags struct {
	local       bool
	noLocal     bool
	namespace   string
	noNamespace bool
	envMode     string
}

func (f *resolveFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.local, "local", false, "include the local override file regardless of settings")
	cmd.Flags().BoolVar(&f.noLocal, "no-local", false, "skip the local override file regardless of settings")
	cmd.Flags().StringVar(&f.namespace, "namespace", "", "top-level key to extract instead of the service name")
	cmd.Flags().BoolVar(&f.noNamespace, "no-namespace", false, "use each whole document as the service's secrets")
	cmd.Flags().StringVar(&f.envMode, "env-mode", "", "how the environment file relates to the base file (fallback, cascade)")

	cmd.MarkFlagsMutuallyExclusive("local", "no-local")
	cmd.MarkFlagsMutuallyExclusive("namespace", "no-namespace")
}

func (f *resolveFlags) loaderOptions(settings *config.Settings) ([]loader.EJSONOption, error) {
	mode := settings.EnvironmentMode
	if f.envMode != "" {
		m, err := loader.ParseEnvironmentMode(f.envMode)
		if err != nil {
			return nil, err
		}
		mode = m
	}

	opts := []loader.EJSONOption{loader.WithEnvironmentMode(mode)}
	switch {
	case f.noNamespace:
		opts = append(opts, loader.WithoutNamespace())
	case f.namespace != "":
		opts = append(opts, loader.WithNamespace(f.namespace))
	}

	return opts, nil
}

func (f *resolveFlags) callOptions() []loader.CallOption {
	switch {
	case f.local:
		return []loader.CallOption{loader.WithLocal(true)}
	case f.noLocal:
		return []loader.CallOption{loader.WithLocal(false)}
	default:
		return nil
	}
}

var (
	resolveOpts resolveFlags
	flagFormat  string
	flagRedact  bool
)

func init() {
	resolveOpts.register(resolveCmd)
	resolveCmd.Flags().StringVarP(&flagFormat, "format", "f", "json", "output format (json, yaml, toml, env)")
	resolveCmd.Flags().BoolVar(&flagRedact, "redact", false, "mask every value, keeping only the structure")

	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <service>",
	Short: "Resolve and print a service's secrets",
	Long: `Reads the service's entry from the base, environment and local secret
files, merges them and prints the result. Missing files contribute nothing;
a service found nowhere resolves to an empty mapping.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(flagFormat)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)

	doc, err := resolveService(ctx, args[0], &resolveOpts)
	if err != nil {
		return err
	}

	if flagRedact {
		doc = document.Redact(doc)
	}

	return output.Write(cmd.OutOrStdout(), doc, format)
}

// resolveService loads settings and resolves name through the configured
// source.
func resolveService(ctx context.Context, name string, f *resolveFlags) (document.Document, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	opts, err := f.loaderOptions(settings)
	if err != nil {
		return nil, err
	}

	parser, err := buildParser(ctx, settings)
	if err != nil {
		return nil, err
	}

	doc, err := loader.Call(ctx, settings, loader.NewEJSON(parser, opts...), name, f.callOptions()...)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", name, err)
	}

	zerolog.Ctx(ctx).Debug().Str("service", name).Int("keys", len(doc)).Msg("resolved service")

	return doc, nil
}
