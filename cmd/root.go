package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.dot.industries/sx/internal/config"
	"go.dot.industries/sx/internal/ejson"
	"go.dot.industries/sx/internal/loader"
	"go.dot.industries/sx/internal/token"
	"go.dot.industries/sx/internal/vault"
)

var (
	flagConfig    string
	flagAppRoot   string
	flagEnv       string
	flagSource    string
	flagKeyDir    string
	flagVaultAddr string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "sx",
	Short: "Cascading secret resolver for ejson and Vault",
	Long: `sx resolves a service's secrets from layered ejson files (or Vault KV)
and prints them or injects them into a child process. The base secrets file
is combined with an environment-specific file and, optionally, a
developer-local override file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to sx.toml (auto-detected if omitted)")
	rootCmd.PersistentFlags().StringVar(&flagAppRoot, "app-root", "", "application root the secret paths are relative to")
	rootCmd.PersistentFlags().StringVarP(&flagEnv, "env", "e", "", "deployment environment (overrides config and SX_ENV)")
	rootCmd.PersistentFlags().StringVar(&flagSource, "source", "", "secret source kind (ejson, vault)")
	rootCmd.PersistentFlags().StringVar(&flagKeyDir, "keydir", "", "directory holding ejson private keys")
	rootCmd.PersistentFlags().StringVar(&flagVaultAddr, "vault-addr", "", "vault address; overrides config")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	cobra.OnInitialize(initLogger)
}

func initLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(level)
}

// commandContext returns the command's context carrying the global logger,
// so library code can log through zerolog.Ctx.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return log.Logger.WithContext(ctx)
}

// loadConfigFile returns the sx.toml named by --config, or the one found by
// walking up from the working directory. Without --config a missing file is
// not an error and nil is returned.
func loadConfigFile() (*config.FileConfig, string, error) {
	if flagConfig != "" {
		cfg, err := config.LoadFile(flagConfig)
		if err != nil {
			return nil, "", err
		}
		return cfg, flagConfig, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("getting working directory: %w", err)
	}

	path, err := config.FindConfigFile(cwd)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("dir", cwd).Msg("no sx.toml found, using defaults")
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

// flagOverrides collects the global flags that override settings.
func flagOverrides() config.Overrides {
	return config.Overrides{
		AppRoot:      flagAppRoot,
		Environment:  flagEnv,
		SourceKind:   flagSource,
		KeyDir:       flagKeyDir,
		VaultAddress: flagVaultAddr,
	}
}

// loadSettings layers defaults, sx.toml, environment variables and flags,
// fills in the app root and validates the result.
func loadSettings() (*config.Settings, error) {
	file, path, err := loadConfigFile()
	if err != nil {
		return nil, err
	}

	settings, err := config.Merge(file, config.EnvOverrides(os.LookupEnv), flagOverrides())
	if err != nil {
		return nil, err
	}

	if settings.AppRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		root, err := config.DetectAppRoot(cwd, settings)
		if err != nil {
			return nil, err
		}
		settings.AppRoot = root
	} else if !filepath.IsAbs(settings.AppRoot) {
		root, err := filepath.Abs(settings.AppRoot)
		if err != nil {
			return nil, fmt.Errorf("resolving app root: %w", err)
		}
		settings.AppRoot = root
	}

	if err := config.Validate(settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	log.Debug().
		Str("config", path).
		Str("app_root", settings.AppRoot).
		Str("env", settings.Environment).
		Str("source", settings.Source.Kind).
		Str("mode", settings.EnvironmentMode.String()).
		Msg("loaded settings")

	return settings, nil
}

// buildParser returns the loader.Parser for the configured source kind.
func buildParser(ctx context.Context, settings *config.Settings) (loader.Parser, error) {
	switch settings.Source.Kind {
	case config.SourceEJSON:
		return ejson.NewFileParser(
			ejson.WithKeyDir(settings.Source.KeyDir),
			ejson.WithPrivateKey(settings.PrivateKey),
		), nil
	case config.SourceVault:
		client, err := authenticatedClient(ctx, settings)
		if err != nil {
			return nil, err
		}
		return vault.NewParser(client, settings.AppRoot, settings.Vault.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported source kind: %s", settings.Source.Kind)
	}
}

// authenticatedClient creates a Vault client with a valid token.
func authenticatedClient(ctx context.Context, settings *config.Settings) (*vault.Client, error) {
	v := settings.Vault

	switch v.AuthMethod {
	case config.AuthToken:
		client, err := vault.NewClient(v.Address, v.Mount)
		if err != nil {
			return nil, err
		}
		if settings.VaultToken != "" {
			client.SetToken(settings.VaultToken)
		}
		if !client.IsAuthenticated(ctx) {
			return nil, fmt.Errorf("vault token is missing or invalid; set %s", config.EnvVaultToken)
		}
		return client, nil
	case config.AuthAppRole:
		return appRoleClient(ctx, settings)
	default:
		return nil, fmt.Errorf("unsupported auth method: %s", v.AuthMethod)
	}
}

// minCachedTokenTTL is the remaining lifetime a cached token needs to be
// reused.
const minCachedTokenTTL = time.Minute

// appRoleClient reuses a cached token when it is still valid and logs in
// with AppRole otherwise, caching the new token.
func appRoleClient(ctx context.Context, settings *config.Settings) (*vault.Client, error) {
	v := settings.Vault
	sink := token.NewSink("")

	cached, err := cachedClient(ctx, sink, v.Address, v.Mount)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	client, err := vault.NewClient(v.Address, v.Mount)
	if err != nil {
		return nil, err
	}

	if err := vault.AppRoleAuth(ctx, client, settings.RoleID, settings.SecretID); err != nil {
		return nil, err
	}

	if err := sink.Write(client.Token()); err != nil {
		log.Warn().Err(err).Msg("failed to cache token")
	}

	return client, nil
}

// cachedClient returns a client using the token held by sink, or nil when
// nothing usable is cached. A token Vault rejects, or one about to expire, is
// removed from the cache.
func cachedClient(ctx context.Context, sink *token.Sink, address string, mount string) (*vault.Client, error) {
	tok, err := sink.Read()
	if err != nil {
		if !errors.Is(err, token.ErrNoToken) {
			log.Warn().Err(err).Str("path", sink.Path()).Msg("ignoring unreadable token cache")
		}
		return nil, nil
	}

	client, err := vault.NewClientWithToken(address, mount, tok)
	if err != nil {
		return nil, err
	}

	ttl, err := client.TokenTTL(ctx)
	if err == nil && (ttl == 0 || ttl >= minCachedTokenTTL) {
		log.Debug().Dur("ttl", ttl).Msg("using cached vault token")
		return client, nil
	}

	log.Debug().Err(err).Dur("ttl", ttl).Msg("cached token unusable, re-authenticating")
	if err := sink.Remove(); err != nil {
		log.Warn().Err(err).Msg("failed to remove cached token")
	}

	return nil, nil
}
