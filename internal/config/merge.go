package config

import (
	"fmt"

	"go.dot.industries/sx/internal/loader"
)

// Environment variables read by EnvOverrides.
const (
	EnvAppRoot       = "SX_APP_ROOT"
	EnvEnvironment   = "SX_ENV"
	EnvUseLocalFiles = "SX_USE_LOCAL_FILES"
	EnvSource        = "SX_SOURCE"
	EnvKeyDir        = "EJSON_KEYDIR"
	EnvPrivateKey    = "EJSON_PRIVATE_KEY"
	EnvVaultAddr     = "VAULT_ADDR"
	EnvVaultToken    = "VAULT_TOKEN"
	EnvRoleID        = "SX_ROLE_ID"
	EnvSecretID      = "SX_SECRET_ID"
)

// Defaults returns the settings used when nothing else is configured.
func Defaults() FileConfig {
	return FileConfig{
		UseLocalFiles:  false,
		PublicKeyField: loader.DefaultPublicKeyField,
		Extension:      loader.DefaultExtension,
		Source: SourceConfig{
			Kind: SourceEJSON,
		},
		Vault: VaultConfig{
			AuthMethod: AuthToken,
			Mount:      "secret",
		},
	}
}

// EnvOverrides reads overrides from environment variables through lookup
// (usually os.LookupEnv). SX_USE_LOCAL_FILES enables local overrides only
// when it is exactly "true"; any other value is kept as-is and therefore
// disables them.
func EnvOverrides(lookup func(string) (string, bool)) Overrides {
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}

	o := Overrides{
		AppRoot:      get(EnvAppRoot),
		Environment:  get(EnvEnvironment),
		SourceKind:   get(EnvSource),
		KeyDir:       get(EnvKeyDir),
		PrivateKey:   get(EnvPrivateKey),
		VaultAddress: get(EnvVaultAddr),
		VaultToken:   get(EnvVaultToken),
		RoleID:       get(EnvRoleID),
		SecretID:     get(EnvSecretID),
	}

	if v, ok := lookup(EnvUseLocalFiles); ok {
		if v == "true" {
			o.UseLocalFiles = true
		} else {
			o.UseLocalFiles = v
		}
	}

	return o
}

// Merge layers the defaults, an optional sx.toml and any number of overrides,
// later layers winning, into Settings. Inputs are never mutated.
func Merge(file *FileConfig, overrides ...Overrides) (*Settings, error) {
	base := Defaults()
	if file != nil {
		base = mergeFile(base, *file)
	}

	for _, o := range overrides {
		base = applyOverrides(base, o)
	}

	mode, err := loader.ParseEnvironmentMode(base.EnvironmentMode)
	if err != nil {
		return nil, fmt.Errorf("environment_mode: %w", err)
	}

	return &Settings{
		AppRoot:         base.AppRoot,
		Environment:     base.Environment,
		UseLocalFiles:   base.UseLocalFiles,
		PublicKeyField:  base.PublicKeyField,
		Extension:       base.Extension,
		EnvironmentMode: mode,
		Paths:           base.Paths,
		Source:          base.Source,
		PrivateKey:      lastNonEmpty(overrides, func(o Overrides) string { return o.PrivateKey }),
		Vault:           base.Vault,
		VaultToken:      lastNonEmpty(overrides, func(o Overrides) string { return o.VaultToken }),
		RoleID:          lastNonEmpty(overrides, func(o Overrides) string { return o.RoleID }),
		SecretID:        lastNonEmpty(overrides, func(o Overrides) string { return o.SecretID }),
	}, nil
}

// mergeFile overlays the set fields of file on base.
func mergeFile(base FileConfig, file FileConfig) FileConfig {
	result := base

	result.AppRoot = pick(result.AppRoot, file.AppRoot)
	result.Environment = pick(result.Environment, file.Environment)
	if file.UseLocalFiles != nil {
		result.UseLocalFiles = file.UseLocalFiles
	}
	result.PublicKeyField = pick(result.PublicKeyField, file.PublicKeyField)
	result.Extension = pick(result.Extension, file.Extension)
	result.EnvironmentMode = pick(result.EnvironmentMode, file.EnvironmentMode)

	result.Paths.Base = pick(result.Paths.Base, file.Paths.Base)
	result.Paths.Environment = pick(result.Paths.Environment, file.Paths.Environment)
	result.Paths.Local = pick(result.Paths.Local, file.Paths.Local)

	result.Source.Kind = pick(result.Source.Kind, file.Source.Kind)
	result.Source.KeyDir = pick(result.Source.KeyDir, file.Source.KeyDir)

	result.Vault.Address = pick(result.Vault.Address, file.Vault.Address)
	result.Vault.AuthMethod = pick(result.Vault.AuthMethod, file.Vault.AuthMethod)
	result.Vault.Mount = pick(result.Vault.Mount, file.Vault.Mount)
	result.Vault.Prefix = pick(result.Vault.Prefix, file.Vault.Prefix)

	return result
}

// applyOverrides overlays the set fields of o on base.
func applyOverrides(base FileConfig, o Overrides) FileConfig {
	result := base

	result.AppRoot = pick(result.AppRoot, o.AppRoot)
	result.Environment = pick(result.Environment, o.Environment)
	if o.UseLocalFiles != nil {
		result.UseLocalFiles = o.UseLocalFiles
	}
	result.EnvironmentMode = pick(result.EnvironmentMode, o.EnvironmentMode)
	result.Source.Kind = pick(result.Source.Kind, o.SourceKind)
	result.Source.KeyDir = pick(result.Source.KeyDir, o.KeyDir)
	result.Vault.Address = pick(result.Vault.Address, o.VaultAddress)

	return result
}

func lastNonEmpty(overrides []Overrides, field func(Overrides) string) string {
	result := ""
	for _, o := range overrides {
		if v := field(o); v != "" {
			result = v
		}
	}
	return result
}

// pick returns override when set, current otherwise.
func pick(current, override string) string {
	if override != "" {
		return override
	}
	return current
}
