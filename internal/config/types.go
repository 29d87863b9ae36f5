// Package config loads sx settings from sx.toml, the environment and command
// line flags, and layers them into the Settings a loader call consults.
package config

import (
	"go.dot.industries/sx/internal/loader"
)

// Source kinds.
const (
	SourceEJSON = "ejson"
	SourceVault = "vault"
)

// Vault auth methods.
const (
	AuthToken   = "token"
	AuthAppRole = "approle"
)

// FileConfig represents an sx.toml file.
type FileConfig struct {
	AppRoot         string       `toml:"app_root"`
	Environment     string       `toml:"environment"`
	UseLocalFiles   any          `toml:"use_local_files"`
	PublicKeyField  string       `toml:"public_key_field"`
	Extension       string       `toml:"extension"`
	EnvironmentMode string       `toml:"environment_mode"`
	Paths           PathsConfig  `toml:"paths"`
	Source          SourceConfig `toml:"source"`
	Vault           VaultConfig  `toml:"vault"`
}

// PathsConfig overrides the source path templates. Templates are relative to
// the app root and may use ${env} and ${ext}.
type PathsConfig struct {
	Base        string `toml:"base"`
	Environment string `toml:"environment"`
	Local       string `toml:"local"`
}

// SourceConfig selects where secret documents are read from.
type SourceConfig struct {
	Kind   string `toml:"kind"`
	KeyDir string `toml:"keydir"`
}

// VaultConfig holds Vault server connection settings for the vault source.
type VaultConfig struct {
	Address    string `toml:"address"`
	AuthMethod string `toml:"auth_method"`
	Mount      string `toml:"mount"`
	Prefix     string `toml:"prefix"`
}

// Overrides are settings supplied outside sx.toml, by environment variables or
// command line flags. Zero fields are unset; UseLocalFiles is unset when nil.
type Overrides struct {
	AppRoot         string
	Environment     string
	UseLocalFiles   any
	EnvironmentMode string
	SourceKind      string
	KeyDir          string
	PrivateKey      string
	VaultAddress    string
	VaultToken      string
	RoleID          string
	SecretID        string
}

// Settings is the fully layered configuration. It implements
// loader.SettingsProvider.
type Settings struct {
	AppRoot         string
	Environment     string
	UseLocalFiles   any
	PublicKeyField  string
	Extension       string
	EnvironmentMode loader.EnvironmentMode
	Paths           PathsConfig
	Source          SourceConfig
	PrivateKey      string
	Vault           VaultConfig
	VaultToken      string
	RoleID          string
	SecretID        string
}

// LoaderSettings implements loader.SettingsProvider.
func (s *Settings) LoaderSettings() loader.Settings {
	return loader.Settings{
		AppRoot:        s.AppRoot,
		Environment:    s.Environment,
		UseLocalFiles:  s.UseLocalFiles,
		PublicKeyField: s.PublicKeyField,
		Extension:      s.Extension,
		Paths: loader.PathTemplates{
			Base:        s.Paths.Base,
			Environment: s.Paths.Environment,
			Local:       s.Paths.Local,
		},
	}
}
