package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"go.dot.industries/sx/internal/loader"
)

// Validate checks that Settings are usable and reports every problem found.
func Validate(s *Settings) error {
	if s == nil {
		return fmt.Errorf("settings are nil")
	}

	var errs *multierror.Error

	if err := validateEnvironment(s.Environment); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("environment: %w", err))
	}

	if strings.HasPrefix(s.Extension, ".") {
		errs = multierror.Append(errs, fmt.Errorf("extension: must not start with a dot, got %q", s.Extension))
	}

	if err := validatePaths(s.Paths); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("paths: %w", err))
	}

	if err := validateSource(s); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("source: %w", err))
	}

	return errs.ErrorOrNil()
}

// ValidateFile checks an sx.toml on its own, without environment or flag
// overrides. Unlike a loader call, which silently treats a non-boolean
// use_local_files as false, it reports such a value.
func ValidateFile(cfg *FileConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	var errs *multierror.Error

	if cfg.UseLocalFiles != nil {
		if _, ok := cfg.UseLocalFiles.(bool); !ok {
			errs = multierror.Append(errs, fmt.Errorf("use_local_files: must be a boolean, got %T", cfg.UseLocalFiles))
		}
	}

	settings, err := Merge(cfg)
	if err != nil {
		errs = multierror.Append(errs, err)
		return errs.ErrorOrNil()
	}

	if err := Validate(settings); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs.ErrorOrNil()
}

func validateEnvironment(env string) error {
	if strings.ContainsAny(env, `/\`) || env == "." || env == ".." {
		return fmt.Errorf("invalid environment name %q", env)
	}
	return nil
}

func validatePaths(p PathsConfig) error {
	if p.Environment != "" && !loader.HasEnvVar(p.Environment) {
		return fmt.Errorf("environment template %q must contain ${env}", p.Environment)
	}

	templates := map[string]string{"base": p.Base, "environment": p.Environment, "local": p.Local}
	seen := make(map[string]string, len(templates))
	for _, role := range []string{"base", "environment", "local"} {
		tmpl := templates[role]
		if tmpl == "" {
			continue
		}
		if other, ok := seen[tmpl]; ok {
			return fmt.Errorf("%s and %s templates are identical", other, role)
		}
		seen[tmpl] = role
	}

	return nil
}

func validateSource(s *Settings) error {
	switch s.Source.Kind {
	case SourceEJSON:
		return nil
	case SourceVault:
		return validateVault(s.Vault)
	default:
		return fmt.Errorf("unknown kind %q (want %s or %s)", s.Source.Kind, SourceEJSON, SourceVault)
	}
}

func validateVault(v VaultConfig) error {
	if v.Address == "" {
		return fmt.Errorf("vault address is required")
	}

	switch v.AuthMethod {
	case AuthToken, AuthAppRole:
	default:
		return fmt.Errorf("unsupported vault auth method %q", v.AuthMethod)
	}

	return nil
}
