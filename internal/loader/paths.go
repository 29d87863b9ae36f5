package loader

import (
	"path/filepath"
	"strings"
)

// Default path templates, relative to the app root.
const (
	DefaultBasePath        = "config/secrets.${ext}"
	DefaultEnvironmentPath = "config/${env}/secrets.${ext}"
	DefaultLocalPath       = "config/secrets.local.${ext}"
	DefaultExtension       = "ejson"
)

// Role identifies which layer of the cascade a source feeds.
type Role int

const (
	RoleBase Role = iota
	RoleEnvironment
	RoleLocal
)

func (r Role) String() string {
	switch r {
	case RoleBase:
		return "base"
	case RoleEnvironment:
		return "environment"
	case RoleLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Source is a concrete secret source for one role.
type Source struct {
	Role Role
	Path string
}

// PathTemplates holds one template per role. Empty fields fall back to the
// defaults. Templates may use ${env} and ${ext}.
type PathTemplates struct {
	Base        string
	Environment string
	Local       string
}

// SourcePath returns the path queried for role. The result is deterministic
// for a given Settings value.
func (s Settings) SourcePath(role Role) string {
	var tmpl string
	switch role {
	case RoleBase:
		tmpl = orDefault(s.Paths.Base, DefaultBasePath)
	case RoleEnvironment:
		tmpl = orDefault(s.Paths.Environment, DefaultEnvironmentPath)
	case RoleLocal:
		tmpl = orDefault(s.Paths.Local, DefaultLocalPath)
	}

	rel := Interpolate(tmpl, s.Environment, orDefault(s.Extension, DefaultExtension))
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(s.AppRoot, rel)
}

// Sources lists the sources a cascade may consult, in precedence order from
// lowest to highest. The environment source is listed only when an
// environment is set and the local source only when useLocal is true.
func (s Settings) Sources(useLocal bool) []Source {
	sources := []Source{{Role: RoleBase, Path: s.SourcePath(RoleBase)}}
	if s.Environment != "" {
		sources = append(sources, Source{Role: RoleEnvironment, Path: s.SourcePath(RoleEnvironment)})
	}
	if useLocal {
		sources = append(sources, Source{Role: RoleLocal, Path: s.SourcePath(RoleLocal)})
	}
	return sources
}

func (s Settings) publicKeyField() string {
	return orDefault(s.PublicKeyField, DefaultPublicKeyField)
}

// Interpolate replaces ${env} and ${ext} in a path template. An empty env
// removes the placeholder.
func Interpolate(tmpl string, env string, ext string) string {
	r := strings.NewReplacer("${env}", env, "${ext}", ext)
	return r.Replace(tmpl)
}

// HasEnvVar reports whether tmpl contains at least one ${env} placeholder.
func HasEnvVar(tmpl string) bool {
	return strings.Contains(tmpl, "${env}")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
