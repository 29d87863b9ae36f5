// Package loader resolves the configuration of a named service from layered
// secret sources. Base holds the construction contract shared by every
// loader; EJSON implements the cascade over base, environment and local
// secret files.
package loader

import (
	"context"

	"go.dot.industries/sx/internal/document"
)

// DefaultPublicKeyField is the top-level metadata key written by ejson. It is
// never part of a service's resolved configuration.
const DefaultPublicKeyField = "_public_key"

// Settings are the process-wide values a loader consults on every call.
type Settings struct {
	// AppRoot is the directory source paths are relative to.
	AppRoot string
	// Environment is the current deployment environment. Empty means none.
	Environment string
	// UseLocalFiles is the default for the local flag. Only the boolean true
	// enables local overrides; it is kept untyped because it usually comes
	// straight from a config file or the environment.
	UseLocalFiles any
	// PublicKeyField names the metadata key stripped from every document.
	PublicKeyField string
	// Extension is the secret file extension without the leading dot.
	Extension string
	// Paths overrides the source path templates.
	Paths PathTemplates
}

// SettingsProvider supplies Settings to a loader call.
type SettingsProvider interface {
	LoaderSettings() Settings
}

// StaticSettings is a SettingsProvider that always returns itself.
type StaticSettings Settings

// LoaderSettings implements SettingsProvider.
func (s StaticSettings) LoaderSettings() Settings {
	return Settings(s)
}

// Loader resolves the configuration of one service.
type Loader interface {
	Load(ctx context.Context, name string) (document.Document, error)
}

// Constructor builds a Loader bound to a Base.
type Constructor func(base Base) Loader

// Base carries the effective local flag and the settings snapshot of a single
// call. Concrete loaders embed it.
type Base struct {
	local    any
	settings Settings
}

// NewBase binds local and settings.
func NewBase(local any, settings Settings) Base {
	return Base{local: local, settings: settings}
}

// UseLocal reports whether local overrides are enabled. Only the boolean true
// enables them; nil, 1, "true" and anything else mean false.
func (b Base) UseLocal() bool {
	enabled, ok := b.local.(bool)
	return ok && enabled
}

// Settings returns the settings snapshot bound to b.
func (b Base) Settings() Settings {
	return b.settings
}

// CallOption configures Call.
type CallOption func(*callOptions)

type callOptions struct {
	local    any
	localSet bool
}

// WithLocal binds v as the local flag instead of the settings default. An
// explicit nil is honoured and disables local overrides.
func WithLocal(v any) CallOption {
	return func(o *callOptions) {
		o.local = v
		o.localSet = true
	}
}

// Call takes one settings snapshot from provider, builds a loader with
// newLoader and resolves name with it. The local flag defaults to
// Settings.UseLocalFiles unless WithLocal is given.
func Call(
	ctx context.Context,
	provider SettingsProvider,
	newLoader Constructor,
	name string,
	opts ...CallOption,
) (document.Document, error) {
	settings := provider.LoaderSettings()

	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	local := settings.UseLocalFiles
	if o.localSet {
		local = o.local
	}

	return newLoader(NewBase(local, settings)).Load(ctx, name)
}
