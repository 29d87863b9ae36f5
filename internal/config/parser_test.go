package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
app_root = "app"
environment = "staging"
use_local_files = true
public_key_field = "_public_key"
extension = "ejson"
environment_mode = "cascade"

[paths]
environment = "config/envs/${env}.${ext}"

[source]
kind = "vault"
keydir = "/etc/ejson/keys"

[vault]
address = "https://vault.example.com"
auth_method = "approle"
mount = "kv"
prefix = "billing"
`

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeTestFile(t, path, sampleConfig)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	absDir, _ := filepath.Abs(dir)
	if cfg.AppRoot != filepath.Join(absDir, "app") {
		t.Errorf("AppRoot = %q, want %q", cfg.AppRoot, filepath.Join(absDir, "app"))
	}
	if cfg.Environment != "staging" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "staging")
	}
	if cfg.UseLocalFiles != true {
		t.Errorf("UseLocalFiles = %#v, want true", cfg.UseLocalFiles)
	}
	if cfg.EnvironmentMode != "cascade" {
		t.Errorf("EnvironmentMode = %q, want %q", cfg.EnvironmentMode, "cascade")
	}
	if cfg.Paths.Environment != "config/envs/${env}.${ext}" {
		t.Errorf("Paths.Environment = %q, want %q", cfg.Paths.Environment, "config/envs/${env}.${ext}")
	}
	if cfg.Source.Kind != SourceVault {
		t.Errorf("Source.Kind = %q, want %q", cfg.Source.Kind, SourceVault)
	}
	if cfg.Source.KeyDir != "/etc/ejson/keys" {
		t.Errorf("Source.KeyDir = %q, want %q", cfg.Source.KeyDir, "/etc/ejson/keys")
	}
	if cfg.Vault.Address != "https://vault.example.com" {
		t.Errorf("Vault.Address = %q, want %q", cfg.Vault.Address, "https://vault.example.com")
	}
	if cfg.Vault.AuthMethod != AuthAppRole {
		t.Errorf("Vault.AuthMethod = %q, want %q", cfg.Vault.AuthMethod, AuthAppRole)
	}
	if cfg.Vault.Mount != "kv" {
		t.Errorf("Vault.Mount = %q, want %q", cfg.Vault.Mount, "kv")
	}
	if cfg.Vault.Prefix != "billing" {
		t.Errorf("Vault.Prefix = %q, want %q", cfg.Vault.Prefix, "billing")
	}
}

func TestLoadFile_AppRootDefaultsToFileDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeTestFile(t, path, `environment = "dev"`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	absDir, _ := filepath.Abs(dir)
	if cfg.AppRoot != absDir {
		t.Errorf("AppRoot = %q, want %q", cfg.AppRoot, absDir)
	}
}

func TestLoadFile_AbsoluteAppRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeTestFile(t, path, `app_root = "/srv/app"`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.AppRoot != "/srv/app" {
		t.Errorf("AppRoot = %q, want %q", cfg.AppRoot, "/srv/app")
	}
}

func TestLoadFile_MisconfiguredLocalFlagIsKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeTestFile(t, path, `use_local_files = "true"`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.UseLocalFiles != "true" {
		t.Errorf("UseLocalFiles = %#v, want the string %q", cfg.UseLocalFiles, "true")
	}
}

func TestLoadFile_NotFound(t *testing.T) {
	_, err := LoadFile("nonexistent/sx.toml")
	if err == nil {
		t.Fatal("LoadFile() expected error for missing file")
	}
}

func TestLoadFile_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeTestFile(t, path, "this is not valid [toml")

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("LoadFile() expected error for invalid TOML")
	}
}

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, FileName), `environment = "dev"`)

	nested := filepath.Join(root, "services", "api")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("creating nested dir: %v", err)
	}

	found, err := FindConfigFile(nested)
	if err != nil {
		t.Fatalf("FindConfigFile() error = %v", err)
	}

	absRoot, _ := filepath.Abs(root)
	if found != filepath.Join(absRoot, FileName) {
		t.Errorf("FindConfigFile() = %q, want %q", found, filepath.Join(absRoot, FileName))
	}
}

func TestFindConfigFile_NotFound(t *testing.T) {
	_, err := FindConfigFile(t.TempDir())
	if err == nil {
		t.Fatal("FindConfigFile() expected error when no sx.toml exists")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("FindConfigFile() error = %v, want os.ErrNotExist", err)
	}
}

func TestDetectAppRoot(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "config", "secrets.ejson"), `{}`)

	nested := filepath.Join(root, "cmd", "server")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("creating nested dir: %v", err)
	}

	settings, err := Merge(nil)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	got, err := DetectAppRoot(nested, settings)
	if err != nil {
		t.Fatalf("DetectAppRoot() error = %v", err)
	}

	absRoot, _ := filepath.Abs(root)
	if got != absRoot {
		t.Errorf("DetectAppRoot() = %q, want %q", got, absRoot)
	}
}

func TestDetectAppRoot_FallsBackToStart(t *testing.T) {
	start := t.TempDir()

	settings, err := Merge(nil)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	settings.Extension = "sx-test-nonexistent"

	got, err := DetectAppRoot(start, settings)
	if err != nil {
		t.Fatalf("DetectAppRoot() error = %v", err)
	}

	absStart, _ := filepath.Abs(start)
	if got != absStart {
		t.Errorf("DetectAppRoot() = %q, want %q", got, absStart)
	}
}
