package config

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"go.dot.industries/sx/internal/loader"
)

// FileName is the name of the settings file searched for by FindConfigFile.
const FileName = "sx.toml"

// LoadFile parses an sx.toml file at the given path. A relative app_root is
// resolved against the directory containing the file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg FileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving directory of %s: %w", path, err)
	}

	switch {
	case cfg.AppRoot == "":
		cfg.AppRoot = dir
	case !filepath.IsAbs(cfg.AppRoot):
		cfg.AppRoot = filepath.Join(dir, cfg.AppRoot)
	}

	return &cfg, nil
}

// FindConfigFile walks up directories starting from startDir to locate an
// sx.toml file. Returns the absolute path to the first one found, or an error
// if none exists.
func FindConfigFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path for %s: %w", startDir, err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in %s or any parent directory: %w", FileName, startDir, os.ErrNotExist)
}

// DetectAppRoot walks up from startDir to the first directory holding a base
// secrets file for the given settings. Returns startDir, made absolute, when
// none is found.
func DetectAppRoot(startDir string, s *Settings) (string, error) {
	start, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path for %s: %w", startDir, err)
	}

	dir := start
	for {
		candidate := *s
		candidate.AppRoot = dir
		if _, err := os.Stat(candidate.LoaderSettings().SourcePath(loader.RoleBase)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return start, nil
		}
		dir = parent
	}
}
