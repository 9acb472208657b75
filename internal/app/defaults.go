package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths are the locations hashmove uses when the config does not say otherwise.
type Paths struct {
	ConfigFile string // HASHMOVE_CONFIG_PATH, else ~/.config/hashmove.toml
	BaseDir    string // HASHMOVE_HOME, else ~/.local/share/hashmove
}

// DefaultPaths resolves Paths from the environment and the home directory.
func DefaultPaths() (Paths, error) {
	return resolvePaths(os.Getenv, os.UserHomeDir)
}

func resolvePaths(getenv func(string) string, home func() (string, error)) (Paths, error) {
	p := Paths{
		ConfigFile: getenv("HASHMOVE_CONFIG_PATH"),
		BaseDir:    getenv("HASHMOVE_HOME"),
	}
	if p.ConfigFile != "" && p.BaseDir != "" {
		return p, nil
	}

	homeDir, err := home()
	if err != nil {
		return Paths{}, fmt.Errorf("cannot determine home directory: %w", err)
	}
	if p.ConfigFile == "" {
		p.ConfigFile = filepath.Join(homeDir, ".config", "hashmove.toml")
	}
	if p.BaseDir == "" {
		p.BaseDir = filepath.Join(homeDir, ".local", "share", "hashmove")
	}
	return p, nil
}
