package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading ~ and $VAR references in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}

// resolve expands name and places it under dir unless it is already absolute
// or explicitly relative to the working directory.
func resolve(dir, name string) string {
	name = ExpandPath(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	if dir == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "."+string(filepath.Separator)) {
		return name
	}
	return filepath.Join(ExpandPath(dir), name)
}
