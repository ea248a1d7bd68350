package config

import (
	"os"
	"path/filepath"

	"github.com/subosito/gotenv"
)

// LoadDotenv loads KEY=VALUE pairs from workDir/.env into the process
// environment without overriding variables that are already set. A missing
// file is not an error; a malformed one is only worth a warning.
func LoadDotenv(workDir string) {
	path := filepath.Join(workDir, ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := gotenv.Load(path); err != nil {
		getLogger().Warn("could not load %s: %v", path, err)
	}
}
