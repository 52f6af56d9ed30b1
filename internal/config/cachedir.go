package config

import (
	"os"
	"path/filepath"
)

// homeCacheDir resolves the platform cache directory (XDG_CACHE_HOME on
// Linux, ~/Library/Caches on macOS, %LocalAppData% on Windows) plus an
// "odm" subdirectory, so a caller that never sets Cache.Dir still gets a
// stable on-disk location instead of a relative path tied to the process's
// working directory.
func homeCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "odm"), nil
}
