package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DirName is the name of the local and global ytflow directories.
const DirName = ".ytflow"

// GetGlobalConfigDir returns the path to the global configuration directory (~/.ytflow).
// It's a variable to allow overriding in tests.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DirName), nil
}

// GetDataDir returns the directory for sessions, logs and crash reports.
// Resolution order (first match wins):
// 1. Local project directory: ./.ytflow (if exists)
// 2. XDG_DATA_HOME/ytflow (if XDG_DATA_HOME is set)
// 3. Global fallback: ~/.ytflow
func GetDataDir() string {
	if info, err := os.Stat(DirName); err == nil && info.IsDir() {
		return DirName
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "ytflow")
	}

	dir, err := GetGlobalConfigDir()
	if err != nil {
		return DirName
	}
	return dir
}

// GetMemoryBasePath returns the directory holding the session database.
// An explicit "memory.path" (flag, env or config file) wins.
func GetMemoryBasePath() string {
	if path := viper.GetString("memory.path"); path != "" {
		return path
	}
	return filepath.Join(GetDataDir(), "memory")
}

// GetScriptingAPIDir returns the directory of the unpacked
// @jetbrains/youtrack-scripting-api package.
func GetScriptingAPIDir() string {
	if dir := viper.GetString("scripting_api.dir"); dir != "" {
		return dir
	}
	return filepath.Join("packages", "youtrack-scripting-api", "package")
}

// GetPoliciesDir returns the directory scanned for user .rego validation policies.
func GetPoliciesDir() string {
	if dir := viper.GetString("validate.policiesDir"); dir != "" {
		return dir
	}
	return filepath.Join(GetDataDir(), "policies")
}

// GetShotsPath returns the optional code shot library file. Empty means the
// built-in library is used.
func GetShotsPath() string {
	return viper.GetString("shots.path")
}

// GetLogPath returns the JSON log file path, or "" when file logging is off.
func GetLogPath() string {
	if !viper.GetBool("log.file") {
		return ""
	}
	return filepath.Join(GetDataDir(), "logs", "ytflow.log")
}
