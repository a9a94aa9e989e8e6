package core

import (
	"os"
	"path/filepath"
)

type Paths struct {
	HomeDir    string
	DataDir    string
	LogFile    string
	UsageFile  string
	ConfigFile string
	InboxDir   string
}

var defaultPaths *Paths

func ensureDefaultPaths() {
	if defaultPaths == nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}

		defaultPaths = &Paths{
			HomeDir:    homeDir,
			DataDir:    filepath.Join(homeDir, ".tether"),
			LogFile:    filepath.Join(homeDir, ".tether", "tether.log"),
			UsageFile:  filepath.Join(homeDir, ".tether", "usage.db"),
			ConfigFile: filepath.Join(homeDir, ".tether", "config.yaml"),
			InboxDir:   filepath.Join(homeDir, ".tether", "inbox"),
		}

		err = os.MkdirAll(defaultPaths.DataDir, 0755)
		if err != nil {
			panic(err)
		}
	}
}

func HomeDir() string {
	ensureDefaultPaths()
	return defaultPaths.HomeDir
}

func DataDir() string {
	ensureDefaultPaths()
	return defaultPaths.DataDir
}

func LogFile() string {
	ensureDefaultPaths()
	return defaultPaths.LogFile
}

func UsageFile() string {
	ensureDefaultPaths()
	return defaultPaths.UsageFile
}

func ConfigFile() string {
	ensureDefaultPaths()
	return defaultPaths.ConfigFile
}

func InboxDir() string {
	ensureDefaultPaths()
	return defaultPaths.InboxDir
}

// ResetPaths clears the cached paths, forcing them to be reinitialized.
// This is primarily used for testing purposes.
func ResetPaths() {
	defaultPaths = nil
}
