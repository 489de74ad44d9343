package cli

import (
	"os"

	"github.com/Smeet2005/PHISHSCAN/internal/config"
)

var configCandidates = []string{"config.yml", "config.yaml", "/etc/phishscan/config.yaml", "/etc/phishscan/config.yml"}

func defaultConfigPath() string {
	if v := os.Getenv("PHISHSCAN_CONFIG"); v != "" {
		return v
	}
	for _, p := range configCandidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadLocalConfig loads path, or the first config file found in the usual
// places. With no file at all the built-in defaults apply.
func loadLocalConfig(path string) (*config.Config, error) {
	if path == "" {
		path = defaultConfigPath()
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
