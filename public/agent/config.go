package agent

import (
	"os"
	"path/filepath"
)

// StandardConfigResolver locates an agent's config file through a fixed
// priority chain: an explicit override first, then a CWD-relative
// convention.
//
// Resolution order (highest priority first):
//  1. Command-line flag (--config=/path/to/file)
//  2. Environment variable TRADECORE_CONFIG_PATH
//  3. CWD-relative: ./config/<name>.yaml
//  4. No config found (returns empty string; caller uses embedded defaults)
type StandardConfigResolver struct {
	AgentName  string
	ConfigFlag *string // optional: pointer to a flag.String() result
}

// Resolve returns the config file path following the priority order above,
// or "" if nothing was found.
func (r *StandardConfigResolver) Resolve() (string, error) {
	if r.ConfigFlag != nil && *r.ConfigFlag != "" {
		return *r.ConfigFlag, nil
	}

	if path := os.Getenv("TRADECORE_CONFIG_PATH"); path != "" {
		if fileExists(path) {
			return path, nil
		}
	}

	path := filepath.Join("config", r.AgentName+".yaml")
	if fileExists(path) {
		return path, nil
	}

	return "", nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
