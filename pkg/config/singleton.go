package config

import (
	"fmt"
	"sync"
)

var (
	// globalConfig holds the singleton configuration instance.
	globalConfig *Config

	// globalPath is the file globalConfig was loaded from.
	globalPath string

	// configMutex protects globalConfig and globalPath.
	configMutex sync.RWMutex

	// initOnce ensures configuration is initialized only once.
	initOnce sync.Once
)

// Initialize loads configuration from the specified path with environment
// variable overrides and stores it as the global configuration.
// Subsequent calls are ignored.
func Initialize(path string) error {
	var initErr error

	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}

		configMutex.Lock()
		globalConfig = cfg
		globalPath = path
		configMutex.Unlock()
	})

	return initErr
}

// GetConfig returns the global configuration instance, or nil if Initialize
// has not been called successfully. Callers must treat the result as
// read-only; ReloadConfig swaps in a new instance rather than mutating it.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// SetConfig sets the global configuration instance. Intended for tests.
func SetConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// ReloadConfig reloads the configuration from the path passed to Initialize.
// The new configuration replaces the global instance only if loading and
// validation succeed; the previous instance is returned alongside it so the
// caller can apply what changed.
func ReloadConfig() (previous, current *Config, err error) {
	configMutex.RLock()
	path := globalPath
	configMutex.RUnlock()

	if path == "" {
		return nil, nil, fmt.Errorf("failed to reload configuration: not initialized from a file")
	}

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload configuration: %w", err)
	}

	configMutex.Lock()
	previous = globalConfig
	globalConfig = cfg
	configMutex.Unlock()

	return previous, cfg, nil
}

// MustGetConfig returns the global configuration instance.
// It panics if the configuration has not been initialized.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}

// resetForTest clears the singleton so tests can call Initialize again.
func resetForTest() {
	configMutex.Lock()
	globalConfig = nil
	globalPath = ""
	configMutex.Unlock()
	initOnce = sync.Once{}
}
