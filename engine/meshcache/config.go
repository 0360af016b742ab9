package meshcache

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

/** @brief The configuration for a mesh cache. */
type CacheConfig struct {
	/** @brief Maximum pending write-behind jobs. */
	QueueCapacity int `toml:"queue_capacity"`
	/** @brief Shutdown drain bound in milliseconds. */
	DrainTimeoutMs int `toml:"drain_timeout_ms"`
	/** @brief Watch source assets and evict their cache files on change. */
	WatchSources bool `toml:"watch_sources"`
	/** @brief Log level for the whole process: debug, info, warn, error. */
	LogLevel string `toml:"log_level"`
}

// DefaultCacheConfig returns the built-in defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		QueueCapacity:  DefaultWriteQueueCapacity,
		DrainTimeoutMs: int(DefaultDrainTimeout / time.Millisecond),
		WatchSources:   false,
		LogLevel:       "debug",
	}
}

// LoadCacheConfig overlays the TOML file at path onto the defaults. Fields
// absent from the file keep their default values.
func LoadCacheConfig(path string) (CacheConfig, error) {
	config := DefaultCacheConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read cache config '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse cache config '%s': %w", path, err)
	}
	return config, nil
}

// DrainTimeout converts the configured millisecond bound to a duration.
func (c CacheConfig) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutMs) * time.Millisecond
}
