package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 8080,

		"nodeodm.url":     "http://localhost:3001",
		"nodeodm.timeout": "0s",

		// Empty dir means os.TempDir(); each artifact family gets
		// its own <family>-cache subdirectory under it.
		"cache.dir": "",
		"cache.ttl": "1h",

		"pointcloud.max_points":     5_000_000,
		"pointcloud.default_points": 2_000_000,

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
	return nil
}
