// Package config provides configuration management for the batchflow server.
//
// Configuration is loaded from environment variables using the env package.
// All configuration values have sensible defaults for development use: both
// backends default to in-memory, so Redis is only contacted when one of
// BATCHFLOW_EVENTS_BACKEND or BATCHFLOW_STORAGE_BACKEND is set to redis.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
