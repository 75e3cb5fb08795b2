// Package config loads viewkit configuration.
//
// LoadConfig reads config.yml from the usual search paths (or an explicit
// file), overlays a .env file loaded with godotenv and environment
// variables, and unmarshals the result with viper. Environment variables
// map onto nested keys by underscores; with WithEnvPrefix("viewkit"),
// VIEWKIT_ENGINE_WORKERS sets engine.workers.
//
//	var cfg config.Config
//	if err := config.LoadConfig("viewkit", &cfg, config.WithEnvPrefix("viewkit")); err != nil { ... }
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil { ... }
package config
