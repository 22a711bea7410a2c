// Package config loads typed configuration from environment variables.
//
// Every component declares its own struct with caarlos0/env tags (pgstore.Config,
// usage.S3Config, notify.Config and so on); App carries the process-wide
// settings. Load parses a type once and caches it, reads the default .env file
// through godotenv on first use, and calls Validate when the type defines one.
//
//	var app config.App
//	config.MustLoad(&app)
//
// Tests that change the environment call ResetCache between cases.
package config
