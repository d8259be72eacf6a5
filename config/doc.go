// Package config loads, validates and saves signtrack configuration.
//
// Configuration is read from TOML, with a .env file and SIGNTRACK_* variables
// able to override selected values. Live wraps the detection settings that
// can change while a stream is running.
package config
