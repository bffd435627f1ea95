// Package config loads the Vehicle Health Hub configuration.
//
// Values come from the built-in defaults, then an optional YAML file, then
// VHUB_* environment variables. Time values are whole seconds, matching the
// probe_interval / probe_timeout options agents already use.
package config
