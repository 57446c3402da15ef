// Package config defines the daemon settings and helpers to load, validate
// and save them in YAML format.
//
// Every field has a default, so the daemon runs without a settings file.
package config
