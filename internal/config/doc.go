// Package config loads and validates strata.json, the project-level
// configuration for the render server: listen address, cache
// defaults, and bundle storage backend.
package config
