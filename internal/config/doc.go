// Package config handles configuration loading with environment variable substitution.
//
// Files are YAML unless the name ends in ".toml". Both support ${VAR}
// interpolation before parsing.
package config
