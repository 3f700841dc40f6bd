// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation, so tokens and database passwords can stay out of the file.
// Durations use Go syntax ("3s", "150ms").
package config
