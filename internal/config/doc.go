// Package config loads and validates the server configuration. Values come
// from defaults, an optional YAML file and SUGGEST_-prefixed environment
// variables, in increasing order of precedence.
package config
