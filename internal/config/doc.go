// Package config defines the fetcher settings and how they are layered:
// built-in defaults, then an optional YAML file, then PYSTEPS_FETCHER_*
// environment variables. Save writes the same structure back as YAML.
package config
