// Package config loads the daemon's configuration from the environment.
//
// An optional .env file is read first; variables already present in the
// process environment take precedence over it. Every setting has a default,
// so an empty environment yields a runnable in-memory configuration.
package config
