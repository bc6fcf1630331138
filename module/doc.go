// Package module defines the contract shared by every generative analysis module.
//
// A module turns a typed input into a dual-shaped Output: a fixed-shape structured
// record plus a formatted text projection of it, a confidence label and caller-facing
// warnings. Modules are stateless; caching is layered above them by package cache.
//
// The service response is untyped. Raw wraps the parsed value and every module
// coerces it field by field, so an Output returned to a caller is always complete.
package module
