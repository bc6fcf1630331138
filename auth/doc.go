// Package auth authenticates callers of the daemon's HTTP API.
//
// Two authenticators are provided: static API keys sent in a header and
// HS256-signed JWT bearer tokens. A Composite tries each authenticator that
// recognizes the request. Middleware guards an http.Handler with any
// Authenticator and attaches the resulting Identity to the request context.
package auth
