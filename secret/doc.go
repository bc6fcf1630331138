// Package secret resolves service credentials from configuration values.
//
// A configured value is first expanded against the environment with strict
// semantics (see ExpandEnvStrict). If the expanded value is a reference of the
// form "secretref:<provider>:<ref>", the named Provider resolves it:
//
//	${ANTHROPIC_API_KEY}                      read from the environment
//	secretref:env:GEMINI_API_KEY              read from the environment via provider
//	secretref:file:/run/secrets/llm_api_key   read from a mounted secret file
//
// Resolved values are never logged.
package secret
