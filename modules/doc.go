// Package modules defines the eight analytical modules.
//
// Each constructor returns a module.Definition: the input type, the staleness
// projection used for cache hashing, the fixed system instruction, the
// per-call prompt, a field-by-field normalizer and a formatter. Running a
// definition and caching its output are handled by the module and service
// packages.
//
// Normalizers never fail. Every field has a documented default so a record
// with missing or mistyped fields, or no record at all, still yields a fully
// populated result.
package modules
