// Package service is the caller-facing API: get-or-compute, peek and
// invalidation over the module definitions and the two-tier cache.
//
// GetOrCompute and PeekCached are generic over a module's input and result
// types. Registry erases those types for transports that speak JSON.
package service
