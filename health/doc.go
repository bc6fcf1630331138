// Package health reports whether the daemon's dependencies are usable.
//
// A Checker reports one component as healthy, degraded or unhealthy. The
// checks in this package cover the persistent cache store, the generative
// service credential and the cache's circuit breaker. An Aggregator runs
// them together and the HTTP handlers expose the result as liveness,
// readiness and detailed checks.
//
// Degraded means the daemon still answers correctly but with reduced
// capability, for example a cache that has fallen back to in-process
// storage. Only unhealthy checks fail readiness.
//
//	agg := health.NewAggregator(health.AggregatorConfig{})
//	agg.Register(health.NewStoreChecker(st, quota))
//	agg.Register(health.NewCredentialChecker(cred))
//	agg.Register(health.NewCacheChecker(c))
//	health.RegisterHandlers(router, agg)
package health
