// Package crestauth is an embeddable identity and credential engine:
// registration, password login with brute-force lockout, email one-time
// codes as a second factor, JWT access/refresh pairs with single-use
// refresh rotation, API keys, password reset, and external-provider
// login.
//
// The engine owns no transport and no storage. Hosts plug in an
// EntityStore for durability (memstore.Store for a single process,
// entityhttp.Client for a remote entity service, or their own) and a
// Notifier for out-of-band delivery, then assemble with the Builder:
//
//	engine, err := crestauth.New().
//		WithConfig(cfg).
//		WithStore(store).
//		WithNotifier(mailer).
//		WithRedis(redisClient).
//		Build()
//
// Without Redis, challenges, revocations, and rate counters live in
// process memory; with Redis they hold across nodes.
package crestauth
