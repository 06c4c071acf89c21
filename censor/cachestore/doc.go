// Caching of successful moderation verdicts with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory.
//
// Verdicts are keyed by provider and a SHA-256 digest of the content, so
// repeated submissions of the same text skip the provider round-trip.
package cachestore
