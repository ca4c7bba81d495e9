// Read-through cache for engine query results (as JSON strings), with a fixed TTL and explicit purging.
//
// Includes an interface and implementations using redis and in-process memory.
//
// The engine caches moderation status and account standing lookups here, and purges an entry whenever the underlying state is saved.
package cachestore
