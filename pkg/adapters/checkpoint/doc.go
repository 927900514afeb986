// Package checkpoint provides checkpoint store implementations.
//
// Implementations:
//   - memory: in-memory for testing
//   - file: one JSON document per execution under a base directory
//   - redis: Redis with JSON serialization and TTL
package checkpoint
