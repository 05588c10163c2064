// Package events provides event bus implementations.
//
// Implementations:
//   - redis: Redis Streams, one consumer group per subscription so every
//     subscriber sees every event
//   - memory: In-memory for tests and the single-process CLI
package events
