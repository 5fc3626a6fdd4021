// Package store keeps the latest mirror ranking and fans out live results.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Result]: Storage representation of one mirror's evaluation
//
// Subscribers receive results via channels with non-blocking sends (slow
// subscribers miss updates rather than block a round).
package store
