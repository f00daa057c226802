// Package event provides the per-room event bus and the event types that
// decouple the orchestration core from client adapters. The phase controller,
// turn coordinator, and vote aggregator publish events; the transport
// broadcaster and stats recorder subscribe to them without either side
// depending on the other.
package event
