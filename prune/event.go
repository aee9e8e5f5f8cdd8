package prune

import eventemitter "github.com/vansante/go-event-emitter"

// Events emitted by Orchestrator.Run, for callers (the CLI, tests) that want
// progress reporting beyond the returned Result.
const (
	DestroyingSnapshotEvent eventemitter.EventType = "destroying-snapshot"
	DestroyedSnapshotEvent  eventemitter.EventType = "destroyed-snapshot"
	DestroyFailedEvent      eventemitter.EventType = "destroy-failed"
)
