package replication

import eventemitter "github.com/vansante/go-event-emitter"

// Events emitted by Engine.Replicate, for callers (the CLI, tests) that want
// progress reporting beyond the returned error.
const (
	HoldCreatedEvent       eventemitter.EventType = "hold-created"
	HoldReleasedEvent      eventemitter.EventType = "hold-released"
	TransferStartedEvent   eventemitter.EventType = "transfer-started"
	TransferProgressEvent  eventemitter.EventType = "transfer-progress"
	TransferCompletedEvent eventemitter.EventType = "transfer-completed"
	TransferFailedEvent    eventemitter.EventType = "transfer-failed"
)
